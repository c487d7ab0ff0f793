package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-bingo-bot/internal/room"
	"telegram-bingo-bot/internal/service"
	"telegram-bingo-bot/internal/view"
)

// BanSetter bans and unbans users. *anticheat.Detector satisfies it.
type BanSetter interface {
	SetBanned(ctx context.Context, userID int64, banned bool) error
}

// AdminHandler handles admin-related commands.
type AdminHandler struct {
	accountService *service.AccountService
	bans           BanSetter
	manager        *room.Manager
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(accountService *service.AccountService, bans BanSetter, manager *room.Manager) *AdminHandler {
	return &AdminHandler{
		accountService: accountService,
		bans:           bans,
		manager:        manager,
	}
}

// HandleAdminAdd handles the /admin_add command.
// Format: /admin_add <user_id> <amount>
func (h *AdminHandler) HandleAdminAdd(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	targetID, amount, err := parseAdminArgs(c.Args())
	if err != nil {
		return c.Reply(err.Error())
	}
	if amount <= 0 {
		return c.Reply("❌ Amount must be greater than 0")
	}

	user, err := h.accountService.AddCoins(ctx, targetID, amount, sender.ID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return c.Reply("❌ User not found")
		}
		log.Error().Err(err).Int64("target_id", targetID).Msg("Admin add failed")
		return c.Reply("❌ Operation failed, please try again later")
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", targetID).
		Int64("amount", amount).
		Str("operation", "admin_add").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf(
		"✅ Done\n\n"+
			"👤 User: %d\n"+
			"➕ Added: %d coins\n"+
			"💰 Coins: %d",
		targetID, amount, user.Coins,
	))
}

// parseAdminArgs parses "<user_id> <amount>".
func parseAdminArgs(args []string) (int64, int64, error) {
	if len(args) < 2 {
		return 0, 0, errors.New("❌ Usage: /admin_add <user_id> <amount>\nExample: /admin_add 123456789 100")
	}

	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, errors.New("❌ User ID must be a number")
	}

	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, 0, errors.New("❌ Amount must be an integer")
	}

	return targetID, amount, nil
}

// HandleAdminBan handles the /admin_ban command.
// Format: /admin_ban <user_id>
func (h *AdminHandler) HandleAdminBan(c tele.Context) error {
	return h.setBanned(c, true)
}

// HandleAdminUnban handles the /admin_unban command.
// Format: /admin_unban <user_id>
func (h *AdminHandler) HandleAdminUnban(c tele.Context) error {
	return h.setBanned(c, false)
}

func (h *AdminHandler) setBanned(c tele.Context, banned bool) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) != 1 {
		return c.Reply(usage("/admin_ban <user_id>", "/admin_unban <user_id>"))
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Reply("❌ User ID must be a number")
	}

	if err := h.bans.SetBanned(context.Background(), targetID, banned); err != nil {
		log.Error().Err(err).Int64("target_id", targetID).Msg("Admin ban update failed")
		return c.Reply("❌ Operation failed, please try again later")
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", targetID).
		Bool("banned", banned).
		Str("operation", "admin_ban").
		Msg("Admin operation executed")

	if banned {
		return c.Reply(fmt.Sprintf("⛔ User %d banned", targetID))
	}
	return c.Reply(fmt.Sprintf("✅ User %d unbanned", targetID))
}

// HandleAdminCancel handles the /admin_cancel command.
// Format: /admin_cancel <code>
func (h *AdminHandler) HandleAdminCancel(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if len(c.Args()) != 1 {
		return c.Reply(usage("/admin_cancel <code>"))
	}

	code := room.NormalizeCode(c.Args()[0])
	if err := h.manager.ForceCancel(context.Background(), code); err != nil {
		if reason, ok := room.IsRejection(err); ok {
			return c.Reply(view.RejectionMessage(reason))
		}
		log.Error().Err(err).Str("room_code", code).Msg("Admin cancel failed")
		return c.Reply("❌ Operation failed, please try again later")
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Str("room_code", code).
		Str("operation", "admin_cancel").
		Msg("Admin operation executed")
	return c.Reply(fmt.Sprintf("✅ Room %s cancelled", code))
}
