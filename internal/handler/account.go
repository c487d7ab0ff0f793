package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-bingo-bot/internal/service"
	"telegram-bingo-bot/internal/view"
)

const helpText = "🎲 Multiplayer Bingo\n" +
	"━━━━━━━━━━━━━━━\n" +
	"/newroom [players] [auto] [private] - create a room\n" +
	"/join <code> - join a room\n" +
	"/startgame - start the round (host)\n" +
	"/call - call the next number (host)\n" +
	"/mark <number> - mark a called number\n" +
	"/bingo - claim a complete line\n" +
	"/card - show your card\n" +
	"/room - room status\n" +
	"/leave - leave the room\n" +
	"/cancel - cancel the room (host)\n" +
	"━━━━━━━━━━━━━━━\n" +
	"/savecard <name> <25 numbers> - save a custom card\n" +
	"/mycards - your saved cards\n" +
	"/usecard <name> - play a saved card\n" +
	"/deletecard <name> - delete a saved card\n" +
	"/profile - XP, level and coins\n" +
	"/history - recent rewards and spending\n" +
	"/leaderboard - top players"

// AccountHandler handles account-related commands.
type AccountHandler struct {
	accountService *service.AccountService
	historyService *service.HistoryService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService *service.AccountService, historyService *service.HistoryService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		historyService: historyService,
	}
}

// HandleStart handles the /start command.
// Creates the user's account if it doesn't exist.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	username := senderName(sender)
	_, created, err := h.accountService.EnsureUser(ctx, sender.ID, username)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to create account")
		return c.Reply("❌ Failed to create your account, please try again later")
	}

	if created {
		return c.Reply(fmt.Sprintf("🎉 Welcome %s!\n\n%s", username, helpText))
	}
	return c.Reply(fmt.Sprintf("👋 Welcome back %s!\n\n%s", username, helpText))
}

// HandleHelp handles the /help command.
func (h *AccountHandler) HandleHelp(c tele.Context) error {
	return c.Reply(helpText)
}

// HandleProfile handles the /profile command.
func (h *AccountHandler) HandleProfile(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	profile, err := h.accountService.GetProfile(ctx, sender.ID)
	if errors.Is(err, service.ErrUserNotFound) {
		// User might not exist, try to create
		user, _, ensureErr := h.accountService.EnsureUser(ctx, sender.ID, senderName(sender))
		if ensureErr != nil {
			err = ensureErr
		} else {
			profile, err = service.NewProfile(user), nil
		}
	}
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to load profile")
		return c.Reply("❌ Failed to load your profile, please try again later")
	}

	return c.Reply(view.FormatProfile(profile))
}

// HandleHistory handles the /history command.
func (h *AccountHandler) HandleHistory(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	activity, err := h.historyService.Activity(context.Background(), sender.ID, service.DefaultHistorySize)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to load history")
		return c.Reply("❌ Failed to load your history, please try again later")
	}
	return c.Reply(view.FormatHistory(activity))
}
