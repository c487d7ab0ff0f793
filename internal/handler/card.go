package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-bingo-bot/internal/game/bingo"
	"telegram-bingo-bot/internal/room"
	"telegram-bingo-bot/internal/service"
	"telegram-bingo-bot/internal/view"
)

// CardHandler handles custom card commands.
type CardHandler struct {
	cardService *service.CardService
	manager     *room.Manager
	tracker     *RoomTracker
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(cardService *service.CardService, manager *room.Manager, tracker *RoomTracker) *CardHandler {
	return &CardHandler{
		cardService: cardService,
		manager:     manager,
		tracker:     tracker,
	}
}

func cardErrorText(err error) string {
	switch {
	case errors.Is(err, bingo.ErrInvalidCard):
		return view.RejectionMessage(room.ReasonInvalidCard)
	case errors.Is(err, service.ErrInvalidCardName):
		return "❌ Card names are 1-32 letters, digits, - or _"
	case errors.Is(err, service.ErrCardNotFound):
		return "❌ You have no card with that name"
	case errors.Is(err, service.ErrCardNameTaken):
		return "❌ You already have a card with that name"
	case errors.Is(err, service.ErrCardLimit):
		return "❌ You have reached the saved card limit. Delete one with /deletecard"
	case errors.Is(err, service.ErrInsufficientCoins):
		return "❌ Not enough coins"
	}
	return "❌ Operation failed, please try again later"
}

// HandleSaveCard handles the /savecard command.
// Format: /savecard <name> <25 numbers>
func (h *CardHandler) HandleSaveCard(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) < 2 {
		cfg := h.cardService.Config()
		return c.Reply(usage(
			"/savecard <name> <25 numbers>",
			fmt.Sprintf("Numbers 1-25, each once, row by row. Costs %d coins, up to %d cards.", cfg.Cost, cfg.MaxSaved),
		))
	}

	saved, err := h.cardService.SaveCard(context.Background(), sender.ID, args[0], strings.Join(args[1:], " "))
	if err != nil {
		if !isCardUserError(err) {
			log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to save card")
		}
		return c.Reply(cardErrorText(err))
	}
	return c.Reply(fmt.Sprintf(
		"✅ Card %s saved (-%d coins)\n<pre>%s</pre>",
		saved.Name, h.cardService.Config().Cost, saved.Card.String(),
	), tele.ModeHTML)
}

func isCardUserError(err error) bool {
	for _, target := range []error{
		bingo.ErrInvalidCard, service.ErrInvalidCardName, service.ErrCardNotFound,
		service.ErrCardNameTaken, service.ErrCardLimit, service.ErrInsufficientCoins,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// HandleMyCards handles the /mycards command.
func (h *CardHandler) HandleMyCards(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	cards, err := h.cardService.ListCards(context.Background(), sender.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to list cards")
		return c.Reply(cardErrorText(err))
	}
	return c.Reply(view.FormatSavedCards(cards, h.cardService.Config().MaxSaved), tele.ModeHTML)
}

// HandleDeleteCard handles the /deletecard command.
// Format: /deletecard <name>
func (h *CardHandler) HandleDeleteCard(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if len(c.Args()) != 1 {
		return c.Reply(usage("/deletecard <name>"))
	}

	name := c.Args()[0]
	if err := h.cardService.DeleteCard(context.Background(), sender.ID, name); err != nil {
		return c.Reply(cardErrorText(err))
	}
	return c.Reply(fmt.Sprintf("🗑️ Card %s deleted", name))
}

// HandleUseCard handles the /usecard command. The saved card replaces the
// generated one when the round starts.
// Format: /usecard [code] <name>
func (h *CardHandler) HandleUseCard(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	code, rest, ok := h.tracker.Resolve(sender.ID, c.Args(), h.manager.Config().CodeLength)
	if !ok || len(rest) != 1 {
		return c.Reply(usage("/usecard <code> <name>"))
	}

	ctx := context.Background()
	saved, err := h.cardService.GetCard(ctx, sender.ID, rest[0])
	if err != nil {
		return c.Reply(cardErrorText(err))
	}
	if err := h.manager.SubmitCard(ctx, code, sender.ID, saved.Card); err != nil {
		return replyRoomError(c, "submit card", err)
	}
	return c.Reply(fmt.Sprintf("✅ You will play card %s in room %s", saved.Name, code))
}
