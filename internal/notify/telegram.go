package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-bingo-bot/internal/anticheat"
	"telegram-bingo-bot/internal/game/bingo"
	"telegram-bingo-bot/internal/room"
	"telegram-bingo-bot/internal/view"
)

// Sender sends Telegram messages. *tele.Bot satisfies it.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramNotifier posts room events to the room's group chat, or to each
// member privately when the room has no chat. Dealt cards always go to the
// player privately together with the marking keyboard.
type TelegramNotifier struct {
	sender       Sender
	muteDuration time.Duration
}

var (
	_ room.Notifier     = (*TelegramNotifier)(nil)
	_ anticheat.Alerter = (*TelegramNotifier)(nil)
)

// NewTelegramNotifier creates a TelegramNotifier. muteDuration is only used to
// word mute alerts.
func NewTelegramNotifier(sender Sender, muteDuration time.Duration) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, muteDuration: muteDuration}
}

// Notify implements room.Notifier.
func (n *TelegramNotifier) Notify(ctx context.Context, e room.Event) {
	text := view.FormatEvent(e)
	if text == "" {
		return
	}

	if e.Direct() {
		opts := []interface{}{tele.ModeHTML}
		if e.Card != nil {
			opts = append(opts, view.BuildCardKeyboard(e.RoomCode, *e.Card, bingo.Mask{}))
		}
		n.send(e, e.UserID, text, opts...)
		return
	}

	if e.ChatID != 0 {
		n.send(e, e.ChatID, text)
		return
	}
	for _, id := range e.Recipients {
		n.send(e, id, text)
	}
}

// Alert implements anticheat.Alerter by messaging the user privately.
func (n *TelegramNotifier) Alert(ctx context.Context, userID int64, action anticheat.Action, score int) {
	text := view.FormatAlert(action, score, n.muteDuration)
	if text == "" {
		return
	}
	if _, err := n.sender.Send(tele.ChatID(userID), text); err != nil {
		log.Warn().Err(err).
			Int64("user_id", userID).
			Str("action", string(action)).
			Msg("Failed to send anti-cheat alert")
	}
}

func (n *TelegramNotifier) send(e room.Event, to int64, text string, opts ...interface{}) {
	if _, err := n.sender.Send(tele.ChatID(to), text, opts...); err != nil {
		log.Warn().Err(err).
			Str("event", string(e.Type)).
			Str("room_code", e.RoomCode).
			Int64("chat_id", to).
			Msg("Failed to deliver room event")
	}
}
