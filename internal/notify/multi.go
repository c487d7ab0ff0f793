// Package notify delivers room events to players and downstream consumers:
// Telegram chats, websocket subscribers and an AMQP exchange.
package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	"telegram-bingo-bot/internal/room"
)

// Multi fans an event out to every sink. A sink that panics is logged and
// skipped; the others still receive the event.
type Multi []room.Notifier

// Notify implements room.Notifier.
func (m Multi) Notify(ctx context.Context, e room.Event) {
	for _, n := range m {
		if n == nil {
			continue
		}
		notifyOne(ctx, n, e)
	}
}

func notifyOne(ctx context.Context, n room.Notifier, e room.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("event", string(e.Type)).
				Str("room_code", e.RoomCode).
				Msg("Recovered from panic in notifier")
		}
	}()
	n.Notify(ctx, e)
}
