// Package handler provides Telegram bot command handlers.
package handler

import (
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-bingo-bot/internal/room"
	"telegram-bingo-bot/internal/view"
)

// RoomTracker remembers the last room each user created or joined so room
// commands can omit the code.
type RoomTracker struct {
	mu    sync.RWMutex
	rooms map[int64]string
}

// NewRoomTracker creates an empty RoomTracker.
func NewRoomTracker() *RoomTracker {
	return &RoomTracker{rooms: make(map[int64]string)}
}

// Set records code as the user's current room.
func (t *RoomTracker) Set(userID int64, code string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rooms[userID] = code
}

// Get returns the user's current room.
func (t *RoomTracker) Get(userID int64) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	code, ok := t.rooms[userID]
	return code, ok
}

// Forget clears the user's current room if it is code.
func (t *RoomTracker) Forget(userID int64, code string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rooms[userID] == code {
		delete(t.rooms, userID)
	}
}

// Resolve splits a room code off the front of args. When the first argument
// is not code-shaped the user's current room is used.
func (t *RoomTracker) Resolve(userID int64, args []string, codeLength int) (string, []string, bool) {
	if len(args) > 0 {
		if code := room.NormalizeCode(args[0]); len(code) == codeLength && !isNumber(code) {
			return code, args[1:], true
		}
	}
	code, ok := t.Get(userID)
	return code, args, ok
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// senderName returns the username or first name of the sender.
func senderName(u *tele.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

// groupChatID returns the chat a new room should announce to, or 0 for
// private chats.
func groupChatID(c tele.Context) int64 {
	chat := c.Chat()
	if chat == nil || chat.Type == tele.ChatPrivate {
		return 0
	}
	return chat.ID
}

// roomErrorText maps a room operation error to the reply text.
func roomErrorText(err error) string {
	if reason, ok := room.IsRejection(err); ok {
		return view.RejectionMessage(reason)
	}
	if errors.Is(err, room.ErrStore) {
		return "❌ Storage is temporarily unavailable, please try again"
	}
	return "❌ Something went wrong, please try again later"
}

// replyRoomError replies with roomErrorText and logs unexpected failures.
func replyRoomError(c tele.Context, op string, err error) error {
	if _, ok := room.IsRejection(err); !ok {
		log.Error().Err(err).Str("op", op).Msg("Room operation failed")
	}
	return c.Reply(roomErrorText(err))
}

// usage formats a usage hint.
func usage(lines ...string) string {
	return "📝 Usage:\n" + strings.Join(lines, "\n")
}
