// Package view renders rooms, cards and events as Telegram messages and
// inline keyboards.
package view

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-bingo-bot/internal/game/bingo"
)

// CallbackPrefix is the prefix for all bingo callback data.
const CallbackPrefix = "bingo_"

// Callback actions.
const (
	ActionMark    = "mark"    // bingo_mark_ABCDEF_12
	ActionBingo   = "bingo"   // bingo_bingo_ABCDEF
	ActionRefresh = "refresh" // bingo_refresh_ABCDEF
)

// Callback is a decoded inline button press.
type Callback struct {
	Action   string
	RoomCode string
	Number   int
}

// EncodeCallback encodes an action, room code and optional number into
// callback data.
func EncodeCallback(action, code string, number int) string {
	if number > 0 {
		return fmt.Sprintf("%s%s_%s_%d", CallbackPrefix, action, code, number)
	}
	return fmt.Sprintf("%s%s_%s", CallbackPrefix, action, code)
}

// DecodeCallback decodes callback data produced by EncodeCallback.
func DecodeCallback(data string) (Callback, bool) {
	// Telebot may prefix callback data with \f.
	data = strings.TrimPrefix(data, "\f")
	if !strings.HasPrefix(data, CallbackPrefix) {
		return Callback{}, false
	}

	parts := strings.Split(strings.TrimPrefix(data, CallbackPrefix), "_")
	if len(parts) < 2 || parts[1] == "" {
		return Callback{}, false
	}
	cb := Callback{Action: parts[0], RoomCode: parts[1]}

	switch cb.Action {
	case ActionMark:
		if len(parts) != 3 {
			return Callback{}, false
		}
		n, err := strconv.Atoi(parts[2])
		if err != nil || !bingo.InUniverse(n) {
			return Callback{}, false
		}
		cb.Number = n
	case ActionBingo, ActionRefresh:
		if len(parts) != 2 {
			return Callback{}, false
		}
	default:
		return Callback{}, false
	}
	return cb, true
}

// BuildCardKeyboard builds the marking panel for a card.
// Layout:
//   - Rows 1-5: one button per cell, marked cells show a check
//   - Row 6: [🔄 Refresh] [🎉 BINGO!]
func BuildCardKeyboard(code string, card bingo.Card, mask bingo.Mask) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	rows := make([]tele.Row, 0, bingo.Size+1)
	for r := 0; r < bingo.Size; r++ {
		btns := make([]tele.Btn, bingo.Size)
		for c := 0; c < bingo.Size; c++ {
			n := card[r][c]
			label := strconv.Itoa(n)
			if mask[r][c] {
				label = "✅" + label
			}
			btns[c] = markup.Data(label, EncodeCallback(ActionMark, code, n))
		}
		rows = append(rows, markup.Row(btns...))
	}

	rows = append(rows, markup.Row(
		markup.Data("🔄 Refresh", EncodeCallback(ActionRefresh, code, 0)),
		markup.Data("🎉 BINGO!", EncodeCallback(ActionBingo, code, 0)),
	))

	markup.Inline(rows...)
	return markup
}
