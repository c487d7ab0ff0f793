package view

import (
	"fmt"
	"strings"
	"time"

	"telegram-bingo-bot/internal/anticheat"
	"telegram-bingo-bot/internal/game/bingo"
	"telegram-bingo-bot/internal/model"
	"telegram-bingo-bot/internal/room"
	"telegram-bingo-bot/internal/service"
)

const divider = "━━━━━━━━━━━━━━━"

// FormatCard renders a card as a monospace grid with marked cells bracketed.
func FormatCard(card bingo.Card, mask bingo.Mask) string {
	var b strings.Builder
	b.WriteString(" B   I   N   G   O\n")
	for r := 0; r < bingo.Size; r++ {
		for c := 0; c < bingo.Size; c++ {
			if c > 0 {
				b.WriteByte(' ')
			}
			if mask[r][c] {
				fmt.Fprintf(&b, "[%2d]", card[r][c])
			} else {
				fmt.Fprintf(&b, " %2d ", card[r][c])
			}
		}
		if r < bingo.Size-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// FormatEvent renders a room event. It returns "" for events that have no
// chat message.
func FormatEvent(e room.Event) string {
	switch e.Type {
	case room.EventRoomCreated:
		return fmt.Sprintf(
			"🎲 Room %s created by %s\n\n"+
				"Join with /join %s",
			e.RoomCode, displayName(e.Username, e.UserID), e.RoomCode,
		)
	case room.EventPlayerJoined:
		return fmt.Sprintf("👋 %s joined room %s (%d players)",
			displayName(e.Username, e.UserID), e.RoomCode, len(e.Recipients))
	case room.EventPlayerLeft:
		return fmt.Sprintf("🚪 %s left room %s", displayName(e.Username, e.UserID), e.RoomCode)
	case room.EventRoundStarted:
		return fmt.Sprintf(
			"🚀 Round started in room %s!\n\n"+
				"Your card has been sent to you privately. Good luck!",
			e.RoomCode,
		)
	case room.EventCardDealt:
		if e.Card == nil {
			return ""
		}
		return fmt.Sprintf(
			"🃏 Your card for room %s\n"+
				"%s\n"+
				"<pre>%s</pre>\n"+
				"%s\n"+
				"Tap a called number to mark it.",
			e.RoomCode, divider, FormatCard(*e.Card, bingo.Mask{}), divider,
		)
	case room.EventNumberCalled:
		return fmt.Sprintf("📢 Number %d! (%d/%d called) · Room %s",
			e.Number, e.Called, bingo.UniverseSize, e.RoomCode)
	case room.EventBingoConfirmed:
		return fmt.Sprintf(
			"🏆 BINGO! %s wins room %s\n\n"+
				"Numbers called: %d",
			displayName(e.Username, e.UserID), e.RoomCode, e.Called,
		)
	case room.EventRoundExhausted:
		return fmt.Sprintf("🏁 All %d numbers called in room %s. No winner this time.",
			e.Called, e.RoomCode)
	case room.EventRoomCancelled:
		return fmt.Sprintf("❌ Room %s has been cancelled.", e.RoomCode)
	}
	return ""
}

// FormatRoom renders a room snapshot for /room.
func FormatRoom(snap *model.RoomSnapshot) string {
	r := snap.Room
	msg := fmt.Sprintf("🎲 Room %s\n", r.Code)
	msg += divider + "\n"
	msg += fmt.Sprintf("📌 Status: %s\n", r.Status)
	msg += fmt.Sprintf("👥 Players: %d/%d\n", len(snap.Members), r.MaxPlayers)
	if r.AutoCall {
		msg += "⏱️ Numbers are called automatically\n"
	}
	if snap.Round != nil && len(snap.Round.Called) > 0 {
		msg += fmt.Sprintf("📢 Called (%d): %s\n", len(snap.Round.Called), joinInts(snap.Round.Called))
	}
	msg += divider + "\n"
	for _, m := range snap.Members {
		host := ""
		if m.UserID == r.HostID {
			host = " 👑"
		}
		msg += fmt.Sprintf("%d. %s%s\n", m.Seq, m.DisplayName(), host)
	}
	return strings.TrimSuffix(msg, "\n")
}

// FormatProfile renders a profile for /profile.
func FormatProfile(p *service.Profile) string {
	u := p.User
	return fmt.Sprintf(
		"📊 Profile\n"+
			"%s\n"+
			"👤 User: %s\n"+
			"⭐ Level: %d (%d/%d XP)\n"+
			"✨ XP: %d\n"+
			"💰 Coins: %d\n"+
			"🎮 Games played: %d\n"+
			"🏆 Games won: %d\n"+
			"%s",
		divider, displayName(u.Username, u.TelegramID),
		p.Level, p.XPIntoLevel, model.XPPerLevel,
		u.XP, u.Coins, u.GamesPlayed, u.GamesWon, divider,
	)
}

// FormatLeaderboard renders the leaderboard.
func FormatLeaderboard(entries []service.LeaderboardEntry) string {
	if len(entries) == 0 {
		return "📊 No players ranked yet"
	}

	msg := fmt.Sprintf("🏆 Leaderboard TOP %d\n", len(entries))
	msg += divider + "\n"

	medals := []string{"🥇", "🥈", "🥉"}
	for i, e := range entries {
		rank := fmt.Sprintf("%d.", e.Rank)
		if i < len(medals) {
			rank = medals[i]
		}
		msg += fmt.Sprintf("%s %s: Lv.%d · %d XP · %d wins\n",
			rank, displayName(e.Username, e.UserID), e.Level, e.XP, e.GamesWon)
	}

	msg += divider
	return msg
}

// FormatHistory renders a user's recent ledger entries.
func FormatHistory(a *service.Activity) string {
	msg := "📜 Recent activity\n"
	msg += divider + "\n"
	msg += fmt.Sprintf("📅 Today: %s XP, %s coins\n", signed(a.XPToday), signed(a.CoinsToday))
	msg += divider + "\n"
	if len(a.Entries) == 0 {
		return msg + "No activity yet"
	}
	for _, e := range a.Entries {
		unit := "coins"
		if e.Currency == model.CurrencyXP {
			unit = "XP"
		}
		msg += fmt.Sprintf("%s %s %s · %s\n", e.CreatedAt.Format("01-02 15:04"), signed(e.Amount), unit, reasonLabel(e.Reason))
	}
	msg += divider
	return msg
}

func signed(n int64) string {
	if n > 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprint(n)
}

func reasonLabel(reason string) string {
	switch reason {
	case model.ReasonWinGame, model.ReasonWinMultiplayer:
		return "won a round"
	case model.ReasonPlayGame:
		return "played a round"
	case model.ReasonCardPurchase:
		return "saved a card"
	case model.ReasonAdminAdd:
		return "admin credit"
	}
	return reason
}

// FormatSavedCards renders a user's saved cards.
func FormatSavedCards(cards []*model.SavedCard, max int) string {
	if len(cards) == 0 {
		return "🃏 You have no saved cards\n\nCreate one with /savecard <name> <25 numbers>"
	}
	msg := fmt.Sprintf("🃏 Saved cards (%d/%d)\n", len(cards), max)
	for _, c := range cards {
		msg += divider + "\n"
		msg += fmt.Sprintf("📝 %s\n<pre>%s</pre>\n", c.Name, c.Card.String())
	}
	msg += divider
	return msg
}

// FormatAlert renders an anti-cheat escalation sent to the user.
func FormatAlert(action anticheat.Action, score int, mute time.Duration) string {
	switch action {
	case anticheat.ActionWarn:
		return fmt.Sprintf("⚠️ Suspicious activity detected (score %d). Only mark numbers that were called.", score)
	case anticheat.ActionMute:
		return fmt.Sprintf("🔇 You have been muted for %s for suspicious activity.", FormatDuration(mute))
	case anticheat.ActionBan:
		return "⛔ You have been banned for repeated suspicious activity."
	}
	return ""
}

// FormatDuration formats a duration as minutes and seconds.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	minutes := int(d / time.Minute)
	seconds := int((d % time.Minute) / time.Second)
	if minutes > 0 && seconds > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%ds", seconds)
}

// RejectionMessage explains a rejected room operation to the user.
func RejectionMessage(reason room.Reason) string {
	switch reason {
	case room.ReasonNotFound:
		return "❌ Room not found"
	case room.ReasonFull:
		return "❌ The room is full"
	case room.ReasonAlreadyJoined:
		return "❌ You are already in this room"
	case room.ReasonWrongStatus:
		return "❌ That is not possible in the room's current state"
	case room.ReasonNotHost:
		return "❌ Only the host can do that"
	case room.ReasonBelowMinimum:
		return "❌ Not enough players to start"
	case room.ReasonNumberNotCalled:
		return "❌ That number has not been called yet"
	case room.ReasonNumberNotOnCard:
		return "❌ That number is not on your card"
	case room.ReasonInvalidPattern:
		return "❌ No complete row, column or diagonal yet"
	case room.ReasonInvalidCard:
		return "❌ Invalid card: use 25 distinct numbers from 1 to 25"
	case room.ReasonNotMember:
		return "❌ You are not playing in this room"
	case room.ReasonInvalidMaxPlayers:
		return "❌ Invalid number of players"
	}
	return "❌ Operation rejected"
}

func displayName(username string, id int64) string {
	if username == "" {
		return fmt.Sprintf("User%d", id)
	}
	return username
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
