// Package model defines the data models for the Telegram bingo bot.
package model

import (
	"strconv"
	"time"

	"telegram-bingo-bot/internal/game/bingo"
)

// User represents a Telegram user's progression in the bingo system.
type User struct {
	TelegramID  int64     `db:"telegram_id"`
	Username    string    `db:"username"`
	XP          int64     `db:"xp"`
	Coins       int64     `db:"coins"`
	GamesPlayed int64     `db:"games_played"`
	GamesWon    int64     `db:"games_won"`
	Banned      bool      `db:"banned"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// XPPerLevel is the XP needed for each level.
const XPPerLevel = 100

// Level derives the user's level from XP.
func (u *User) Level() int64 {
	return 1 + u.XP/XPPerLevel
}

// LedgerEntry records one XP or coin credit or debit.
type LedgerEntry struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Currency    string    `db:"currency"`
	Amount      int64     `db:"amount"`
	Reason      string    `db:"reason"`
	RoundID     *string   `db:"round_id"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// Ledger currencies.
const (
	CurrencyXP    = "xp"
	CurrencyCoins = "coins"
)

// Ledger reasons.
const (
	ReasonWinGame        = "win_game"        // XP for winning a round
	ReasonPlayGame       = "play_game"       // XP for taking part in a round
	ReasonWinMultiplayer = "win_multiplayer" // Coins for winning a round
	ReasonCardPurchase   = "card_purchase"   // Coins spent on a custom card
	ReasonAdminAdd       = "admin_add"       // Admin credited coins
)

// SavedCard is a custom card a user built and stored for later rounds.
type SavedCard struct {
	ID        int64      `db:"id"`
	UserID    int64      `db:"user_id"`
	Name      string     `db:"name"`
	Card      bingo.Card `db:"numbers"`
	CreatedAt time.Time  `db:"created_at"`
}

// RoomStatus is the lifecycle state of a room.
type RoomStatus string

// Room statuses. FINISHED and CANCELLED are terminal.
const (
	RoomWaiting    RoomStatus = "WAITING"
	RoomActive     RoomStatus = "ACTIVE"
	RoomInProgress RoomStatus = "IN_PROGRESS"
	RoomFinished   RoomStatus = "FINISHED"
	RoomCancelled  RoomStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are possible.
func (s RoomStatus) Terminal() bool {
	return s == RoomFinished || s == RoomCancelled
}

// Running reports whether a round is bound to the room.
func (s RoomStatus) Running() bool {
	return s == RoomActive || s == RoomInProgress
}

// Room is a joinable lobby identified by a short shareable code.
type Room struct {
	Code       string     `db:"code" json:"code"`
	HostID     int64      `db:"host_id" json:"host_id"`
	ChatID     int64      `db:"chat_id" json:"chat_id"`
	MaxPlayers int        `db:"max_players" json:"max_players"`
	Private    bool       `db:"is_private" json:"private"`
	AutoCall   bool       `db:"auto_call" json:"auto_call"`
	Status     RoomStatus `db:"status" json:"status"`
	RoundID    *string    `db:"round_id" json:"round_id,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Member is a user's membership in a room. Seq is the join order.
type Member struct {
	RoomCode      string      `db:"room_code" json:"-"`
	UserID        int64       `db:"user_id" json:"user_id"`
	Username      string      `db:"username" json:"username"`
	Seq           int         `db:"seq" json:"seq"`
	Card          *bingo.Card `db:"card" json:"card,omitempty"`
	Mask          bingo.Mask  `db:"mask" json:"mask"`
	PendingCard   *bingo.Card `db:"pending_card" json:"-"`
	DeclaredBingo bool        `db:"declared_bingo" json:"declared_bingo"`
	JoinedAt      time.Time   `db:"joined_at" json:"joined_at"`
}

// DisplayName returns the username or a fallback built from the ID.
func (m *Member) DisplayName() string {
	if m.Username != "" {
		return m.Username
	}
	return "player" + strconv.FormatInt(m.UserID, 10)
}

// RoundStatus is the lifecycle state of a round.
type RoundStatus string

// Round statuses.
const (
	RoundPending    RoundStatus = "PENDING"
	RoundInProgress RoundStatus = "IN_PROGRESS"
	RoundCompleted  RoundStatus = "COMPLETED"
	RoundCancelled  RoundStatus = "CANCELLED"
)

// Round is one play-through bound to a room. Called keeps call order.
type Round struct {
	ID         string      `db:"id" json:"id"`
	RoomCode   string      `db:"room_code" json:"room_code"`
	Status     RoundStatus `db:"status" json:"status"`
	Called     []int       `db:"called" json:"called"`
	LastNumber *int        `db:"last_number" json:"last_number,omitempty"`
	WinnerID   *int64      `db:"winner_id" json:"winner_id,omitempty"`
	StartedAt  time.Time   `db:"started_at" json:"started_at"`
	EndedAt    *time.Time  `db:"ended_at" json:"ended_at,omitempty"`
}

// Duration returns the elapsed round time, up to now if it is still running.
func (r *Round) Duration(now time.Time) time.Duration {
	if r.EndedAt != nil {
		return r.EndedAt.Sub(r.StartedAt)
	}
	return now.Sub(r.StartedAt)
}

// RoomSnapshot is a consistent read of a room, its members in join order and
// its bound round, if any.
type RoomSnapshot struct {
	Room    *Room     `json:"room"`
	Members []*Member `json:"members"`
	Round   *Round    `json:"round,omitempty"`
}

// Clone returns a deep copy of the room.
func (r *Room) Clone() *Room {
	c := *r
	if r.RoundID != nil {
		id := *r.RoundID
		c.RoundID = &id
	}
	return &c
}

// Clone returns a deep copy of the member.
func (m *Member) Clone() *Member {
	c := *m
	if m.Card != nil {
		card := *m.Card
		c.Card = &card
	}
	if m.PendingCard != nil {
		card := *m.PendingCard
		c.PendingCard = &card
	}
	return &c
}

// Clone returns a deep copy of the round.
func (r *Round) Clone() *Round {
	c := *r
	c.Called = append([]int(nil), r.Called...)
	if r.LastNumber != nil {
		n := *r.LastNumber
		c.LastNumber = &n
	}
	if r.WinnerID != nil {
		w := *r.WinnerID
		c.WinnerID = &w
	}
	if r.EndedAt != nil {
		e := *r.EndedAt
		c.EndedAt = &e
	}
	return &c
}
