package room

import (
	"context"
	"time"

	"telegram-bingo-bot/internal/game/bingo"
	"telegram-bingo-bot/internal/model"
)

// Store persists rooms, memberships and rounds. Every method is one atomic
// write; on error nothing was written.
type Store interface {
	// CreateRoom inserts the room with its host as first member. It returns
	// ErrCodeTaken if the code exists.
	CreateRoom(ctx context.Context, room *model.Room, host *model.Member) error
	// LoadRoom returns the room, its members in join order and its bound
	// round. It returns an error matching ErrRoomNotFound if absent.
	LoadRoom(ctx context.Context, code string) (*model.RoomSnapshot, error)
	AddMember(ctx context.Context, member *model.Member) error
	RemoveMember(ctx context.Context, code string, userID int64) error
	// SaveMember updates the member's card, mask, pending card and flags.
	SaveMember(ctx context.Context, member *model.Member) error
	// UpdateRoom updates status and round binding.
	UpdateRoom(ctx context.Context, room *model.Room) error
	// BeginRound inserts the round, binds it to the room and stores the
	// dealt cards and cleared masks.
	BeginRound(ctx context.Context, room *model.Room, round *model.Round, members []*model.Member) error
	// SaveCall stores the round's called numbers together with the room.
	SaveCall(ctx context.Context, room *model.Room, round *model.Round) error
	// FinishRound stores the terminal round, the terminal room and any
	// member changes made while resolving it.
	FinishRound(ctx context.Context, room *model.Room, round *model.Round, members []*model.Member) error
}

// EventType names a room event.
type EventType string

// Room events.
const (
	EventRoomCreated    EventType = "room_created"
	EventPlayerJoined   EventType = "player_joined"
	EventPlayerLeft     EventType = "player_left"
	EventRoundStarted   EventType = "round_started"
	EventCardDealt      EventType = "card_dealt"
	EventNumberCalled   EventType = "number_called"
	EventBingoConfirmed EventType = "bingo_confirmed"
	EventRoundExhausted EventType = "round_exhausted"
	EventRoomCancelled  EventType = "room_cancelled"
)

// Event is emitted after an operation commits. UserID is set for events
// addressed to a single player; Recipients lists the room's members.
type Event struct {
	Type       EventType   `json:"type"`
	RoomCode   string      `json:"room_code"`
	ChatID     int64       `json:"chat_id,omitempty"`
	UserID     int64       `json:"user_id,omitempty"`
	Username   string      `json:"username,omitempty"`
	Recipients []int64     `json:"recipients,omitempty"`
	RoundID    string      `json:"round_id,omitempty"`
	Number     int         `json:"number,omitempty"`
	Called     int         `json:"called,omitempty"`
	WinnerID   *int64      `json:"winner_id,omitempty"`
	Card       *bingo.Card `json:"card,omitempty"`
	At         time.Time   `json:"at"`
}

// Direct reports whether the event targets a single player.
func (e Event) Direct() bool {
	return e.Type == EventCardDealt
}

// Notifier receives events. Implementations must not block for long and must
// handle their own failures.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// RoundResult describes a resolved round for the reward collaborator.
type RoundResult struct {
	RoundID      string
	RoomCode     string
	WinnerID     *int64
	Duration     time.Duration
	Participants []int64
}

// Rewarder is called exactly once per resolved round.
type Rewarder interface {
	AwardRound(ctx context.Context, result RoundResult) error
}

// SignalKind names an integrity signal.
type SignalKind string

// Integrity signals.
const (
	SignalFakeMark  SignalKind = "invalid_number"
	SignalFakeBingo SignalKind = "fake_bingo"
	SignalWin       SignalKind = "win"
)

// Signal is forwarded to the cheat reporter.
type Signal struct {
	Kind     SignalKind
	UserID   int64
	RoomCode string
	Number   int
	Duration time.Duration
}

// CheatReporter receives integrity signals.
type CheatReporter interface {
	Report(ctx context.Context, signal Signal)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}

type nopRewarder struct{}

func (nopRewarder) AwardRound(context.Context, RoundResult) error { return nil }

type nopReporter struct{}

func (nopReporter) Report(context.Context, Signal) {}
