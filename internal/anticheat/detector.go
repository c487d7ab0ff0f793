// Package anticheat scores integrity signals from rounds and escalates
// suspicious users from a warning to a mute to a persisted ban.
package anticheat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"telegram-bingo-bot/internal/room"
)

// Action is the escalation applied to a user.
type Action string

// Escalations, in increasing order.
const (
	ActionNone Action = ""
	ActionWarn Action = "warn"
	ActionMute Action = "mute"
	ActionBan  Action = "ban"
)

// Rate-limited commands.
const (
	LimitMark       = "mark_number"
	LimitCall       = "call_number"
	LimitJoinRoom   = "join_room"
	LimitCreateRoom = "create_room"
)

// Config holds weights, thresholds and rate limits.
type Config struct {
	InvalidNumberWeight int
	FakeBingoWeight     int
	TooFastWinWeight    int

	WarnAt int
	MuteAt int
	BanAt  int

	MuteDuration   time.Duration
	MinWinDuration time.Duration

	// RateLimits is the number of uses allowed per window, by command. A
	// user may spend the whole allowance at once; it refills evenly over the
	// window.
	RateLimits map[string]int
	RateWindow time.Duration
}

// DefaultConfig returns the standard rules.
func DefaultConfig() Config {
	return Config{
		InvalidNumberWeight: 3,
		FakeBingoWeight:     2,
		TooFastWinWeight:    3,
		WarnAt:              3,
		MuteAt:              5,
		BanAt:               8,
		MuteDuration:        10 * time.Minute,
		MinWinDuration:      20 * time.Second,
		RateLimits: map[string]int{
			LimitMark:       30,
			LimitCall:       10,
			LimitJoinRoom:   5,
			LimitCreateRoom: 2,
		},
		RateWindow: time.Minute,
	}
}

// BanStore persists bans. *repository.UserRepository satisfies it.
type BanStore interface {
	SetBanned(ctx context.Context, telegramID int64, banned bool) error
	BannedIDs(ctx context.Context) ([]int64, error)
}

// Alerter is told when a user is escalated.
type Alerter interface {
	Alert(ctx context.Context, userID int64, action Action, score int)
}

type limiter struct {
	*rate.Limiter
	lastUsed time.Time
}

type rateKey struct {
	userID  int64
	command string
}

// Detector implements room.CheatReporter.
type Detector struct {
	cfg     Config
	bans    BanStore
	alerter Alerter
	now     func() time.Time

	mu         sync.Mutex
	scores     map[int64]int
	mutedUntil map[int64]time.Time
	banned     map[int64]bool
	limiters   map[rateKey]*limiter
	lastSweep  time.Time
}

var _ room.CheatReporter = (*Detector)(nil)

// New creates a Detector. bans and alerter may be nil.
func New(cfg Config, bans BanStore, alerter Alerter) *Detector {
	return &Detector{
		cfg:        cfg,
		bans:       bans,
		alerter:    alerter,
		now:        time.Now,
		scores:     make(map[int64]int),
		mutedUntil: make(map[int64]time.Time),
		banned:     make(map[int64]bool),
		limiters:   make(map[rateKey]*limiter),
	}
}

// SetClock replaces the time source.
func (d *Detector) SetClock(now func() time.Time) {
	d.now = now
}

// Load reads persisted bans.
func (d *Detector) Load(ctx context.Context) error {
	if d.bans == nil {
		return nil
	}
	ids, err := d.bans.BannedIDs(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		d.banned[id] = true
	}
	log.Info().Int("banned", len(ids)).Msg("Loaded banned users")
	return nil
}

func (d *Detector) weight(s room.Signal) int {
	switch s.Kind {
	case room.SignalFakeMark:
		return d.cfg.InvalidNumberWeight
	case room.SignalFakeBingo:
		return d.cfg.FakeBingoWeight
	case room.SignalWin:
		if s.Duration < d.cfg.MinWinDuration {
			return d.cfg.TooFastWinWeight
		}
	}
	return 0
}

// Report scores a signal and escalates the user if a threshold is crossed.
func (d *Detector) Report(ctx context.Context, s room.Signal) {
	w := d.weight(s)
	if w == 0 {
		return
	}

	d.mu.Lock()
	d.scores[s.UserID] += w
	score := d.scores[s.UserID]
	action := d.escalateLocked(s.UserID, score)
	d.mu.Unlock()

	log.Warn().
		Int64("user_id", s.UserID).
		Str("room_code", s.RoomCode).
		Str("signal", string(s.Kind)).
		Int("score", score).
		Str("action", string(action)).
		Msg("Suspicious activity")

	if action == ActionBan && d.bans != nil {
		if err := d.bans.SetBanned(ctx, s.UserID, true); err != nil {
			log.Error().Err(err).Int64("user_id", s.UserID).Msg("Failed to persist ban")
		}
	}
	if action != ActionNone && d.alerter != nil {
		d.alerter.Alert(ctx, s.UserID, action, score)
	}
}

// escalateLocked returns the action the score calls for, applying mutes and
// bans. A ban is only returned once.
func (d *Detector) escalateLocked(userID int64, score int) Action {
	switch {
	case score >= d.cfg.BanAt:
		if d.banned[userID] {
			return ActionNone
		}
		d.banned[userID] = true
		return ActionBan
	case score >= d.cfg.MuteAt:
		d.mutedUntil[userID] = d.now().Add(d.cfg.MuteDuration)
		return ActionMute
	case score >= d.cfg.WarnAt:
		return ActionWarn
	}
	return ActionNone
}

// Score returns the user's suspicion score.
func (d *Detector) Score(userID int64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scores[userID]
}

// IsBanned reports whether the user is banned.
func (d *Detector) IsBanned(userID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.banned[userID]
}

// IsMuted reports whether the user is muted and for how much longer.
func (d *Detector) IsMuted(userID int64) (bool, time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	until, ok := d.mutedUntil[userID]
	if !ok {
		return false, 0
	}
	remaining := until.Sub(d.now())
	if remaining <= 0 {
		delete(d.mutedUntil, userID)
		return false, 0
	}
	return true, remaining
}

// SetBanned bans or pardons a user. A pardon also clears the score and mute.
func (d *Detector) SetBanned(ctx context.Context, userID int64, banned bool) error {
	if d.bans != nil {
		if err := d.bans.SetBanned(ctx, userID, banned); err != nil {
			return err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if banned {
		d.banned[userID] = true
		return nil
	}
	delete(d.banned, userID)
	delete(d.scores, userID)
	delete(d.mutedUntil, userID)
	return nil
}

// Allow counts one use of command and reports whether the user is within
// the rate limit. Commands without a limit are always allowed.
func (d *Detector) Allow(userID int64, command string) bool {
	limit, ok := d.cfg.RateLimits[command]
	if !ok || limit <= 0 {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.maybeSweepLocked(now)

	key := rateKey{userID: userID, command: command}
	l, ok := d.limiters[key]
	if !ok {
		every := rate.Every(d.cfg.RateWindow / time.Duration(limit))
		l = &limiter{Limiter: rate.NewLimiter(every, limit)}
		d.limiters[key] = l
	}
	l.lastUsed = now
	return l.AllowN(now, 1)
}

// maybeSweepLocked drops expired mutes and limiters idle for a whole window,
// at most once per window. An idle limiter has refilled to its burst, so a
// fresh one behaves the same.
func (d *Detector) maybeSweepLocked(now time.Time) {
	window := max(d.cfg.RateWindow, time.Minute)
	if now.Sub(d.lastSweep) < window {
		return
	}
	d.lastSweep = now

	for key, l := range d.limiters {
		if now.Sub(l.lastUsed) >= d.cfg.RateWindow {
			delete(d.limiters, key)
		}
	}
	for userID, until := range d.mutedUntil {
		if !now.Before(until) {
			delete(d.mutedUntil, userID)
		}
	}
}
