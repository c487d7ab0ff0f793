// Package room owns the bingo room lifecycle and drives rounds to resolution.
//
// All mutations of one room run under that room's lock; different rooms are
// independent. The manager keeps live rooms in an arena keyed by room code and
// is the only writer of room status. Persistence happens before the in-memory
// room is updated, and collaborators are called after the lock is released.
package room

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"telegram-bingo-bot/internal/game/bingo"
	"telegram-bingo-bot/internal/model"
	"telegram-bingo-bot/internal/pkg/lock"
)

// CodeAlphabet avoids characters that are easy to confuse (0/O, 1/I).
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Config holds room and round rules.
type Config struct {
	MinPlayers        int
	MaxPlayersLimit   int
	DefaultMaxPlayers int
	CodeLength        int
	CodeRetries       int
	AutoCallInterval  time.Duration
}

// DefaultConfig returns the standard rules.
func DefaultConfig() Config {
	return Config{
		MinPlayers:        2,
		MaxPlayersLimit:   10,
		DefaultMaxPlayers: 5,
		CodeLength:        6,
		CodeRetries:       10,
		AutoCallInterval:  10 * time.Second,
	}
}

// Dependencies are the manager's collaborators. Only Store is required.
type Dependencies struct {
	Store    Store
	Notifier Notifier
	Rewarder Rewarder
	Cheats   CheatReporter
	Rand     bingo.Rand
	Now      func() time.Time
}

// Player identifies a user acting on a room.
type Player struct {
	ID   int64
	Name string
}

// CreateOptions configures a new room.
type CreateOptions struct {
	ChatID     int64
	MaxPlayers int
	Private    bool
	AutoCall   bool
}

// roomState is the live copy of a room. It is only touched under the room
// lock.
type roomState struct {
	room     *model.Room
	members  []*model.Member
	round    *model.Round
	called   map[int]struct{}
	nextSeq  int
	stopAuto context.CancelFunc // guarded by Manager.mu
}

func (st *roomState) member(userID int64) (int, *model.Member) {
	for i, m := range st.members {
		if m.UserID == userID {
			return i, m
		}
	}
	return -1, nil
}

func (st *roomState) recipients() []int64 {
	ids := make([]int64, len(st.members))
	for i, m := range st.members {
		ids[i] = m.UserID
	}
	return ids
}

// effects are applied after the room lock is released.
type effects struct {
	events  []Event
	signals []Signal
	result  *RoundResult
}

// Manager is the room lifecycle manager and round controller.
type Manager struct {
	cfg      Config
	store    Store
	notifier Notifier
	rewarder Rewarder
	cheats   CheatReporter
	now      func() time.Time

	randMu sync.Mutex
	rand   bingo.Rand

	locks *lock.RoomLock

	mu     sync.Mutex
	rooms  map[string]*roomState
	closed bool
}

// New creates a Manager.
func New(cfg Config, deps Dependencies) *Manager {
	def := DefaultConfig()
	if cfg.MinPlayers <= 0 {
		cfg.MinPlayers = def.MinPlayers
	}
	if cfg.MaxPlayersLimit < cfg.MinPlayers {
		cfg.MaxPlayersLimit = def.MaxPlayersLimit
	}
	if cfg.DefaultMaxPlayers < cfg.MinPlayers || cfg.DefaultMaxPlayers > cfg.MaxPlayersLimit {
		cfg.DefaultMaxPlayers = cfg.MaxPlayersLimit
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = def.CodeLength
	}
	if cfg.CodeRetries <= 0 {
		cfg.CodeRetries = def.CodeRetries
	}

	m := &Manager{
		cfg:      cfg,
		store:    deps.Store,
		notifier: deps.Notifier,
		rewarder: deps.Rewarder,
		cheats:   deps.Cheats,
		rand:     deps.Rand,
		now:      deps.Now,
		locks:    lock.NewRoomLock(),
		rooms:    make(map[string]*roomState),
	}
	if m.notifier == nil {
		m.notifier = nopNotifier{}
	}
	if m.rewarder == nil {
		m.rewarder = nopRewarder{}
	}
	if m.cheats == nil {
		m.cheats = nopReporter{}
	}
	if m.rand == nil {
		m.rand = bingo.DefaultRand
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Config returns the active rules.
func (m *Manager) Config() Config {
	return m.cfg
}

// NormalizeCode uppercases a user-typed code and strips decoration.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	code = strings.TrimPrefix(code, "#")
	return strings.ToUpper(code)
}

func (m *Manager) newCode() string {
	m.randMu.Lock()
	defer m.randMu.Unlock()

	b := make([]byte, m.cfg.CodeLength)
	for i := range b {
		b[i] = CodeAlphabet[m.rand.Intn(len(CodeAlphabet))]
	}
	return string(b)
}

func (m *Manager) generateCard() bingo.Card {
	m.randMu.Lock()
	defer m.randMu.Unlock()
	return bingo.GenerateCard(m.rand)
}

func (m *Manager) draw(called map[int]struct{}) (int, bool) {
	m.randMu.Lock()
	defer m.randMu.Unlock()
	return bingo.NextNumber(called, m.rand)
}

// Create allocates a unique code, stores the room and adds the host as first
// member.
func (m *Manager) Create(ctx context.Context, host Player, opts CreateOptions) (*model.Room, error) {
	maxPlayers := opts.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = m.cfg.DefaultMaxPlayers
	}
	if maxPlayers < m.cfg.MinPlayers || maxPlayers > m.cfg.MaxPlayersLimit {
		return nil, reject(ReasonInvalidMaxPlayers)
	}

	now := m.now()
	for attempt := 0; attempt < m.cfg.CodeRetries; attempt++ {
		code := m.newCode()
		room := &model.Room{
			Code:       code,
			HostID:     host.ID,
			ChatID:     opts.ChatID,
			MaxPlayers: maxPlayers,
			Private:    opts.Private,
			AutoCall:   opts.AutoCall,
			Status:     model.RoomWaiting,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		member := &model.Member{
			RoomCode: code,
			UserID:   host.ID,
			Username: host.Name,
			Seq:      1,
			JoinedAt: now,
		}

		m.locks.Lock(code)
		err := m.store.CreateRoom(ctx, room, member)
		if err == nil {
			m.mu.Lock()
			m.rooms[code] = &roomState{
				room:    room,
				members: []*model.Member{member},
				nextSeq: 2,
			}
			m.mu.Unlock()
		}
		m.locks.Unlock(code)

		if errors.Is(err, ErrCodeTaken) {
			log.Debug().Str("room_code", code).Int("attempt", attempt+1).Msg("Room code collision, retrying")
			continue
		}
		if err != nil {
			return nil, storeErr("create room", err)
		}

		log.Info().
			Str("room_code", code).
			Int64("host_id", host.ID).
			Int("max_players", maxPlayers).
			Bool("auto_call", opts.AutoCall).
			Msg("Room created")

		m.apply(ctx, &effects{events: []Event{{
			Type:       EventRoomCreated,
			RoomCode:   code,
			ChatID:     room.ChatID,
			UserID:     host.ID,
			Username:   host.Name,
			Recipients: []int64{host.ID},
			At:         now,
		}}})
		return room.Clone(), nil
	}

	return nil, ErrCodeSpace
}

// Join admits a player to a WAITING room.
func (m *Manager) Join(ctx context.Context, code string, player Player) (*model.Member, error) {
	var joined *model.Member
	err := m.mutate(ctx, code, func(st *roomState, fx *effects) error {
		if st.room.Status != model.RoomWaiting {
			return reject(ReasonWrongStatus)
		}
		if _, existing := st.member(player.ID); existing != nil {
			return reject(ReasonAlreadyJoined)
		}
		if len(st.members) >= st.room.MaxPlayers {
			return reject(ReasonFull)
		}

		member := &model.Member{
			RoomCode: st.room.Code,
			UserID:   player.ID,
			Username: player.Name,
			Seq:      st.nextSeq,
			JoinedAt: m.now(),
		}
		if err := m.store.AddMember(ctx, member); err != nil {
			return storeErr("add member", err)
		}
		st.members = append(st.members, member)
		st.nextSeq++
		joined = member.Clone()

		fx.events = append(fx.events, Event{
			Type:       EventPlayerJoined,
			RoomCode:   st.room.Code,
			ChatID:     st.room.ChatID,
			UserID:     player.ID,
			Username:   player.Name,
			Recipients: st.recipients(),
			At:         member.JoinedAt,
		})
		return nil
	})
	return joined, err
}

// Leave removes a player. The host leaving cancels the room.
func (m *Manager) Leave(ctx context.Context, code string, userID int64) error {
	return m.mutate(ctx, code, func(st *roomState, fx *effects) error {
		if st.room.Status.Terminal() {
			return reject(ReasonWrongStatus)
		}
		idx, member := st.member(userID)
		if member == nil {
			return reject(ReasonNotMember)
		}
		if userID == st.room.HostID {
			return m.cancelLocked(ctx, st, fx)
		}

		if err := m.store.RemoveMember(ctx, st.room.Code, userID); err != nil {
			return storeErr("remove member", err)
		}
		st.members = append(st.members[:idx:idx], st.members[idx+1:]...)

		fx.events = append(fx.events, Event{
			Type:       EventPlayerLeft,
			RoomCode:   st.room.Code,
			ChatID:     st.room.ChatID,
			UserID:     userID,
			Username:   member.Username,
			Recipients: st.recipients(),
			At:         m.now(),
		})
		return nil
	})
}

// Cancel lets the host end a room that has not finished.
func (m *Manager) Cancel(ctx context.Context, code string, userID int64) error {
	return m.mutate(ctx, code, func(st *roomState, fx *effects) error {
		if st.room.HostID != userID {
			return reject(ReasonNotHost)
		}
		if st.room.Status.Terminal() {
			return reject(ReasonWrongStatus)
		}
		return m.cancelLocked(ctx, st, fx)
	})
}

// ForceCancel ends a room regardless of who asks. Used by admins.
func (m *Manager) ForceCancel(ctx context.Context, code string) error {
	return m.mutate(ctx, code, func(st *roomState, fx *effects) error {
		if st.room.Status.Terminal() {
			return reject(ReasonWrongStatus)
		}
		return m.cancelLocked(ctx, st, fx)
	})
}

func (m *Manager) cancelLocked(ctx context.Context, st *roomState, fx *effects) error {
	now := m.now()
	room := st.room.Clone()
	room.Status = model.RoomCancelled
	room.UpdatedAt = now

	var round *model.Round
	if st.round != nil && st.round.Status == model.RoundInProgress {
		round = st.round.Clone()
		round.Status = model.RoundCancelled
		round.EndedAt = &now
	}

	var err error
	if round != nil {
		err = m.store.FinishRound(ctx, room, round, nil)
	} else {
		err = m.store.UpdateRoom(ctx, room)
	}
	if err != nil {
		return storeErr("cancel room", err)
	}

	st.room = room
	if round != nil {
		st.round = round
	}
	m.retire(st)

	log.Info().Str("room_code", room.Code).Msg("Room cancelled")

	fx.events = append(fx.events, Event{
		Type:       EventRoomCancelled,
		RoomCode:   room.Code,
		ChatID:     room.ChatID,
		UserID:     room.HostID,
		Recipients: st.recipients(),
		At:         now,
	})
	return nil
}

// SubmitCard stores a custom card for the member's next round.
func (m *Manager) SubmitCard(ctx context.Context, code string, userID int64, card bingo.Card) error {
	if !card.Valid() {
		return reject(ReasonInvalidCard)
	}
	return m.mutate(ctx, code, func(st *roomState, fx *effects) error {
		if st.room.Status != model.RoomWaiting {
			return reject(ReasonWrongStatus)
		}
		idx, member := st.member(userID)
		if member == nil {
			return reject(ReasonNotMember)
		}

		updated := member.Clone()
		updated.PendingCard = &card
		if err := m.store.SaveMember(ctx, updated); err != nil {
			return storeErr("save custom card", err)
		}
		st.members[idx] = updated
		return nil
	})
}

// Snapshot reads a room straight from the store without taking the room
// lock.
func (m *Manager) Snapshot(ctx context.Context, code string) (*model.RoomSnapshot, error) {
	snap, err := m.store.LoadRoom(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil, reject(ReasonNotFound)
		}
		return nil, storeErr("load room", err)
	}
	return snap, nil
}

// Resume loads rooms into memory after a restart so their auto-call loops
// pick up where they stopped. It returns how many rooms were resumed.
func (m *Manager) Resume(ctx context.Context, codes []string) int {
	resumed := 0
	for _, code := range codes {
		err := m.mutate(ctx, code, func(st *roomState, _ *effects) error {
			if st.room.Status.Terminal() {
				return reject(ReasonWrongStatus)
			}
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Str("room_code", code).Msg("Failed to resume room")
			continue
		}
		resumed++
	}
	log.Info().Int("rooms", resumed).Msg("Rooms resumed")
	return resumed
}

// ActiveRooms returns the number of rooms held in memory.
func (m *Manager) ActiveRooms() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// Close stops every auto-call loop. Rounds started afterwards are only
// driven by explicit calls.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for _, st := range m.rooms {
		if st.stopAuto != nil {
			st.stopAuto()
			st.stopAuto = nil
		}
	}
}

// mutate runs fn under the room lock with the live room loaded, then applies
// collected effects once the lock is released.
func (m *Manager) mutate(ctx context.Context, code string, fn func(st *roomState, fx *effects) error) error {
	code = NormalizeCode(code)
	fx := &effects{}

	m.locks.Lock(code)
	err := func() error {
		st, err := m.load(ctx, code)
		if err != nil {
			return err
		}
		return fn(st, fx)
	}()
	m.locks.Unlock(code)

	m.apply(ctx, fx)
	return err
}

// load returns the live room, reading it from the store on first use. The
// caller holds the room lock.
func (m *Manager) load(ctx context.Context, code string) (*roomState, error) {
	m.mu.Lock()
	st, ok := m.rooms[code]
	m.mu.Unlock()
	if ok {
		return st, nil
	}

	snap, err := m.store.LoadRoom(ctx, code)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil, reject(ReasonNotFound)
		}
		return nil, storeErr("load room", err)
	}

	st = &roomState{
		room:    snap.Room,
		members: snap.Members,
		round:   snap.Round,
		nextSeq: 1,
	}
	for _, mem := range st.members {
		if mem.Seq >= st.nextSeq {
			st.nextSeq = mem.Seq + 1
		}
	}
	if st.round != nil {
		st.called = bingo.CalledSet(st.round.Called)
	}

	// Terminal rooms are served from the store and never cached.
	if st.room.Status.Terminal() {
		return st, nil
	}

	m.mu.Lock()
	m.rooms[code] = st
	m.mu.Unlock()

	if st.room.Status.Running() && st.round != nil && st.round.Status == model.RoundInProgress {
		m.startAutoCall(st)
	}
	return st, nil
}

// retire stops the room's timer and drops it from the arena. The caller holds
// the room lock.
func (m *Manager) retire(st *roomState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st.stopAuto != nil {
		st.stopAuto()
		st.stopAuto = nil
	}
	delete(m.rooms, st.room.Code)
}

// apply hands effects to the collaborators. It never fails, and it outlives
// the caller's cancellation so a finished round is always rewarded.
func (m *Manager) apply(ctx context.Context, fx *effects) {
	ctx = context.WithoutCancel(ctx)
	for _, s := range fx.signals {
		m.cheats.Report(ctx, s)
	}
	if fx.result != nil {
		if err := m.rewarder.AwardRound(ctx, *fx.result); err != nil {
			log.Error().Err(err).
				Str("room_code", fx.result.RoomCode).
				Str("round_id", fx.result.RoundID).
				Msg("Failed to award round")
		}
	}
	for _, e := range fx.events {
		m.notifier.Notify(ctx, e)
	}
}
