package room

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"telegram-bingo-bot/internal/game/bingo"
	"telegram-bingo-bot/internal/model"
)

// CallResult is the outcome of a call. When Ended is true no number was
// drawn and WinnerID holds the round's winner, if any.
type CallResult struct {
	Number   int
	Called   int
	Ended    bool
	WinnerID *int64
}

// MarkResult is the outcome of an accepted mark.
type MarkResult struct {
	Number        int
	Row           int
	Col           int
	AlreadyMarked bool
	// Bingo is true when the player's mask now has a complete line and the
	// player can declare.
	Bingo bool
}

// DeclareResult is a confirmed bingo. The winner is the first member in join
// order whose mask holds a line, which is not necessarily the declarer.
type DeclareResult struct {
	WinnerID int64
	Winner   string
	RoundID  string
	// Settled is set when the round had already been won. Nothing changed.
	Settled bool
}

// StartRound deals cards to every member and binds a new round to the room.
func (m *Manager) StartRound(ctx context.Context, code string, userID int64) (*model.Round, error) {
	var started *model.Round
	err := m.mutate(ctx, code, func(st *roomState, fx *effects) error {
		if st.room.HostID != userID {
			return reject(ReasonNotHost)
		}
		if st.room.Status != model.RoomWaiting {
			return reject(ReasonWrongStatus)
		}
		if len(st.members) < m.cfg.MinPlayers {
			return reject(ReasonBelowMinimum)
		}

		now := m.now()
		round := &model.Round{
			ID:        uuid.NewString(),
			RoomCode:  st.room.Code,
			Status:    model.RoundPending,
			Called:    []int{},
			StartedAt: now,
		}

		members := make([]*model.Member, len(st.members))
		for i, mem := range st.members {
			dealt := mem.Clone()
			var card bingo.Card
			if mem.PendingCard != nil && mem.PendingCard.Valid() {
				card = *mem.PendingCard
			} else {
				card = m.generateCard()
			}
			dealt.Card = &card
			dealt.Mask = bingo.Mask{}
			dealt.PendingCard = nil
			dealt.DeclaredBingo = false
			members[i] = dealt
		}

		round.Status = model.RoundInProgress
		room := st.room.Clone()
		room.Status = model.RoomActive
		room.RoundID = &round.ID
		room.UpdatedAt = now

		if err := m.store.BeginRound(ctx, room, round, members); err != nil {
			return storeErr("begin round", err)
		}

		st.room = room
		st.round = round
		st.members = members
		st.called = make(map[int]struct{})
		m.startAutoCall(st)
		started = round.Clone()

		log.Info().
			Str("room_code", room.Code).
			Str("round_id", round.ID).
			Int("players", len(members)).
			Msg("Round started")

		fx.events = append(fx.events, Event{
			Type:       EventRoundStarted,
			RoomCode:   room.Code,
			ChatID:     room.ChatID,
			RoundID:    round.ID,
			Recipients: st.recipients(),
			At:         now,
		})
		for _, mem := range members {
			card := *mem.Card
			fx.events = append(fx.events, Event{
				Type:     EventCardDealt,
				RoomCode: room.Code,
				UserID:   mem.UserID,
				Username: mem.Username,
				RoundID:  round.ID,
				Card:     &card,
				At:       now,
			})
		}
		return nil
	})
	return started, err
}

// CallNext draws the next number for the room's round. Once the pool is
// exhausted without a winner the round completes with no winner.
func (m *Manager) CallNext(ctx context.Context, code string) (CallResult, error) {
	var res CallResult
	err := m.mutate(ctx, code, func(st *roomState, fx *effects) error {
		var err error
		res, err = m.callLocked(ctx, st, fx)
		return err
	})
	return res, err
}

// CallNextAs is CallNext for rooms without auto-call, where only the host
// calls numbers.
func (m *Manager) CallNextAs(ctx context.Context, code string, userID int64) (CallResult, error) {
	var res CallResult
	err := m.mutate(ctx, code, func(st *roomState, fx *effects) error {
		if st.room.HostID != userID {
			return reject(ReasonNotHost)
		}
		var err error
		res, err = m.callLocked(ctx, st, fx)
		return err
	})
	return res, err
}

func (m *Manager) callLocked(ctx context.Context, st *roomState, fx *effects) (CallResult, error) {
	if st.round == nil {
		return CallResult{}, reject(ReasonWrongStatus)
	}
	if st.round.Status != model.RoundInProgress {
		return CallResult{Ended: true, WinnerID: st.round.WinnerID, Called: len(st.round.Called)}, nil
	}

	n, ok := m.draw(st.called)
	if !ok {
		if err := m.finishLocked(ctx, st, fx, nil, nil); err != nil {
			return CallResult{}, err
		}
		return CallResult{Ended: true, Called: len(st.round.Called)}, nil
	}

	round := st.round.Clone()
	round.Called = append(round.Called, n)
	round.LastNumber = &n
	room := st.room
	if room.Status == model.RoomActive {
		room = room.Clone()
		room.Status = model.RoomInProgress
		room.UpdatedAt = m.now()
	}

	if err := m.store.SaveCall(ctx, room, round); err != nil {
		return CallResult{}, storeErr("save call", err)
	}
	st.room = room
	st.round = round
	st.called[n] = struct{}{}

	fx.events = append(fx.events, Event{
		Type:       EventNumberCalled,
		RoomCode:   room.Code,
		ChatID:     room.ChatID,
		RoundID:    round.ID,
		Number:     n,
		Called:     len(round.Called),
		Recipients: st.recipients(),
		At:         m.now(),
	})
	return CallResult{Number: n, Called: len(round.Called)}, nil
}

// Mark sets the cell holding number on the player's card. Marking an
// uncalled number is rejected and reported.
func (m *Manager) Mark(ctx context.Context, code string, userID int64, number int) (MarkResult, error) {
	var res MarkResult
	err := m.mutate(ctx, code, func(st *roomState, fx *effects) error {
		if st.round == nil || st.round.Status != model.RoundInProgress {
			return reject(ReasonWrongStatus)
		}
		idx, member := st.member(userID)
		if member == nil || member.Card == nil {
			return reject(ReasonNotMember)
		}
		if _, called := st.called[number]; !called {
			fx.signals = append(fx.signals, Signal{
				Kind:     SignalFakeMark,
				UserID:   userID,
				RoomCode: st.room.Code,
				Number:   number,
			})
			return reject(ReasonNumberNotCalled)
		}

		r, c, ok := member.Card.Find(number)
		if !ok {
			return reject(ReasonNumberNotOnCard)
		}
		res = MarkResult{Number: number, Row: r, Col: c}

		if member.Mask[r][c] {
			res.AlreadyMarked = true
			res.Bingo = bingo.HasBingo(member.Mask)
			return nil
		}

		updated := member.Clone()
		updated.Mask[r][c] = true
		if err := m.store.SaveMember(ctx, updated); err != nil {
			return storeErr("save mark", err)
		}
		st.members[idx] = updated
		res.Bingo = bingo.HasBingo(updated.Mask)
		return nil
	})
	return res, err
}

// DeclareBingo re-checks the declarer's mask before ending the round. A claim
// without a complete line is rejected and reported.
func (m *Manager) DeclareBingo(ctx context.Context, code string, userID int64) (DeclareResult, error) {
	var res DeclareResult
	err := m.mutate(ctx, code, func(st *roomState, fx *effects) error {
		if st.round == nil {
			return reject(ReasonWrongStatus)
		}
		won := st.round.Status == model.RoundCompleted && st.round.WinnerID != nil
		if st.round.Status != model.RoundInProgress && !won {
			return reject(ReasonWrongStatus)
		}
		idx, member := st.member(userID)
		if member == nil || member.Card == nil {
			return reject(ReasonNotMember)
		}
		if !bingo.HasBingo(member.Mask) {
			fx.signals = append(fx.signals, Signal{
				Kind:     SignalFakeBingo,
				UserID:   userID,
				RoomCode: st.room.Code,
			})
			return reject(ReasonInvalidPattern)
		}

		// A valid line after the round was won gets the recorded winner.
		if won {
			res = DeclareResult{WinnerID: *st.round.WinnerID, RoundID: st.round.ID, Settled: true}
			if _, w := st.member(res.WinnerID); w != nil {
				res.Winner = w.DisplayName()
			}
			return nil
		}

		var winner *model.Member
		for _, mem := range st.members {
			if mem.Card != nil && bingo.HasBingo(mem.Mask) {
				winner = mem
				break
			}
		}

		declarer := member.Clone()
		declarer.DeclaredBingo = true
		if err := m.finishLocked(ctx, st, fx, winner, declarer); err != nil {
			return err
		}
		st.members[idx] = declarer

		res = DeclareResult{WinnerID: winner.UserID, Winner: winner.DisplayName(), RoundID: st.round.ID}
		fx.signals = append(fx.signals, Signal{
			Kind:     SignalWin,
			UserID:   winner.UserID,
			RoomCode: st.room.Code,
			Duration: st.round.Duration(m.now()),
		})
		return nil
	})
	return res, err
}

// finishLocked completes the round and finishes the room. winner is nil when
// the pool ran out.
func (m *Manager) finishLocked(ctx context.Context, st *roomState, fx *effects, winner, changed *model.Member) error {
	now := m.now()
	round := st.round.Clone()
	round.Status = model.RoundCompleted
	round.EndedAt = &now
	if winner != nil {
		id := winner.UserID
		round.WinnerID = &id
	}

	room := st.room.Clone()
	room.Status = model.RoomFinished
	room.UpdatedAt = now

	var members []*model.Member
	if changed != nil {
		members = []*model.Member{changed}
	}
	if err := m.store.FinishRound(ctx, room, round, members); err != nil {
		return storeErr("finish round", err)
	}

	st.room = room
	st.round = round
	m.retire(st)

	participants := make([]int64, 0, len(st.members))
	for _, mem := range st.members {
		if mem.Card != nil {
			participants = append(participants, mem.UserID)
		}
	}
	fx.result = &RoundResult{
		RoundID:      round.ID,
		RoomCode:     room.Code,
		WinnerID:     round.WinnerID,
		Duration:     round.Duration(now),
		Participants: participants,
	}

	event := Event{
		Type:       EventRoundExhausted,
		RoomCode:   room.Code,
		ChatID:     room.ChatID,
		RoundID:    round.ID,
		Called:     len(round.Called),
		Recipients: st.recipients(),
		At:         now,
	}
	if winner != nil {
		event.Type = EventBingoConfirmed
		event.UserID = winner.UserID
		event.Username = winner.DisplayName()
		event.WinnerID = round.WinnerID
	}
	fx.events = append(fx.events, event)

	log.Info().
		Str("room_code", room.Code).
		Str("round_id", round.ID).
		Interface("winner_id", round.WinnerID).
		Int("called", len(round.Called)).
		Msg("Round finished")
	return nil
}
