// Package store provides an in-memory room store. It backs tests and the
// `storage.driver: memory` mode.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"telegram-bingo-bot/internal/model"
	"telegram-bingo-bot/internal/room"
)

// MemoryStore keeps rooms, members and rounds in maps. Every method copies in
// and out so callers never share memory with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	rooms   map[string]*model.Room
	members map[string]map[int64]*model.Member
	rounds  map[string]*model.Round

	failNext error
	writes   int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:   make(map[string]*model.Room),
		members: make(map[string]map[int64]*model.Member),
		rounds:  make(map[string]*model.Round),
	}
}

// FailNextWrite makes the next write return err without changing anything.
func (s *MemoryStore) FailNextWrite(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// Writes returns the number of successful writes.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// begin is called with the write lock held.
func (s *MemoryStore) begin() error {
	if err := s.failNext; err != nil {
		s.failNext = nil
		return err
	}
	return nil
}

func (s *MemoryStore) commit() {
	s.writes++
}

func (s *MemoryStore) CreateRoom(ctx context.Context, r *model.Room, host *model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	if _, exists := s.rooms[r.Code]; exists {
		return room.ErrCodeTaken
	}
	s.rooms[r.Code] = r.Clone()
	s.members[r.Code] = map[int64]*model.Member{host.UserID: host.Clone()}
	s.commit()
	return nil
}

func (s *MemoryStore) LoadRoom(ctx context.Context, code string) (*model.RoomSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[code]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", code, room.ErrRoomNotFound)
	}

	snap := &model.RoomSnapshot{Room: r.Clone()}
	for _, m := range s.members[code] {
		snap.Members = append(snap.Members, m.Clone())
	}
	sort.Slice(snap.Members, func(i, j int) bool {
		return snap.Members[i].Seq < snap.Members[j].Seq
	})
	if r.RoundID != nil {
		if round, ok := s.rounds[*r.RoundID]; ok {
			snap.Round = round.Clone()
		}
	}
	return snap, nil
}

func (s *MemoryStore) AddMember(ctx context.Context, m *model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	members, ok := s.members[m.RoomCode]
	if !ok {
		return room.ErrRoomNotFound
	}
	if _, dup := members[m.UserID]; dup {
		return fmt.Errorf("member %d already in room %s", m.UserID, m.RoomCode)
	}
	members[m.UserID] = m.Clone()
	s.commit()
	return nil
}

func (s *MemoryStore) RemoveMember(ctx context.Context, code string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	delete(s.members[code], userID)
	s.commit()
	return nil
}

func (s *MemoryStore) SaveMember(ctx context.Context, m *model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	members, ok := s.members[m.RoomCode]
	if !ok {
		return room.ErrRoomNotFound
	}
	members[m.UserID] = m.Clone()
	s.commit()
	return nil
}

func (s *MemoryStore) UpdateRoom(ctx context.Context, r *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	if _, ok := s.rooms[r.Code]; !ok {
		return room.ErrRoomNotFound
	}
	s.rooms[r.Code] = r.Clone()
	s.commit()
	return nil
}

func (s *MemoryStore) BeginRound(ctx context.Context, r *model.Room, round *model.Round, members []*model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	if _, ok := s.rooms[r.Code]; !ok {
		return room.ErrRoomNotFound
	}
	s.rooms[r.Code] = r.Clone()
	s.rounds[round.ID] = round.Clone()
	for _, m := range members {
		s.members[r.Code][m.UserID] = m.Clone()
	}
	s.commit()
	return nil
}

func (s *MemoryStore) SaveCall(ctx context.Context, r *model.Room, round *model.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	s.rooms[r.Code] = r.Clone()
	s.rounds[round.ID] = round.Clone()
	s.commit()
	return nil
}

func (s *MemoryStore) FinishRound(ctx context.Context, r *model.Room, round *model.Round, members []*model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	s.rooms[r.Code] = r.Clone()
	s.rounds[round.ID] = round.Clone()
	for _, m := range members {
		s.members[r.Code][m.UserID] = m.Clone()
	}
	s.commit()
	return nil
}

// Round returns a stored round by ID.
func (s *MemoryStore) Round(id string) (*model.Round, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rounds[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

var _ room.Store = (*MemoryStore)(nil)

// ListByStatus returns the codes of rooms in any of the given statuses.
func (s *MemoryStore) ListByStatus(ctx context.Context, statuses ...model.RoomStatus) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var codes []string
	for code, r := range s.rooms {
		for _, st := range statuses {
			if r.Status == st {
				codes = append(codes, code)
				break
			}
		}
	}
	sort.Strings(codes)
	return codes, nil
}
