package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"telegram-bingo-bot/internal/model"
	"telegram-bingo-bot/internal/repository"
)

// fakeUsers is an in-memory UserStore with the repository's semantics.
type fakeUsers struct {
	mu      sync.Mutex
	users   map[int64]*model.User
	ledger  []model.LedgerEntry
	paid    map[string]bool
	failFor map[int64]error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		users:   make(map[int64]*model.User),
		paid:    make(map[string]bool),
		failFor: make(map[int64]error),
	}
}

func (f *fakeUsers) get(id int64) *model.User {
	u, ok := f.users[id]
	if !ok {
		u = &model.User{TelegramID: id}
		f.users[id] = u
	}
	return u
}

func (f *fakeUsers) GetOrCreate(_ context.Context, id int64, username string) (*model.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, false, nil
	}
	u := f.get(id)
	u.Username = username
	cp := *u
	return &cp, true, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) UpdateUsername(_ context.Context, id int64, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Username = username
	return nil
}

func (f *fakeUsers) ApplyRoundReward(_ context.Context, r repository.RoundReward) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[r.UserID]; err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s/%d", r.RoundID, r.UserID)
	if f.paid[key] {
		return nil, repository.ErrAlreadyRewarded
	}
	f.paid[key] = true

	u := f.get(r.UserID)
	for _, c := range r.Credits {
		roundID := r.RoundID
		f.ledger = append(f.ledger, model.LedgerEntry{
			UserID: r.UserID, Currency: c.Currency, Amount: c.Amount, Reason: c.Reason, RoundID: &roundID,
		})
		switch c.Currency {
		case model.CurrencyXP:
			u.XP += c.Amount
		case model.CurrencyCoins:
			u.Coins += c.Amount
		}
	}
	u.GamesPlayed++
	if r.Won {
		u.GamesWon++
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) AddCoins(_ context.Context, id int64, amount int64, reason string, _ *string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u.Coins += amount
	f.ledger = append(f.ledger, model.LedgerEntry{UserID: id, Currency: model.CurrencyCoins, Amount: amount, Reason: reason})
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) SetBanned(_ context.Context, id int64, banned bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.get(id).Banned = banned
	return nil
}

func (f *fakeUsers) BannedIDs(_ context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id, u := range f.users {
		if u.Banned {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeUsers) GetTopByXP(_ context.Context, limit int) ([]*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var users []*model.User
	for _, u := range f.users {
		if !u.Banned {
			cp := *u
			users = append(users, &cp)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].XP != users[j].XP {
			return users[i].XP > users[j].XP
		}
		return users[i].TelegramID < users[j].TelegramID
	})
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// fakeCards is an in-memory CardStore backed by fakeUsers for coins.
type fakeCards struct {
	mu    sync.Mutex
	users *fakeUsers
	cards map[int64][]*model.SavedCard
	calls int
}

func newFakeCards(users *fakeUsers) *fakeCards {
	return &fakeCards{users: users, cards: make(map[int64][]*model.SavedCard)}
}

func (f *fakeCards) Purchase(_ context.Context, p repository.CardPurchase) (*model.SavedCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	f.users.mu.Lock()
	defer f.users.mu.Unlock()
	u, ok := f.users.users[p.UserID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if len(f.cards[p.UserID]) >= p.MaxCards {
		return nil, repository.ErrCardLimit
	}
	if u.Coins < p.Cost {
		return nil, repository.ErrInsufficientCoins
	}
	for _, c := range f.cards[p.UserID] {
		if c.Name == p.Name {
			return nil, repository.ErrCardNameTaken
		}
	}
	u.Coins -= p.Cost
	saved := &model.SavedCard{ID: int64(f.calls), UserID: p.UserID, Name: p.Name, Card: p.Card}
	f.cards[p.UserID] = append(f.cards[p.UserID], saved)
	return saved, nil
}

func (f *fakeCards) List(_ context.Context, userID int64) ([]*model.SavedCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.SavedCard(nil), f.cards[userID]...), nil
}

func (f *fakeCards) GetByName(_ context.Context, userID int64, name string) (*model.SavedCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.cards[userID] {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, repository.ErrCardNotFound
}

func (f *fakeCards) Delete(_ context.Context, userID int64, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cards := f.cards[userID]
	for i, c := range cards {
		if c.Name == name {
			f.cards[userID] = append(cards[:i:i], cards[i+1:]...)
			return nil
		}
	}
	return repository.ErrCardNotFound
}

var errBoom = errors.New("boom")
