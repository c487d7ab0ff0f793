package service

import (
	"context"
	"fmt"
	"time"

	"telegram-bingo-bot/internal/model"
)

// DefaultHistorySize is how many ledger entries /history shows.
const DefaultHistorySize = 10

// LedgerReader reads the reward ledger. *repository.LedgerRepository
// satisfies it.
type LedgerReader interface {
	GetByUserID(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error)
	SumSince(ctx context.Context, userID int64, currency string, since time.Time) (int64, error)
}

// Activity is a user's recent ledger and today's totals.
type Activity struct {
	Entries    []*model.LedgerEntry
	XPToday    int64
	CoinsToday int64
}

// HistoryService reports what a user earned and spent.
type HistoryService struct {
	ledger   LedgerReader
	location *time.Location
	now      func() time.Time
}

// NewHistoryService creates a new HistoryService. Days start at midnight in
// location.
func NewHistoryService(ledger LedgerReader, location *time.Location) *HistoryService {
	if location == nil {
		location = time.Local
	}
	return &HistoryService{ledger: ledger, location: location, now: time.Now}
}

// startOfDay returns midnight of t's day in the service's location.
func (s *HistoryService) startOfDay(t time.Time) time.Time {
	t = t.In(s.location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.location)
}

// Activity returns the user's latest entries and what they earned today.
func (s *HistoryService) Activity(ctx context.Context, userID int64, limit int) (*Activity, error) {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	entries, err := s.ledger.GetByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	since := s.startOfDay(s.now())
	xp, err := s.ledger.SumSince(ctx, userID, model.CurrencyXP, since)
	if err != nil {
		return nil, fmt.Errorf("failed to sum xp: %w", err)
	}
	coins, err := s.ledger.SumSince(ctx, userID, model.CurrencyCoins, since)
	if err != nil {
		return nil, fmt.Errorf("failed to sum coins: %w", err)
	}

	return &Activity{Entries: entries, XPToday: xp, CoinsToday: coins}, nil
}
