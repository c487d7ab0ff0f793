package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/rs/zerolog/log"

	"telegram-bingo-bot/internal/game/bingo"
	"telegram-bingo-bot/internal/model"
	"telegram-bingo-bot/internal/pkg/lock"
	"telegram-bingo-bot/internal/repository"
)

// Card service errors
var (
	ErrInvalidCardName   = errors.New("card name must be 1-32 letters, digits, - or _")
	ErrCardNotFound      = errors.New("card not found")
	ErrCardNameTaken     = errors.New("you already have a card with that name")
	ErrCardLimit         = errors.New("saved card limit reached")
	ErrInsufficientCoins = errors.New("not enough coins")
)

var cardNamePattern = regexp.MustCompile(`^[\p{L}\p{N}_-]{1,32}$`)

// CardStore is the saved-card persistence the service needs.
// *repository.CardRepository satisfies it.
type CardStore interface {
	Purchase(ctx context.Context, p repository.CardPurchase) (*model.SavedCard, error)
	List(ctx context.Context, userID int64) ([]*model.SavedCard, error)
	GetByName(ctx context.Context, userID int64, name string) (*model.SavedCard, error)
	Delete(ctx context.Context, userID int64, name string) error
}

// CardConfig limits custom cards.
type CardConfig struct {
	MaxSaved int
	Cost     int64
}

// DefaultCardConfig returns the standard limits.
func DefaultCardConfig() CardConfig {
	return CardConfig{MaxSaved: bingo.MaxSavedCards, Cost: 5}
}

// CardService manages users' saved custom cards.
type CardService struct {
	cards    CardStore
	cfg      CardConfig
	userLock *lock.UserLock
}

// NewCardService creates a new CardService instance
func NewCardService(cards CardStore, cfg CardConfig, userLock *lock.UserLock) *CardService {
	return &CardService{cards: cards, cfg: cfg, userLock: userLock}
}

// Config returns the active limits.
func (s *CardService) Config() CardConfig {
	return s.cfg
}

// SaveCard parses and validates text, then buys a slot for it. Nothing is
// charged if the card is invalid.
func (s *CardService) SaveCard(ctx context.Context, userID int64, name, text string) (*model.SavedCard, error) {
	if !cardNamePattern.MatchString(name) {
		return nil, ErrInvalidCardName
	}
	card, err := bingo.ParseCard(text)
	if err != nil {
		return nil, err
	}

	s.userLock.Lock(userID)
	defer s.userLock.Unlock(userID)

	saved, err := s.cards.Purchase(ctx, repository.CardPurchase{
		UserID:   userID,
		Name:     name,
		Card:     card,
		Cost:     s.cfg.Cost,
		MaxCards: s.cfg.MaxSaved,
	})
	if err != nil {
		return nil, mapCardErr(err)
	}

	log.Info().
		Int64("user_id", userID).
		Str("card", name).
		Int64("cost", s.cfg.Cost).
		Msg("Custom card saved")
	return saved, nil
}

// ListCards returns the user's saved cards.
func (s *CardService) ListCards(ctx context.Context, userID int64) ([]*model.SavedCard, error) {
	cards, err := s.cards.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return cards, nil
}

// GetCard returns a saved card by name.
func (s *CardService) GetCard(ctx context.Context, userID int64, name string) (*model.SavedCard, error) {
	card, err := s.cards.GetByName(ctx, userID, name)
	if err != nil {
		return nil, mapCardErr(err)
	}
	return card, nil
}

// DeleteCard removes a saved card.
func (s *CardService) DeleteCard(ctx context.Context, userID int64, name string) error {
	return mapCardErr(s.cards.Delete(ctx, userID, name))
}

func mapCardErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrCardNotFound):
		return ErrCardNotFound
	case errors.Is(err, repository.ErrCardNameTaken):
		return ErrCardNameTaken
	case errors.Is(err, repository.ErrCardLimit):
		return ErrCardLimit
	case errors.Is(err, repository.ErrInsufficientCoins):
		return ErrInsufficientCoins
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	default:
		return fmt.Errorf("card store: %w", err)
	}
}
