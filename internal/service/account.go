// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"telegram-bingo-bot/internal/model"
	"telegram-bingo-bot/internal/repository"
)

// Common errors for account operations.
var (
	ErrInvalidAmount = errors.New("invalid amount: must be positive")
	ErrUserNotFound  = errors.New("user not found")
)

// UserStore is the user persistence the services need.
// *repository.UserRepository satisfies it.
type UserStore interface {
	GetOrCreate(ctx context.Context, telegramID int64, username string) (*model.User, bool, error)
	GetByID(ctx context.Context, telegramID int64) (*model.User, error)
	UpdateUsername(ctx context.Context, telegramID int64, username string) error
	ApplyRoundReward(ctx context.Context, reward repository.RoundReward) (*model.User, error)
	AddCoins(ctx context.Context, telegramID int64, amount int64, reason string, description *string) (*model.User, error)
	SetBanned(ctx context.Context, telegramID int64, banned bool) error
	BannedIDs(ctx context.Context) ([]int64, error)
	GetTopByXP(ctx context.Context, limit int) ([]*model.User, error)
}

// Profile is a user's progression as shown by /profile.
type Profile struct {
	User        *model.User
	Level       int64
	XPIntoLevel int64
	XPToNext    int64
}

// NewProfile derives level progress from the user's XP.
func NewProfile(u *model.User) *Profile {
	into := u.XP % model.XPPerLevel
	return &Profile{
		User:        u,
		Level:       u.Level(),
		XPIntoLevel: into,
		XPToNext:    model.XPPerLevel - into,
	}
}

// AccountService handles user accounts, bans and admin credits.
type AccountService struct {
	users UserStore
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(users UserStore) *AccountService {
	return &AccountService{users: users}
}

// EnsureUser ensures a user exists, creating one if necessary.
// Returns the user and whether it was newly created.
func (s *AccountService) EnsureUser(ctx context.Context, telegramID int64, username string) (*model.User, bool, error) {
	user, created, err := s.users.GetOrCreate(ctx, telegramID, username)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure user: %w", err)
	}

	if !created && user.Username != username && username != "" {
		if err := s.users.UpdateUsername(ctx, telegramID, username); err != nil {
			log.Warn().Err(err).Int64("user_id", telegramID).Msg("Failed to update username")
		}
		user.Username = username
	}

	return user, created, nil
}

// GetProfile returns the user's profile.
func (s *AccountService) GetProfile(ctx context.Context, telegramID int64) (*Profile, error) {
	user, err := s.users.GetByID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return NewProfile(user), nil
}

// AddCoins credits coins on behalf of an admin.
func (s *AccountService) AddCoins(ctx context.Context, telegramID int64, amount int64, adminID int64) (*model.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	desc := fmt.Sprintf("added by admin %d", adminID)
	user, err := s.users.AddCoins(ctx, telegramID, amount, model.ReasonAdminAdd, &desc)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to add coins: %w", err)
	}

	log.Info().
		Int64("user_id", telegramID).
		Int64("amount", amount).
		Int64("admin_id", adminID).
		Msg("Admin added coins")
	return user, nil
}

// SetBanned bans or unbans a user.
func (s *AccountService) SetBanned(ctx context.Context, telegramID int64, banned bool) error {
	if err := s.users.SetBanned(ctx, telegramID, banned); err != nil {
		return fmt.Errorf("failed to update ban: %w", err)
	}
	log.Info().Int64("user_id", telegramID).Bool("banned", banned).Msg("User ban updated")
	return nil
}

// IsBanned reports whether the user is banned. Unknown users are not.
func (s *AccountService) IsBanned(ctx context.Context, telegramID int64) (bool, error) {
	user, err := s.users.GetByID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.Banned, nil
}
