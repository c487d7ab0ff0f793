// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-bingo-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrInsufficientCoins = errors.New("insufficient coins")
	ErrAlreadyRewarded   = errors.New("round already rewarded")
)

// querier is the part of pgxpool.Pool and pgx.Tx the repositories use.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `telegram_id, username, xp, coins, games_played, games_won, banned, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.TelegramID,
		&user.Username,
		&user.XP,
		&user.Coins,
		&user.GamesPlayed,
		&user.GamesWon,
		&user.Banned,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UserRepository handles user progression persistence.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create creates a new user with zero XP and coins.
func (r *UserRepository) Create(ctx context.Context, telegramID int64, username string) (*model.User, error) {
	const query = `
		INSERT INTO users (telegram_id, username, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID, username))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by their Telegram ID.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, telegramID int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreate retrieves a user by Telegram ID, creating one if it doesn't exist.
// The bool result reports whether the user was created.
func (r *UserRepository) GetOrCreate(ctx context.Context, telegramID int64, username string) (*model.User, bool, error) {
	user, err := r.GetByID(ctx, telegramID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = r.Create(ctx, telegramID, username)
	if err != nil {
		// Another request may have created the user first.
		user, err = r.GetByID(ctx, telegramID)
		if err != nil {
			return nil, false, err
		}
		return user, false, nil
	}
	return user, true, nil
}

// UpdateUsername updates a user's username.
func (r *UserRepository) UpdateUsername(ctx context.Context, telegramID int64, username string) error {
	const query = `
		UPDATE users
		SET username = $2, updated_at = NOW()
		WHERE telegram_id = $1
	`

	result, err := r.pool.Exec(ctx, query, telegramID, username)
	if err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Exists checks if a user with the given Telegram ID exists.
func (r *UserRepository) Exists(ctx context.Context, telegramID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE telegram_id = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, telegramID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// Credit is one ledger line of a round reward.
type Credit struct {
	Currency string
	Amount   int64
	Reason   string
}

// RoundReward is what one participant earns from a resolved round.
type RoundReward struct {
	UserID  int64
	RoundID string
	Won     bool
	Credits []Credit
}

// ApplyRoundReward writes one ledger entry per credit, then applies the
// totals and game counters, all in one transaction. It returns
// ErrAlreadyRewarded if the user's entries for this round already exist.
func (r *UserRepository) ApplyRoundReward(ctx context.Context, reward RoundReward) (*model.User, error) {
	var user *model.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const ensure = `
			INSERT INTO users (telegram_id, created_at, updated_at)
			VALUES ($1, NOW(), NOW())
			ON CONFLICT (telegram_id) DO NOTHING
		`
		if _, err := tx.Exec(ctx, ensure, reward.UserID); err != nil {
			return fmt.Errorf("failed to ensure user: %w", err)
		}

		roundID := reward.RoundID
		var xp, coins int64
		for i, c := range reward.Credits {
			inserted, err := insertLedgerOnce(ctx, tx, reward.UserID, c.Currency, c.Amount, c.Reason, &roundID)
			if err != nil {
				return err
			}
			if !inserted {
				if i == 0 {
					return ErrAlreadyRewarded
				}
				continue
			}
			switch c.Currency {
			case model.CurrencyXP:
				xp += c.Amount
			case model.CurrencyCoins:
				coins += c.Amount
			}
		}

		won := int64(0)
		if reward.Won {
			won = 1
		}
		const update = `
			UPDATE users
			SET xp = xp + $2,
				coins = coins + $3,
				games_played = games_played + 1,
				games_won = games_won + $4,
				updated_at = NOW()
			WHERE telegram_id = $1
			RETURNING ` + userColumns
		var err error
		user, err = scanUser(tx.QueryRow(ctx, update, reward.UserID, xp, coins, won))
		if err != nil {
			return fmt.Errorf("failed to apply round reward: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// AddCoins credits coins and records the ledger entry atomically. amount may
// not be negative; use SpendCoins to debit.
func (r *UserRepository) AddCoins(ctx context.Context, telegramID int64, amount int64, reason string, description *string) (*model.User, error) {
	var user *model.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
			UPDATE users
			SET coins = coins + $2, updated_at = NOW()
			WHERE telegram_id = $1
			RETURNING ` + userColumns
		var err error
		user, err = scanUser(tx.QueryRow(ctx, query, telegramID, amount))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to add coins: %w", err)
		}
		return insertLedger(ctx, tx, telegramID, model.CurrencyCoins, amount, reason, nil, description)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SpendCoins debits coins if the balance covers amount.
// Returns ErrInsufficientCoins otherwise.
func (r *UserRepository) SpendCoins(ctx context.Context, telegramID int64, amount int64, reason string, description *string) (*model.User, error) {
	var user *model.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		user, err = spendCoins(ctx, tx, telegramID, amount)
		if err != nil {
			return err
		}
		return insertLedger(ctx, tx, telegramID, model.CurrencyCoins, -amount, reason, nil, description)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func spendCoins(ctx context.Context, q querier, telegramID int64, amount int64) (*model.User, error) {
	const query = `
		UPDATE users
		SET coins = coins - $2, updated_at = NOW()
		WHERE telegram_id = $1 AND coins >= $2
		RETURNING ` + userColumns

	user, err := scanUser(q.QueryRow(ctx, query, telegramID, amount))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to spend coins: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE telegram_id = $1)`, telegramID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}
	return nil, ErrInsufficientCoins
}

// SetBanned sets or clears the user's ban, creating the user if needed.
func (r *UserRepository) SetBanned(ctx context.Context, telegramID int64, banned bool) error {
	const query = `
		INSERT INTO users (telegram_id, banned, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (telegram_id) DO UPDATE SET banned = $2, updated_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, telegramID, banned); err != nil {
		return fmt.Errorf("failed to set banned: %w", err)
	}
	return nil
}

// BannedIDs returns every banned user.
func (r *UserRepository) BannedIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT telegram_id FROM users WHERE banned ORDER BY telegram_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list banned users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to scan banned users: %w", err)
	}
	return ids, nil
}

// GetTopByXP retrieves the top N users by XP. Banned users are left out.
func (r *UserRepository) GetTopByXP(ctx context.Context, limit int) ([]*model.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE NOT banned
		ORDER BY xp DESC, games_won DESC, telegram_id ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}
