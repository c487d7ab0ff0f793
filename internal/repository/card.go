package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-bingo-bot/internal/game/bingo"
	"telegram-bingo-bot/internal/model"
)

// Card repository errors.
var (
	ErrCardNotFound  = errors.New("card not found")
	ErrCardNameTaken = errors.New("card name already used")
	ErrCardLimit     = errors.New("saved card limit reached")
)

// uniqueViolation is the PostgreSQL error code for unique_violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// CardRepository stores users' custom cards.
type CardRepository struct {
	pool *pgxpool.Pool
}

// NewCardRepository creates a new CardRepository instance.
func NewCardRepository(pool *pgxpool.Pool) *CardRepository {
	return &CardRepository{pool: pool}
}

// CardPurchase describes a custom card being saved for a price.
type CardPurchase struct {
	UserID   int64
	Name     string
	Card     bingo.Card
	Cost     int64
	MaxCards int
}

// Purchase charges the user and stores the card in one transaction. The user
// row is locked so concurrent purchases cannot exceed the limit.
func (r *CardRepository) Purchase(ctx context.Context, p CardPurchase) (*model.SavedCard, error) {
	var saved *model.SavedCard
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var coins int64
		err := tx.QueryRow(ctx, `SELECT coins FROM users WHERE telegram_id = $1 FOR UPDATE`, p.UserID).Scan(&coins)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to lock user: %w", err)
		}

		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM saved_cards WHERE user_id = $1`, p.UserID).Scan(&count); err != nil {
			return fmt.Errorf("failed to count cards: %w", err)
		}
		if count >= p.MaxCards {
			return ErrCardLimit
		}
		if coins < p.Cost {
			return ErrInsufficientCoins
		}

		if p.Cost > 0 {
			if _, err := spendCoins(ctx, tx, p.UserID, p.Cost); err != nil {
				return err
			}
			desc := "custom card " + p.Name
			if err := insertLedger(ctx, tx, p.UserID, model.CurrencyCoins, -p.Cost, model.ReasonCardPurchase, nil, &desc); err != nil {
				return err
			}
		}

		const insert = `
			INSERT INTO saved_cards (user_id, name, numbers, created_at)
			VALUES ($1, $2, $3, NOW())
			RETURNING id, user_id, name, numbers, created_at
		`
		saved, err = scanSavedCard(tx.QueryRow(ctx, insert, p.UserID, p.Name, p.Card))
		if err != nil {
			if isUniqueViolation(err) {
				return ErrCardNameTaken
			}
			return fmt.Errorf("failed to save card: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func scanSavedCard(row pgx.Row) (*model.SavedCard, error) {
	var c model.SavedCard
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Card, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns the user's saved cards, oldest first.
func (r *CardRepository) List(ctx context.Context, userID int64) ([]*model.SavedCard, error) {
	const query = `
		SELECT id, user_id, name, numbers, created_at
		FROM saved_cards
		WHERE user_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []*model.SavedCard
	for rows.Next() {
		c, err := scanSavedCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// GetByName returns one of the user's cards.
func (r *CardRepository) GetByName(ctx context.Context, userID int64, name string) (*model.SavedCard, error) {
	const query = `
		SELECT id, user_id, name, numbers, created_at
		FROM saved_cards
		WHERE user_id = $1 AND name = $2
	`
	c, err := scanSavedCard(r.pool.QueryRow(ctx, query, userID, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return c, nil
}

// Delete removes one of the user's cards. Coins are not refunded.
func (r *CardRepository) Delete(ctx context.Context, userID int64, name string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM saved_cards WHERE user_id = $1 AND name = $2`, userID, name)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrCardNotFound
	}
	return nil
}
