package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-bingo-bot/internal/model"
)

// LedgerRepository reads and writes the XP and coin ledger.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

const ledgerColumns = `id, user_id, currency, amount, reason, round_id, description, created_at`

func scanLedgerEntry(row pgx.Row) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Currency,
		&e.Amount,
		&e.Reason,
		&e.RoundID,
		&e.Description,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func insertLedger(ctx context.Context, q querier, userID int64, currency string, amount int64, reason string, roundID, description *string) error {
	const query = `
		INSERT INTO ledger (user_id, currency, amount, reason, round_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	if _, err := q.Exec(ctx, query, userID, currency, amount, reason, roundID, description); err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}
	return nil
}

// insertLedgerOnce writes a round-scoped entry unless one already exists.
func insertLedgerOnce(ctx context.Context, q querier, userID int64, currency string, amount int64, reason string, roundID *string) (bool, error) {
	const query = `
		INSERT INTO ledger (user_id, currency, amount, reason, round_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id, round_id, currency, reason) WHERE round_id IS NOT NULL DO NOTHING
	`
	tag, err := q.Exec(ctx, query, userID, currency, amount, reason, roundID)
	if err != nil {
		return false, fmt.Errorf("failed to record ledger entry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Create records a standalone ledger entry.
func (r *LedgerRepository) Create(ctx context.Context, userID int64, currency string, amount int64, reason string, description *string) (*model.LedgerEntry, error) {
	const query = `
		INSERT INTO ledger (user_id, currency, amount, reason, description, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING ` + ledgerColumns

	entry, err := scanLedgerEntry(r.pool.QueryRow(ctx, query, userID, currency, amount, reason, description))
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return entry, nil
}

func (r *LedgerRepository) list(ctx context.Context, query string, args ...any) ([]*model.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

// GetByUserID retrieves a user's entries, newest first.
func (r *LedgerRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT ` + ledgerColumns + `
		FROM ledger
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	return r.list(ctx, query, userID, limit)
}

// GetByRound retrieves every entry written for a round.
func (r *LedgerRepository) GetByRound(ctx context.Context, roundID string) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT ` + ledgerColumns + `
		FROM ledger
		WHERE round_id = $1
		ORDER BY id
	`
	return r.list(ctx, query, roundID)
}

// SumSince returns a user's net amount in a currency since the given time.
func (r *LedgerRepository) SumSince(ctx context.Context, userID int64, currency string, since time.Time) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger
		WHERE user_id = $1 AND currency = $2 AND created_at >= $3
	`
	var total int64
	if err := r.pool.QueryRow(ctx, query, userID, currency, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum ledger: %w", err)
	}
	return total, nil
}
