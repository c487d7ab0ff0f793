package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "users table",
		sql: `
			CREATE TABLE IF NOT EXISTS users (
				telegram_id BIGINT PRIMARY KEY,
				username VARCHAR(255) NOT NULL DEFAULT '',
				xp BIGINT NOT NULL DEFAULT 0,
				coins BIGINT NOT NULL DEFAULT 0,
				games_played BIGINT NOT NULL DEFAULT 0,
				games_won BIGINT NOT NULL DEFAULT 0,
				banned BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_users_xp ON users(xp DESC);
		`,
	},
	{
		name: "ledger table",
		sql: `
			CREATE TABLE IF NOT EXISTS ledger (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
				currency VARCHAR(10) NOT NULL,
				amount BIGINT NOT NULL,
				reason VARCHAR(50) NOT NULL,
				round_id UUID,
				description TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_ledger_user_time ON ledger(user_id, created_at DESC);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_round_once
				ON ledger(user_id, round_id, currency, reason) WHERE round_id IS NOT NULL;
		`,
	},
	{
		name: "saved_cards table",
		sql: `
			CREATE TABLE IF NOT EXISTS saved_cards (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
				name VARCHAR(64) NOT NULL,
				numbers JSONB NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (user_id, name)
			);
		`,
	},
	{
		name: "rooms table",
		sql: `
			CREATE TABLE IF NOT EXISTS rooms (
				code VARCHAR(16) PRIMARY KEY,
				host_id BIGINT NOT NULL,
				chat_id BIGINT NOT NULL DEFAULT 0,
				max_players INT NOT NULL,
				private BOOLEAN NOT NULL DEFAULT FALSE,
				auto_call BOOLEAN NOT NULL DEFAULT FALSE,
				status VARCHAR(20) NOT NULL,
				round_id UUID,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_rooms_status ON rooms(status);
		`,
	},
	{
		name: "room_members table",
		sql: `
			CREATE TABLE IF NOT EXISTS room_members (
				room_code VARCHAR(16) NOT NULL REFERENCES rooms(code) ON DELETE CASCADE,
				user_id BIGINT NOT NULL,
				username VARCHAR(255) NOT NULL DEFAULT '',
				seq INT NOT NULL,
				card JSONB,
				mask JSONB NOT NULL,
				pending_card JSONB,
				declared_bingo BOOLEAN NOT NULL DEFAULT FALSE,
				joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (room_code, user_id)
			);
			CREATE INDEX IF NOT EXISTS idx_room_members_user ON room_members(user_id);
		`,
	},
	{
		name: "rounds table",
		sql: `
			CREATE TABLE IF NOT EXISTS rounds (
				id UUID PRIMARY KEY,
				room_code VARCHAR(16) NOT NULL REFERENCES rooms(code) ON DELETE CASCADE,
				status VARCHAR(20) NOT NULL,
				called INT[] NOT NULL DEFAULT '{}',
				last_number INT,
				winner_id BIGINT,
				started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				ended_at TIMESTAMPTZ
			);
			CREATE INDEX IF NOT EXISTS idx_rounds_room ON rounds(room_code);
		`,
	},
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db Execer) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Msgf("Migration %d: %s created", i+1, m.name)
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
