package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-bingo-bot/internal/model"
	"telegram-bingo-bot/internal/room"
)

// RoomRepository persists rooms, memberships and rounds. Each method runs in
// a single transaction so a failed write leaves nothing behind.
type RoomRepository struct {
	pool *pgxpool.Pool
}

// NewRoomRepository creates a new RoomRepository instance.
func NewRoomRepository(pool *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

var _ room.Store = (*RoomRepository)(nil)

// CreateRoom inserts the room and its host. Returns room.ErrCodeTaken when
// the code is already in use.
func (r *RoomRepository) CreateRoom(ctx context.Context, rm *model.Room, host *model.Member) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
			INSERT INTO rooms (code, host_id, chat_id, max_players, private, auto_call, status, round_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err := tx.Exec(ctx, query,
			rm.Code, rm.HostID, rm.ChatID, rm.MaxPlayers, rm.Private, rm.AutoCall,
			string(rm.Status), rm.RoundID, rm.CreatedAt, rm.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return room.ErrCodeTaken
			}
			return fmt.Errorf("failed to create room: %w", err)
		}
		return insertMember(ctx, tx, host)
	})
}

// LoadRoom returns the room with members in join order and its bound round.
func (r *RoomRepository) LoadRoom(ctx context.Context, code string) (*model.RoomSnapshot, error) {
	const roomQuery = `
		SELECT code, host_id, chat_id, max_players, private, auto_call, status, round_id, created_at, updated_at
		FROM rooms
		WHERE code = $1
	`

	var rm model.Room
	var status string
	err := r.pool.QueryRow(ctx, roomQuery, code).Scan(
		&rm.Code,
		&rm.HostID,
		&rm.ChatID,
		&rm.MaxPlayers,
		&rm.Private,
		&rm.AutoCall,
		&status,
		&rm.RoundID,
		&rm.CreatedAt,
		&rm.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", code, room.ErrRoomNotFound)
		}
		return nil, fmt.Errorf("failed to load room: %w", err)
	}
	rm.Status = model.RoomStatus(status)

	members, err := r.members(ctx, code)
	if err != nil {
		return nil, err
	}

	snap := &model.RoomSnapshot{Room: &rm, Members: members}
	if rm.RoundID != nil {
		round, err := r.round(ctx, *rm.RoundID)
		if err != nil {
			return nil, err
		}
		snap.Round = round
	}
	return snap, nil
}

func (r *RoomRepository) members(ctx context.Context, code string) ([]*model.Member, error) {
	const query = `
		SELECT room_code, user_id, username, seq, card, mask, pending_card, declared_bingo, joined_at
		FROM room_members
		WHERE room_code = $1
		ORDER BY seq
	`
	rows, err := r.pool.Query(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}
	defer rows.Close()

	var members []*model.Member
	for rows.Next() {
		var m model.Member
		err := rows.Scan(
			&m.RoomCode,
			&m.UserID,
			&m.Username,
			&m.Seq,
			&m.Card,
			&m.Mask,
			&m.PendingCard,
			&m.DeclaredBingo,
			&m.JoinedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}

func (r *RoomRepository) round(ctx context.Context, id string) (*model.Round, error) {
	const query = `
		SELECT id, room_code, status, called, last_number, winner_id, started_at, ended_at
		FROM rounds
		WHERE id = $1
	`
	var round model.Round
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&round.ID,
		&round.RoomCode,
		&status,
		&round.Called,
		&round.LastNumber,
		&round.WinnerID,
		&round.StartedAt,
		&round.EndedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load round: %w", err)
	}
	round.Status = model.RoundStatus(status)
	if round.Called == nil {
		round.Called = []int{}
	}
	return &round, nil
}

// GetRound returns a round by ID, or nil if it does not exist.
func (r *RoomRepository) GetRound(ctx context.Context, id string) (*model.Round, error) {
	return r.round(ctx, id)
}

func insertMember(ctx context.Context, q querier, m *model.Member) error {
	const query = `
		INSERT INTO room_members (room_code, user_id, username, seq, card, mask, pending_card, declared_bingo, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.Exec(ctx, query,
		m.RoomCode, m.UserID, m.Username, m.Seq, m.Card, m.Mask, m.PendingCard, m.DeclaredBingo, m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

func updateMember(ctx context.Context, q querier, m *model.Member) error {
	const query = `
		UPDATE room_members
		SET card = $3, mask = $4, pending_card = $5, declared_bingo = $6
		WHERE room_code = $1 AND user_id = $2
	`
	tag, err := q.Exec(ctx, query, m.RoomCode, m.UserID, m.Card, m.Mask, m.PendingCard, m.DeclaredBingo)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("member %d of room %s: %w", m.UserID, m.RoomCode, room.ErrNotMember)
	}
	return nil
}

func updateRoom(ctx context.Context, q querier, rm *model.Room) error {
	const query = `
		UPDATE rooms
		SET status = $2, round_id = $3, updated_at = $4
		WHERE code = $1
	`
	tag, err := q.Exec(ctx, query, rm.Code, string(rm.Status), rm.RoundID, rm.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("room %s: %w", rm.Code, room.ErrRoomNotFound)
	}
	return nil
}

func saveRound(ctx context.Context, q querier, round *model.Round) error {
	const query = `
		INSERT INTO rounds (id, room_code, status, called, last_number, winner_id, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
			called = EXCLUDED.called,
			last_number = EXCLUDED.last_number,
			winner_id = EXCLUDED.winner_id,
			ended_at = EXCLUDED.ended_at
	`
	called := round.Called
	if called == nil {
		called = []int{}
	}
	_, err := q.Exec(ctx, query,
		round.ID, round.RoomCode, string(round.Status), called, round.LastNumber,
		round.WinnerID, round.StartedAt, round.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save round: %w", err)
	}
	return nil
}

// AddMember inserts a membership.
func (r *RoomRepository) AddMember(ctx context.Context, m *model.Member) error {
	return insertMember(ctx, r.pool, m)
}

// RemoveMember deletes a membership.
func (r *RoomRepository) RemoveMember(ctx context.Context, code string, userID int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM room_members WHERE room_code = $1 AND user_id = $2`, code, userID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

// SaveMember updates a member's card, mask and flags.
func (r *RoomRepository) SaveMember(ctx context.Context, m *model.Member) error {
	return updateMember(ctx, r.pool, m)
}

// UpdateRoom updates the room's status and round binding.
func (r *RoomRepository) UpdateRoom(ctx context.Context, rm *model.Room) error {
	return updateRoom(ctx, r.pool, rm)
}

// BeginRound inserts the round, binds it and stores the dealt cards.
func (r *RoomRepository) BeginRound(ctx context.Context, rm *model.Room, round *model.Round, members []*model.Member) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := saveRound(ctx, tx, round); err != nil {
			return err
		}
		if err := updateRoom(ctx, tx, rm); err != nil {
			return err
		}
		for _, m := range members {
			if err := updateMember(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveCall stores the called numbers and the room status together.
func (r *RoomRepository) SaveCall(ctx context.Context, rm *model.Room, round *model.Round) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := saveRound(ctx, tx, round); err != nil {
			return err
		}
		return updateRoom(ctx, tx, rm)
	})
}

// FinishRound stores the terminal round and room with any member changes.
func (r *RoomRepository) FinishRound(ctx context.Context, rm *model.Room, round *model.Round, members []*model.Member) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := saveRound(ctx, tx, round); err != nil {
			return err
		}
		if err := updateRoom(ctx, tx, rm); err != nil {
			return err
		}
		for _, m := range members {
			if err := updateMember(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListByStatus returns the codes of rooms in any of the given statuses.
func (r *RoomRepository) ListByStatus(ctx context.Context, statuses ...model.RoomStatus) ([]string, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	rows, err := r.pool.Query(ctx, `SELECT code FROM rooms WHERE status = ANY($1) ORDER BY created_at`, names)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan rooms: %w", err)
	}
	return codes, nil
}
