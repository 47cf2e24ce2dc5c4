package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/crowdroom/internal/domain"
)

const pollColumns = "id, room_id, tally, created_at, ended_at"

type PollRepo struct {
	pool *pgxpool.Pool
}

func NewPollRepo(pool *pgxpool.Pool) *PollRepo {
	return &PollRepo{pool: pool}
}

func scanPoll(row pgx.Row) (*domain.Poll, error) {
	var p domain.Poll
	if err := row.Scan(&p.ID, &p.RoomID, &p.Tally, &p.CreatedAt, &p.EndedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PollRepo) Create(ctx context.Context, roomID uuid.UUID, tally domain.Tally, createdAt time.Time) (*domain.Poll, error) {
	poll, err := scanPoll(r.pool.QueryRow(ctx, `
		INSERT INTO polls (room_id, tally, created_at)
		VALUES ($1, $2, $3)
		RETURNING `+pollColumns,
		roomID, tally, createdAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert poll: %w", err)
	}
	return poll, nil
}

func (r *PollRepo) GetByID(ctx context.Context, roomID, pollID uuid.UUID) (*domain.Poll, error) {
	poll, err := scanPoll(r.pool.QueryRow(ctx, `
		SELECT `+pollColumns+`
		FROM polls
		WHERE id = $1 AND room_id = $2`,
		pollID, roomID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	return poll, nil
}

func (r *PollRepo) Latest(ctx context.Context, roomID uuid.UUID) (*domain.Poll, error) {
	poll, err := scanPoll(r.pool.QueryRow(ctx, `
		SELECT `+pollColumns+`
		FROM polls
		WHERE room_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT 1`,
		roomID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest poll: %w", err)
	}
	return poll, nil
}

// RecordResponse locks the poll row for the whole read-modify-write, so
// concurrent responses to the same poll serialise and no count is lost.
func (r *PollRepo) RecordResponse(ctx context.Context, roomID uuid.UUID, resp domain.PollResponse) (domain.Tally, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var tally domain.Tally
	var endedAt *time.Time
	err = tx.QueryRow(ctx, `
		SELECT tally, ended_at
		FROM polls
		WHERE id = $1 AND room_id = $2
		FOR UPDATE`,
		resp.PollID, roomID,
	).Scan(&tally, &endedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock poll: %w", err)
	}
	if endedAt != nil {
		return nil, domain.ErrPollEnded
	}

	if err := tally.Apply(resp.PrevChoice, resp.NewChoice); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `UPDATE polls SET tally = $1 WHERE id = $2`, tally, resp.PollID); err != nil {
		return nil, fmt.Errorf("failed to write tally: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return tally, nil
}

func (r *PollRepo) End(ctx context.Context, roomID, pollID uuid.UUID, endedAt time.Time) (*domain.Poll, bool, error) {
	poll, err := scanPoll(r.pool.QueryRow(ctx, `
		UPDATE polls
		SET ended_at = $3
		WHERE id = $1 AND room_id = $2 AND ended_at IS NULL
		RETURNING `+pollColumns,
		pollID, roomID, endedAt,
	))
	if err == nil {
		return poll, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to end poll: %w", err)
	}

	poll, err = r.GetByID(ctx, roomID, pollID)
	if err != nil {
		return nil, false, err
	}
	return poll, false, nil
}
