package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/crowdroom/internal/domain"
)

const uniqueViolation = "23505"

type RoomRepo struct {
	pool *pgxpool.Pool
}

func NewRoomRepo(pool *pgxpool.Pool) *RoomRepo {
	return &RoomRepo{pool: pool}
}

func (r *RoomRepo) Create(ctx context.Context, publicID string, createdAt time.Time) (*domain.Room, error) {
	var room domain.Room
	err := r.pool.QueryRow(ctx, `
		INSERT INTO rooms (public_id, created_at)
		VALUES ($1, $2)
		RETURNING id, public_id, created_at`,
		publicID, createdAt,
	).Scan(&room.ID, &room.PublicID, &room.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return nil, domain.ErrRoomIDTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert room: %w", err)
	}
	return &room, nil
}

func (r *RoomRepo) GetByPublicID(ctx context.Context, publicID string) (*domain.Room, error) {
	var room domain.Room
	err := r.pool.QueryRow(ctx, `
		SELECT id, public_id, created_at
		FROM rooms
		WHERE public_id = $1`,
		publicID,
	).Scan(&room.ID, &room.PublicID, &room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room by public id: %w", err)
	}
	return &room, nil
}
