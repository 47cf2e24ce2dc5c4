package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Room is the durable anchor of all room-scoped state. PublicID is the short
// identifier that appears in channel names.
type Room struct {
	ID        uuid.UUID
	PublicID  string
	CreatedAt time.Time
}

// RoomFinder resolves rooms by their public identifier.
type RoomFinder interface {
	GetByPublicID(ctx context.Context, publicID string) (*Room, error)
}

// RoomRepository persists rooms.
type RoomRepository interface {
	RoomFinder
	Create(ctx context.Context, publicID string, createdAt time.Time) (*Room, error)
}
