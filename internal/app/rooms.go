package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/crowdroom/internal/domain"
	"github.com/pscheid92/crowdroom/internal/platform/retry"
)

const (
	publicIDLength   = 6
	publicIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// PublicIDFunc generates a candidate public room id.
type PublicIDFunc func() (string, error)

// RoomService creates and looks up rooms.
type RoomService struct {
	rooms    domain.RoomRepository
	clock    clockwork.Clock
	newID    PublicIDFunc
	idPolicy retry.Policy
}

func NewRoomService(rooms domain.RoomRepository, clock clockwork.Clock) *RoomService {
	return &RoomService{
		rooms: rooms,
		clock: clock,
		newID: GeneratePublicID,
		idPolicy: retry.Policy{
			MaxAttempts:    5,
			InitialBackoff: 10 * time.Millisecond,
			MaxBackoff:     100 * time.Millisecond,
			Clock:          clock,
			OnRetry: func(attempt int, err error, _ time.Duration) {
				slog.Debug("Room id collision, retrying", "attempt", attempt, "error", err)
			},
		},
	}
}

// Create inserts a room under a fresh public id, drawing a new id when the
// candidate is already taken.
func (s *RoomService) Create(ctx context.Context) (*domain.Room, error) {
	room, err := retry.Do(ctx, s.idPolicy, retry.On(domain.ErrRoomIDTaken), func(ctx context.Context) (*domain.Room, error) {
		publicID, err := s.newID()
		if err != nil {
			return nil, err
		}
		return s.rooms.Create(ctx, publicID, s.clock.Now())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	slog.InfoContext(ctx, "Room created", "room", room.PublicID)
	return room, nil
}

func (s *RoomService) Get(ctx context.Context, publicID string) (*domain.Room, error) {
	room, err := s.rooms.GetByPublicID(ctx, strings.ToLower(publicID))
	if err != nil {
		return nil, fmt.Errorf("room lookup failed: %w", err)
	}
	return room, nil
}

// GeneratePublicID returns a random lowercase alphanumeric id.
func GeneratePublicID() (string, error) {
	buf := make([]byte, publicIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = publicIDAlphabet[int(b)%len(publicIDAlphabet)]
	}
	return string(buf), nil
}
