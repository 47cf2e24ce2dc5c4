package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Question struct {
	ID        uuid.UUID
	RoomID    uuid.UUID
	Content   string
	Approved  bool
	Votes     int
	CreatedAt time.Time
}

// QuestionFilter selects which questions of a room are listed.
type QuestionFilter int

const (
	AllQuestions QuestionFilter = iota
	ApprovedQuestions
)

type QuestionRepository interface {
	Create(ctx context.Context, roomID uuid.UUID, content string, createdAt time.Time) (*Question, error)
	List(ctx context.Context, roomID uuid.UUID, filter QuestionFilter) ([]Question, error)

	// Approve marks the question approved. changed is false when it already was.
	Approve(ctx context.Context, roomID, questionID uuid.UUID) (q *Question, changed bool, err error)

	Upvote(ctx context.Context, roomID, questionID uuid.UUID) (*Question, error)

	// DeleteAll removes every question of the room and reports how many were removed.
	DeleteAll(ctx context.Context, roomID uuid.UUID) (int64, error)
}
