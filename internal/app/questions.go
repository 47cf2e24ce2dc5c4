package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/crowdroom/internal/domain"
)

// QuestionBoard moderates audience questions. Unapproved questions are only
// ever sent to administrators.
type QuestionBoard struct {
	questions domain.QuestionRepository
	broker    domain.Broker
	clock     clockwork.Clock
}

func NewQuestionBoard(questions domain.QuestionRepository, broker domain.Broker, clock clockwork.Clock) *QuestionBoard {
	return &QuestionBoard{questions: questions, broker: broker, clock: clock}
}

func (b *QuestionBoard) Ask(ctx context.Context, room *domain.Room, content string) (*domain.Question, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrInvalidPayload
	}

	q, err := b.questions.Create(ctx, room.ID, content, b.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	publish(ctx, b.broker, room, domain.AudienceAdmins, domain.EventQuestionNew, []questionView{newQuestionView(q)})
	return q, nil
}

// Approve publishes a question to the viewers. Approving twice is a no-op
// apart from the returned record.
func (b *QuestionBoard) Approve(ctx context.Context, room *domain.Room, questionID uuid.UUID) (*domain.Question, error) {
	q, changed, err := b.questions.Approve(ctx, room.ID, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to approve question: %w", err)
	}

	if changed {
		publish(ctx, b.broker, room, domain.AudienceViewers, domain.EventQuestionNew, []questionView{newQuestionView(q)})
	}
	return q, nil
}

func (b *QuestionBoard) Upvote(ctx context.Context, room *domain.Room, questionID uuid.UUID) (*domain.Question, error) {
	q, err := b.questions.Upvote(ctx, room.ID, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to upvote question: %w", err)
	}

	// Unapproved questions stay with the moderators even when upvoted.
	audience := domain.AudienceRoom
	if !q.Approved {
		audience = domain.AudienceAdmins
	}
	publish(ctx, b.broker, room, audience, domain.EventQuestionNew, []questionView{newQuestionView(q)})
	return q, nil
}

// Clear removes every question of the room. The clearing admin receives the
// signal through the admin channel like every other admin.
func (b *QuestionBoard) Clear(ctx context.Context, room *domain.Room) error {
	removed, err := b.questions.DeleteAll(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("failed to clear questions: %w", err)
	}

	slog.InfoContext(ctx, "Questions cleared", "room", room.PublicID, "removed", removed)
	publish(ctx, b.broker, room, domain.AudienceRoom, domain.EventQuestionClear, nil)
	return nil
}
