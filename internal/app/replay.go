package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/pscheid92/crowdroom/internal/domain"
)

// StateReplay brings a freshly bound connection up to date: the open poll, if
// any, and the question list its role may see. Sends go to that connection only.
type StateReplay struct {
	polls     domain.PollRepository
	questions domain.QuestionRepository
}

func NewStateReplay(polls domain.PollRepository, questions domain.QuestionRepository) *StateReplay {
	return &StateReplay{polls: polls, questions: questions}
}

func (r *StateReplay) Replay(ctx context.Context, room *domain.Room, role domain.Role, conn domain.Conn) error {
	poll, err := r.polls.Latest(ctx, room.ID)
	switch {
	case errors.Is(err, domain.ErrPollNotFound):
	case err != nil:
		return fmt.Errorf("failed to load latest poll: %w", err)
	case poll.Active():
		if err := conn.Send(ctx, domain.Event{Name: domain.EventPollStart, Payload: pollStartView{ID: poll.ID}}); err != nil {
			return fmt.Errorf("failed to replay poll: %w", err)
		}
	}

	filter := domain.ApprovedQuestions
	if role == domain.RoleAdmin {
		filter = domain.AllQuestions
	}
	questions, err := r.questions.List(ctx, room.ID, filter)
	if err != nil {
		return fmt.Errorf("failed to list questions: %w", err)
	}

	if err := conn.Send(ctx, domain.Event{Name: domain.EventQuestionNew, Payload: newQuestionList(questions)}); err != nil {
		return fmt.Errorf("failed to replay questions: %w", err)
	}
	return nil
}
