package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/crowdroom/internal/domain"
)

// PollEngine runs the poll state machine of a room: launch, respond, reveal,
// toggle and end.
type PollEngine struct {
	polls   domain.PollRepository
	broker  domain.Broker
	clock   clockwork.Clock
	choices []string
}

func NewPollEngine(polls domain.PollRepository, broker domain.Broker, clock clockwork.Clock, choices []string) *PollEngine {
	if len(choices) == 0 {
		choices = domain.DefaultChoices
	}
	return &PollEngine{
		polls:   polls,
		broker:  broker,
		clock:   clock,
		choices: slices.Clone(choices),
	}
}

// Choices returns the configured choice labels.
func (e *PollEngine) Choices() []string {
	return slices.Clone(e.choices)
}

// Launch creates a poll with every label at zero and announces it to viewers.
func (e *PollEngine) Launch(ctx context.Context, room *domain.Room) (*domain.Poll, error) {
	poll, err := e.polls.Create(ctx, room.ID, domain.NewTally(e.choices), e.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create poll: %w", err)
	}

	slog.InfoContext(ctx, "Poll launched", "room", room.PublicID, "poll_id", poll.ID)
	publish(ctx, e.broker, room, domain.AudienceViewers, domain.EventPollStart, pollStartView{ID: poll.ID})
	return poll, nil
}

// Respond applies a viewer's vote atomically and pushes the new running totals
// to the administrators. Viewers never see live counts.
func (e *PollEngine) Respond(ctx context.Context, room *domain.Room, resp domain.PollResponse) (domain.Tally, error) {
	if !slices.Contains(e.choices, resp.NewChoice) {
		return nil, domain.ErrInvalidChoice
	}
	if resp.PrevChoice != "" && !slices.Contains(e.choices, resp.PrevChoice) {
		return nil, domain.ErrInvalidChoice
	}

	tally, err := e.polls.RecordResponse(ctx, room.ID, resp)
	if err != nil {
		return nil, fmt.Errorf("failed to record response: %w", err)
	}

	publish(ctx, e.broker, room, domain.AudienceAdmins, domain.EventPollResults, tally)
	return tally, nil
}

// Reveal shows the current tally of a poll to the viewers.
func (e *PollEngine) Reveal(ctx context.Context, room *domain.Room, pollID uuid.UUID) error {
	poll, err := e.polls.GetByID(ctx, room.ID, pollID)
	if err != nil {
		return fmt.Errorf("failed to load poll: %w", err)
	}

	publish(ctx, e.broker, room, domain.AudienceViewers, domain.EventPollResults, poll.Tally)
	return nil
}

// Toggle flips the viewers' poll visibility. The state lives on the clients.
func (e *PollEngine) Toggle(ctx context.Context, room *domain.Room) {
	publish(ctx, e.broker, room, domain.AudienceViewers, domain.EventPollToggle, nil)
}

// End stamps the poll's end time and tells viewers it is over. Ending a poll
// that already ended is a no-op.
func (e *PollEngine) End(ctx context.Context, room *domain.Room, pollID uuid.UUID) error {
	_, changed, err := e.polls.End(ctx, room.ID, pollID, e.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to end poll: %w", err)
	}
	if !changed {
		return nil
	}

	slog.InfoContext(ctx, "Poll ended", "room", room.PublicID, "poll_id", pollID)
	publish(ctx, e.broker, room, domain.AudienceViewers, domain.EventPollEnd, nil)
	return nil
}
