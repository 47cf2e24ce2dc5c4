package domain

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// DefaultChoices are the poll labels used when none are configured.
var DefaultChoices = []string{"A", "B", "C", "D", "E"}

// Tally maps every choice label of a poll to its vote count.
type Tally map[string]int

// NewTally returns a tally with every label present and zeroed.
func NewTally(choices []string) Tally {
	t := make(Tally, len(choices))
	for _, c := range choices {
		t[c] = 0
	}
	return t
}

// Apply moves one vote from prev to next. An empty prev only increments.
// Counts never drop below zero.
func (t Tally) Apply(prev, next string) error {
	if _, ok := t[next]; !ok {
		return ErrInvalidChoice
	}
	if prev != "" {
		if _, ok := t[prev]; !ok {
			return ErrInvalidChoice
		}
		if t[prev] > 0 {
			t[prev]--
		}
	}
	t[next]++
	return nil
}

// Clone returns an independent copy.
func (t Tally) Clone() Tally {
	return maps.Clone(t)
}

// Labels returns the tally's labels in sorted order.
func (t Tally) Labels() []string {
	return slices.Sorted(maps.Keys(t))
}

type Poll struct {
	ID        uuid.UUID
	RoomID    uuid.UUID
	Tally     Tally
	CreatedAt time.Time
	EndedAt   *time.Time
}

// Active reports whether the poll has not been ended.
func (p *Poll) Active() bool {
	return p.EndedAt == nil
}

// PollResponse is a single viewer's (re)vote. PrevChoice is empty on a first vote.
type PollResponse struct {
	PollID     uuid.UUID
	PrevChoice string
	NewChoice  string
}

type PollRepository interface {
	Create(ctx context.Context, roomID uuid.UUID, tally Tally, createdAt time.Time) (*Poll, error)
	GetByID(ctx context.Context, roomID, pollID uuid.UUID) (*Poll, error)
	Latest(ctx context.Context, roomID uuid.UUID) (*Poll, error)

	// RecordResponse applies a response to the tally as one atomic
	// read-modify-write and returns the committed tally.
	RecordResponse(ctx context.Context, roomID uuid.UUID, resp PollResponse) (Tally, error)

	// End stamps the poll's end time. changed is false when it had already
	// ended; the original end time is kept.
	End(ctx context.Context, roomID, pollID uuid.UUID, endedAt time.Time) (p *Poll, changed bool, err error)
}
