// Package memory provides an in-process implementation of the room, poll and
// question repositories for single-instance development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/crowdroom/internal/domain"
)

// Store keeps all durable entities in memory. A single mutex serialises every
// operation, which gives each call the isolation of a store transaction.
type Store struct {
	mu        sync.Mutex
	rooms     map[uuid.UUID]*domain.Room
	byPublic  map[string]uuid.UUID
	polls     []*domain.Poll
	questions []*domain.Question
}

func NewStore() *Store {
	return &Store{
		rooms:    make(map[uuid.UUID]*domain.Room),
		byPublic: make(map[string]uuid.UUID),
	}
}

// Rooms, Polls and Questions expose the store through the domain repository contracts.
func (s *Store) Rooms() *RoomRepo         { return &RoomRepo{s: s} }
func (s *Store) Polls() *PollRepo         { return &PollRepo{s: s} }
func (s *Store) Questions() *QuestionRepo { return &QuestionRepo{s: s} }

// --- Rooms ---

type RoomRepo struct{ s *Store }

func (r *RoomRepo) Create(_ context.Context, publicID string, createdAt time.Time) (*domain.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.byPublic[publicID]; taken {
		return nil, domain.ErrRoomIDTaken
	}
	room := &domain.Room{ID: uuid.New(), PublicID: publicID, CreatedAt: createdAt}
	r.s.rooms[room.ID] = room
	r.s.byPublic[publicID] = room.ID

	copied := *room
	return &copied, nil
}

func (r *RoomRepo) GetByPublicID(_ context.Context, publicID string) (*domain.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.byPublic[publicID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	copied := *r.s.rooms[id]
	return &copied, nil
}

// --- Polls ---

type PollRepo struct{ s *Store }

func (r *PollRepo) Create(_ context.Context, roomID uuid.UUID, tally domain.Tally, createdAt time.Time) (*domain.Poll, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	poll := &domain.Poll{ID: uuid.New(), RoomID: roomID, Tally: tally.Clone(), CreatedAt: createdAt}
	r.s.polls = append(r.s.polls, poll)
	return copyPoll(poll), nil
}

func (r *PollRepo) GetByID(_ context.Context, roomID, pollID uuid.UUID) (*domain.Poll, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	poll := r.s.findPoll(roomID, pollID)
	if poll == nil {
		return nil, domain.ErrPollNotFound
	}
	return copyPoll(poll), nil
}

// Latest returns the most recently created poll of the room. Ties on the
// creation timestamp go to the later insert.
func (r *PollRepo) Latest(_ context.Context, roomID uuid.UUID) (*domain.Poll, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var latest *domain.Poll
	for _, p := range r.s.polls {
		if p.RoomID != roomID {
			continue
		}
		if latest == nil || !p.CreatedAt.Before(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, domain.ErrPollNotFound
	}
	return copyPoll(latest), nil
}

func (r *PollRepo) RecordResponse(_ context.Context, roomID uuid.UUID, resp domain.PollResponse) (domain.Tally, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	poll := r.s.findPoll(roomID, resp.PollID)
	if poll == nil {
		return nil, domain.ErrPollNotFound
	}
	if !poll.Active() {
		return nil, domain.ErrPollEnded
	}

	tally := poll.Tally.Clone()
	if err := tally.Apply(resp.PrevChoice, resp.NewChoice); err != nil {
		return nil, err
	}
	poll.Tally = tally
	return tally.Clone(), nil
}

func (r *PollRepo) End(_ context.Context, roomID, pollID uuid.UUID, endedAt time.Time) (*domain.Poll, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	poll := r.s.findPoll(roomID, pollID)
	if poll == nil {
		return nil, false, domain.ErrPollNotFound
	}
	if !poll.Active() {
		return copyPoll(poll), false, nil
	}
	poll.EndedAt = &endedAt
	return copyPoll(poll), true, nil
}

func (s *Store) findPoll(roomID, pollID uuid.UUID) *domain.Poll {
	for _, p := range s.polls {
		if p.ID == pollID && p.RoomID == roomID {
			return p
		}
	}
	return nil
}

func copyPoll(p *domain.Poll) *domain.Poll {
	copied := *p
	copied.Tally = p.Tally.Clone()
	if p.EndedAt != nil {
		endedAt := *p.EndedAt
		copied.EndedAt = &endedAt
	}
	return &copied
}

// --- Questions ---

type QuestionRepo struct{ s *Store }

func (r *QuestionRepo) Create(_ context.Context, roomID uuid.UUID, content string, createdAt time.Time) (*domain.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q := &domain.Question{ID: uuid.New(), RoomID: roomID, Content: content, CreatedAt: createdAt}
	r.s.questions = append(r.s.questions, q)

	copied := *q
	return &copied, nil
}

func (r *QuestionRepo) List(_ context.Context, roomID uuid.UUID, filter domain.QuestionFilter) ([]domain.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]domain.Question, 0)
	for _, q := range r.s.questions {
		if q.RoomID != roomID {
			continue
		}
		if filter == domain.ApprovedQuestions && !q.Approved {
			continue
		}
		out = append(out, *q)
	}
	return out, nil
}

func (r *QuestionRepo) Approve(_ context.Context, roomID, questionID uuid.UUID) (*domain.Question, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q := r.s.findQuestion(roomID, questionID)
	if q == nil {
		return nil, false, domain.ErrQuestionNotFound
	}
	changed := !q.Approved
	q.Approved = true

	copied := *q
	return &copied, changed, nil
}

func (r *QuestionRepo) Upvote(_ context.Context, roomID, questionID uuid.UUID) (*domain.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q := r.s.findQuestion(roomID, questionID)
	if q == nil {
		return nil, domain.ErrQuestionNotFound
	}
	q.Votes++

	copied := *q
	return &copied, nil
}

func (r *QuestionRepo) DeleteAll(_ context.Context, roomID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.questions[:0]
	var removed int64
	for _, q := range r.s.questions {
		if q.RoomID == roomID {
			removed++
			continue
		}
		kept = append(kept, q)
	}
	r.s.questions = kept
	return removed, nil
}

func (s *Store) findQuestion(roomID, questionID uuid.UUID) *domain.Question {
	for _, q := range s.questions {
		if q.ID == questionID && q.RoomID == roomID {
			return q
		}
	}
	return nil
}
