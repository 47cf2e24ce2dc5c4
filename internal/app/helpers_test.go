package app

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/crowdroom/internal/adapter/memory"
	"github.com/pscheid92/crowdroom/internal/domain"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// --- Recording Broker ---

type published struct {
	RoomID   string
	Audience domain.Audience
	Event    domain.Event
}

type recordingBroker struct {
	mu        sync.Mutex
	published []published
	err       error
}

func (b *recordingBroker) Publish(_ context.Context, room *domain.Room, audience domain.Audience, event domain.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, published{RoomID: room.PublicID, Audience: audience, Event: event})
	return b.err
}

func (b *recordingBroker) all() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.published)
}

// received returns the events of the given name delivered to a role.
func (b *recordingBroker) received(role domain.Role, name domain.EventName) []domain.Event {
	var out []domain.Event
	for _, p := range b.all() {
		if p.Event.Name == name && slices.Contains(p.Audience.Roles(), role) {
			out = append(out, p.Event)
		}
	}
	return out
}

func (b *recordingBroker) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = nil
}

// --- Fake Conn ---

type fakeConn struct {
	id   string
	mu   sync.Mutex
	sent []domain.Event
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.NewString()}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(_ context.Context, event domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, event)
	return nil
}

func (c *fakeConn) events() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.sent)
}

// --- Mock RoomFinder ---

type mockRoomFinder struct {
	getByPublicIDFn func(ctx context.Context, publicID string) (*domain.Room, error)
}

func (m *mockRoomFinder) GetByPublicID(ctx context.Context, publicID string) (*domain.Room, error) {
	if m.getByPublicIDFn != nil {
		return m.getByPublicIDFn(ctx, publicID)
	}
	return nil, domain.ErrRoomNotFound
}

// --- Fixture ---

type fixture struct {
	store     *memory.Store
	broker    *recordingBroker
	clock     *clockwork.FakeClock
	room      *domain.Room
	polls     *PollEngine
	questions *QuestionBoard
	reactions *ReactionBroadcaster
	sessions  *Sessions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	broker := &recordingBroker{}
	clock := clockwork.NewFakeClockAt(testNow)

	room, err := store.Rooms().Create(context.Background(), "abc123", clock.Now())
	require.NoError(t, err)

	polls := NewPollEngine(store.Polls(), broker, clock, domain.DefaultChoices)
	questions := NewQuestionBoard(store.Questions(), broker, clock)
	reactions := NewReactionBroadcaster(broker)
	replay := NewStateReplay(store.Polls(), store.Questions())

	return &fixture{
		store:     store,
		broker:    broker,
		clock:     clock,
		room:      room,
		polls:     polls,
		questions: questions,
		reactions: reactions,
		sessions:  NewSessions(store.Rooms(), polls, questions, reactions, replay),
	}
}

func (f *fixture) open(t *testing.T, channel string) (*Session, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	session, err := f.sessions.Open(context.Background(), channel, conn)
	require.NoError(t, err)
	return session, conn
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
