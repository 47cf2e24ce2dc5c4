package websocket

import (
	"context"
	"errors"
	"sync"

	"github.com/centrifugal/centrifuge"
	"github.com/pscheid92/crowdroom/internal/domain"
)

type publication struct {
	channel string
	data    []byte
}

// fakeNode records publications and fails for channels listed in failOn.
type fakeNode struct {
	mu     sync.Mutex
	pubs   []publication
	failOn map[string]bool
}

func (n *fakeNode) Publish(channel string, data []byte, _ ...centrifuge.PublishOption) (centrifuge.PublishResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOn[channel] {
		return centrifuge.PublishResult{}, errors.New("broker down")
	}
	n.pubs = append(n.pubs, publication{channel: channel, data: data})
	return centrifuge.PublishResult{}, nil
}

func (n *fakeNode) channels() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.pubs))
	for _, p := range n.pubs {
		out = append(out, p.channel)
	}
	return out
}

type fakeSender struct {
	id   string
	sent [][]byte
	err  error
}

func (s *fakeSender) ID() string { return s.id }

func (s *fakeSender) Send(data []byte) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, data)
	return nil
}

type mockAuthorizer struct {
	AuthorizeFn func(ctx context.Context, channel string) error
}

func (m *mockAuthorizer) Authorize(ctx context.Context, channel string) error {
	return m.AuthorizeFn(ctx, channel)
}

type mockHandler struct {
	HandleFn func(ctx context.Context, name domain.EventName, data []byte) (any, error)
}

func (m *mockHandler) Handle(ctx context.Context, name domain.EventName, data []byte) (any, error) {
	return m.HandleFn(ctx, name, data)
}
