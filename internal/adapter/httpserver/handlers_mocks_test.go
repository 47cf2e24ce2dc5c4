package httpserver

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/crowdroom/internal/adapter/metrics"
	"github.com/pscheid92/crowdroom/internal/domain"
	"github.com/pscheid92/crowdroom/internal/platform/config"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type mockRoomService struct {
	createFn func(ctx context.Context) (*domain.Room, error)
	getFn    func(ctx context.Context, publicID string) (*domain.Room, error)
}

func (m *mockRoomService) Create(ctx context.Context) (*domain.Room, error) {
	if m.createFn != nil {
		return m.createFn(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockRoomService) Get(ctx context.Context, publicID string) (*domain.Room, error) {
	if m.getFn != nil {
		return m.getFn(ctx, publicID)
	}
	return nil, domain.ErrRoomNotFound
}

func testRoom(publicID string) *domain.Room {
	return &domain.Room{
		ID:        uuid.MustParse("6f1c3c2e-8a4b-4d7e-9c1a-2b3c4d5e6f70"),
		PublicID:  publicID,
		CreatedAt: testNow,
	}
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:       "development",
		Port:         "8080",
		AppURL:       "http://localhost:8080",
		APIRateLimit: 100,
		APIRateBurst: 100,
	}
}

type serverOption func(*config.Config, *Deps)

func newTestServer(t *testing.T, rooms roomService, opts ...serverOption) (*Server, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(testNow)
	cfg := testConfig()
	deps := Deps{
		Rooms:            rooms,
		WebsocketHandler: http.NotFoundHandler(),
		Clock:            clock,
	}
	for _, opt := range opts {
		opt(cfg, &deps)
	}

	return NewServer(cfg, deps), clock
}

func withHealthChecks(checks ...HealthCheck) serverOption {
	return func(_ *config.Config, d *Deps) {
		d.HealthChecks = checks
	}
}

func withWebsocketHandler(h http.Handler) serverOption {
	return func(_ *config.Config, d *Deps) {
		d.WebsocketHandler = h
	}
}

func withHTTPMetrics(m *metrics.HTTPMetrics) serverOption {
	return func(_ *config.Config, d *Deps) {
		d.HTTPMetrics = m
	}
}

func withRateLimit(perSecond float64, burst int) serverOption {
	return func(c *config.Config, _ *Deps) {
		c.APIRateLimit = perSecond
		c.APIRateBurst = burst
	}
}
