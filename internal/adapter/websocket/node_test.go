package websocket

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/centrifugal/centrifuge"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/crowdroom/internal/adapter/metrics"
	"github.com/pscheid92/crowdroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allowAll() *mockAuthorizer {
	return &mockAuthorizer{AuthorizeFn: func(context.Context, string) error { return nil }}
}

func TestOnConnecting_SubscribesRoleChannel(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		want    string
	}{
		{"viewer", "/rooms/abc123", "room:abc123:viewer"},
		{"admin", "/rooms/abc123/admin", "room:abc123:admin"},
		{"mixed case room token", "/rooms/ABC123/x", "room:abc123:admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := onConnecting(allowAll(), nil, nil)

			reply, err := handler(WithChannel(context.Background(), tt.channel), centrifuge.ConnectEvent{})
			require.NoError(t, err)

			require.Len(t, reply.Subscriptions, 1)
			assert.Contains(t, reply.Subscriptions, tt.want)
		})
	}
}

func TestOnConnecting_AssignsAnonymousCredentials(t *testing.T) {
	handler := onConnecting(allowAll(), nil, nil)

	reply, err := handler(WithChannel(context.Background(), "/rooms/abc123"), centrifuge.ConnectEvent{})
	require.NoError(t, err)
	require.NotNil(t, reply.Credentials)
	assert.NotEmpty(t, reply.Credentials.UserID)
}

func TestOnConnecting_KeepsExistingCredentials(t *testing.T) {
	handler := onConnecting(allowAll(), nil, nil)
	ctx := centrifuge.SetCredentials(WithChannel(context.Background(), "/rooms/abc123"), &centrifuge.Credentials{UserID: "u1"})

	reply, err := handler(ctx, centrifuge.ConnectEvent{})
	require.NoError(t, err)
	assert.Nil(t, reply.Credentials)
}

func TestOnConnecting_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		ctx     context.Context
		authErr error
		reason  string
	}{
		{"missing channel", context.Background(), nil, "missing_channel"},
		{"unknown room", WithChannel(context.Background(), "/rooms/nope"), domain.ErrRoomNotFound, "unauthorized"},
		{"admin denied", WithChannel(context.Background(), "/rooms/abc123/admin"), domain.ErrAdminDenied, "unauthorized"},
		{"malformed", WithChannel(context.Background(), "/lobby"), nil, "malformed_channel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.NewWebSocketMetrics(metrics.NewRegistry())
			auth := &mockAuthorizer{AuthorizeFn: func(context.Context, string) error { return tt.authErr }}

			_, err := onConnecting(auth, nil, m)(tt.ctx, centrifuge.ConnectEvent{})

			assert.Equal(t, centrifuge.DisconnectBadRequest, err)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedConnections.WithLabelValues(tt.reason)))
		})
	}
}

func TestOnConnecting_ConnectionLimits(t *testing.T) {
	m := metrics.NewWebSocketMetrics(metrics.NewRegistry())
	limits := NewConnectionLimits(LimitsConfig{MaxConnections: 10, MaxPerIP: 1, ConnectRate: 100, ConnectBurst: 100}, clockwork.NewFakeClock())
	handler := onConnecting(allowAll(), limits, m)
	ctx := WithClientIP(WithChannel(context.Background(), "/rooms/abc123"), "1.2.3.4")

	_, err := handler(ctx, centrifuge.ConnectEvent{})
	require.NoError(t, err)

	_, err = handler(ctx, centrifuge.ConnectEvent{})
	assert.Equal(t, disconnectLimit, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedConnections.WithLabelValues("per_ip_limit")))
	assert.Equal(t, 1, limits.OpenFrom("1.2.3.4"))
}

func TestOnConnecting_SlotReleasedWhenConnectionEnds(t *testing.T) {
	limits := NewConnectionLimits(LimitsConfig{MaxConnections: 10, MaxPerIP: 1, ConnectRate: 100, ConnectBurst: 100}, clockwork.NewFakeClock())
	handler := onConnecting(allowAll(), limits, nil)

	// The connection never reaches OnConnect, as when the node refuses it
	// after this handler accepted.
	ctx, cancel := context.WithCancel(WithClientIP(WithChannel(context.Background(), "/rooms/abc123"), "1.2.3.4"))
	_, err := handler(ctx, centrifuge.ConnectEvent{})
	require.NoError(t, err)
	require.Equal(t, 1, limits.OpenFrom("1.2.3.4"))

	cancel()

	assert.Eventually(t, func() bool { return limits.Open() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, limits.OpenFrom("1.2.3.4"))
}

func TestOnConnecting_UnauthorizedTakesNoSlot(t *testing.T) {
	limits := NewConnectionLimits(LimitsConfig{MaxConnections: 10, MaxPerIP: 10, ConnectRate: 100, ConnectBurst: 100}, clockwork.NewFakeClock())
	auth := &mockAuthorizer{AuthorizeFn: func(context.Context, string) error { return domain.ErrRoomNotFound }}

	_, err := onConnecting(auth, limits, nil)(WithChannel(context.Background(), "/rooms/nope"), centrifuge.ConnectEvent{})

	assert.Equal(t, centrifuge.DisconnectBadRequest, err)
	assert.Equal(t, int64(0), limits.Open())
}

func TestNodeLogLevel(t *testing.T) {
	tests := map[string]centrifuge.LogLevel{
		"debug":   centrifuge.LogLevelDebug,
		"DEBUG":   centrifuge.LogLevelDebug,
		"info":    centrifuge.LogLevelInfo,
		"warn":    centrifuge.LogLevelWarn,
		"error":   centrifuge.LogLevelError,
		"":        centrifuge.LogLevelInfo,
		"verbose": centrifuge.LogLevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, nodeLogLevel(in), in)
	}
}

func TestSlogHandler(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	slogHandler(centrifuge.NewLogEntry(centrifuge.LogLevelWarn, "slow client", map[string]any{"client": "c1"}))
	slogHandler(centrifuge.NewLogEntry(centrifuge.LogLevelNone, "dropped", nil))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `msg="slow client"`)
	assert.Contains(t, out, "component=centrifuge")
	assert.Contains(t, out, "client=c1")
	assert.NotContains(t, out, "dropped")
}
