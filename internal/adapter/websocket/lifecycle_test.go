package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/centrifugal/centrifuge"
	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/crowdroom/internal/adapter/memory"
	"github.com/pscheid92/crowdroom/internal/adapter/metrics"
	"github.com/pscheid92/crowdroom/internal/app"
	"github.com/pscheid92/crowdroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const liveClientIP = "10.0.0.7"

// liveRoom runs a real node with the full session stack over an in-memory store.
type liveRoom struct {
	url       string
	store     *memory.Store
	room      *domain.Room
	polls     *app.PollEngine
	limits    *ConnectionLimits
	wsMetrics *metrics.WebSocketMetrics
}

func newLiveRoom(t *testing.T, cfg LimitsConfig) *liveRoom {
	t.Helper()
	ctx := context.Background()

	node, err := NewNode("error")
	require.NoError(t, err)

	reg := metrics.NewRegistry()
	wsMetrics := metrics.NewWebSocketMetrics(reg)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC))

	store := memory.NewStore()
	room, err := store.Rooms().Create(ctx, "abc123", clock.Now())
	require.NoError(t, err)

	broker := NewPublisher(node, wsMetrics)
	polls := app.NewPollEngine(store.Polls(), broker, clock, []string{"yes", "no"})
	questions := app.NewQuestionBoard(store.Questions(), broker, clock)
	sessions := app.NewSessions(store.Rooms(), polls, questions, app.NewReactionBroadcaster(broker), app.NewStateReplay(store.Polls(), store.Questions()))
	limits := NewConnectionLimits(cfg, clock)

	Attach(node, Handlers{
		Authorizer:   allowAll(),
		Sessions:     sessions,
		Limits:       limits,
		WSMetrics:    wsMetrics,
		EventMetrics: metrics.NewEventMetrics(reg),
	})
	require.NoError(t, node.Run())
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = node.Shutdown(shutdownCtx)
	})

	wsHandler := centrifuge.NewWebsocketHandler(node, centrifuge.WebsocketConfig{
		CheckOrigin: func(*http.Request) bool { return true },
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithClientIP(WithChannel(r.Context(), r.URL.Query().Get("channel")), liveClientIP)
		wsHandler.ServeHTTP(w, r.WithContext(ctx))
	}))
	t.Cleanup(srv.Close)

	return &liveRoom{
		url:       "ws" + strings.TrimPrefix(srv.URL, "http"),
		store:     store,
		room:      room,
		polls:     polls,
		limits:    limits,
		wsMetrics: wsMetrics,
	}
}

func defaultLimits() LimitsConfig {
	return LimitsConfig{MaxConnections: 10, MaxPerIP: 10, ConnectRate: 100, ConnectBurst: 100}
}

type clientError struct {
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

type dataFrame struct {
	Data json.RawMessage `json:"data"`
}

type pushFrame struct {
	Channel string     `json:"channel"`
	Pub     *dataFrame `json:"pub"`
	Message *dataFrame `json:"message"`
}

// serverFrame is one message of the centrifuge JSON protocol.
type serverFrame struct {
	ID      uint32          `json:"id"`
	Error   *clientError    `json:"error"`
	Connect json.RawMessage `json:"connect"`
	RPC     *dataFrame      `json:"rpc"`
	Push    *pushFrame      `json:"push"`
}

type testEnvelope struct {
	Event domain.EventName `json:"event"`
	Data  json.RawMessage  `json:"data"`
}

type liveClient struct {
	conn   *ws.Conn
	frames chan serverFrame
	err    error
	nextID uint32
}

func (r *liveRoom) dial(t *testing.T, channel string) *liveClient {
	t.Helper()
	conn, _, err := ws.DefaultDialer.Dial(r.url+"/?channel="+url.QueryEscape(channel), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &liveClient{conn: conn, frames: make(chan serverFrame, 64), nextID: 1}
	go c.readLoop()
	return c
}

// readLoop splits batched frames into single messages until the socket closes.
func (c *liveClient) readLoop() {
	defer close(c.frames)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.err = err
			return
		}
		for _, line := range bytes.Split(data, []byte("\n")) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var f serverFrame
			if json.Unmarshal(line, &f) == nil {
				c.frames <- f
			}
		}
	}
}

func (c *liveClient) command(t *testing.T, cmd map[string]any) uint32 {
	t.Helper()
	id := c.nextID
	c.nextID++
	cmd["id"] = id
	require.NoError(t, c.conn.WriteJSON(cmd))
	return id
}

func (c *liveClient) connect(t *testing.T) serverFrame {
	t.Helper()
	id := c.command(t, map[string]any{"connect": map[string]any{}})
	return c.await(t, func(f serverFrame) bool { return f.ID == id })
}

func (c *liveClient) rpc(t *testing.T, event domain.EventName, data any) serverFrame {
	t.Helper()
	id := c.command(t, map[string]any{"rpc": map[string]any{"method": string(event), "data": data}})
	return c.await(t, func(f serverFrame) bool { return f.ID == id })
}

func (c *liveClient) await(t *testing.T, match func(serverFrame) bool) serverFrame {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case f, ok := <-c.frames:
			if !ok {
				t.Fatalf("connection closed: %v", c.err)
			}
			if match(f) {
				return f
			}
		case <-timeout:
			t.Fatal("timed out waiting for frame")
		}
	}
}

// nextDirect returns the next message sent to this connection alone.
func (c *liveClient) nextDirect(t *testing.T) testEnvelope {
	t.Helper()
	f := c.await(t, func(f serverFrame) bool { return f.Push != nil && f.Push.Message != nil })
	var env testEnvelope
	require.NoError(t, json.Unmarshal(f.Push.Message.Data, &env))
	return env
}

// nextPublication returns the next event published on channel.
func (c *liveClient) nextPublication(t *testing.T, channel string) testEnvelope {
	t.Helper()
	f := c.await(t, func(f serverFrame) bool {
		return f.Push != nil && f.Push.Pub != nil && f.Push.Channel == channel
	})
	var env testEnvelope
	require.NoError(t, json.Unmarshal(f.Push.Pub.Data, &env))
	return env
}

func (c *liveClient) waitClosed(t *testing.T) error {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-c.frames:
			if !ok {
				return c.err
			}
		case <-timeout:
			t.Fatal("connection still open")
			return nil
		}
	}
}

func (r *liveRoom) assertAllReleased(t *testing.T) {
	t.Helper()
	assert.Eventually(t, func() bool {
		return r.limits.Open() == 0 && testutil.ToFloat64(r.wsMetrics.ActiveConnections) == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, r.limits.OpenFrom(liveClientIP))
}

func TestLifecycle_AdminSessionReplaysThenHandlesEvents(t *testing.T) {
	room := newLiveRoom(t, defaultLimits())
	ctx := context.Background()

	poll, err := room.polls.Launch(ctx, room.room)
	require.NoError(t, err)
	_, err = room.store.Questions().Create(ctx, room.room.ID, "first?", time.Now())
	require.NoError(t, err)

	client := room.dial(t, "/rooms/abc123/admin")
	reply := client.connect(t)
	require.Nil(t, reply.Error)
	require.NotEmpty(t, reply.Connect)

	// Replay arrives in order: the open poll first, then the full board.
	start := client.nextDirect(t)
	assert.Equal(t, domain.EventPollStart, start.Event)
	assert.Contains(t, string(start.Data), poll.ID.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(room.wsMetrics.ActiveConnections))
	assert.Equal(t, int64(1), room.limits.Open())

	board := client.nextDirect(t)
	assert.Equal(t, domain.EventQuestionNew, board.Event)
	assert.Contains(t, string(board.Data), "first?")

	ack := client.rpc(t, domain.EventQuestionAsk, "second?")
	require.Nil(t, ack.Error)
	require.NotNil(t, ack.RPC)
	assert.JSONEq(t, "true", string(ack.RPC.Data))

	asked := client.nextPublication(t, "room:abc123:admin")
	assert.Equal(t, domain.EventQuestionNew, asked.Event)
	assert.Contains(t, string(asked.Data), "second?")

	denied := client.rpc(t, domain.EventPollResponse, map[string]any{"id": poll.ID, "newChoice": "yes"})
	require.NotNil(t, denied.Error)

	require.NoError(t, client.conn.Close())
	room.assertAllReleased(t)
}

func TestLifecycle_ViewerReplaySkipsPendingQuestions(t *testing.T) {
	room := newLiveRoom(t, defaultLimits())

	_, err := room.store.Questions().Create(context.Background(), room.room.ID, "pending?", time.Now())
	require.NoError(t, err)

	client := room.dial(t, "/rooms/abc123")
	require.Nil(t, client.connect(t).Error)

	board := client.nextDirect(t)
	assert.Equal(t, domain.EventQuestionNew, board.Event)
	assert.JSONEq(t, "[]", string(board.Data))

	require.NoError(t, client.conn.Close())
	room.assertAllReleased(t)
}

func TestLifecycle_UnknownRoomStaysConnectedWithoutHandlers(t *testing.T) {
	room := newLiveRoom(t, defaultLimits())

	client := room.dial(t, "/rooms/zzzzzz")
	require.Nil(t, client.connect(t).Error)

	roomErr := client.nextDirect(t)
	assert.Equal(t, domain.EventRoomError, roomErr.Event)

	for range 2 {
		reply := client.rpc(t, domain.EventQuestionAsk, "anyone?")
		require.NotNil(t, reply.Error)
		assert.Equal(t, centrifuge.ErrorNotAvailable.Code, reply.Error.Code)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(room.wsMetrics.ActiveConnections))

	require.NoError(t, client.conn.Close())
	room.assertAllReleased(t)
}

func TestLifecycle_LimitRefusalAndSlotReuse(t *testing.T) {
	room := newLiveRoom(t, LimitsConfig{MaxConnections: 10, MaxPerIP: 1, ConnectRate: 100, ConnectBurst: 100})

	first := room.dial(t, "/rooms/abc123")
	require.Nil(t, first.connect(t).Error)

	second := room.dial(t, "/rooms/abc123")
	second.command(t, map[string]any{"connect": map[string]any{}})
	var closeErr *ws.CloseError
	require.ErrorAs(t, second.waitClosed(t), &closeErr)
	assert.Equal(t, int(disconnectLimit.Code), closeErr.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(room.wsMetrics.RejectedConnections.WithLabelValues(string(LimitReasonPerIP))))

	require.NoError(t, first.conn.Close())
	room.assertAllReleased(t)

	third := room.dial(t, "/rooms/abc123")
	require.Nil(t, third.connect(t).Error)
	assert.Equal(t, 1, room.limits.OpenFrom(liveClientIP))
}
