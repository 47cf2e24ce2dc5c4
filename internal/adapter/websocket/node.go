package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/centrifugal/centrifuge"
	"github.com/google/uuid"
	"github.com/pscheid92/crowdroom/internal/adapter/metrics"
	"github.com/pscheid92/crowdroom/internal/app"
	"github.com/pscheid92/crowdroom/internal/domain"
	"github.com/pscheid92/crowdroom/internal/platform/correlation"
)

// Authorizer accepts or rejects a connection by its requested channel.
type Authorizer interface {
	Authorize(ctx context.Context, channel string) error
}

// SessionBinder binds an accepted connection to its room and role.
type SessionBinder interface {
	Open(ctx context.Context, channel string, conn domain.Conn) (*app.Session, error)
}

// Handlers are the collaborators the connection lifecycle is wired to.
type Handlers struct {
	Authorizer   Authorizer
	Sessions     SessionBinder
	Limits       *ConnectionLimits
	WSMetrics    *metrics.WebSocketMetrics
	EventMetrics *metrics.EventMetrics
}

// NewNode creates a centrifuge node logging through slog. Handlers are
// attached separately since the session services publish through the node.
func NewNode(logLevel string) (*centrifuge.Node, error) {
	conf := centrifuge.Config{LogLevel: nodeLogLevel(logLevel), LogHandler: slogHandler}
	node, err := centrifuge.New(conf)
	if err != nil {
		return nil, fmt.Errorf("create centrifuge node: %w", err)
	}
	return node, nil
}

// Attach registers the connect handlers. It must run before node.Run.
func Attach(node *centrifuge.Node, h Handlers) {
	node.OnConnecting(onConnecting(h.Authorizer, h.Limits, h.WSMetrics))
	node.OnConnect(onConnect(h.Sessions, h.WSMetrics, h.EventMetrics))
}

// disconnectLimit is sent when the connection limits refuse a client.
var disconnectLimit = centrifuge.Disconnect{Code: 4503, Reason: "connection limit"}

// onConnecting authorizes the requested channel and subscribes the
// connection server-side to its role channel. Clients never subscribe
// themselves; without an OnSubscribe handler such requests are refused.
// Accepted connections hold a limits slot until the connection's context
// ends, which covers connects that fail after this handler returns.
func onConnecting(auth Authorizer, limits *ConnectionLimits, wsMetrics *metrics.WebSocketMetrics) func(ctx context.Context, e centrifuge.ConnectEvent) (centrifuge.ConnectReply, error) {
	return func(ctx context.Context, e centrifuge.ConnectEvent) (centrifuge.ConnectReply, error) {
		channel, ok := ChannelFromContext(ctx)
		if !ok {
			reject(wsMetrics, "missing_channel")
			return centrifuge.ConnectReply{}, centrifuge.DisconnectBadRequest
		}

		if err := auth.Authorize(ctx, channel); err != nil {
			reject(wsMetrics, "unauthorized")
			return centrifuge.ConnectReply{}, centrifuge.DisconnectBadRequest
		}

		ch, err := domain.ParseRoomChannel(channel)
		if err != nil {
			reject(wsMetrics, "malformed_channel")
			return centrifuge.ConnectReply{}, centrifuge.DisconnectBadRequest
		}

		if limits != nil {
			ip := ClientIPFromContext(ctx)
			if ok, reason := limits.Acquire(ip); !ok {
				reject(wsMetrics, string(reason))
				return centrifuge.ConnectReply{}, disconnectLimit
			}
			context.AfterFunc(ctx, func() { limits.Release(ip) })
		}

		reply := centrifuge.ConnectReply{
			Subscriptions: map[string]centrifuge.SubscribeOptions{
				RoleChannel(ch.RoomToken, ch.Role()): {},
			},
		}
		if _, ok := centrifuge.GetCredentials(ctx); !ok {
			reply.Credentials = &centrifuge.Credentials{UserID: uuid.NewString()}
		}
		return reply, nil
	}
}

func reject(wsMetrics *metrics.WebSocketMetrics, reason string) {
	if wsMetrics != nil {
		wsMetrics.Rejected(reason)
	}
}

func onConnect(sessions SessionBinder, wsMetrics *metrics.WebSocketMetrics, eventMetrics *metrics.EventMetrics) func(client *centrifuge.Client) {
	return func(client *centrifuge.Client) {
		if wsMetrics != nil {
			wsMetrics.ActiveConnections.Inc()
		}

		client.OnDisconnect(func(e centrifuge.DisconnectEvent) {
			slog.Debug("Client disconnected", "client_id", client.ID(), "reason", e.Reason)
			if wsMetrics != nil {
				wsMetrics.ActiveConnections.Dec()
			}
		})

		// Store work must not be cut short by the client going away.
		ctx := correlation.WithConn(context.WithoutCancel(client.Context()), client.ID())

		channel, _ := ChannelFromContext(ctx)
		session, err := sessions.Open(ctx, channel, newClientConn(client))
		if err != nil {
			// The client got a RoomError; it stays connected without handlers.
			return
		}

		client.OnRPC(func(e centrifuge.RPCEvent, cb centrifuge.RPCCallback) {
			rpcCtx := correlation.WithID(ctx, correlation.NewID())

			reply, err := dispatch(rpcCtx, session, e.Method, e.Data, eventMetrics)
			if err != nil {
				rErr := rpcError(err)
				if rErr.Code == centrifuge.ErrorInternal.Code {
					slog.ErrorContext(rpcCtx, "Event failed", "event", e.Method, "room", session.Room.PublicID, "error", err)
				} else {
					slog.DebugContext(rpcCtx, "Event rejected", "event", e.Method, "room", session.Room.PublicID, "error", err)
				}
				cb(centrifuge.RPCReply{}, rErr)
				return
			}
			cb(centrifuge.RPCReply{Data: reply}, nil)
		})
	}
}

// slogLevels maps centrifuge log levels onto slog; LogLevelNone is absent.
var slogLevels = map[centrifuge.LogLevel]slog.Level{
	centrifuge.LogLevelTrace: slog.LevelDebug,
	centrifuge.LogLevelDebug: slog.LevelDebug,
	centrifuge.LogLevelInfo:  slog.LevelInfo,
	centrifuge.LogLevelWarn:  slog.LevelWarn,
	centrifuge.LogLevelError: slog.LevelError,
}

// slogHandler forwards node log entries to the default slog logger.
func slogHandler(entry centrifuge.LogEntry) {
	level, ok := slogLevels[entry.Level]
	if !ok {
		return
	}
	attrs := make([]slog.Attr, 0, len(entry.Fields)+1)
	attrs = append(attrs, slog.String("component", "centrifuge"))
	for k, v := range entry.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	slog.LogAttrs(context.Background(), level, entry.Message, attrs...)
}

// nodeLogLevel picks the centrifuge level for the LOG_LEVEL setting.
func nodeLogLevel(level string) centrifuge.LogLevel {
	for centrifugeLevel, slogLevel := range slogLevels {
		if centrifugeLevel != centrifuge.LogLevelTrace && strings.EqualFold(slogLevel.String(), level) {
			return centrifugeLevel
		}
	}
	return centrifuge.LogLevelInfo
}
