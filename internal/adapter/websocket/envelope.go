package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pscheid92/crowdroom/internal/domain"
)

// envelope is the wire shape of every server-to-client message.
type envelope struct {
	Event domain.EventName `json:"event"`
	Data  any              `json:"data"`
}

func encodeEvent(e domain.Event) ([]byte, error) {
	data, err := json.Marshal(envelope{Event: e.Name, Data: e.Payload})
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", e.Name, err)
	}
	return data, nil
}

// RoleChannel is the server-side channel all connections of one role in a
// room are subscribed to.
func RoleChannel(publicID string, role domain.Role) string {
	return "room:" + publicID + ":" + role.String()
}

type channelKey struct{}

// WithChannel stores the requested room channel name on the upgrade request
// context so the connect handlers can read it.
func WithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, channelKey{}, channel)
}

// ChannelFromContext returns the requested room channel name.
func ChannelFromContext(ctx context.Context) (string, bool) {
	ch, ok := ctx.Value(channelKey{}).(string)
	return ch, ok
}
