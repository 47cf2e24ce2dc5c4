package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/centrifugal/centrifuge"
	"github.com/pscheid92/crowdroom/internal/adapter/metrics"
	"github.com/pscheid92/crowdroom/internal/domain"
)

// channelPublisher is the subset of *centrifuge.Node the publisher needs.
type channelPublisher interface {
	Publish(channel string, data []byte, opts ...centrifuge.PublishOption) (centrifuge.PublishResult, error)
}

// Publisher fans room events out over the role channels of a centrifuge node.
type Publisher struct {
	node      channelPublisher
	wsMetrics *metrics.WebSocketMetrics
}

var _ domain.Broker = (*Publisher)(nil)

func NewPublisher(node *centrifuge.Node, wsMetrics *metrics.WebSocketMetrics) *Publisher {
	return &Publisher{node: node, wsMetrics: wsMetrics}
}

// Publish sends the event once to every role channel the audience covers, so
// each connection in the room receives it at most once.
func (p *Publisher) Publish(ctx context.Context, room *domain.Room, audience domain.Audience, event domain.Event) error {
	data, err := encodeEvent(event)
	if err != nil {
		return err
	}

	var errs []error
	for _, role := range audience.Roles() {
		channel := RoleChannel(room.PublicID, role)
		if _, err := p.node.Publish(channel, data); err != nil {
			errs = append(errs, fmt.Errorf("publish to channel %s: %w", channel, err))
			if p.wsMetrics != nil {
				p.wsMetrics.PublishErrors.Inc()
			}
			continue
		}
		if p.wsMetrics != nil {
			p.wsMetrics.MessagesPublished.WithLabelValues(role.String()).Inc()
		}
	}

	slog.DebugContext(ctx, "Event published", "room", room.PublicID, "event", event.Name, "audience", audience)
	return errors.Join(errs...)
}
