package app

import (
	"context"
	"log/slog"

	"github.com/pscheid92/crowdroom/internal/domain"
)

// publish fans an event out and only logs failures. Broadcasts are
// best-effort and never fail the operation that caused them.
func publish(ctx context.Context, broker domain.Broker, room *domain.Room, audience domain.Audience, name domain.EventName, payload any) {
	err := broker.Publish(ctx, room, audience, domain.Event{Name: name, Payload: payload})
	if err != nil {
		slog.WarnContext(ctx, "Broadcast failed", "room", room.PublicID, "event", name, "audience", audience, "error", err)
	}
}
