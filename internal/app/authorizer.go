package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pscheid92/crowdroom/internal/domain"
)

// AdminPolicy decides whether a role token grants the administrator role.
type AdminPolicy interface {
	AllowAdmin(ctx context.Context, room *domain.Room, roleToken string) bool
}

// SuffixPolicy grants admin to any non-empty role token. There is no
// presenter authentication behind it.
type SuffixPolicy struct{}

func (SuffixPolicy) AllowAdmin(_ context.Context, _ *domain.Room, roleToken string) bool {
	return roleToken != ""
}

// ConnectionAuthorizer accepts or rejects a connection attempt by its channel
// name before any per-connection state exists.
type ConnectionAuthorizer struct {
	rooms  domain.RoomFinder
	policy AdminPolicy
	router *ChannelRouter
}

func NewConnectionAuthorizer(rooms domain.RoomFinder, policy AdminPolicy) *ConnectionAuthorizer {
	if policy == nil {
		policy = SuffixPolicy{}
	}
	a := &ConnectionAuthorizer{rooms: rooms, policy: policy, router: NewChannelRouter()}
	a.router.Handle(domain.RoomChannelPattern(), a.authorizeRoom)
	return a
}

// Authorize returns nil to accept. The returned error is for server-side logs
// only and must not reach the client.
func (a *ConnectionAuthorizer) Authorize(ctx context.Context, channel string) error {
	err := a.router.Authorize(ctx, channel)
	if err != nil {
		slog.DebugContext(ctx, "Connection rejected", "channel", channel, "reason", err)
	}
	return err
}

func (a *ConnectionAuthorizer) authorizeRoom(ctx context.Context, match []string) error {
	ch, err := domain.ParseRoomChannel(match[0])
	if err != nil {
		return err
	}

	room, err := a.rooms.GetByPublicID(ctx, ch.RoomToken)
	if err != nil {
		return fmt.Errorf("room lookup failed: %w", err)
	}

	if ch.RoleToken != "" && !a.policy.AllowAdmin(ctx, room, ch.RoleToken) {
		return domain.ErrAdminDenied
	}
	return nil
}
