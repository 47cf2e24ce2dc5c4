package app

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/pscheid92/crowdroom/internal/domain"
)

// reactionPositions is the exclusive upper bound of a reaction's display position.
const reactionPositions = 100

// ReactionBroadcaster relays ephemeral emoji reactions to the whole room.
// Nothing is persisted.
type ReactionBroadcaster struct {
	broker   domain.Broker
	position func() int
}

func NewReactionBroadcaster(broker domain.Broker) *ReactionBroadcaster {
	return &ReactionBroadcaster{
		broker:   broker,
		position: func() int { return rand.IntN(reactionPositions) },
	}
}

// Send broadcasts codePoint to the room. Falsy values are dropped and reported
// with sent=false.
func (r *ReactionBroadcaster) Send(ctx context.Context, room *domain.Room, codePoint json.RawMessage) (sent bool) {
	if isFalsy(codePoint) {
		return false
	}

	view := reactionView{
		ID:        uuid.NewString(),
		Position:  r.position(),
		CodePoint: bytes.Clone(codePoint),
	}
	publish(ctx, r.broker, room, domain.AudienceRoom, domain.EventReactionShow, view)
	return true
}

func isFalsy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return true
	}
	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return !val
	case string:
		return val == ""
	case float64:
		return val == 0
	default:
		return false
	}
}
