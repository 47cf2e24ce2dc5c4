package domain

import (
	"context"
)

// EventName identifies a client or server event on the wire.
type EventName string

// Server to client.
const (
	EventRoomError     EventName = "RoomError"
	EventPollStart     EventName = "PollStart"
	EventPollResults   EventName = "PollResults"
	EventPollToggle    EventName = "PollToggle"
	EventPollEnd       EventName = "PollEnd"
	EventQuestionNew   EventName = "QuestionNew"
	EventQuestionClear EventName = "QuestionClear"
	EventReactionShow  EventName = "ReactionShow"
)

// Client to server.
const (
	EventPollLaunch      EventName = "PollLaunch"
	EventPollResponse    EventName = "PollResponse"
	EventPollReveal      EventName = "PollReveal"
	EventQuestionAsk     EventName = "QuestionAsk"
	EventQuestionApprove EventName = "QuestionApprove"
	EventQuestionUpvote  EventName = "QuestionUpvote"
	EventReactionSend    EventName = "ReactionSend"
)

// Event is one message fanned out to clients. Payload is encoded as JSON; a nil
// payload is sent as null.
type Event struct {
	Name    EventName
	Payload any
}

// Audience selects which role channels of a room receive a broadcast.
type Audience int

const (
	AudienceAdmins Audience = iota + 1
	AudienceViewers
	AudienceRoom
)

// Roles lists the roles reached by the audience.
func (a Audience) Roles() []Role {
	switch a {
	case AudienceAdmins:
		return []Role{RoleAdmin}
	case AudienceViewers:
		return []Role{RoleViewer}
	case AudienceRoom:
		return []Role{RoleAdmin, RoleViewer}
	default:
		return nil
	}
}

func (a Audience) String() string {
	switch a {
	case AudienceAdmins:
		return "admins"
	case AudienceViewers:
		return "viewers"
	case AudienceRoom:
		return "room"
	default:
		return "unknown"
	}
}

// Broker fans events out to the role-scoped audiences of a room.
// Delivery is best-effort.
type Broker interface {
	Publish(ctx context.Context, room *Room, audience Audience, event Event) error
}

// Conn is a single live client connection.
type Conn interface {
	ID() string
	Send(ctx context.Context, event Event) error
}
