package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pscheid92/crowdroom/internal/domain"
)

// Sessions binds accepted connections to a room and role.
type Sessions struct {
	rooms     domain.RoomFinder
	polls     *PollEngine
	questions *QuestionBoard
	reactions *ReactionBroadcaster
	replay    *StateReplay
}

func NewSessions(rooms domain.RoomFinder, polls *PollEngine, questions *QuestionBoard, reactions *ReactionBroadcaster, replay *StateReplay) *Sessions {
	return &Sessions{
		rooms:     rooms,
		polls:     polls,
		questions: questions,
		reactions: reactions,
		replay:    replay,
	}
}

// Session is one connection bound to a room and a role for its lifetime.
type Session struct {
	Room *domain.Room
	Role domain.Role

	conn     domain.Conn
	svc      *Sessions
	handlers map[domain.EventName]eventHandler
}

type eventHandler func(s *Session, ctx context.Context, data []byte) (any, error)

var sharedHandlers = map[domain.EventName]eventHandler{
	domain.EventQuestionAsk:    (*Session).questionAsk,
	domain.EventQuestionUpvote: (*Session).questionUpvote,
	domain.EventReactionSend:   (*Session).reactionSend,
}

var adminHandlers = map[domain.EventName]eventHandler{
	domain.EventPollLaunch:      (*Session).pollLaunch,
	domain.EventPollReveal:      (*Session).pollReveal,
	domain.EventPollToggle:      (*Session).pollToggle,
	domain.EventPollEnd:         (*Session).pollEnd,
	domain.EventQuestionApprove: (*Session).questionApprove,
	domain.EventQuestionClear:   (*Session).questionClear,
}

var viewerHandlers = map[domain.EventName]eventHandler{
	domain.EventPollResponse: (*Session).pollResponse,
}

// Open re-parses the channel, resolves the room and binds the role, then
// replays the room's state to the connection. If the channel or room cannot
// be resolved the client gets a single RoomError and no session is returned;
// the connection stays open but cannot do anything.
func (s *Sessions) Open(ctx context.Context, channel string, conn domain.Conn) (*Session, error) {
	ch, err := domain.ParseRoomChannel(channel)
	if err != nil {
		s.roomError(ctx, conn, channel, err)
		return nil, err
	}

	room, err := s.rooms.GetByPublicID(ctx, ch.RoomToken)
	if err != nil {
		s.roomError(ctx, conn, channel, err)
		return nil, fmt.Errorf("room lookup failed: %w", err)
	}

	role := ch.Role()
	table := viewerHandlers
	if role == domain.RoleAdmin {
		table = adminHandlers
	}

	handlers := make(map[domain.EventName]eventHandler, len(sharedHandlers)+len(table))
	for name, h := range sharedHandlers {
		handlers[name] = h
	}
	for name, h := range table {
		handlers[name] = h
	}

	session := &Session{Room: room, Role: role, conn: conn, svc: s, handlers: handlers}
	slog.InfoContext(ctx, "Session bound", "room", room.PublicID, "role", role)

	if err := s.replay.Replay(ctx, room, role, conn); err != nil {
		slog.ErrorContext(ctx, "State replay failed", "room", room.PublicID, "error", err)
	}
	return session, nil
}

func (s *Sessions) roomError(ctx context.Context, conn domain.Conn, channel string, cause error) {
	slog.WarnContext(ctx, "Session binding failed", "channel", channel, "error", cause)
	if err := conn.Send(ctx, domain.Event{Name: domain.EventRoomError}); err != nil {
		slog.WarnContext(ctx, "Failed to send room error", "error", err)
	}
}

// Handle dispatches one client event and returns its acknowledgement.
func (s *Session) Handle(ctx context.Context, name domain.EventName, data []byte) (any, error) {
	h, ok := s.handlers[name]
	if !ok {
		if knownEvent(name) {
			return nil, domain.ErrEventNotAllowed
		}
		return nil, domain.ErrUnknownEvent
	}
	return h(s, ctx, data)
}

func knownEvent(name domain.EventName) bool {
	for _, table := range []map[domain.EventName]eventHandler{sharedHandlers, adminHandlers, viewerHandlers} {
		if _, ok := table[name]; ok {
			return true
		}
	}
	return false
}

// --- Payloads ---

type pollResponsePayload struct {
	ID         uuid.UUID `json:"id"`
	PrevChoice string    `json:"prevChoice"`
	NewChoice  string    `json:"newChoice"`
}

type pollRefPayload struct {
	PollID uuid.UUID `json:"pollId"`
}

type questionRefPayload struct {
	QuestionID uuid.UUID `json:"questionId"`
}

func decode[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %w", domain.ErrInvalidPayload, err)
	}
	return v, nil
}

func decodePollRef(data []byte) (uuid.UUID, error) {
	p, err := decode[pollRefPayload](data)
	if err != nil {
		return uuid.Nil, err
	}
	if p.PollID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: missing pollId", domain.ErrInvalidPayload)
	}
	return p.PollID, nil
}

func decodeQuestionRef(data []byte) (uuid.UUID, error) {
	p, err := decode[questionRefPayload](data)
	if err != nil {
		return uuid.Nil, err
	}
	if p.QuestionID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: missing questionId", domain.ErrInvalidPayload)
	}
	return p.QuestionID, nil
}

// --- Handlers ---

func (s *Session) pollLaunch(ctx context.Context, _ []byte) (any, error) {
	poll, err := s.svc.polls.Launch(ctx, s.Room)
	if err != nil {
		return nil, err
	}
	return newPollView(poll), nil
}

func (s *Session) pollResponse(ctx context.Context, data []byte) (any, error) {
	p, err := decode[pollResponsePayload](data)
	if err != nil {
		return nil, err
	}
	if p.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing id", domain.ErrInvalidPayload)
	}

	resp := domain.PollResponse{PollID: p.ID, PrevChoice: p.PrevChoice, NewChoice: p.NewChoice}
	if _, err := s.svc.polls.Respond(ctx, s.Room, resp); err != nil {
		return nil, err
	}
	return choiceAck{Choice: p.NewChoice}, nil
}

func (s *Session) pollReveal(ctx context.Context, data []byte) (any, error) {
	pollID, err := decodePollRef(data)
	if err != nil {
		return nil, err
	}
	if err := s.svc.polls.Reveal(ctx, s.Room, pollID); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Session) pollToggle(ctx context.Context, _ []byte) (any, error) {
	s.svc.polls.Toggle(ctx, s.Room)
	return true, nil
}

func (s *Session) pollEnd(ctx context.Context, data []byte) (any, error) {
	pollID, err := decodePollRef(data)
	if err != nil {
		return nil, err
	}
	if err := s.svc.polls.End(ctx, s.Room, pollID); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Session) questionAsk(ctx context.Context, data []byte) (any, error) {
	content, err := decode[string](data)
	if err != nil {
		return nil, err
	}
	if _, err := s.svc.questions.Ask(ctx, s.Room, content); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Session) questionApprove(ctx context.Context, data []byte) (any, error) {
	id, err := decodeQuestionRef(data)
	if err != nil {
		return nil, err
	}
	q, err := s.svc.questions.Approve(ctx, s.Room, id)
	if err != nil {
		return nil, err
	}
	return newQuestionView(q), nil
}

func (s *Session) questionUpvote(ctx context.Context, data []byte) (any, error) {
	id, err := decodeQuestionRef(data)
	if err != nil {
		return nil, err
	}
	q, err := s.svc.questions.Upvote(ctx, s.Room, id)
	if err != nil {
		return nil, err
	}
	return newQuestionView(q), nil
}

func (s *Session) questionClear(ctx context.Context, _ []byte) (any, error) {
	if err := s.svc.questions.Clear(ctx, s.Room); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Session) reactionSend(ctx context.Context, data []byte) (any, error) {
	s.svc.reactions.Send(ctx, s.Room, data)
	return nil, nil
}
