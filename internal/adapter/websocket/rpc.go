package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/centrifugal/centrifuge"
	"github.com/pscheid92/crowdroom/internal/adapter/metrics"
	"github.com/pscheid92/crowdroom/internal/domain"
)

// EventHandler handles one client event on a bound session.
type EventHandler interface {
	Handle(ctx context.Context, name domain.EventName, data []byte) (any, error)
}

var (
	errorNotFound  = &centrifuge.Error{Code: 404, Message: "not found"}
	errorPollEnded = &centrifuge.Error{Code: 409, Message: "poll ended"}
)

// knownEventNames bounds the event label of the metrics to the client event catalog.
var knownEventNames = map[domain.EventName]bool{
	domain.EventPollLaunch:      true,
	domain.EventPollResponse:    true,
	domain.EventPollReveal:      true,
	domain.EventPollToggle:      true,
	domain.EventPollEnd:         true,
	domain.EventQuestionAsk:     true,
	domain.EventQuestionApprove: true,
	domain.EventQuestionUpvote:  true,
	domain.EventQuestionClear:   true,
	domain.EventReactionSend:    true,
}

// dispatch runs one RPC against the session and encodes its acknowledgement.
// Panics are contained to the failing call.
func dispatch(ctx context.Context, h EventHandler, method string, data []byte, m *metrics.EventMetrics) (reply []byte, err error) {
	name := domain.EventName(method)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Event handler panicked", "event", method, "panic", r)
			reply, err = nil, fmt.Errorf("event handler panic: %v", r)
		}
		observe(m, name, start, err)
	}()

	ack, err := h.Handle(ctx, name, data)
	if err != nil {
		return nil, err
	}
	reply, err = json.Marshal(ack)
	if err != nil {
		return nil, fmt.Errorf("marshal %s ack: %w", method, err)
	}
	return reply, nil
}

func observe(m *metrics.EventMetrics, name domain.EventName, start time.Time, err error) {
	if m == nil {
		return
	}
	label := string(name)
	if !knownEventNames[name] {
		label = "unknown"
	}
	m.Handled.WithLabelValues(label, resultLabel(err)).Inc()
	m.Duration.WithLabelValues(label).Observe(time.Since(start).Seconds())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case rpcError(err).Code == centrifuge.ErrorInternal.Code:
		return "error"
	default:
		return "rejected"
	}
}

// rpcError maps a handler error to the error returned to the client. Details
// of internal failures stay in the server log.
func rpcError(err error) *centrifuge.Error {
	switch {
	case errors.Is(err, domain.ErrInvalidPayload), errors.Is(err, domain.ErrInvalidChoice):
		return centrifuge.ErrorBadRequest
	case errors.Is(err, domain.ErrEventNotAllowed):
		return centrifuge.ErrorPermissionDenied
	case errors.Is(err, domain.ErrUnknownEvent):
		return centrifuge.ErrorMethodNotFound
	case errors.Is(err, domain.ErrPollNotFound), errors.Is(err, domain.ErrQuestionNotFound), errors.Is(err, domain.ErrRoomNotFound):
		return errorNotFound
	case errors.Is(err, domain.ErrPollEnded):
		return errorPollEnded
	default:
		return centrifuge.ErrorInternal
	}
}
