// Package correlation tags contexts with request and connection ids and
// surfaces them on every log record written with that context.
package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

type ctxKey uint8

const (
	requestKey ctxKey = iota
	connKey
)

// attrNames maps each context key to the log attribute it produces.
var attrNames = [...]string{
	requestKey: "correlation_id",
	connKey:    "conn_id",
}

// NewID returns a short random hex id (8 chars).
func NewID() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestKey, id)
}

// ID returns the request or RPC id carried by ctx.
func ID(ctx context.Context) (string, bool) { return lookup(ctx, requestKey) }

// WithConn marks ctx as belonging to a client connection.
func WithConn(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, connKey, connID)
}

func ConnID(ctx context.Context) (string, bool) { return lookup(ctx, connKey) }

func lookup(ctx context.Context, key ctxKey) (string, bool) {
	v, _ := ctx.Value(key).(string)
	return v, v != ""
}

// Handler decorates another slog.Handler with the ids found in the context.
type Handler struct {
	next slog.Handler
}

func NewHandler(next slog.Handler) *Handler {
	return &Handler{next: next}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	for key, name := range attrNames {
		if v, ok := lookup(ctx, ctxKey(key)); ok {
			r.AddAttrs(slog.String(name, v))
		}
	}
	if err := h.next.Handle(ctx, r); err != nil {
		return fmt.Errorf("correlation handler: %w", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewHandler(h.next.WithAttrs(attrs))
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return NewHandler(h.next.WithGroup(name))
}
