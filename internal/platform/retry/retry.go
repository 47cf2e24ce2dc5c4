// Package retry runs an operation again on errors the caller classifies as transient.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

type Action int

const (
	Stop  Action = iota // permanent error, abort immediately
	Retry               // transient error, back off and try again
)

// ErrInvalidPolicy is returned when a Policy allows no attempt at all.
var ErrInvalidPolicy = errors.New("retry: MaxAttempts must be >= 1")

// Policy bounds the attempts and the exponential wait between them.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration // zero means uncapped
	Clock          clockwork.Clock
	OnRetry        func(attempt int, err error, backoff time.Duration)
}

// Backoff is the wait after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.InitialBackoff
	for range attempt - 1 {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

type Classify func(err error) Action

// On retries errors matching any of targets and stops on everything else.
func On(targets ...error) Classify {
	return func(err error) Action {
		for _, t := range targets {
			if errors.Is(err, t) {
				return Retry
			}
		}
		return Stop
	}
}

// PermanentError marks an error the classifier refused to retry.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string  { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Do calls op until it succeeds, classify says Stop, attempts run out or ctx
// is done while waiting.
func Do[T any](ctx context.Context, p Policy, classify Classify, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		return zero, ErrInvalidPolicy
	}
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := p.Backoff(attempt - 1)
			if p.OnRetry != nil {
				p.OnRetry(attempt-1, lastErr, wait)
			}
			select {
			case <-clock.After(wait):
			case <-ctx.Done():
				return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			}
		}

		val, err := op(ctx)
		if err == nil {
			return val, nil
		}
		if classify(err) == Stop {
			return zero, &PermanentError{Err: err}
		}
		lastErr = err
	}
	return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, lastErr)
}
