package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/crowdroom/internal/platform/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBusy = errors.New("id taken")

func always(a retry.Action) retry.Classify {
	return func(error) retry.Action { return a }
}

// failing returns an op that fails n times before returning "ok".
func failing(n int, calls *int) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		*calls++
		if *calls <= n {
			return "", errBusy
		}
		return "ok", nil
	}
}

var quick = retry.Policy{MaxAttempts: 3, InitialBackoff: time.Microsecond}

func TestDo_Outcomes(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		action    retry.Action
		wantVal   string
		wantCalls int
		wantPerm  bool
		wantErr   bool
	}{
		{name: "first try", failures: 0, action: retry.Retry, wantVal: "ok", wantCalls: 1},
		{name: "recovers on last attempt", failures: 2, action: retry.Retry, wantVal: "ok", wantCalls: 3},
		{name: "runs out of attempts", failures: 5, action: retry.Retry, wantCalls: 3, wantErr: true},
		{name: "permanent stops at once", failures: 5, action: retry.Stop, wantCalls: 1, wantErr: true, wantPerm: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			val, err := retry.Do(context.Background(), quick, always(tt.action), failing(tt.failures, &calls))

			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantVal, val)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, errBusy)
			var perm *retry.PermanentError
			assert.Equal(t, tt.wantPerm, errors.As(err, &perm))
		})
	}
}

func TestDo_WaitsOnClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := retry.Policy{MaxAttempts: 2, InitialBackoff: time.Minute, Clock: clock}

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := retry.Do(context.Background(), p, always(retry.Retry), failing(1, &calls))
		done <- err
	}()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(time.Minute)

	require.NoError(t, <-done)
	assert.Equal(t, 2, calls)
}

func TestDo_CancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := retry.Policy{MaxAttempts: 3, InitialBackoff: time.Hour, Clock: clockwork.NewFakeClock()}

	calls := 0
	_, err := retry.Do(ctx, p, always(retry.Retry), func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errBusy
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetrySeesEachWait(t *testing.T) {
	type call struct {
		attempt int
		wait    time.Duration
	}
	var seen []call
	p := retry.Policy{
		MaxAttempts:    4,
		InitialBackoff: time.Microsecond,
		MaxBackoff:     3 * time.Microsecond,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			assert.ErrorIs(t, err, errBusy)
			seen = append(seen, call{attempt, wait})
		},
	}

	calls := 0
	_, _ = retry.Do(context.Background(), p, always(retry.Retry), failing(10, &calls))

	assert.Equal(t, []call{
		{1, time.Microsecond},
		{2, 2 * time.Microsecond},
		{3, 3 * time.Microsecond},
	}, seen)
}

func TestDo_RejectsEmptyPolicy(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), retry.Policy{}, always(retry.Retry), failing(0, &calls))

	require.ErrorIs(t, err, retry.ErrInvalidPolicy)
	assert.Zero(t, calls)
}

func TestPolicy_Backoff(t *testing.T) {
	p := retry.Policy{InitialBackoff: 10 * time.Millisecond, MaxBackoff: 50 * time.Millisecond}

	want := []time.Duration{10, 20, 40, 50, 50}
	for i, w := range want {
		assert.Equal(t, w*time.Millisecond, p.Backoff(i+1), "attempt %d", i+1)
	}

	uncapped := retry.Policy{InitialBackoff: time.Second}
	assert.Equal(t, 8*time.Second, uncapped.Backoff(4))
}

func TestOn(t *testing.T) {
	other := errors.New("other")
	classify := retry.On(errBusy)

	assert.Equal(t, retry.Retry, classify(errBusy))
	assert.Equal(t, retry.Retry, classify(fmt.Errorf("insert: %w", errBusy)))
	assert.Equal(t, retry.Stop, classify(other))
}
