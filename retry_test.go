package reqflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Test helpers: controllable clocks for deterministic retry waits
// ---------------------------------------------------------------------------

type testTimer struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func newTestTimer() *testTimer {
	return &testTimer{ch: make(chan time.Time, 1)}
}

func (t *testTimer) C() <-chan time.Time { return t.ch }

func (t *testTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	was := !t.stopped
	t.stopped = true

	return was
}

func (t *testTimer) fire() { t.ch <- time.Now() }

// immediateClock fires every timer at once and records the requested
// durations.
type immediateClock struct {
	mu        sync.Mutex
	durations []time.Duration
}

func (c *immediateClock) Now() time.Time                  { return time.Now() }
func (c *immediateClock) Since(t time.Time) time.Duration { return time.Since(t) }

func (c *immediateClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	c.durations = append(c.durations, d)
	c.mu.Unlock()

	t := newTestTimer()
	t.fire()

	return t
}

func (c *immediateClock) recorded() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]time.Duration(nil), c.durations...)
}

// stuckClock returns timers that never fire.
type stuckClock struct {
	created chan struct{}
}

func newStuckClock() *stuckClock {
	return &stuckClock{created: make(chan struct{}, 16)}
}

func (c *stuckClock) Now() time.Time                  { return time.Now() }
func (c *stuckClock) Since(t time.Time) time.Duration { return time.Since(t) }

func (c *stuckClock) NewTimer(time.Duration) Timer {
	c.created <- struct{}{}
	return newTestTimer()
}

func failingAttempt(calls *int, err error) func(context.Context, int) (string, error) {
	return func(context.Context, int) (string, error) {
		*calls++
		return "", err
	}
}

// ---------------------------------------------------------------------------
// Attempt counting
// ---------------------------------------------------------------------------

func TestDoRetrySuccessOnFirstAttempt(t *testing.T) {
	clk := &immediateClock{}
	calls := 0

	got, err := doRetry(context.Background(), DefaultRetryPolicy(), clk, &Hooks{},
		func(_ context.Context, attempt int) (string, error) {
			calls++
			assert.Equal(t, 0, attempt)

			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clk.recorded())
}

func TestDoRetryExhaustionMakesOnePlusMaxRetriesCalls(t *testing.T) {
	clk := &immediateClock{}
	calls := 0
	cause := NetworkFailed(errors.New("connection reset"))

	_, err := doRetry(context.Background(),
		RetryPolicy{MaxRetries: 3, Delay: time.Second, ShouldRetry: AlwaysRetry},
		clk, &Hooks{}, failingAttempt(&calls, cause))

	assert.Equal(t, 4, calls)
	require.ErrorIs(t, err, ErrMaxRetriesExceeded)

	perr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, ErrMaxRetriesExceeded, perr.Kind)
	assert.Same(t, cause, perr.Context.UnderlyingError)
	assert.ErrorIs(t, err, ErrNetworkFailed)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, clk.recorded())
}

func TestDoRetryPredicateRejectionReturnsOriginalError(t *testing.T) {
	calls := 0
	cause := statusError(ErrClientError, 404)

	_, err := doRetry(context.Background(),
		RetryPolicy{MaxRetries: 3, ShouldRetry: NeverRetry},
		&immediateClock{}, &Hooks{}, failingAttempt(&calls, cause))

	assert.Equal(t, 1, calls)
	assert.Same(t, cause, err)
	assert.NotErrorIs(t, err, ErrMaxRetriesExceeded)
}

func TestDoRetryStopsWhenPredicateRejectsLaterError(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxRetries: 5, ShouldRetry: RetryTransient}

	_, err := doRetry(context.Background(), policy, &immediateClock{}, &Hooks{},
		func(context.Context, int) (string, error) {
			calls++
			if calls < 3 {
				return "", statusError(ErrServerError, 503)
			}

			return "", statusError(ErrClientError, 400)
		})

	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrClientError)
	assert.NotErrorIs(t, err, ErrMaxRetriesExceeded)
}

func TestDoRetryZeroMaxRetriesWrapsAfterOneAttempt(t *testing.T) {
	calls := 0

	_, err := doRetry(context.Background(),
		RetryPolicy{MaxRetries: 0, ShouldRetry: AlwaysRetry},
		&immediateClock{}, &Hooks{},
		failingAttempt(&calls, statusError(ErrServerError, 500)))

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.ErrorIs(t, err, ErrServerError)
}

func TestDoRetryNegativeMaxRetriesTreatedAsZero(t *testing.T) {
	calls := 0

	_, err := doRetry(context.Background(),
		RetryPolicy{MaxRetries: -2, Delay: -time.Second},
		&immediateClock{}, &Hooks{},
		failingAttempt(&calls, statusError(ErrServerError, 500)))

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
}

func TestDoRetryRecoversAfterTransientFailures(t *testing.T) {
	calls := 0

	got, err := doRetry(context.Background(), DefaultRetryPolicy(), &immediateClock{}, &Hooks{},
		func(_ context.Context, attempt int) (int, error) {
			calls++
			if attempt < 2 {
				return 0, statusError(ErrServerError, 502)
			}

			return attempt, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 2, got)
	assert.Equal(t, 3, calls)
}

// ---------------------------------------------------------------------------
// Build failures and cancellation
// ---------------------------------------------------------------------------

func TestDoRetryNeverRetriesBuildFailures(t *testing.T) {
	for _, cause := range []error{
		invalidURLError("bad", nil),
		serializationError(errors.New("unsupported type")),
	} {
		calls := 0

		_, err := doRetry(context.Background(), DefaultRetryPolicy(), &immediateClock{}, &Hooks{},
			failingAttempt(&calls, cause))

		assert.Equal(t, 1, calls)
		assert.Same(t, cause, err)
	}
}

func TestDoRetryCancelDuringWaitReturnsRetryFailed(t *testing.T) {
	clk := newStuckClock()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	go func() {
		<-clk.created
		cancel()
	}()

	_, err := doRetry(ctx, DefaultRetryPolicy(), clk, &Hooks{},
		failingAttempt(&calls, statusError(ErrServerError, 503)))

	assert.Equal(t, 1, calls)
	require.ErrorIs(t, err, ErrRetryFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrServerError)
}

func TestDoRetryCancelledContextStopsWithoutRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := doRetry(ctx, DefaultRetryPolicy(), &immediateClock{}, &Hooks{},
		func(context.Context, int) (string, error) {
			calls++
			cancel()

			return "", NetworkFailed(context.Canceled)
		})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, ErrNetworkFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

// ---------------------------------------------------------------------------
// Hooks and predicates
// ---------------------------------------------------------------------------

func TestDoRetryEmitsRetryHookWithOneIndexedAttempt(t *testing.T) {
	var attempts []int

	hooks := &Hooks{
		OnRetry: func(attempt int, _ error, delay time.Duration) {
			attempts = append(attempts, attempt)
			assert.Equal(t, 10*time.Millisecond, delay)
		},
	}
	calls := 0

	_, _ = doRetry(context.Background(),
		RetryPolicy{MaxRetries: 2, Delay: 10 * time.Millisecond},
		&immediateClock{}, hooks,
		failingAttempt(&calls, statusError(ErrServerError, 500)))

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestRetryOnMatchesWrappedKinds(t *testing.T) {
	pred := RetryOn(ErrServerError, ErrRequestTimeout)

	assert.True(t, pred(statusError(ErrServerError, 500)))
	assert.True(t, pred(maxRetriesError(1, statusError(ErrServerError, 500))))
	assert.False(t, pred(statusError(ErrClientError, 404)))
	assert.False(t, pred(errors.New("plain")))
}

func TestRetryTransient(t *testing.T) {
	assert.True(t, RetryTransient(statusError(ErrServerError, 503)))
	assert.True(t, RetryTransient(NetworkFailed(errors.New("reset"))))
	assert.True(t, RetryTransient(invalidResponseError()))
	assert.False(t, RetryTransient(statusError(ErrClientError, 429)))
	assert.False(t, RetryTransient(parsingError(errors.New("eof"))))
}

func TestDefaultAndNoRetryPolicies(t *testing.T) {
	def := DefaultRetryPolicy()
	assert.Equal(t, 3, def.MaxRetries)
	assert.Equal(t, time.Second, def.Delay)
	assert.True(t, def.ShouldRetry(errors.New("any")))

	none := NoRetry()
	assert.Equal(t, 0, none.MaxRetries)
	assert.False(t, none.ShouldRetry(errors.New("any")))
}
