package reqflow

import (
	"context"
	"errors"
	"slices"
	"time"
)

// Retry defaults.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// RetryPolicy governs whether a failed attempt is repeated. The first
// attempt is attempt 0; at most MaxRetries further attempts follow it, each
// after a fixed Delay.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Delay is the fixed wait between attempts.
	Delay time.Duration
	// ShouldRetry decides whether an error may be retried. Nil retries
	// every error.
	ShouldRetry func(error) bool
}

// DefaultRetryPolicy returns three retries, one second apart, for every
// error.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  DefaultMaxRetries,
		Delay:       DefaultRetryDelay,
		ShouldRetry: AlwaysRetry,
	}
}

// NoRetry returns a policy that runs a single attempt and returns its error
// unchanged.
func NoRetry() RetryPolicy {
	return RetryPolicy{ShouldRetry: NeverRetry}
}

// AlwaysRetry accepts every error.
func AlwaysRetry(error) bool { return true }

// NeverRetry rejects every error.
func NeverRetry(error) bool { return false }

// RetryOn returns a predicate accepting errors of the given kinds.
func RetryOn(kinds ...ErrorKind) func(error) bool {
	return func(err error) bool {
		return slices.ContainsFunc(kinds, func(k ErrorKind) bool {
			return errors.Is(err, k)
		})
	}
}

// RetryTransient accepts failures that may succeed on a later attempt:
// server errors, invalid responses, timeouts and network failures. Client
// errors and parsing errors are rejected.
func RetryTransient(err error) bool {
	return RetryOn(
		ErrServerError,
		ErrInvalidResponse,
		ErrNetworkUnavailable,
		ErrRequestTimeout,
		ErrNetworkFailed,
	)(err)
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}

	if p.Delay < 0 {
		p.Delay = 0
	}

	if p.ShouldRetry == nil {
		p.ShouldRetry = AlwaysRetry
	}

	return p
}

// Pattern: Retry with fixed delay. Attempts run strictly in sequence; the
// next one starts only after the previous failure was classified and the
// delay elapsed.

// doRetry runs fn until it succeeds or the policy stops it. fn receives the
// 0-indexed attempt number.
//
// Termination rules, in order:
//   - build failures return unchanged;
//   - a done ctx returns the attempt's error unchanged;
//   - a rejecting predicate returns the error unchanged;
//   - an exhausted budget returns [ErrMaxRetriesExceeded] wrapping the error;
//   - an interrupted wait returns [ErrRetryFailed] wrapping ctx.Err().
func doRetry[T any](
	ctx context.Context,
	policy RetryPolicy,
	clock Clock,
	hooks *Hooks,
	fn func(ctx context.Context, attempt int) (T, error),
) (T, error) {
	var zero T

	policy = policy.normalized()

	for attempt := 0; ; attempt++ {
		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}

		if isBuildFailure(err) || ctx.Err() != nil {
			return zero, err
		}

		if !policy.ShouldRetry(err) {
			return zero, err
		}

		if attempt >= policy.MaxRetries {
			return zero, maxRetriesError(policy.MaxRetries, err)
		}

		hooks.emitRetry(attempt+1, err, policy.Delay)

		if waitErr := sleep(ctx, clock, policy.Delay); waitErr != nil {
			return zero, retryFailedError(waitErr)
		}
	}
}
