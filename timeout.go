package reqflow

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Pattern: Timeout. Bounds each attempt with its own deadline and tells a
// deadline it set apart from the caller's own cancellation.

// errAttemptDeadline marks a failure caused by the per-attempt deadline.
var errAttemptDeadline = errors.New("attempt deadline exceeded")

// AttemptTimeout bounds every transport call by d. The timeout is per
// attempt, never cumulative across retries. When the attempt's own deadline
// fires while the parent context is still live, the error is wrapped so
// that [IsAttemptTimeout] reports true; the caller's cancellation passes
// through unchanged, as does an error the transport already classified. A
// non-positive d disables the middleware.
func AttemptTimeout(d time.Duration) Middleware {
	return func(next Transport) Transport {
		if d <= 0 {
			return next
		}

		return TransportFunc(func(ctx context.Context, req *BuiltRequest) (*RawResponse, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			resp, err := next.Send(attemptCtx, req)
			if err == nil {
				return resp, nil
			}

			if _, classified := AsError(err); classified {
				return nil, err
			}

			if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %s: %w", errAttemptDeadline, d, err)
			}

			return nil, err
		})
	}
}

// IsAttemptTimeout reports whether err was caused by [AttemptTimeout].
func IsAttemptTimeout(err error) bool {
	return errors.Is(err, errAttemptDeadline)
}
