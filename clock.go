package reqflow

import (
	"context"
	"time"
)

// Clock abstracts time so retry delays can be driven by tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Since returns the time elapsed since t.
	Since(t time.Time) time.Duration
	// NewTimer returns a [Timer] firing after d.
	NewTimer(d time.Duration) Timer
}

// Timer is the subset of [time.Timer] the pipeline needs.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// RealClock is the [Clock] backed by the time package. The zero value is
// ready to use.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time { return time.Now() }

// Since returns time.Since(t).
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

// NewTimer wraps time.NewTimer.
func (RealClock) NewTimer(d time.Duration) Timer {
	return stdTimer{t: time.NewTimer(d)}
}

type stdTimer struct {
	t *time.Timer
}

func (s stdTimer) C() <-chan time.Time { return s.t.C }
func (s stdTimer) Stop() bool          { return s.t.Stop() }

// sleep blocks for d or until ctx is done, whichever comes first. It
// returns ctx.Err() when interrupted.
func sleep(ctx context.Context, clock Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // preserving context error identity
	}

	timer := clock.NewTimer(d)

	select {
	case <-timer.C():
		return nil
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err() //nolint:wrapcheck // preserving context error identity
	}
}
