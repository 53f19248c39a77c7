package reqflow

import "time"

// Hooks holds optional callbacks for pipeline events. Fields left nil are
// skipped. A Hooks value must not be mutated once handed to a [Service];
// the emit methods read the fields without synchronisation.
//
// Pattern: Observer. Logging, metrics or tests watch attempts without the
// pipeline knowing about them.
type Hooks struct {
	// OnAttempt fires before each transport call. Attempt is 0-indexed.
	OnAttempt func(attempt int, req *BuiltRequest)
	// OnRetry fires before the retry wait. Attempt is the 1-indexed number
	// of the retry about to run.
	OnRetry func(attempt int, err error, delay time.Duration)
	// OnSuccess fires once per successful call.
	OnSuccess func(attempts int, status int)
	// OnFailure fires once per failed call with the terminal error.
	OnFailure func(attempts int, err error)
}

func (h *Hooks) emitAttempt(attempt int, req *BuiltRequest) {
	if h.OnAttempt != nil {
		h.OnAttempt(attempt, req)
	}
}

func (h *Hooks) emitRetry(attempt int, err error, delay time.Duration) {
	if h.OnRetry != nil {
		h.OnRetry(attempt, err, delay)
	}
}

func (h *Hooks) emitSuccess(attempts, status int) {
	if h.OnSuccess != nil {
		h.OnSuccess(attempts, status)
	}
}

func (h *Hooks) emitFailure(attempts int, err error) {
	if h.OnFailure != nil {
		h.OnFailure(attempts, err)
	}
}
