package reqflow

import "context"

// Result is the single item delivered by [Stream].
type Result[T any] struct {
	Value T
	Err   error
}

// Stream is the push-style form of [Execute]. The returned channel yields
// exactly one [Result] (a value or an error) and is then closed. The
// channel is buffered, so abandoning it does not leak the goroutine;
// cancelling ctx stops the call the same way it stops [Execute].
func Stream[T any](ctx context.Context, s *Service, d Descriptor) <-chan Result[T] {
	out := make(chan Result[T], 1)

	go func() {
		defer close(out)

		v, err := Execute[T](ctx, s, d)
		out <- Result[T]{Value: v, Err: err}
	}()

	return out
}
