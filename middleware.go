package reqflow

import (
	"context"
	"maps"
)

// Pattern: Decorator. Each middleware wraps the next transport; the first
// one given to [Chain] is outermost.

// Middleware decorates a [Transport].
type Middleware func(next Transport) Transport

// Chain composes middlewares so that Chain(a, b)(t) == a(b(t)). Chain with
// no middlewares returns t unchanged.
func Chain(middlewares ...Middleware) Middleware {
	return func(next Transport) Transport {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}

		return next
	}
}

// DefaultHeaders sets each header that the built request does not already
// carry. A header present with an empty value counts as set. The request handed to next is a copy; the caller's is unchanged.
func DefaultHeaders(headers map[string]string) Middleware {
	defaults := maps.Clone(headers)

	return func(next Transport) Transport {
		return TransportFunc(func(ctx context.Context, req *BuiltRequest) (*RawResponse, error) {
			if len(defaults) == 0 {
				return next.Send(ctx, req)
			}

			out := req.Clone()
			for k, v := range defaults {
				if len(out.Header.Values(k)) == 0 {
					out.Header.Set(k, v)
				}
			}

			return next.Send(ctx, out)
		})
	}
}
