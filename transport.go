package reqflow

import (
	"context"
	"net/http"
	"time"
)

// Default transport timeouts.
const (
	DefaultRequestTimeout  = 30 * time.Second
	DefaultResourceTimeout = 30 * time.Second
)

// RawResponse is what a [Transport] returns for a completed exchange.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport performs one network exchange. Implementations must be safe for
// concurrent use; a returned error is a transport-level failure (DNS, TLS,
// timeout, reset). A transport may return an [*Error] to classify the
// failure itself; any other error is wrapped as [ErrNetworkFailed].
type Transport interface {
	Send(ctx context.Context, req *BuiltRequest) (*RawResponse, error)
}

// TransportFunc adapts a plain function into a [Transport].
type TransportFunc func(ctx context.Context, req *BuiltRequest) (*RawResponse, error)

// Send calls the underlying function.
func (f TransportFunc) Send(ctx context.Context, req *BuiltRequest) (*RawResponse, error) {
	return f(ctx, req)
}

// TransportConfig holds the timeouts handed to a transport at construction.
type TransportConfig struct {
	// RequestTimeout bounds a single attempt, from sending the request to
	// reading the response.
	RequestTimeout time.Duration
	// ResourceTimeout bounds the whole exchange at the HTTP client level.
	ResourceTimeout time.Duration
}

// DefaultTransportConfig returns 30 second request and resource timeouts.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		RequestTimeout:  DefaultRequestTimeout,
		ResourceTimeout: DefaultResourceTimeout,
	}
}

// Normalize replaces non-positive timeouts with their defaults.
func (c TransportConfig) Normalize() TransportConfig {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}

	if c.ResourceTimeout <= 0 {
		c.ResourceTimeout = DefaultResourceTimeout
	}

	return c
}

// transportError keeps transport-classified errors and wraps everything
// else unmodified as a network failure.
func transportError(err error) error {
	if _, ok := AsError(err); ok {
		return err
	}

	return NetworkFailed(err)
}
