package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/byte4ever/reqflow"
)

// Option configures a [Transport].
type Option func(*Transport)

// WithHTTPClient sends through hc instead of a client built from the
// config. A zero hc.Timeout is set to the resource timeout on a copy; hc
// itself is never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(t *Transport) {
		t.hc = hc
	}
}

// WithRateLimit paces sends to r requests per second with the given burst.
// Waiting for a token honours the caller's context.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(t *Transport) {
		if burst < 1 {
			burst = 1
		}

		t.limiter = rate.NewLimiter(r, burst)
	}
}

// WithErrorMapping classifies transport failures instead of leaving them
// all to be wrapped as network failures: timeouts become
// [reqflow.ErrRequestTimeout], DNS and connection-refused failures become
// [reqflow.ErrNetworkUnavailable]. Caller cancellation is never mapped.
func WithErrorMapping() Option {
	return func(t *Transport) {
		t.mapErrors = true
	}
}

// Transport is the [reqflow.Transport] over net/http. It is safe for
// concurrent use; connection reuse is left to the http.Client.
//
// Pattern: Adapter. Bridges net/http and the reqflow pipeline.
type Transport struct {
	hc        *http.Client
	cfg       reqflow.TransportConfig
	limiter   *rate.Limiter
	mapErrors bool
	send      reqflow.Transport
}

var _ reqflow.Transport = (*Transport)(nil)

// NewTransport returns a transport using cfg's timeouts. Non-positive
// timeouts fall back to 30 seconds.
func NewTransport(cfg reqflow.TransportConfig, opts ...Option) *Transport {
	t := &Transport{cfg: cfg.Normalize()}

	for _, opt := range opts {
		opt(t)
	}

	switch {
	case t.hc == nil:
		t.hc = &http.Client{Timeout: t.cfg.ResourceTimeout}
	case t.hc.Timeout == 0:
		hc := *t.hc
		hc.Timeout = t.cfg.ResourceTimeout
		t.hc = &hc
	}

	t.send = reqflow.AttemptTimeout(t.cfg.RequestTimeout)(reqflow.TransportFunc(t.roundTrip))

	return t
}

// NewService wires a [Transport] built from cfg into a [reqflow.Service].
func NewService(cfg reqflow.TransportConfig, topts []Option, sopts ...reqflow.Option) *reqflow.Service {
	return reqflow.NewService(NewTransport(cfg, topts...), sopts...)
}

// Config returns the effective timeouts.
func (t *Transport) Config() reqflow.TransportConfig { return t.cfg }

// Send performs one exchange and reads the whole body.
func (t *Transport) Send(ctx context.Context, req *reqflow.BuiltRequest) (*reqflow.RawResponse, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("httpx: rate limit wait: %w", err)
		}
	}

	resp, err := t.send.Send(ctx, req)
	if err != nil {
		return nil, t.classify(ctx, err)
	}

	return resp, nil
}

func (t *Transport) roundTrip(ctx context.Context, req *reqflow.BuiltRequest) (*reqflow.RawResponse, error) {
	httpReq, err := req.NewHTTPRequest(ctx)
	if err != nil {
		return nil, err //nolint:wrapcheck // already prefixed
	}

	resp, err := t.hc.Do(httpReq)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped as a network failure
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpx: read body: %w", err)
	}

	return &reqflow.RawResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (t *Transport) classify(ctx context.Context, err error) error {
	if !t.mapErrors || ctx.Err() != nil {
		return err
	}

	if reqflow.IsAttemptTimeout(err) || isTimeout(err) {
		return reqflow.NewError(reqflow.ErrRequestTimeout, reqflow.ErrorContext{
			UserMessage:      "The request timed out",
			ErrorDescription: "No response within the request timeout",
			UnderlyingError:  err,
		})
	}

	if isUnavailable(err) {
		return reqflow.NewError(reqflow.ErrNetworkUnavailable, reqflow.ErrorContext{
			UserMessage:      "The network is unavailable",
			ErrorDescription: "The host could not be resolved or reached",
			UnderlyingError:  err,
		})
	}

	return err
}

func isTimeout(err error) bool {
	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}

func isUnavailable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH)
}
