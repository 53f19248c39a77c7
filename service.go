package reqflow

import (
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/byte4ever/reqflow"

// Executor runs a descriptor and decodes the result into out, which must be
// a non-nil pointer.
type Executor interface {
	ExecuteInto(ctx context.Context, d Descriptor, out any) error
}

var _ Executor = (*Service)(nil)

// Service is the pipeline orchestrator. It holds no per-call state and is
// safe for concurrent use; calls share only the transport.
type Service struct {
	transport       Transport
	builder         RequestBuilder
	decoder         Decoder
	clock           Clock
	hooks           Hooks
	logger          zerolog.Logger
	tracer          trace.Tracer
	requestIDHeader string
	newRequestID    func() string
}

// Option configures a [Service].
type Option func(*serviceSetup)

type serviceSetup struct {
	svc         *Service
	middlewares []Middleware
}

// WithBuilder replaces the [RequestBuilder].
func WithBuilder(b RequestBuilder) Option {
	return func(s *serviceSetup) {
		s.svc.builder = b
	}
}

// WithDecoder replaces the response [Decoder].
func WithDecoder(d Decoder) Option {
	return func(s *serviceSetup) {
		s.svc.decoder = d
	}
}

// WithClock sets the clock used for retry delays.
func WithClock(c Clock) Option {
	return func(s *serviceSetup) {
		s.svc.clock = c
	}
}

// WithHooks sets lifecycle callbacks.
func WithHooks(h Hooks) Option {
	return func(s *serviceSetup) {
		s.svc.hooks = h
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *serviceSetup) {
		s.svc.logger = l
	}
}

// WithTracerProvider sets the OpenTelemetry provider used for call spans.
// The default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *serviceSetup) {
		s.svc.tracer = tp.Tracer(instrumentationName)
	}
}

// WithMiddleware decorates the transport. Middlewares run on every attempt.
func WithMiddleware(mw ...Middleware) Option {
	return func(s *serviceSetup) {
		s.middlewares = append(s.middlewares, mw...)
	}
}

// WithDefaultHeaders adds headers to every request that does not set them.
func WithDefaultHeaders(headers map[string]string) Option {
	return WithMiddleware(DefaultHeaders(headers))
}

// WithRequestID stamps each call with a fresh UUID in header. All attempts
// of one call carry the same ID; a descriptor that already sets the header
// keeps its own value.
func WithRequestID(header string) Option {
	return func(s *serviceSetup) {
		s.svc.requestIDHeader = header
	}
}

// NewService returns a service sending through transport. A nil transport
// is a programming error and panics.
func NewService(transport Transport, opts ...Option) *Service {
	if transport == nil {
		panic("reqflow: nil transport")
	}

	setup := serviceSetup{
		svc: &Service{
			builder:      NewBuilder(),
			decoder:      JSONCodec{},
			clock:        RealClock{},
			logger:       zerolog.Nop(),
			tracer:       otel.Tracer(instrumentationName),
			newRequestID: uuid.NewString,
		},
	}

	for _, opt := range opts {
		opt(&setup)
	}

	svc := setup.svc
	svc.transport = Chain(setup.middlewares...)(transport)

	return svc
}

// Execute runs d through s and decodes a success body into a T.
//
// The call makes at most 1+MaxRetries attempts. Build failures are returned
// at once; other failures are retried while the policy allows, and an
// exhausted budget yields [ErrMaxRetriesExceeded] wrapping the last error.
func Execute[T any](ctx context.Context, s *Service, d Descriptor) (T, error) {
	var zero T

	v, err := s.execute(ctx, d, func() any { return new(T) })
	if err != nil {
		return zero, err
	}

	return *(v.(*T)), nil
}

// ExecuteInto is the non-generic form of [Execute]. Each attempt decodes
// into a fresh value; out is only written on success.
func (s *Service) ExecuteInto(ctx context.Context, d Descriptor, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return NewError(ErrUnexpected, ErrorContext{
			UserMessage:      GenericContext().UserMessage,
			ErrorDescription: "ExecuteInto requires a non-nil pointer",
		})
	}

	elem := rv.Elem().Type()

	v, err := s.execute(ctx, d, func() any { return reflect.New(elem).Interface() })
	if err != nil {
		return err
	}

	rv.Elem().Set(reflect.ValueOf(v).Elem())

	return nil
}

func (s *Service) execute(ctx context.Context, d Descriptor, newTarget func() any) (any, error) {
	if s.requestIDHeader != "" {
		d = d.WithHeaders(map[string]string{s.requestIDHeader: s.newRequestID()})
	}

	policy := d.RetryPolicy()

	ctx, span := s.tracer.Start(ctx, "reqflow.execute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", string(d.Method)),
			attribute.String("reqflow.base_url", d.BaseURL),
			attribute.String("reqflow.path", d.Path),
			attribute.Int("reqflow.max_retries", policy.MaxRetries),
		),
	)
	defer span.End()

	log := s.logger.With().
		Str("method", string(d.Method)).
		Str("base_url", d.BaseURL).
		Str("path", d.Path).
		Logger()

	hooks := s.hooks
	hooks.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn().
			Err(err).
			Str("kind", string(KindOf(err))).
			Int("retry", attempt).
			Dur("delay", delay).
			Msg("attempt failed, retrying")
		span.AddEvent("retry", trace.WithAttributes(
			attribute.Int("reqflow.retry", attempt),
			attribute.String("reqflow.error_kind", string(KindOf(err))),
		))
		s.hooks.emitRetry(attempt, err, delay)
	}

	var (
		attempts int
		status   int
		start    = s.clock.Now()
	)

	v, err := doRetry(ctx, policy, s.clock, &hooks,
		func(ctx context.Context, attempt int) (any, error) {
			attempts = attempt + 1
			target := newTarget()

			code, err := s.attempt(ctx, d, attempt, target, &log, &hooks)
			status = code
			if err != nil {
				return nil, err
			}

			return target, nil
		},
	)

	elapsed := s.clock.Since(start)

	span.SetAttributes(attribute.Int("reqflow.attempts", attempts))
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().
			Err(err).
			Str("kind", string(KindOf(err))).
			Int("attempts", attempts).
			Dur("elapsed", elapsed).
			Msg("request failed")
		s.hooks.emitFailure(attempts, err)

		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	log.Debug().
		Int("status", status).
		Int("attempts", attempts).
		Dur("elapsed", elapsed).
		Msg("request succeeded")
	s.hooks.emitSuccess(attempts, status)

	return v, nil
}

// attempt performs one build-send-classify-decode cycle and returns the
// HTTP status seen, if any.
func (s *Service) attempt(
	ctx context.Context,
	d Descriptor,
	attempt int,
	target any,
	log *zerolog.Logger,
	hooks *Hooks,
) (int, error) {
	req, err := s.builder.Build(d)
	if err != nil {
		if _, ok := AsError(err); ok {
			return 0, err
		}

		return 0, serializationError(err)
	}

	hooks.emitAttempt(attempt, req)
	log.Debug().
		Int("attempt", attempt).
		Str("url", req.URL.String()).
		Msg("sending request")

	resp, err := s.transport.Send(ctx, req)
	if err != nil {
		return 0, transportError(err)
	}

	if resp == nil || resp.StatusCode <= 0 {
		return 0, invalidResponseError()
	}

	return resp.StatusCode, classifyAndDecode(resp, s.decoder, target)
}
