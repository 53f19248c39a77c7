package reqflow_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/byte4ever/reqflow"
)

// instantClock fires every timer immediately and records requested delays.
type instantClock struct {
	mu     sync.Mutex
	now    time.Time
	delays []time.Duration
}

func newInstantClock() *instantClock {
	return &instantClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *instantClock) Now() time.Time { return c.now }

func (c *instantClock) Since(t time.Time) time.Duration { return c.now.Sub(t) }

func (c *instantClock) NewTimer(d time.Duration) reqflow.Timer {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- c.now

	return firedTimer{c: ch}
}

func (c *instantClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]time.Duration(nil), c.delays...)
}

type firedTimer struct {
	c chan time.Time
}

func (t firedTimer) C() <-chan time.Time { return t.c }
func (t firedTimer) Stop() bool          { return false }

// scriptedTransport replays one step per call; the last step repeats.
type scriptedTransport struct {
	mu       sync.Mutex
	steps    []func(req *reqflow.BuiltRequest) (*reqflow.RawResponse, error)
	requests []*reqflow.BuiltRequest
	calls    atomic.Int32
}

func script(steps ...func(req *reqflow.BuiltRequest) (*reqflow.RawResponse, error)) *scriptedTransport {
	return &scriptedTransport{steps: steps}
}

func (s *scriptedTransport) Send(_ context.Context, req *reqflow.BuiltRequest) (*reqflow.RawResponse, error) {
	n := int(s.calls.Add(1)) - 1

	s.mu.Lock()
	s.requests = append(s.requests, req.Clone())
	s.mu.Unlock()

	step := s.steps[min(n, len(s.steps)-1)]

	return step(req)
}

func (s *scriptedTransport) Calls() int { return int(s.calls.Load()) }

func (s *scriptedTransport) Requests() []*reqflow.BuiltRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*reqflow.BuiltRequest(nil), s.requests...)
}

func respond(status int, body string) func(*reqflow.BuiltRequest) (*reqflow.RawResponse, error) {
	return func(*reqflow.BuiltRequest) (*reqflow.RawResponse, error) {
		return &reqflow.RawResponse{StatusCode: status, Body: []byte(body)}, nil
	}
}

func fail(err error) func(*reqflow.BuiltRequest) (*reqflow.RawResponse, error) {
	return func(*reqflow.BuiltRequest) (*reqflow.RawResponse, error) {
		return nil, err
	}
}

func usersDescriptor(retry *reqflow.RetryPolicy) reqflow.Descriptor {
	return reqflow.Descriptor{
		BaseURL: "https://api.example.com",
		Path:    "/users/1",
		Method:  reqflow.MethodGet,
		Retry:   retry,
	}
}

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
