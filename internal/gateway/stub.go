package gateway

import (
	"context"
	"sync"
)

// StubGateway is a scriptable in-memory Gateway for tests. Responses are
// returned in order; when the script runs out, the last entry repeats.
type StubGateway struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
	requests  []Request
}

// NewStubGateway returns a stub that replies with the given responses.
func NewStubGateway(responses ...string) *StubGateway {
	return &StubGateway{responses: responses}
}

// NewFailingGateway returns a stub whose every call fails with err.
func NewFailingGateway(err error) *StubGateway {
	return &StubGateway{err: err}
}

// Generate replays the scripted responses.
func (s *StubGateway) Generate(_ context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return &Response{Content: "{}", Model: req.Model}, nil
	}
	idx := s.calls - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return &Response{
		Content: s.responses[idx],
		Model:   req.Model,
		Usage:   Usage{PromptTokens: 100, CompletionTokens: 50},
	}, nil
}

// Calls returns how many times Generate was invoked.
func (s *StubGateway) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Requests returns a copy of all recorded requests.
func (s *StubGateway) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}
