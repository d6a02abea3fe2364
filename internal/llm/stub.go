package llm

import (
	"context"
	"fmt"
	"sync"
)

// Call records one completion request made against a StubClient.
type Call struct {
	System      string
	User        string
	Temperature float64
}

// StubClient is a deterministic in-memory Client for tests. Responses are
// served either from the Respond function or from the Responses queue.
type StubClient struct {
	mu sync.Mutex

	// Respond computes a reply per call. Takes precedence over Responses.
	Respond func(call Call) (string, error)

	// Responses are returned in order; the last one repeats once the queue
	// is exhausted.
	Responses []string

	calls []Call
	next  int
}

// Complete implements Client.
func (s *StubClient) Complete(_ context.Context, system, user string, temperature float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := Call{System: system, User: user, Temperature: temperature}
	s.calls = append(s.calls, call)

	if s.Respond != nil {
		return s.Respond(call)
	}
	if len(s.Responses) == 0 {
		return "", fmt.Errorf("stub llm has no responses configured")
	}
	i := s.next
	if i >= len(s.Responses) {
		i = len(s.Responses) - 1
	}
	s.next++
	return s.Responses[i], nil
}

// Calls returns a copy of all recorded calls.
func (s *StubClient) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}
