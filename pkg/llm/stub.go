package llm

import (
	"context"
	"fmt"
	"sync"
)

// Stub is a deterministic Model test double. Responses are selected by
// Request.System (the role's system prompt acts as a stable key) with a
// per-system call counter, falling back to DefaultResponse. It records
// every request it receives for assertions.
type Stub struct {
	mu sync.Mutex

	// Responses maps system prompt -> ordered responses returned on
	// successive calls for that system prompt. The last entry repeats
	// once exhausted.
	Responses map[string][]string

	// DefaultResponse is returned when System has no configured responses.
	DefaultResponse string

	// Err, if set, is returned (and Responses ignored) on every call.
	Err error

	calls map[string]int
	Seen  []Request
}

// NewStub creates an empty Stub ready for configuration.
func NewStub() *Stub {
	return &Stub{
		Responses: make(map[string][]string),
		calls:     make(map[string]int),
	}
}

// Generate implements Model.
func (s *Stub) Generate(_ context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Seen = append(s.Seen, req)

	if s.Err != nil {
		return "", s.Err
	}

	seq, ok := s.Responses[req.System]
	if !ok || len(seq) == 0 {
		return s.DefaultResponse, nil
	}

	idx := s.calls[req.System]
	s.calls[req.System]++
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	return seq[idx], nil
}

// CallCount returns how many times Generate was called with the given
// system prompt.
func (s *Stub) CallCount(system string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[system]
}

// String implements fmt.Stringer for readable test failure output.
func (s *Stub) String() string {
	return fmt.Sprintf("llm.Stub{calls=%d}", len(s.Seen))
}
