package scan

import (
	"context"
	"sync"
)

// Session is one scan gesture.
type Session struct {
	ID string

	mu    sync.Mutex
	state State
	last  Event

	done   chan struct{}
	result Result
	err    error
}

func newSession(id string) *Session {
	return &Session{
		ID:    id,
		state: Idle,
		last:  Event{SessionID: id, State: Idle},
		done:  make(chan struct{}),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Last returns the most recent event published for the session.
func (s *Session) Last() Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Done is closed when the session ends, including by cancellation.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session ends. A Failed session returns its *Failure;
// a cancelled one returns ErrCancelled.
func (s *Session) Wait(ctx context.Context) (Result, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

func (s *Session) finish(r Result, err error) {
	s.mu.Lock()
	s.result = r
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

func (s *Session) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
