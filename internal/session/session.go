package session

import (
	"context"
	"sync"
	"time"
)

// Session holds the live conversation state for one connected client.
// At most one turn is in flight at a time; the turn's context is cancelled
// when the history is cleared mid-turn or the connection drops.
type Session struct {
	ID string

	mu         sync.Mutex
	history    []Message
	turnActive bool
	turnCancel context.CancelFunc
	turnDone   chan struct{}
}

// BeginTurn marks a turn as in flight and returns a context that is
// cancelled if the conversation is cleared or abandoned before the turn
// completes. Returns ErrTurnActive if a turn is already running.
func (s *Session) BeginTurn(parent context.Context) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.turnActive {
		return nil, ErrTurnActive
	}

	ctx, cancel := context.WithCancel(parent)
	s.turnActive = true
	s.turnCancel = cancel
	s.turnDone = make(chan struct{})
	return ctx, nil
}

// EndTurn marks the in-flight turn as finished. Only the turn's own
// runner calls this; everyone else cancels and waits via Abort or Clear.
func (s *Session) EndTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.turnCancel != nil {
		s.turnCancel()
		s.turnCancel = nil
	}
	if s.turnDone != nil {
		close(s.turnDone)
		s.turnDone = nil
	}
	s.turnActive = false
}

// Abort cancels the in-flight turn, if any, and waits for its runner to
// unwind. Used when the connection drops so an abandoned turn can never
// commit after a reconnect has taken over the session.
func (s *Session) Abort() {
	s.mu.Lock()
	active := s.turnActive
	cancel := s.turnCancel
	done := s.turnDone
	s.mu.Unlock()

	if !active {
		return
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	}
}

// TurnActive reports whether a turn is currently being processed
func (s *Session) TurnActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnActive
}

// History returns a copy of the conversation history
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Append adds messages to the in-memory history
func (s *Session) Append(messages ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, messages...)
}

// abortTurnAndReset cancels the in-flight turn, if any, and resets the
// history. The turn slot stays occupied until the cancelled runner calls
// EndTurn, so a new turn cannot overlap with the unwinding one.
func (s *Session) abortTurnAndReset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.turnCancel != nil {
		s.turnCancel()
	}
	s.history = nil
}
