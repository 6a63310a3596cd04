package resilience

import (
	"fmt"
	"sync"
	"time"

	"github.com/neo1202/cf-ai-voice-email/internal/observability"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	// StateClosed means the circuit is closed and requests flow normally
	StateClosed CircuitState = iota
	// StateOpen means the circuit is open and requests fail fast
	StateOpen
	// StateHalfOpen means the circuit is testing if the service recovered
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the circuit breaker rejects a call
type ErrCircuitOpen struct {
	Name string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker %s is open", e.Name)
}

// CircuitBreaker protects calls to an upstream service. After maxFailures
// consecutive failures the circuit opens and calls fail fast until
// resetTimeout elapses, at which point a limited number of probe calls
// are let through.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu           sync.Mutex
	state        CircuitState
	failures     int
	lastFailure  time.Time
	halfOpenHits int
}

// NewCircuitBreaker creates a circuit breaker for the named service
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		halfOpenMax:  3,
		state:        StateClosed,
	}
	observability.UpdateCircuitBreakerState(name, int(StateClosed))
	return cb
}

// Call executes fn if the circuit allows it
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.allowRequest() {
		return &ErrCircuitOpen{Name: cb.name}
	}

	err := fn()
	cb.recordResult(err)
	return err
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.lastFailure) >= cb.resetTimeout {
			cb.setState(StateHalfOpen)
			cb.halfOpenHits = 0
			return true
		}
		return false
	case StateHalfOpen:
		if cb.halfOpenHits < cb.halfOpenMax {
			cb.halfOpenHits++
			return true
		}
		return false
	}
	return false
}

func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		if cb.state == StateHalfOpen {
			cb.setState(StateClosed)
		}
		cb.failures = 0
		return
	}

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		cb.setState(StateOpen)
	}
}

// setState transitions the circuit; callers must hold cb.mu
func (cb *CircuitBreaker) setState(state CircuitState) {
	if cb.state == state {
		return
	}
	cb.state = state
	observability.UpdateCircuitBreakerState(cb.name, int(state))
}

// GetState returns the current circuit state
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the circuit back to closed
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
	cb.failures = 0
	cb.halfOpenHits = 0
}
