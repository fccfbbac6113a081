package resilience

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker's current position.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// CircuitBreaker guards the wrapped CLI: after FailureThreshold
// consecutive failures it opens and calls are skipped until
// ResetTimeout elapses, at which point a single probe call is let
// through (half-open). A probe success closes the breaker; a probe
// failure reopens it.
//
// One breaker is shared across all operation ids of an executor, so a
// failing operation trips the breaker for its siblings too. That
// matches the observed behavior of the system this replaces; scope it
// per operation by constructing one executor per operation id.
type CircuitBreaker struct {
	failureThreshold int
	resetTimeout     time.Duration

	mu                  sync.Mutex
	state               BreakerState
	consecutiveFailures int
	lastStateChange     time.Time

	onChange func(from, to BreakerState)
	now      func() time.Time
}

// NewCircuitBreaker creates a closed breaker. onChange may be nil; it is
// invoked synchronously on every state transition.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration, onChange func(from, to BreakerState)) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = time.Minute
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            BreakerClosed,
		lastStateChange:  time.Now(),
		onChange:         onChange,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed, transitioning open to
// half-open once the reset timeout has elapsed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if b.now().Sub(b.lastStateChange) >= b.resetTimeout {
			b.transition(BreakerHalfOpen)
			return true
		}
		return false
	}
	return true
}

// RecordSuccess resets the failure count and closes a half-open breaker.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	if b.state != BreakerClosed {
		b.transition(BreakerClosed)
	}
}

// RecordFailure increments the failure count, reopening a half-open
// breaker immediately and opening a closed one at the threshold.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	switch b.state {
	case BreakerHalfOpen:
		b.transition(BreakerOpen)
	case BreakerClosed:
		if b.consecutiveFailures >= b.failureThreshold {
			b.transition(BreakerOpen)
		}
	}
}

// State returns the current breaker state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current consecutive failure count.
func (b *CircuitBreaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}

// transition must be called with the mutex held.
func (b *CircuitBreaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	b.lastStateChange = b.now()
	if b.onChange != nil {
		b.onChange(from, to)
	}
}
