package errors

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state.
type State int

const (
	// StateClosed is the normal state where requests are allowed.
	StateClosed State = iota
	// StateOpen is when the circuit is tripped and requests are blocked.
	StateOpen
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreaker disables a feature after repeated failures within a
// sliding time window. Once open it stays open for the remainder of the
// process, or until Reset is called manually.
type CircuitBreaker struct {
	name        string
	maxFailures int
	window      time.Duration

	mu       sync.RWMutex
	state    State
	failures []time.Time

	now func() time.Time // injectable clock for tests
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithMaxFailures sets the number of failures within the window before opening.
func WithMaxFailures(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.maxFailures = n
	}
}

// WithWindow sets the sliding window over which failures are counted.
func WithWindow(d time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.window = d
	}
}

// WithClock sets the time source. Tests use this to advance the window.
func WithClock(now func() time.Time) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

// NewCircuitBreaker creates a new circuit breaker with the given name.
// Default: 5 failures within 60 seconds.
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:        name,
		maxFailures: 5,
		window:      60 * time.Second,
		state:       StateClosed,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(cb)
	}

	return cb
}

// Name returns the circuit breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Failures returns the failure count within the current window.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.prune()
	return len(cb.failures)
}

// Allow checks if a request should be allowed through.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state == StateClosed
}

// RecordSuccess records a successful request.
// Successes clear accumulated failures but never close an open breaker;
// recovery is manual per the degradation contract.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateClosed {
		cb.failures = cb.failures[:0]
	}
}

// RecordFailure records a failed request. Opens the breaker when the
// failure count within the window reaches the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = append(cb.failures, cb.now())
	cb.prune()

	if len(cb.failures) >= cb.maxFailures {
		cb.state = StateOpen
	}
}

// Reset manually closes the breaker and clears failure history.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = cb.failures[:0]
}

// prune drops failures older than the window. Caller must hold the lock.
func (cb *CircuitBreaker) prune() {
	cutoff := cb.now().Add(-cb.window)
	i := 0
	for ; i < len(cb.failures); i++ {
		if cb.failures[i].After(cutoff) {
			break
		}
	}
	if i > 0 {
		cb.failures = append(cb.failures[:0], cb.failures[i:]...)
	}
}
