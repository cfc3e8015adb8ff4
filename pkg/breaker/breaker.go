// Package breaker implements per-service circuit breakers that gate
// fan-out to external discovery and AI services.
package breaker

import (
	"sync"
	"time"
)

// State is the breaker state machine position.
type State int

// Breaker states.
const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the lowercase state name used in audit payloads.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// Config holds per-breaker thresholds and timeouts.
type Config struct {
	// FailureThreshold is the number of consecutive failures in the
	// closed state that opens the breaker.
	FailureThreshold int `yaml:"failure_threshold"`

	// SuccessThreshold is the number of consecutive successes in the
	// half-open state that closes the breaker.
	SuccessThreshold int `yaml:"success_threshold"`

	// OpenTimeout is how long the breaker stays open before the next
	// admission check moves it to half-open. The transition is lazy;
	// there is no timer.
	OpenTimeout time.Duration `yaml:"open_timeout"`

	// ResetTimeout: in the closed state, a success occurring this long
	// after the last failure resets the failure count.
	ResetTimeout time.Duration `yaml:"reset_timeout"`

	// HalfOpenMaxRequests caps trial admissions per half-open episode.
	HalfOpenMaxRequests int `yaml:"half_open_max_requests"`
}

// DefaultConfig returns the configuration applied to services without
// an entry in the breaker table.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		OpenTimeout:         60 * time.Second,
		ResetTimeout:        120 * time.Second,
		HalfOpenMaxRequests: 3,
	}
}

// StateChangeFunc observes breaker transitions. Called outside the
// breaker lock is not guaranteed; keep implementations non-blocking.
type StateChangeFunc func(name string, from, to State)

// CircuitBreaker tracks the health of one named external service.
// All transitions are serialized by an internal mutex; given a fixed
// config and clock, the state is a pure function of the recorded
// success/failure sequence.
type CircuitBreaker struct {
	name string
	cfg  Config

	mu                   sync.Mutex
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	lastFailureAt        time.Time
	openedAt             time.Time
	halfOpenAdmitted     int

	now           func() time.Time
	onStateChange StateChangeFunc
}

// New creates a breaker for the named service.
func New(name string, cfg Config) *CircuitBreaker {
	return &CircuitBreaker{
		name:  name,
		cfg:   cfg,
		state: StateClosed,
		now:   time.Now,
	}
}

// Name returns the service name this breaker guards.
func (b *CircuitBreaker) Name() string { return b.name }

// OnStateChange registers a transition observer.
func (b *CircuitBreaker) OnStateChange(fn StateChangeFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// State returns the current state, applying the lazy open→half-open
// transition if the open timeout has elapsed.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked()
	return b.state
}

// CanAdmit reports whether a request may be sent to the service. In
// the half-open state an admission reserves one of the limited trial
// slots, so callers must follow every admitted call with exactly one
// RecordSuccess or RecordFailure.
func (b *CircuitBreaker) CanAdmit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		return false
	case StateHalfOpen:
		if b.halfOpenAdmitted >= b.cfg.HalfOpenMaxRequests {
			return false
		}
		b.halfOpenAdmitted++
		return true
	}
	return false
}

// RecordSuccess records a successful call to the service.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked()

	switch b.state {
	case StateClosed:
		if !b.lastFailureAt.IsZero() && b.now().Sub(b.lastFailureAt) >= b.cfg.ResetTimeout {
			b.consecutiveFailures = 0
		}
	case StateHalfOpen:
		b.consecutiveSuccesses++
		if b.consecutiveSuccesses >= b.cfg.SuccessThreshold {
			b.transitionLocked(StateClosed)
		}
	}
}

// RecordFailure records a failed call to the service.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked()

	b.lastFailureAt = b.now()

	switch b.state {
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		// Any failure during a trial re-opens immediately.
		b.transitionLocked(StateOpen)
	}
}

// maybeHalfOpenLocked applies the lazy OPEN → HALF_OPEN transition.
func (b *CircuitBreaker) maybeHalfOpenLocked() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.OpenTimeout {
		b.transitionLocked(StateHalfOpen)
	}
}

func (b *CircuitBreaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	switch to {
	case StateOpen:
		b.openedAt = b.now()
		b.consecutiveSuccesses = 0
	case StateHalfOpen:
		b.halfOpenAdmitted = 0
		b.consecutiveSuccesses = 0
	case StateClosed:
		b.consecutiveFailures = 0
		b.consecutiveSuccesses = 0
		b.lastFailureAt = time.Time{}
	}

	if b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}
