package scheduler

import (
	"sync"
	"time"
)

const (
	// DefaultBreakerThreshold is the number of consecutive failed ticks
	// before auto-refresh pauses.
	DefaultBreakerThreshold = 3

	// DefaultBreakerCooldown is how long auto-refresh stays paused before a
	// single probe tick is let through.
	DefaultBreakerCooldown = 2 * time.Minute
)

// CircuitState is derived from the breaker's failure streak and pause window.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	return [...]string{"closed", "open", "half-open"}[s]
}

// CircuitBreaker pauses auto-refresh ticks while the API keeps failing.
// Manual refreshes never consult it.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	pausedTil time.Time // zero while closed
	probing   bool
	now       func() time.Time
}

// NewCircuitBreaker creates a breaker. Non-positive values use the defaults.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether the next tick may run. Once the pause has elapsed
// the tick that gets through is a probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.stateLocked() {
	case CircuitOpen:
		return false
	case CircuitHalfOpen:
		cb.probing = true
	}
	return true
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	cb.failures, cb.pausedTil, cb.probing = 0, time.Time{}, false
	cb.mu.Unlock()
}

// RecordFailure extends the streak. Reaching the threshold, or failing a
// probe, starts a new pause.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	if cb.probing || cb.failures >= cb.threshold {
		cb.pausedTil = cb.now().Add(cb.cooldown)
		cb.probing = false
	}
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

func (cb *CircuitBreaker) stateLocked() CircuitState {
	switch {
	case cb.pausedTil.IsZero():
		return CircuitClosed
	case cb.now().Before(cb.pausedTil):
		return CircuitOpen
	}
	return CircuitHalfOpen
}
