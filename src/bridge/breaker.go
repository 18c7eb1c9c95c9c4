// Package bridge connects the coordination layer to the operator's external
// fee-policy service. All calls go through a circuit breaker so a dead or
// slow policy endpoint degrades the bridge instead of stalling the protocol
// loops.
package bridge

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	// Closed passes calls through and counts consecutive failures.
	Closed BreakerState = iota
	// Open rejects calls until the cooldown elapses.
	Open
	// HalfOpen lets probe calls through; it closes again only after a run
	// of consecutive successes, so one lucky probe against a flapping
	// endpoint does not reopen the floodgates.
	HalfOpen
)

// String implements the Stringer interface for BreakerState.
func (s BreakerState) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// Breaker is a consecutive-failure circuit breaker with hysteresis on the
// close side.
type Breaker struct {
	mu sync.Mutex

	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time

	failureThreshold int
	successThreshold int
	cooldown         time.Duration
}

// NewBreaker creates a Breaker in the Closed state.
func NewBreaker(failureThreshold, successThreshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		state:            Closed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		cooldown:         cooldown,
	}
}

// Allow reports whether a call may proceed, transitioning Open to HalfOpen
// when the cooldown has elapsed.
func (b *Breaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if now.Sub(b.openedAt) >= b.cooldown {
			b.state = HalfOpen
			b.successes = 0
			return true
		}
		return false
	}
	return false
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures = 0
	case HalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = Closed
			b.failures = 0
			b.successes = 0
		}
	}
}

// Failure records a failed call.
func (b *Breaker) Failure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.state = Open
			b.openedAt = now
		}
	case HalfOpen:
		b.state = Open
		b.openedAt = now
		b.successes = 0
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}
