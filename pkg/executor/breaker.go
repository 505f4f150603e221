package executor

import (
	"sync"
	"time"
)

// CircuitBreaker trips after a run of consecutive submission failures and
// blocks further submissions until the recovery window has elapsed. The
// first call after the window acts as a probe: success closes the breaker,
// failure re-opens it for another window.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	recovery  time.Duration
	failures  int
	openedAt  time.Time
	now       func() time.Time
}

// NewCircuitBreaker constructs a breaker. Non-positive arguments fall back
// to a threshold of 3 failures and a 30 second recovery window.
func NewCircuitBreaker(threshold int, recovery time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if recovery <= 0 {
		recovery = 30 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, recovery: recovery, now: time.Now}
}

// Allow reports whether a submission may proceed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.threshold {
		return true
	}
	return b.now().Sub(b.openedAt) >= b.recovery
}

// RecordSuccess closes the breaker.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// RecordFailure counts a failed submission, opening (or re-opening) the
// breaker when the threshold is reached.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.openedAt = b.now()
	}
}

// State reports the breaker position and the consecutive failure count.
func (b *CircuitBreaker) State() (state string, failures int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.failures < b.threshold:
		return "closed", b.failures
	case b.now().Sub(b.openedAt) >= b.recovery:
		return "half-open", b.failures
	default:
		return "open", b.failures
	}
}
