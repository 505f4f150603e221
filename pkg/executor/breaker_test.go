package executor

import (
	"testing"
	"time"
)

func TestCircuitBreakerTripsAndRecovers(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewCircuitBreaker(3, 30*time.Second)
	b.now = func() time.Time { return now }

	if !b.Allow() {
		t.Fatal("new breaker should allow")
	}
	b.RecordFailure()
	b.RecordFailure()
	if !b.Allow() {
		t.Fatal("breaker tripped before the threshold")
	}
	b.RecordFailure()
	if b.Allow() {
		t.Fatal("breaker should be open after the threshold")
	}
	if state, failures := b.State(); state != "open" || failures != 3 {
		t.Fatalf("state = %s/%d, want open/3", state, failures)
	}

	now = now.Add(29 * time.Second)
	if b.Allow() {
		t.Fatal("recovery window has not elapsed")
	}
	now = now.Add(time.Second)
	if !b.Allow() {
		t.Fatal("probe should be allowed after the window")
	}
	if state, _ := b.State(); state != "half-open" {
		t.Fatalf("state = %s, want half-open", state)
	}

	// A failed probe re-opens the breaker for a fresh window.
	b.RecordFailure()
	if b.Allow() {
		t.Fatal("failed probe should re-open the breaker")
	}
	now = now.Add(30 * time.Second)
	if !b.Allow() {
		t.Fatal("second window should allow another probe")
	}

	b.RecordSuccess()
	if state, failures := b.State(); state != "closed" || failures != 0 {
		t.Fatalf("state after success = %s/%d, want closed/0", state, failures)
	}
}

func TestCircuitBreakerSuccessResetsCount(t *testing.T) {
	b := NewCircuitBreaker(3, 30*time.Second)
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	if !b.Allow() {
		t.Fatal("non-consecutive failures must not trip the breaker")
	}
}

func TestCircuitBreakerDefaults(t *testing.T) {
	b := NewCircuitBreaker(0, 0)
	if b.threshold != 3 || b.recovery != 30*time.Second {
		t.Fatalf("defaults = %d/%s, want 3/30s", b.threshold, b.recovery)
	}
}
