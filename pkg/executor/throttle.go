package executor

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a minimum interval between dispatches per symbol.
// Distinct symbols never wait on each other. Waiters reserve their slot
// under the lock, so concurrent submissions for one symbol space out
// sequentially instead of stampeding when the interval elapses.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewThrottle constructs a throttle; a non-positive interval falls back to
// one second.
func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = time.Second
	}
	return &Throttle{
		interval: interval,
		last:     make(map[string]time.Time),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Wait blocks until the symbol's next dispatch slot, honouring ctx.
func (t *Throttle) Wait(ctx context.Context, symbol string) error {
	t.mu.Lock()
	now := t.now()
	slot := now
	if last, ok := t.last[symbol]; ok {
		if next := last.Add(t.interval); next.After(now) {
			slot = next
		}
	}
	t.last[symbol] = slot
	wait := slot.Sub(now)
	t.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	return t.sleep(ctx, wait)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
