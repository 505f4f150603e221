package executor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestThrottleSpacesPerSymbol(t *testing.T) {
	now := time.Unix(1000, 0)
	var waits []time.Duration
	th := NewThrottle(time.Second)
	th.now = func() time.Time { return now }
	th.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	ctx := context.Background()

	if err := th.Wait(ctx, "BTC-USDT"); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if len(waits) != 0 {
		t.Fatalf("first dispatch slept: %v", waits)
	}

	// Same instant, same symbol: queued one interval out.
	if err := th.Wait(ctx, "BTC-USDT"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if len(waits) != 1 || waits[0] != time.Second {
		t.Fatalf("second dispatch waits = %v, want [1s]", waits)
	}

	// A third immediate call reserves the slot after the second.
	if err := th.Wait(ctx, "BTC-USDT"); err != nil {
		t.Fatalf("third wait: %v", err)
	}
	if len(waits) != 2 || waits[1] != 2*time.Second {
		t.Fatalf("third dispatch waits = %v, want 2s tail", waits)
	}

	// Other symbols never queue behind it.
	if err := th.Wait(ctx, "ETH-USDT"); err != nil {
		t.Fatalf("other symbol: %v", err)
	}
	if len(waits) != 2 {
		t.Fatalf("different symbol slept: %v", waits)
	}

	// Once the interval has passed there is nothing to wait for.
	now = now.Add(5 * time.Second)
	if err := th.Wait(ctx, "BTC-USDT"); err != nil {
		t.Fatalf("idle wait: %v", err)
	}
	if len(waits) != 2 {
		t.Fatalf("idle symbol slept: %v", waits)
	}
}

func TestThrottleHonoursContext(t *testing.T) {
	th := NewThrottle(time.Minute)
	ctx := context.Background()
	if err := th.Wait(ctx, "BTC-USDT"); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := th.Wait(cancelled, "BTC-USDT"); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestThrottleDefaultInterval(t *testing.T) {
	th := NewThrottle(0)
	if th.interval != time.Second {
		t.Fatalf("default interval = %s, want 1s", th.interval)
	}
}
