package executor

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"time"

	"sigex/pkg/exchange/bingx"
)

// RetryPolicy runs submissions with exponential backoff. Only exchange and
// transport failures are retried; validation errors and terminal exchange
// rejections surface immediately.
type RetryPolicy struct {
	MaxRetries int
	Base       float64
	Cap        time.Duration

	jitter func() float64
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy constructs a policy with the given budget; non-positive
// arguments fall back to 3 retries, base 2.0, and a 30 second cap.
func NewRetryPolicy(maxRetries int, base float64, cap time.Duration) RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 3
	}
	if base <= 1 {
		base = 2.0
	}
	if cap <= 0 {
		cap = 30 * time.Second
	}
	return RetryPolicy{
		MaxRetries: maxRetries,
		Base:       base,
		Cap:        cap,
		jitter:     rand.Float64,
		sleep:      sleepContext,
	}
}

// Do executes fn until it succeeds, fails terminally, or exhausts the
// retry budget.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) || attempt >= p.MaxRetries {
			return err
		}
		if sleepErr := p.sleep(ctx, p.backoff(attempt)); sleepErr != nil {
			return sleepErr
		}
	}
}

// backoff grows base^(attempt+1) seconds plus jitter, capped.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	seconds := math.Pow(p.Base, float64(attempt+1)) + p.jitter()
	d := time.Duration(seconds * float64(time.Second))
	if d > p.Cap {
		return p.Cap
	}
	return d
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return false
	}

	var apiErr *bingx.APIError
	if errors.As(err, &apiErr) {
		if bingx.IsMissingEndpoint(err) {
			return false
		}
		// Parameter-level rejections never succeed on resubmission.
		if apiErr.Code == "100400" {
			return false
		}
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
