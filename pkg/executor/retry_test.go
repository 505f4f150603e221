package executor

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"sigex/pkg/exchange/bingx"
)

func TestRetryPolicySucceedsAfterTransient(t *testing.T) {
	p := NewRetryPolicy(3, 2.0, 30*time.Second)
	p.jitter = func() float64 { return 0 }
	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	attempts := 0
	err := p.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return &bingx.APIError{Code: "429", Msg: "rate limit exceeded", HTTPStatus: 429}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if len(slept) != 2 || slept[0] != 2*time.Second || slept[1] != 4*time.Second {
		t.Fatalf("backoffs = %v, want [2s 4s]", slept)
	}
}

func TestRetryPolicyExhaustsBudget(t *testing.T) {
	p := NewRetryPolicy(2, 2.0, 30*time.Second)
	p.jitter = func() float64 { return 0 }
	p.sleep = func(context.Context, time.Duration) error { return nil }

	attempts := 0
	target := &bingx.APIError{Code: "429", Msg: "frequency exceeded"}
	err := p.Do(context.Background(), func() error {
		attempts++
		return target
	})
	var apiErr *bingx.APIError
	if !errors.As(err, &apiErr) || apiErr != target {
		t.Fatalf("got %v, want the final attempt error", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3 (initial + 2 retries)", attempts)
	}
}

func TestRetryPolicyStopsOnTerminalError(t *testing.T) {
	p := NewRetryPolicy(3, 2.0, 30*time.Second)
	p.sleep = func(context.Context, time.Duration) error {
		t.Fatal("terminal error must not sleep")
		return nil
	}
	attempts := 0
	err := p.Do(context.Background(), func() error {
		attempts++
		return validationErrorf("bad request")
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestRetryPolicyBackoffCap(t *testing.T) {
	p := NewRetryPolicy(10, 2.0, 5*time.Second)
	p.jitter = func() float64 { return 0.5 }
	if got := p.backoff(0); got != time.Duration(2.5*float64(time.Second)) {
		t.Fatalf("backoff(0) = %s", got)
	}
	if got := p.backoff(5); got != 5*time.Second {
		t.Fatalf("backoff(5) = %s, want the 5s cap", got)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context_canceled", context.Canceled, false},
		{"deadline_exceeded", context.DeadlineExceeded, false},
		{"validation", validationErrorf("bad quantity"), false},
		{"missing_endpoint", &bingx.APIError{Code: "100400", Msg: "this api is not exist"}, false},
		{"bad_params", &bingx.APIError{Code: "100400", Msg: "risk limit exceeded"}, false},
		{"rate_limited", &bingx.APIError{Code: "429", Msg: "rate limit exceeded", HTTPStatus: 429}, true},
		{"server_error", &bingx.APIError{Code: "HTTP 500", Msg: "internal error", HTTPStatus: 500}, true},
		{"net_timeout", &net.DNSError{IsTimeout: true}, true},
		{"op_error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, true},
		{"plain_error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := isRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: isRetryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}
