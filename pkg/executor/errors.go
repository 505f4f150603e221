package executor

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is returned without touching the network while the circuit
// breaker is open.
var ErrCircuitOpen = errors.New("executor: circuit breaker open")

// ValidationError marks input that can never succeed: bad symbols, sides,
// quantities, or sizes below exchange minimums. It is never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ExecutionError is a terminal submission failure: retries exhausted, the
// breaker tripped mid-flight, or a close found nothing to close. It carries
// the underlying cause.
type ExecutionError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("executor: %s %s failed", e.Op, e.Symbol)
	}
	return fmt.Sprintf("executor: %s %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
