package signal

import "fmt"

// ValidationError reports an alert payload that cannot be turned into a
// TradeSignal.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
