package executor

import (
	"github.com/shopspring/decimal"

	"sigex/pkg/exchange"
	"sigex/pkg/signal"
)

// ExecuteRequest describes one order to execute. Zero-valued optional
// fields fall back to the configured trade defaults.
type ExecuteRequest struct {
	Symbol string
	Action signal.Action

	// Order style; MARKET when empty. LIMIT requires Price.
	OrderType   exchange.OrderType
	Price       decimal.Decimal
	TimeInForce exchange.TimeInForce

	// Explicit base-asset quantity. When zero the quantity is derived from
	// the margin budget, leverage, and price.
	Quantity decimal.Decimal

	// Overrides for the configured trade defaults.
	MarginUSDT   decimal.Decimal
	Leverage     int
	PositionSide exchange.PositionSide

	AlertID       string
	ClientOrderID string

	// Raw alert payload, used to derive a deterministic client order id
	// when the alert carries no id of its own.
	Payload map[string]any
}

// RequestFromSignal maps a parsed alert onto an ExecuteRequest.
func RequestFromSignal(sig signal.TradeSignal) ExecuteRequest {
	return ExecuteRequest{
		Symbol:       sig.Symbol,
		Action:       sig.Action,
		OrderType:    exchange.OrderType(sig.OrderType),
		Price:        sig.Price,
		TimeInForce:  exchange.TimeInForce(sig.TimeInForce),
		Quantity:     sig.Quantity,
		MarginUSDT:   sig.MarginUSDT,
		Leverage:     sig.Leverage,
		PositionSide: exchange.PositionSide(sig.PositionSide),
		AlertID:      sig.AlertID,
		Payload:      sig.Raw,
	}
}

// ExecutedOrder is the settled outcome of one execution attempt.
type ExecutedOrder struct {
	Request       exchange.OrderRequest
	OrderID       string
	ClientOrderID string
	Status        string
	Quantity      decimal.Decimal
	Price         decimal.Decimal // price the quantity was sized against
	Leverage      int
	Duplicate     bool
	DryRun        bool
	Response      *exchange.OrderResult
}
