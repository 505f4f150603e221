package exchange

import (
	"context"

	"github.com/shopspring/decimal"
)

// Client is the exchange surface consumed by the order executor. It is
// deliberately narrow: exactly the calls the execution pipeline makes.
type Client interface {
	// Market data.
	MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	SymbolFilters(ctx context.Context, symbol string) (SymbolFilters, error)

	// Per-symbol account settings.
	SetMarginMode(ctx context.Context, symbol string, mode MarginMode, marginCoin string) error
	SetLeverage(ctx context.Context, symbol string, params SetLeverageParams) error

	// Trading.
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	OpenPositions(ctx context.Context, symbol string) ([]Position, error)
}

// PositionModeClient is an optional capability for venues that expose the
// account-wide position mode (hedge vs one-way). The executor type-asserts
// for it and skips position-mode synchronisation when absent.
type PositionModeClient interface {
	PositionMode(ctx context.Context) (hedge bool, err error)
	SetPositionMode(ctx context.Context, hedge bool) error
}

// AccountClient is an optional capability for balance inspection, used by
// monitoring loops rather than the execution path.
type AccountClient interface {
	Balance(ctx context.Context) (*Balance, error)
}

// OrderCanceler is an optional capability for cancelling resting orders.
type OrderCanceler interface {
	CancelOrder(ctx context.Context, symbol, orderID, clientOrderID string) error
}
