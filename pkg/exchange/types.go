package exchange

import "github.com/shopspring/decimal"

// Core trading domain types shared across exchange implementations. Decimal
// fields stay in exact decimal form end to end; binary floats never carry
// money, price, or quantity values.

// Side represents order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PositionSide identifies the position bucket an order targets. BOTH is the
// single net position of one-way mode.
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
	PositionBoth  PositionSide = "BOTH"
)

// OrderType is the execution style of an order.
type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
)

// MarginMode selects isolated or shared collateral for a symbol.
type MarginMode string

const (
	MarginIsolated MarginMode = "ISOLATED"
	MarginCrossed  MarginMode = "CROSSED"
)

// TimeInForce constrains how long a limit order may rest.
type TimeInForce string

const (
	TIFGoodTilCancel   TimeInForce = "GTC"
	TIFImmediateOrKill TimeInForce = "IOC"
	TIFFillOrKill      TimeInForce = "FOK"
)

// OrderRequest describes a normalized order. It is constructed once per
// execution attempt and never mutated after signing.
type OrderRequest struct {
	Symbol       string
	Side         Side
	Type         OrderType
	PositionSide PositionSide
	Quantity     decimal.Decimal

	// Limit-order fields; ignored for market orders.
	Price       decimal.Decimal
	TimeInForce TimeInForce

	ReduceOnly    bool
	ClosePosition bool
	ClientOrderID string

	// Optional passthrough settings some venues accept inline with the
	// order instead of (or in addition to) dedicated endpoints.
	MarginMode MarginMode
	MarginCoin string
	Leverage   int
}

// OrderResult captures the exchange acknowledgement of a submitted order.
type OrderResult struct {
	OrderID       string
	ClientOrderID string
	Status        string
	AvgPrice      decimal.Decimal

	// Duplicate marks an acknowledgement synthesised from a
	// duplicate-client-order-id response: the order already exists, so the
	// resubmission is treated as success.
	Duplicate bool

	Raw map[string]any
}

// SymbolFilters are the tradability constraints for one symbol.
// StepSize must be positive for the symbol to be tradable.
type SymbolFilters struct {
	StepSize    decimal.Decimal
	MinQty      decimal.Decimal
	TickSize    decimal.Decimal
	MinNotional decimal.Decimal
}

// Position is a live position snapshot normalized across payload shapes.
type Position struct {
	Symbol        string
	PositionSide  PositionSide
	Quantity      decimal.Decimal
	EntryPrice    decimal.Decimal
	UnrealizedPnL decimal.Decimal
	Leverage      int
	MarginMode    MarginMode
}

// Balance summarizes the margin-asset account balance.
type Balance struct {
	Asset            string
	WalletBalance    decimal.Decimal
	Equity           decimal.Decimal
	AvailableMargin  decimal.Decimal
	UsedMargin       decimal.Decimal
	UnrealizedProfit decimal.Decimal
}

// SetLeverageParams configures a leverage push for one position side.
// Side is inferred from PositionSide when empty (LONG buys, SHORT sells).
type SetLeverageParams struct {
	Leverage     int
	PositionSide PositionSide
	Side         Side
	MarginMode   MarginMode
	MarginCoin   string
}
