package executor

import (
	"github.com/shopspring/decimal"

	"sigex/pkg/exchange"
)

// ComputeQuantity converts a margin budget into a base-asset quantity:
// margin × leverage / price, floored onto the contract's step grid. All
// arithmetic is exact decimal; the result is never rounded up.
func ComputeQuantity(margin decimal.Decimal, leverage int, price decimal.Decimal, filters exchange.SymbolFilters) (decimal.Decimal, error) {
	if !margin.IsPositive() {
		return decimal.Decimal{}, validationErrorf("invalid margin %s", margin)
	}
	if leverage <= 0 {
		return decimal.Decimal{}, validationErrorf("invalid leverage %d", leverage)
	}
	if !price.IsPositive() {
		return decimal.Decimal{}, validationErrorf("invalid price %s", price)
	}
	if !filters.StepSize.IsPositive() {
		return decimal.Decimal{}, validationErrorf("invalid step size %s", filters.StepSize)
	}

	notional := margin.Mul(decimal.NewFromInt(int64(leverage)))
	raw := notional.Div(price)
	quantity := floorToStep(raw, filters.StepSize)

	if quantity.IsZero() {
		return decimal.Decimal{}, validationErrorf(
			"quantity rounded to zero (margin %s, leverage %d, price %s, step %s)",
			margin, leverage, price, filters.StepSize)
	}
	if filters.MinQty.IsPositive() && quantity.LessThan(filters.MinQty) {
		return decimal.Decimal{}, validationErrorf(
			"quantity %s below minimum size %s", quantity, filters.MinQty)
	}
	if filters.MinNotional.IsPositive() && quantity.Mul(price).LessThan(filters.MinNotional) {
		return decimal.Decimal{}, validationErrorf(
			"quantity %s below minimum notional %s at price %s", quantity, filters.MinNotional, price)
	}
	return quantity, nil
}

// floorToStep snaps a quantity down onto the step grid.
func floorToStep(quantity, step decimal.Decimal) decimal.Decimal {
	return quantity.Div(step).Floor().Mul(step)
}
