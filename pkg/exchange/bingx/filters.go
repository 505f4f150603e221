package bingx

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"sigex/pkg/exchange"
	"sigex/pkg/signal"
)

// SymbolFilters returns the sizing constraints for a contract. Results are
// cached for the configured TTL since contract specs change rarely.
func (c *Client) SymbolFilters(ctx context.Context, symbol string) (exchange.SymbolFilters, error) {
	normalized, err := c.normalizeSymbol(symbol)
	if err != nil {
		return exchange.SymbolFilters{}, err
	}

	if filters, ok := c.cachedFilters(normalized); ok {
		return filters, nil
	}

	payload, err := c.request(ctx, http.MethodGet, pathContracts, map[string]any{"symbol": normalized}, false)
	if err != nil {
		return exchange.SymbolFilters{}, err
	}
	contract, err := findContract(payload, normalized)
	if err != nil {
		return exchange.SymbolFilters{}, err
	}
	filters, err := normalizeContractFilters(contract, normalized)
	if err != nil {
		return exchange.SymbolFilters{}, err
	}

	c.storeFilters(normalized, filters)
	return filters, nil
}

// InvalidateFilters drops the cached filters for a symbol, or the whole
// cache when symbol is empty.
func (c *Client) InvalidateFilters(symbol string) {
	c.filtersMu.Lock()
	defer c.filtersMu.Unlock()
	if symbol == "" {
		c.filters = make(map[string]filtersEntry)
		return
	}
	if normalized, err := signal.NormalizeSymbol(symbol); err == nil {
		delete(c.filters, normalized)
		return
	}
	delete(c.filters, strings.ToUpper(strings.TrimSpace(symbol)))
}

func (c *Client) cachedFilters(symbol string) (exchange.SymbolFilters, bool) {
	c.filtersMu.RLock()
	defer c.filtersMu.RUnlock()
	entry, ok := c.filters[symbol]
	if !ok || c.clock().Sub(entry.at) > c.filtersTTL {
		return exchange.SymbolFilters{}, false
	}
	return entry.filters, true
}

func (c *Client) storeFilters(symbol string, filters exchange.SymbolFilters) {
	c.filtersMu.Lock()
	defer c.filtersMu.Unlock()
	c.filters[symbol] = filtersEntry{at: c.clock(), filters: filters}
}

// findContract locates the record for symbol in the contracts payload,
// which arrives as a list, a single object, or a wrapper around either.
func findContract(payload any, symbol string) (map[string]any, error) {
	for _, contract := range contractRecords(payload) {
		name := mapString(contract, "symbol", "symbolName")
		if strings.EqualFold(name, symbol) {
			return contract, nil
		}
	}
	return nil, fmt.Errorf("bingx: no contract found for %s", symbol)
}

func contractRecords(payload any) []map[string]any {
	switch node := payload.(type) {
	case []any:
		var out []map[string]any
		for _, item := range node {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		for _, key := range []string{"data", "contracts"} {
			if nested, ok := node[key]; ok {
				if records := contractRecords(nested); records != nil {
					return records
				}
			}
		}
		return []map[string]any{node}
	}
	return nil
}

// normalizeContractFilters converts a raw contract record into sizing
// constraints. The step size is mandatory: a contract without one cannot be
// sized safely.
func normalizeContractFilters(contract map[string]any, symbol string) (exchange.SymbolFilters, error) {
	step, ok := positiveDecimal(contract, "stepSize", "step_size")
	if !ok {
		if precision, found := contractPrecision(contract, "quantityPrecision", "quantity_precision"); found {
			step, ok = decimal.New(1, int32(-precision)), true
		}
	}
	if !ok {
		step, ok = positiveDecimal(contract, "size")
	}
	if !ok {
		return exchange.SymbolFilters{}, fmt.Errorf("bingx: contract %s reports no usable step size", symbol)
	}

	minQty, ok := positiveDecimal(contract, "tradeMinQuantity", "minQty", "min_qty")
	if !ok {
		minQty = step
	}

	tick, ok := positiveDecimal(contract, "tickSize", "tick_size")
	if !ok {
		if precision, found := contractPrecision(contract, "pricePrecision", "price_precision"); found {
			tick, ok = decimal.New(1, int32(-precision)), true
		}
	}
	if !ok {
		tick = decimal.New(1, -2)
	}

	minNotional, _ := positiveDecimal(contract, "minNotional", "min_notional", "notional", "minTradeAmount")

	return exchange.SymbolFilters{
		StepSize:    step,
		MinQty:      minQty,
		TickSize:    tick,
		MinNotional: minNotional,
	}, nil
}

func contractPrecision(contract map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		v, ok := contract[key]
		if !ok {
			continue
		}
		if d, ok := toDecimal(v); ok && !d.IsNegative() {
			return int(d.IntPart()), true
		}
	}
	return 0, false
}
