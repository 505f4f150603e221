package bingx

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"sigex/pkg/exchange"
)

var positionModePaths = swapPaths("user/positionSide/dual", "trade/positionSide/dual")

// Balance returns the margin-asset balance of the futures account.
func (c *Client) Balance(ctx context.Context) (*exchange.Balance, error) {
	payload, err := c.requestWithFallback(ctx, http.MethodGet, swapPaths("user/balance", "user/getBalance"), nil, true)
	if err != nil {
		return nil, err
	}
	record := balanceRecord(payload)
	if record == nil {
		return nil, fmt.Errorf("bingx: no balance record in response")
	}

	balance := &exchange.Balance{Asset: mapString(record, "asset", "currency", "coin")}
	if balance.Asset == "" {
		balance.Asset = "USDT"
	}
	if d, ok := mapDecimal(record, "balance", "walletBalance", "wallet_balance"); ok {
		balance.WalletBalance = d
	}
	if d, ok := mapDecimal(record, "equity", "accountEquity"); ok {
		balance.Equity = d
	}
	if d, ok := mapDecimal(record, "availableMargin", "available_margin", "availableBalance"); ok {
		balance.AvailableMargin = d
	}
	if d, ok := mapDecimal(record, "usedMargin", "used_margin", "frozenMargin"); ok {
		balance.UsedMargin = d
	}
	if d, ok := mapDecimal(record, "unrealizedProfit", "unrealisedProfit", "unrealizedPnl"); ok {
		balance.UnrealizedProfit = d
	}
	return balance, nil
}

// balanceRecord digs the USDT record out of the response, which arrives as
// a single object, a {balance: {...}} wrapper, or a list of per-asset
// records.
func balanceRecord(payload any) map[string]any {
	switch node := payload.(type) {
	case map[string]any:
		if nested, ok := node["balance"].(map[string]any); ok {
			return nested
		}
		if nested, ok := node["data"]; ok {
			if record := balanceRecord(nested); record != nil {
				return record
			}
		}
		return node
	case []any:
		var first map[string]any
		for _, item := range node {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if first == nil {
				first = record
			}
			if strings.EqualFold(mapString(record, "asset", "currency", "coin"), "USDT") {
				return record
			}
		}
		return first
	}
	return nil
}

// OpenPositions lists open positions, optionally restricted to one symbol.
// Rows with zero quantity are dropped.
func (c *Client) OpenPositions(ctx context.Context, symbol string) ([]exchange.Position, error) {
	params := map[string]any{}
	if symbol != "" {
		normalized, err := c.normalizeSymbol(symbol)
		if err != nil {
			return nil, err
		}
		params["symbol"] = normalized
	}

	payload, err := c.requestWithFallback(ctx, http.MethodGet, swapPaths("user/positions", "user/getPositions", "user/getPosition"), params, true)
	if err != nil {
		return nil, err
	}

	var positions []exchange.Position
	for _, record := range positionRecords(payload) {
		if position, ok := normalizePosition(record); ok {
			positions = append(positions, position)
		}
	}
	return positions, nil
}

func positionRecords(payload any) []map[string]any {
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
		for _, key := range []string{"positions", "data"} {
			if nested, ok := node[key]; ok {
				if records := positionRecords(nested); records != nil {
					return records
				}
			}
		}
		return []map[string]any{node}
	}
	return nil
}

// normalizePosition maps one raw position row onto the shared Position
// type. The field names vary across BingX API revisions, hence the alias
// chains.
func normalizePosition(record map[string]any) (exchange.Position, bool) {
	quantity, ok := mapDecimal(record, "positionAmt", "positionSize", "size", "quantity")
	if !ok || quantity.IsZero() {
		return exchange.Position{}, false
	}

	side := strings.ToUpper(mapString(record, "positionSide", "side", "direction"))
	var positionSide exchange.PositionSide
	switch {
	case strings.Contains(side, "SHORT"):
		positionSide = exchange.PositionShort
	case strings.Contains(side, "LONG"):
		positionSide = exchange.PositionLong
	case quantity.IsNegative():
		positionSide = exchange.PositionShort
	default:
		positionSide = exchange.PositionLong
	}

	position := exchange.Position{
		Symbol:       strings.ToUpper(mapString(record, "symbol", "pair", "contract", "tradingPair")),
		PositionSide: positionSide,
		Quantity:     quantity.Abs(),
		MarginMode:   positionMarginMode(record),
	}
	if d, ok := mapDecimal(record, "entryPrice", "avgEntryPrice", "avgPrice", "price"); ok {
		position.EntryPrice = d
	}
	if d, ok := mapDecimal(record, "unrealizedProfit", "unrealisedProfit", "unrealizedPnl", "pnl"); ok {
		position.UnrealizedPnL = d
	}
	if d, ok := mapDecimal(record, "leverage"); ok {
		position.Leverage = int(d.IntPart())
	}
	return position, true
}

func positionMarginMode(record map[string]any) exchange.MarginMode {
	mode := strings.ToLower(mapString(record, "marginMode", "marginType", "margin_mode"))
	switch {
	case strings.Contains(mode, "cross"):
		return exchange.MarginCrossed
	case strings.Contains(mode, "isolat"):
		return exchange.MarginIsolated
	}
	if v, ok := record["isolated"]; ok {
		if isolated, ok := coerceBool(v); ok {
			if isolated {
				return exchange.MarginIsolated
			}
			return exchange.MarginCrossed
		}
	}
	return ""
}

// PositionMode reports whether the account runs in hedge (dual-side) mode.
func (c *Client) PositionMode(ctx context.Context) (bool, error) {
	payload, err := c.requestWithFallback(ctx, http.MethodGet, positionModePaths, nil, true)
	if err != nil {
		return false, err
	}
	if hedge, ok := extractBool(payload, "dualSidePosition", "dualSide", "isDualSide", "positionMode"); ok {
		return hedge, nil
	}
	return false, fmt.Errorf("bingx: no position mode flag in response")
}

// SetPositionMode switches the account between hedge and one-way mode. The
// exchange rejects the switch while positions or open orders exist.
func (c *Client) SetPositionMode(ctx context.Context, hedge bool) error {
	params := map[string]any{"dualSidePosition": hedge}
	_, err := c.requestWithFallback(ctx, http.MethodPost, positionModePaths, params, true)
	return err
}
