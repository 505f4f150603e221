package bingx

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"sigex/pkg/exchange"
)

// SetMarginMode sets the margin mode for a symbol. CROSS is accepted as a
// spelling of CROSSED.
func (c *Client) SetMarginMode(ctx context.Context, symbol string, mode exchange.MarginMode, marginCoin string) error {
	normalized, err := c.normalizeSymbol(symbol)
	if err != nil {
		return err
	}
	canonical, err := canonicalMarginMode(string(mode))
	if err != nil {
		return err
	}

	params := map[string]any{
		"symbol":     normalized,
		"marginMode": canonical,
	}
	if marginCoin != "" {
		params["marginCoin"] = strings.ToUpper(marginCoin)
	}
	_, err = c.request(ctx, http.MethodPost, pathSetMarginMode, params, true)
	return err
}

func canonicalMarginMode(mode string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(mode)) {
	case "ISOLATED":
		return "ISOLATED", nil
	case "CROSS", "CROSSED":
		return "CROSSED", nil
	case "":
		return "", fmt.Errorf("bingx: margin mode is required")
	default:
		return "", fmt.Errorf("bingx: unsupported margin mode %q", mode)
	}
}

// SetLeverage applies leverage to one side of a symbol. In hedge mode the
// exchange wants both a side and a positionSide; in one-way mode both are
// omitted.
func (c *Client) SetLeverage(ctx context.Context, symbol string, params exchange.SetLeverageParams) error {
	normalized, err := c.normalizeSymbol(symbol)
	if err != nil {
		return err
	}
	if params.Leverage < 1 {
		return fmt.Errorf("bingx: leverage must be at least 1, got %d", params.Leverage)
	}

	apiParams := map[string]any{
		"symbol":   normalized,
		"leverage": params.Leverage,
	}
	if params.MarginMode != "" {
		mode, err := canonicalMarginMode(string(params.MarginMode))
		if err != nil {
			return err
		}
		apiParams["marginMode"] = mode
	}
	if params.MarginCoin != "" {
		apiParams["marginCoin"] = strings.ToUpper(params.MarginCoin)
	}

	side := params.Side
	switch params.PositionSide {
	case exchange.PositionLong:
		if side == "" {
			side = exchange.SideBuy
		}
		apiParams["positionSide"] = string(exchange.PositionLong)
	case exchange.PositionShort:
		if side == "" {
			side = exchange.SideSell
		}
		apiParams["positionSide"] = string(exchange.PositionShort)
	case exchange.PositionBoth, "":
	default:
		return fmt.Errorf("bingx: unsupported position side %q", params.PositionSide)
	}
	if side != "" {
		apiParams["side"] = string(side)
	}

	_, err = c.request(ctx, http.MethodPost, pathSetLeverage, apiParams, true)
	return err
}

// EnsureHedgeLeverage switches the account into hedge mode and applies the
// given leverage to both sides of the symbol.
func (c *Client) EnsureHedgeLeverage(ctx context.Context, symbol string, longLeverage, shortLeverage int, marginCoin string) error {
	if err := c.SetPositionMode(ctx, true); err != nil {
		return err
	}
	if err := c.SetLeverage(ctx, symbol, exchange.SetLeverageParams{
		Leverage:     longLeverage,
		PositionSide: exchange.PositionLong,
		MarginCoin:   marginCoin,
	}); err != nil {
		return err
	}
	return c.SetLeverage(ctx, symbol, exchange.SetLeverageParams{
		Leverage:     shortLeverage,
		PositionSide: exchange.PositionShort,
		MarginCoin:   marginCoin,
	})
}
