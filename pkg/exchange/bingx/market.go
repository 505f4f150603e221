package bingx

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// MarkPrice returns the current mark price for a symbol. The public quote
// endpoints are tried first; some gateway deployments only serve the value
// through the authenticated market endpoints, so those act as a fallback.
func (c *Client) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	normalized, err := c.normalizeSymbol(symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}
	params := map[string]any{"symbol": normalized}

	payload, err := c.requestWithFallback(ctx, http.MethodGet, swapPaths("quote/premiumIndex", "quote/price"), params, false)
	if err != nil {
		if !IsMissingEndpoint(err) {
			return decimal.Decimal{}, err
		}
		payload, err = c.requestWithFallback(ctx, http.MethodGet, swapPaths("market/markPrice", "market/getMarkPrice", "market/price"), params, true)
		if err != nil {
			return decimal.Decimal{}, err
		}
	}

	price, ok := extractDecimal(payload, "price", "markPrice", "mark_price")
	if !ok || !price.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("bingx: no mark price for %s in response", normalized)
	}
	return price, nil
}

// ServerTime returns the exchange clock from the public time endpoint.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	payload, err := c.request(ctx, http.MethodGet, pathServerTime, nil, false)
	if err != nil {
		return time.Time{}, err
	}
	ms, ok := extractDecimal(payload, "serverTime", "timestamp")
	if !ok || ms.IsZero() {
		return time.Time{}, fmt.Errorf("bingx: no server time in response")
	}
	return time.UnixMilli(ms.IntPart()), nil
}

// LogClockDrift compares the local clock against the exchange clock and
// logs the difference. Signed requests fail when the drift exceeds the recv
// window, so surfacing it early saves a confusing signature error later.
func (c *Client) LogClockDrift(ctx context.Context) {
	serverTime, err := c.ServerTime(ctx)
	if err != nil {
		c.logf("bingx: server time check failed: %v", err)
		return
	}
	drift := c.clock().Sub(serverTime)
	if drift < 0 {
		drift = -drift
	}
	c.logf("bingx: clock drift vs exchange: %s", drift.Round(time.Millisecond))
}
