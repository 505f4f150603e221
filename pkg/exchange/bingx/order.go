package bingx

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"sigex/pkg/exchange"
)

// PlaceOrder submits an order. A duplicate-client-order-id rejection from
// the exchange means the order already exists, so it is returned as a
// successful result with Duplicate set.
func (c *Client) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	normalized, err := c.normalizeSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	params, err := orderParams(normalized, req)
	if err != nil {
		return nil, err
	}
	if err := assertOrderPath(pathOrder); err != nil {
		return nil, err
	}

	payload, err := c.request(ctx, http.MethodPost, pathOrder, params, true)
	if err != nil {
		return nil, err
	}

	result := &exchange.OrderResult{}
	if dup, ok := payload.(duplicateOrder); ok {
		result.Duplicate = true
		payload = dup.payload
	}
	fillOrderResult(result, payload)
	if result.ClientOrderID == "" {
		result.ClientOrderID = req.ClientOrderID
	}
	return result, nil
}

func orderParams(symbol string, req exchange.OrderRequest) (map[string]any, error) {
	if req.Side != exchange.SideBuy && req.Side != exchange.SideSell {
		return nil, fmt.Errorf("bingx: unsupported order side %q", req.Side)
	}
	orderType := req.Type
	if orderType == "" {
		orderType = exchange.OrderMarket
	}

	params := map[string]any{
		"symbol":     symbol,
		"side":       string(req.Side),
		"type":       string(orderType),
		"reduceOnly": req.ReduceOnly,
	}

	switch orderType {
	case exchange.OrderMarket:
		if !req.ClosePosition && !req.Quantity.IsPositive() {
			return nil, fmt.Errorf("bingx: order quantity must be positive")
		}
	case exchange.OrderLimit:
		if !req.Quantity.IsPositive() {
			return nil, fmt.Errorf("bingx: order quantity must be positive")
		}
		if !req.Price.IsPositive() {
			return nil, fmt.Errorf("bingx: limit orders need a positive price")
		}
		params["price"] = req.Price
		tif := req.TimeInForce
		if tif == "" {
			tif = exchange.TIFGoodTilCancel
		}
		params["timeInForce"] = string(tif)
	default:
		return nil, fmt.Errorf("bingx: unsupported order type %q", orderType)
	}

	if req.Quantity.IsPositive() {
		params["quantity"] = req.Quantity
	}
	// BOTH is the implied side of one-way mode and must not be sent.
	if req.PositionSide != "" && req.PositionSide != exchange.PositionBoth {
		params["positionSide"] = string(req.PositionSide)
	}
	if req.ClosePosition {
		params["closePosition"] = "true"
	}
	if req.ClientOrderID != "" {
		params["clientOrderId"] = req.ClientOrderID
	}
	if req.MarginMode != "" {
		mode, err := canonicalMarginMode(string(req.MarginMode))
		if err != nil {
			return nil, err
		}
		params["marginMode"] = mode
	}
	if req.MarginCoin != "" {
		params["marginCoin"] = strings.ToUpper(req.MarginCoin)
	}
	if req.Leverage > 0 {
		params["leverage"] = req.Leverage
	}
	return params, nil
}

// fillOrderResult copies the acknowledgement fields out of the payload. The
// order object sits either at the top level or under an "order" key.
func fillOrderResult(result *exchange.OrderResult, payload any) {
	record, ok := payload.(map[string]any)
	if !ok {
		return
	}
	result.Raw = record
	if nested, ok := record["order"].(map[string]any); ok {
		record = nested
	}
	result.OrderID = mapString(record, "orderId", "orderID", "id")
	if cloid := mapString(record, "clientOrderId", "clientOrderID", "origClientOrderId"); cloid != "" {
		result.ClientOrderID = cloid
	}
	result.Status = mapString(record, "status", "state")
	if d, ok := mapDecimal(record, "avgPrice", "averagePrice", "avgFillPrice"); ok {
		result.AvgPrice = d
	}
}

// CancelOrder cancels a resting order by exchange id or client order id.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID, clientOrderID string) error {
	if orderID == "" && clientOrderID == "" {
		return fmt.Errorf("bingx: cancel requires an order id or client order id")
	}
	normalized, err := c.normalizeSymbol(symbol)
	if err != nil {
		return err
	}
	params := map[string]any{"symbol": normalized}
	if orderID != "" {
		params["orderId"] = orderID
	}
	if clientOrderID != "" {
		params["clientOrderId"] = clientOrderID
	}
	_, err = c.request(ctx, http.MethodDelete, pathOrder, params, true)
	return err
}
