package bingx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"sigex/pkg/exchange"
)

func TestPlaceOrder(t *testing.T) {
	t.Run("market_open_hedge_mode", func(t *testing.T) {
		var form map[string][]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/openApi/swap/v2/trade/order", r.URL.Path)
			assert.NoError(t, r.ParseForm())
			form = r.PostForm
			w.Write([]byte(`{"code": 0, "data": {"order": {
				"orderId": 123456789,
				"clientOrderId": "tv::abc::1718029500000",
				"status": "NEW",
				"avgPrice": "64000.1"
			}}}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		result, err := client.PlaceOrder(context.Background(), exchange.OrderRequest{
			Symbol:        "btcusdt",
			Side:          exchange.SideBuy,
			Type:          exchange.OrderMarket,
			PositionSide:  exchange.PositionLong,
			Quantity:      decimal.RequireFromString("0.025"),
			ClientOrderID: "tv::abc::1718029500000",
		})
		assert.NoError(t, err)

		assert.Equal(t, "BTC-USDT", form["symbol"][0])
		assert.Equal(t, "BUY", form["side"][0])
		assert.Equal(t, "MARKET", form["type"][0])
		assert.Equal(t, "0.025", form["quantity"][0])
		assert.Equal(t, "LONG", form["positionSide"][0])
		assert.Equal(t, "false", form["reduceOnly"][0])
		assert.NotEmpty(t, form["signature"])
		assert.NotContains(t, form, "closePosition")

		assert.Equal(t, "123456789", result.OrderID)
		assert.Equal(t, "tv::abc::1718029500000", result.ClientOrderID)
		assert.Equal(t, "NEW", result.Status)
		assert.Equal(t, "64000.1", result.AvgPrice.String())
		assert.False(t, result.Duplicate)
	})

	t.Run("one_way_close_omits_position_side", func(t *testing.T) {
		var form map[string][]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			form = r.PostForm
			w.Write([]byte(`{"code": 0, "data": {"orderId": "55"}}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		result, err := client.PlaceOrder(context.Background(), exchange.OrderRequest{
			Symbol:        "BTC-USDT",
			Side:          exchange.SideSell,
			Type:          exchange.OrderMarket,
			PositionSide:  exchange.PositionBoth,
			ClosePosition: true,
		})
		assert.NoError(t, err)
		assert.Equal(t, "55", result.OrderID)
		assert.Equal(t, "true", form["closePosition"][0])
		assert.NotContains(t, form, "positionSide")
		assert.NotContains(t, form, "quantity")
	})

	t.Run("duplicate_client_order_id_is_success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code": "80018", "msg": "Duplicate clientOrderId rejected"}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		result, err := client.PlaceOrder(context.Background(), exchange.OrderRequest{
			Symbol:        "BTC-USDT",
			Side:          exchange.SideBuy,
			Quantity:      decimal.RequireFromString("1"),
			ClientOrderID: "tv::dup::1",
		})
		assert.NoError(t, err)
		assert.True(t, result.Duplicate)
		assert.Equal(t, "tv::dup::1", result.ClientOrderID)
	})

	t.Run("limit_order_requires_price", func(t *testing.T) {
		client := newTestClient(t, "http://127.0.0.1:0")
		_, err := client.PlaceOrder(context.Background(), exchange.OrderRequest{
			Symbol:   "BTC-USDT",
			Side:     exchange.SideBuy,
			Type:     exchange.OrderLimit,
			Quantity: decimal.RequireFromString("1"),
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "price")
	})

	t.Run("limit_order_defaults_gtc", func(t *testing.T) {
		var form map[string][]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			form = r.PostForm
			w.Write([]byte(`{"code": 0, "data": {"orderId": "9"}}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		_, err := client.PlaceOrder(context.Background(), exchange.OrderRequest{
			Symbol:   "BTC-USDT",
			Side:     exchange.SideBuy,
			Type:     exchange.OrderLimit,
			Quantity: decimal.RequireFromString("0.5"),
			Price:    decimal.RequireFromString("60000"),
		})
		assert.NoError(t, err)
		assert.Equal(t, "60000", form["price"][0])
		assert.Equal(t, "GTC", form["timeInForce"][0])
	})

	t.Run("market_order_requires_quantity", func(t *testing.T) {
		client := newTestClient(t, "http://127.0.0.1:0")
		_, err := client.PlaceOrder(context.Background(), exchange.OrderRequest{
			Symbol: "BTC-USDT",
			Side:   exchange.SideBuy,
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "quantity")
	})

	t.Run("invalid_side", func(t *testing.T) {
		client := newTestClient(t, "http://127.0.0.1:0")
		_, err := client.PlaceOrder(context.Background(), exchange.OrderRequest{
			Symbol:   "BTC-USDT",
			Quantity: decimal.RequireFromString("1"),
		})
		assert.Error(t, err)
	})

	t.Run("passthrough_settings", func(t *testing.T) {
		var form map[string][]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			form = r.PostForm
			w.Write([]byte(`{"code": 0, "data": {"orderId": "3"}}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		_, err := client.PlaceOrder(context.Background(), exchange.OrderRequest{
			Symbol:     "BTC-USDT",
			Side:       exchange.SideBuy,
			Quantity:   decimal.RequireFromString("1"),
			MarginMode: exchange.MarginMode("cross"),
			MarginCoin: "usdt",
			Leverage:   5,
		})
		assert.NoError(t, err)
		assert.Equal(t, "CROSSED", form["marginMode"][0])
		assert.Equal(t, "USDT", form["marginCoin"][0])
		assert.Equal(t, "5", form["leverage"][0])
	})
}

func TestCancelOrder(t *testing.T) {
	t.Run("by_order_id", func(t *testing.T) {
		var method, query string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method = r.Method
			query = r.URL.RawQuery
			w.Write([]byte(`{"code": 0, "data": {}}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		err := client.CancelOrder(context.Background(), "BTC-USDT", "987", "")
		assert.NoError(t, err)
		assert.Equal(t, http.MethodDelete, method)
		assert.Contains(t, query, "orderId=987")
		assert.Contains(t, query, "&signature=")
	})

	t.Run("requires_an_id", func(t *testing.T) {
		client := newTestClient(t, "http://127.0.0.1:0")
		err := client.CancelOrder(context.Background(), "BTC-USDT", "", "")
		assert.Error(t, err)
	})
}
