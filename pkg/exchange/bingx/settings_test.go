package bingx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"sigex/pkg/exchange"
)

func TestSetMarginMode(t *testing.T) {
	t.Run("cross_spelling_canonicalised", func(t *testing.T) {
		var form map[string][]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/openApi/swap/v2/trade/setMarginMode", r.URL.Path)
			assert.NoError(t, r.ParseForm())
			form = r.PostForm
			w.Write([]byte(`{"code": 0, "data": {}}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		err := client.SetMarginMode(context.Background(), "btcusdt", exchange.MarginMode("cross"), "usdt")
		assert.NoError(t, err)
		assert.Equal(t, "BTC-USDT", form["symbol"][0])
		assert.Equal(t, "CROSSED", form["marginMode"][0])
		assert.Equal(t, "USDT", form["marginCoin"][0])
	})

	t.Run("isolated", func(t *testing.T) {
		var form map[string][]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			form = r.PostForm
			w.Write([]byte(`{"code": 0, "data": {}}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		err := client.SetMarginMode(context.Background(), "BTC-USDT", exchange.MarginIsolated, "")
		assert.NoError(t, err)
		assert.Equal(t, "ISOLATED", form["marginMode"][0])
		assert.NotContains(t, form, "marginCoin")
	})

	t.Run("unknown_mode_rejected", func(t *testing.T) {
		client := newTestClient(t, "http://127.0.0.1:0")
		err := client.SetMarginMode(context.Background(), "BTC-USDT", exchange.MarginMode("weird"), "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "margin mode")
	})
}

func TestSetLeverage(t *testing.T) {
	t.Run("long_side", func(t *testing.T) {
		var form map[string][]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/openApi/swap/v2/trade/setLeverage", r.URL.Path)
			assert.NoError(t, r.ParseForm())
			form = r.PostForm
			w.Write([]byte(`{"code": 0, "data": {}}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		err := client.SetLeverage(context.Background(), "BTC-USDT", exchange.SetLeverageParams{
			Leverage:     7,
			PositionSide: exchange.PositionLong,
		})
		assert.NoError(t, err)
		assert.Equal(t, "7", form["leverage"][0])
		assert.Equal(t, "BUY", form["side"][0])
		assert.Equal(t, "LONG", form["positionSide"][0])
	})

	t.Run("short_side", func(t *testing.T) {
		var form map[string][]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			form = r.PostForm
			w.Write([]byte(`{"code": 0, "data": {}}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		err := client.SetLeverage(context.Background(), "BTC-USDT", exchange.SetLeverageParams{
			Leverage:     4,
			PositionSide: exchange.PositionShort,
		})
		assert.NoError(t, err)
		assert.Equal(t, "SELL", form["side"][0])
		assert.Equal(t, "SHORT", form["positionSide"][0])
	})

	t.Run("one_way_omits_sides", func(t *testing.T) {
		var form map[string][]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			form = r.PostForm
			w.Write([]byte(`{"code": 0, "data": {}}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		err := client.SetLeverage(context.Background(), "BTC-USDT", exchange.SetLeverageParams{Leverage: 3})
		assert.NoError(t, err)
		assert.NotContains(t, form, "side")
		assert.NotContains(t, form, "positionSide")
	})

	t.Run("leverage_must_be_positive", func(t *testing.T) {
		client := newTestClient(t, "http://127.0.0.1:0")
		err := client.SetLeverage(context.Background(), "BTC-USDT", exchange.SetLeverageParams{Leverage: 0})
		assert.Error(t, err)
	})
}

func TestEnsureHedgeLeverage(t *testing.T) {
	type call struct {
		path string
		form map[string][]string
	}
	var calls []call
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		calls = append(calls, call{path: r.URL.Path, form: r.PostForm})
		w.Write([]byte(`{"code": 0, "data": {}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.EnsureHedgeLeverage(context.Background(), "BTC-USDT", 10, 8, "")
	assert.NoError(t, err)
	assert.Len(t, calls, 3)

	assert.Equal(t, "/openApi/swap/v2/user/positionSide/dual", calls[0].path)
	assert.Equal(t, "true", calls[0].form["dualSidePosition"][0])

	assert.Equal(t, "10", calls[1].form["leverage"][0])
	assert.Equal(t, "LONG", calls[1].form["positionSide"][0])

	assert.Equal(t, "8", calls[2].form["leverage"][0])
	assert.Equal(t, "SHORT", calls[2].form["positionSide"][0])
}
