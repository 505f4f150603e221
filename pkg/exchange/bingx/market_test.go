package bingx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkPrice(t *testing.T) {
	t.Run("public_quote_endpoint", func(t *testing.T) {
		var gotAuth bool
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("X-BX-APIKEY") != ""
			assert.Equal(t, "/openApi/swap/v2/quote/premiumIndex", r.URL.Path)
			w.Write([]byte(`{"code": 0, "data": {"markPrice": "64250.5"}}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		price, err := client.MarkPrice(context.Background(), "BTCUSDT")
		assert.NoError(t, err)
		assert.Equal(t, "64250.5", price.String())
		assert.False(t, gotAuth)
	})

	t.Run("falls_back_to_authenticated_market_endpoint", func(t *testing.T) {
		var marketAuth bool
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "quote/") {
				w.Write([]byte(`{"code": "100400", "msg": "this api is not exist"}`))
				return
			}
			if r.URL.Path == "/openApi/swap/v2/market/markPrice" {
				marketAuth = r.Header.Get("X-BX-APIKEY") != ""
				w.Write([]byte(`{"code": 0, "data": {"price": "123.4"}}`))
				return
			}
			t.Errorf("unexpected path %s", r.URL.Path)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		price, err := client.MarkPrice(context.Background(), "SOL-USDT")
		assert.NoError(t, err)
		assert.Equal(t, "123.4", price.String())
		assert.True(t, marketAuth)
	})

	t.Run("list_payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code": 0, "data": [{"symbol": "BTC-USDT", "markPrice": "60000"}]}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		price, err := client.MarkPrice(context.Background(), "BTC-USDT")
		assert.NoError(t, err)
		assert.Equal(t, "60000", price.String())
	})

	t.Run("no_price_in_payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code": 0, "data": {"symbol": "BTC-USDT"}}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		_, err := client.MarkPrice(context.Background(), "BTC-USDT")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no mark price")
	})

	t.Run("invalid_symbol", func(t *testing.T) {
		client := newTestClient(t, "http://127.0.0.1:0")
		_, err := client.MarkPrice(context.Background(), "???")
		assert.Error(t, err)
	})
}

func TestServerTime(t *testing.T) {
	t.Run("reads_server_time", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/openApi/swap/v2/server/time", r.URL.Path)
			w.Write([]byte(`{"code": 0, "data": {"serverTime": 1718029500123}}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		serverTime, err := client.ServerTime(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, int64(1718029500123), serverTime.UnixMilli())
	})

	t.Run("missing_time_field", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code": 0, "data": {}}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		_, err := client.ServerTime(context.Background())
		assert.Error(t, err)
	})
}
