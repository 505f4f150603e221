package bingx

import (
	"context"
	"time"

	"sigex/pkg/exchange"
)

func init() {
	exchange.RegisterProvider("bingx", func(name string, cfg *exchange.ProviderConfig) (exchange.Client, error) {
		opts := []ClientOption{}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		if cfg.RecvWindow > 0 {
			opts = append(opts, WithRecvWindow(cfg.RecvWindow))
		}
		if cfg.MaxRetries > 0 {
			opts = append(opts, WithMaxRetries(cfg.MaxRetries))
		}
		if cfg.FilterCacheTTL > 0 {
			opts = append(opts, WithFilterCacheTTL(cfg.FilterCacheTTL))
		}

		client, err := NewClient(cfg.APIKey, cfg.APISecret, opts...)
		if err != nil {
			return nil, err
		}
		if cfg.Testnet {
			client.logf("bingx: provider %s: no testnet exists, trading against production", name)
		}

		// Report clock drift once at startup; signed requests break silently
		// when the local clock wanders outside the recv window.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.LogClockDrift(ctx)
		}()

		return client, nil
	})
}
