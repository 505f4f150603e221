package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"sigex/pkg/confkit"
	"sigex/pkg/exchange"
	"sigex/pkg/exchange/bingx"
	_ "sigex/pkg/exchange/sim"
)

// Connectivity and credential check against BingX: reads etc/exchange.yaml,
// builds the first bingx provider found, and walks the read-only surface.
// When signed calls fail while public ones pass, suspect the credentials or
// clock drift rather than the network.
func main() {
	confkit.LoadDotenvOnce()

	path := confkit.MustProjectPath("etc/exchange.yaml")
	cfg, err := exchange.LoadConfig(path)
	if err != nil {
		fmt.Printf("exchange config: %v\n", err)
		fmt.Println("hint: export BINGX_API_KEY and BINGX_API_SECRET or add them to .env")
		os.Exit(1)
	}

	name := cfg.Default
	if p, ok := cfg.Providers[name]; !ok || p.Type != "bingx" {
		name = ""
		for candidate, provider := range cfg.Providers {
			if provider.Type == "bingx" {
				name = candidate
				break
			}
		}
	}
	if name == "" {
		fmt.Println("no bingx provider configured in etc/exchange.yaml")
		os.Exit(1)
	}
	provider := cfg.Providers[name]

	opts := []bingx.ClientOption{}
	if provider.BaseURL != "" {
		opts = append(opts, bingx.WithBaseURL(provider.BaseURL))
	}
	if provider.Timeout > 0 {
		opts = append(opts, bingx.WithTimeout(provider.Timeout))
	}
	client, err := bingx.NewClient(provider.APIKey, provider.APISecret, opts...)
	if err != nil {
		fmt.Printf("client: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	failed := false

	serverTime, err := client.ServerTime(ctx)
	if err != nil {
		fmt.Printf("server time: FAIL (%v)\n", err)
		failed = true
	} else {
		drift := time.Since(serverTime)
		if drift < 0 {
			drift = -drift
		}
		fmt.Printf("server time: OK (drift %s)\n", drift.Round(time.Millisecond))
	}

	price, err := client.MarkPrice(ctx, "BTC-USDT")
	if err != nil {
		fmt.Printf("mark price: FAIL (%v)\n", err)
		failed = true
	} else {
		fmt.Printf("mark price: OK (BTC-USDT %s)\n", price)
	}

	bal, err := client.Balance(ctx)
	if err != nil {
		fmt.Printf("balance (signed): FAIL (%v)\n", err)
		failed = true
	} else {
		fmt.Printf("balance (signed): OK (%s equity %s, available %s)\n", bal.Asset, bal.Equity, bal.AvailableMargin)
	}

	positions, err := client.OpenPositions(ctx, "")
	if err != nil {
		fmt.Printf("positions (signed): FAIL (%v)\n", err)
		failed = true
	} else {
		fmt.Printf("positions (signed): OK (%d open)\n", len(positions))
	}

	if failed {
		os.Exit(1)
	}
	fmt.Printf("provider %q ready\n", name)
}
