package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cacheutil "sigex/internal/cache"
	"sigex/internal/cli"
	"sigex/internal/config"
	"sigex/internal/persistence/engine"
	"sigex/internal/repo"
	"sigex/pkg/exchange"
	executorpkg "sigex/pkg/executor"

	// Import for side-effects: registers exchange providers
	_ "sigex/pkg/exchange/bingx"
	_ "sigex/pkg/exchange/sim"
)

const (
	priceInterval   = 1 * time.Minute  // Mark price polling interval
	accountInterval = 5 * time.Minute  // Positions and balance polling interval
	filterInterval  = 15 * time.Minute // Symbol filter refresh interval
	apiTimeout      = 5 * time.Second  // Timeout for individual API calls
	shutdownTimeout = 10 * time.Second // Grace period for shutdown
)

var defaultSymbols = []string{"BTC-USDT", "ETH-USDT"}

var configFile = flag.String("f", "etc/sigex.yaml", "the config file")

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("[main] Starting cron monitor...")

	// Load application configuration
	appCfg, err := config.Load(*configFile)
	if err != nil {
		log.Printf("[main] Warning: Failed to load app config: %v", err)
		log.Printf("[main] Using default configuration")
		appCfg = &config.Config{Env: "test"} // Default fallback
	}

	// Log configuration information
	log.Printf("[main] Configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(appCfg) {
		log.Printf("  - %s", line)
	}

	exchangeCfg := appCfg.Exchange.Value
	exchangePath := appCfg.Exchange.File
	if exchangeCfg == nil {
		exchangeCfg = config.MustLoadExchange()
		if exchangePath == "" {
			exchangePath = "etc/exchange.yaml (default)"
		}
	}

	execCfg := appCfg.Execution.Value
	if execCfg == nil {
		execCfg = executorpkg.Default()
	}

	symbols := execCfg.SymbolWhitelist
	if len(symbols) == 0 {
		symbols = defaultSymbols
	}

	log.Printf("  - Exchange Config Path: %s", exchangePath)
	log.Printf("  - Monitored Symbols: %v", symbols)
	log.Printf("  - Monitoring Intervals: price=%s, account=%s, filters=%s",
		priceInterval, accountInterval, filterInterval)

	// Apply test environment defaults: use testnet endpoints for all providers
	if appCfg.IsTestEnv() {
		for _, provider := range exchangeCfg.Providers {
			provider.Testnet = true
		}
	}

	// Build exchange providers
	providers, err := exchangeCfg.BuildProviders()
	if err != nil {
		log.Fatalf("[main] Failed to build exchange providers: %v", err)
	}

	// Get default exchange provider
	providerName := exchangeCfg.Default
	provider, ok := providers[providerName]
	if !ok {
		log.Fatalf("[main] Default exchange provider %q not found", providerName)
	}

	// Optional Redis sink for polled prices and snapshots
	var rds *redis.Redis
	if appCfg.Redis.Host != "" {
		rds = redis.MustNewRedis(appCfg.Redis)
	}
	ttl := cacheutil.NewTTLSet(appCfg.TTL)

	// Optional Postgres sink for balance snapshots
	var persistence *engine.Service
	if appCfg.Postgres.DSN != "" {
		conn := sqlx.NewSqlConn("pgx", appCfg.Postgres.DSN)
		repos, err := repo.New(repo.Dependencies{DBConn: conn, TTL: ttl})
		if err != nil {
			log.Fatalf("[main] Failed to build repositories: %v", err)
		}
		persistence = engine.NewService(engine.Config{Repos: repos})
	}

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create wait group for goroutines
	var wg sync.WaitGroup

	// Start mark price monitoring task
	wg.Add(1)
	go func() {
		defer wg.Done()
		runPriceMonitor(ctx, providerName, provider, rds, ttl, symbols)
	}()

	// Start account monitoring task
	wg.Add(1)
	go func() {
		defer wg.Done()
		runAccountMonitor(ctx, providerName, provider, persistence, rds, ttl, symbols)
	}()

	// Start filter refresh task
	wg.Add(1)
	go func() {
		defer wg.Done()
		runFilterMonitor(ctx, provider, symbols)
	}()

	log.Println("[main] Cron monitor started. Press Ctrl+C to stop.")

	// Wait for signal
	<-ctx.Done()
	log.Println("[main] Shutdown signal received, stopping tasks...")

	// Give tasks time to complete current work
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[main] All tasks stopped cleanly")
	case <-shutdownCtx.Done():
		log.Println("[main] Shutdown timeout exceeded, forcing exit")
	}

	log.Println("[main] Cron monitor stopped")
}

// runPriceMonitor polls mark prices on a schedule
func runPriceMonitor(ctx context.Context, providerName string, provider exchange.Client, rds *redis.Redis, ttl cacheutil.TTLSet, symbols []string) {
	ticker := time.NewTicker(priceInterval)
	defer ticker.Stop()

	// Run once immediately on startup
	monitorPrices(ctx, providerName, provider, rds, ttl, symbols)

	for {
		select {
		case <-ctx.Done():
			log.Println("[price] Stopping price monitor")
			return
		case <-ticker.C:
			monitorPrices(ctx, providerName, provider, rds, ttl, symbols)
		}
	}
}

// runAccountMonitor polls open positions and the margin balance on a schedule
func runAccountMonitor(ctx context.Context, providerName string, provider exchange.Client, persistence *engine.Service, rds *redis.Redis, ttl cacheutil.TTLSet, symbols []string) {
	ticker := time.NewTicker(accountInterval)
	defer ticker.Stop()

	// Run once immediately on startup
	monitorAccount(ctx, providerName, provider, persistence, rds, ttl, symbols)

	for {
		select {
		case <-ctx.Done():
			log.Println("[account] Stopping account monitor")
			return
		case <-ticker.C:
			monitorAccount(ctx, providerName, provider, persistence, rds, ttl, symbols)
		}
	}
}

// runFilterMonitor refreshes symbol filters on a schedule, keeping the
// client-side filter cache warm so order sizing never waits on a fetch
func runFilterMonitor(ctx context.Context, provider exchange.Client, symbols []string) {
	ticker := time.NewTicker(filterInterval)
	defer ticker.Stop()

	// Run once immediately on startup
	monitorFilters(ctx, provider, symbols)

	for {
		select {
		case <-ctx.Done():
			log.Println("[filters] Stopping filter monitor")
			return
		case <-ticker.C:
			monitorFilters(ctx, provider, symbols)
		}
	}
}

// monitorPrices polls the mark price for each monitored symbol and logs results
func monitorPrices(parentCtx context.Context, providerName string, provider exchange.Client, rds *redis.Redis, ttl cacheutil.TTLSet, symbols []string) {
	// Check if parent context is already cancelled
	if parentCtx.Err() != nil {
		return
	}

	for _, symbol := range symbols {
		func(sym string) {
			ctx, cancel := context.WithTimeout(parentCtx, apiTimeout)
			defer cancel()

			start := time.Now()
			price, err := provider.MarkPrice(ctx, sym)
			elapsed := time.Since(start)

			if err != nil {
				log.Printf("[price.%s] [ERROR] %v, took %dms", sym, err, elapsed.Milliseconds())
				return
			}
			if !price.IsPositive() {
				log.Printf("[price.%s] [WARN] invalid price=%s, took %dms", sym, price, elapsed.Milliseconds())
				return
			}

			log.Printf("[price.%s] [OK] mark=%s, took %dms", sym, price, elapsed.Milliseconds())

			cacheValue(ctx, rds, cacheutil.MarkPriceKey(providerName, sym), price.String(), cacheutil.MarkPriceTTL(ttl))
		}(symbol)
	}
}

// monitorAccount polls open positions and the margin balance and logs results
func monitorAccount(parentCtx context.Context, providerName string, provider exchange.Client, persistence *engine.Service, rds *redis.Redis, ttl cacheutil.TTLSet, symbols []string) {
	// Check if parent context is already cancelled
	if parentCtx.Err() != nil {
		return
	}

	// Collect open positions across monitored symbols
	var open []exchange.Position
	for _, symbol := range symbols {
		func(sym string) {
			ctx, cancel := context.WithTimeout(parentCtx, apiTimeout)
			defer cancel()

			start := time.Now()
			positions, err := provider.OpenPositions(ctx, sym)
			elapsed := time.Since(start)

			if err != nil {
				log.Printf("[account.positions.%s] [ERROR] %v, took %dms", sym, err, elapsed.Milliseconds())
				return
			}

			log.Printf("[account.positions.%s] [OK] %d positions, took %dms", sym, len(positions), elapsed.Milliseconds())
			for _, pos := range positions {
				log.Printf("  - %s %s: qty=%s entry=%s upnl=%s lev=%d",
					pos.Symbol, pos.PositionSide, pos.Quantity, pos.EntryPrice, pos.UnrealizedPnL, pos.Leverage)
			}
			open = append(open, positions...)
		}(symbol)
	}

	if rds != nil {
		if data, err := json.Marshal(open); err == nil {
			ctx, cancel := context.WithTimeout(parentCtx, apiTimeout)
			cacheValue(ctx, rds, cacheutil.PositionsSnapshotKey(providerName), string(data), cacheutil.PositionsSnapshotTTL(ttl))
			cancel()
		}
	}

	// The balance surface is an optional capability; simulated providers
	// support it, read-only keys on real venues may not.
	account, ok := provider.(exchange.AccountClient)
	if !ok {
		log.Printf("[account.balance] [SKIP] provider %s does not expose balances", providerName)
		return
	}

	func() {
		ctx, cancel := context.WithTimeout(parentCtx, apiTimeout)
		defer cancel()

		start := time.Now()
		bal, err := account.Balance(ctx)
		elapsed := time.Since(start)

		if err != nil {
			log.Printf("[account.balance] [ERROR] %v, took %dms", err, elapsed.Milliseconds())
			return
		}
		if bal == nil {
			log.Printf("[account.balance] [WARN] received nil balance, took %dms", elapsed.Milliseconds())
			return
		}

		log.Printf("[account.balance] [OK] asset=%s equity=%s available=%s used=%s upnl=%s, took %dms",
			bal.Asset, bal.Equity, bal.AvailableMargin, bal.UsedMargin, bal.UnrealizedProfit, elapsed.Milliseconds())

		if err := persistence.RecordBalance(ctx, providerName, bal); err != nil {
			log.Printf("[account.balance] [WARN] snapshot not persisted: %v", err)
		}

		if data, err := json.Marshal(bal); err == nil {
			cacheValue(ctx, rds, cacheutil.BalanceLatestKey(providerName), string(data), cacheutil.BalanceLatestTTL(ttl))
		}
	}()
}

// monitorFilters refreshes tradability filters for each monitored symbol
func monitorFilters(parentCtx context.Context, provider exchange.Client, symbols []string) {
	// Check if parent context is already cancelled
	if parentCtx.Err() != nil {
		return
	}

	for _, symbol := range symbols {
		func(sym string) {
			ctx, cancel := context.WithTimeout(parentCtx, apiTimeout)
			defer cancel()

			start := time.Now()
			filters, err := provider.SymbolFilters(ctx, sym)
			elapsed := time.Since(start)

			if err != nil {
				log.Printf("[filters.%s] [ERROR] %v, took %dms", sym, err, elapsed.Milliseconds())
				return
			}

			log.Printf("[filters.%s] [OK] step=%s minQty=%s tick=%s, took %dms",
				sym, filters.StepSize, filters.MinQty, filters.TickSize, elapsed.Milliseconds())
		}(symbol)
	}
}

// cacheValue writes a polled value to Redis when a client is configured.
func cacheValue(ctx context.Context, rds *redis.Redis, key, value string, ttl time.Duration) {
	if rds == nil {
		return
	}
	seconds := int(ttl.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	if err := rds.SetexCtx(ctx, key, value, seconds); err != nil {
		log.Printf("[cache] [WARN] setex %s: %v", key, err)
	}
}
