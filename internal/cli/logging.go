package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"sigex/internal/config"
	"sigex/pkg/confkit"
)

// ConfigSummaryLines returns human readable lines describing the loaded app
// config, including the effective execution posture (dry-run in test env).
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	var lines []string
	if cfg.MainPath() != "" {
		lines = append(lines, fmt.Sprintf("Config file: %s", cfg.MainPath()))
	}
	lines = append(lines,
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Data path: %s", cfg.DataPath),
		fmt.Sprintf("Postgres: %s", presence(cfg.Postgres.DSN != "")),
		fmt.Sprintf("Redis: %s", presence(strings.TrimSpace(cfg.Redis.Host) != "")),
		fmt.Sprintf("TTL (short/medium/long): %ds / %ds / %ds", cfg.TTL.Short, cfg.TTL.Medium, cfg.TTL.Long),
		sectionLine("Exchange config", cfg.Exchange),
		sectionLine("Execution config", cfg.Execution),
	)
	lines = append(lines, exchangeLines(cfg)...)
	lines = append(lines, executionLines(cfg)...)
	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func exchangeLines(cfg *config.Config) []string {
	ex := cfg.Exchange.Value
	if ex == nil {
		return nil
	}
	names := make([]string, 0, len(ex.Providers))
	for name := range ex.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return []string{
		fmt.Sprintf("Exchange providers: %s (default %s)", strings.Join(names, ", "), ex.Default),
	}
}

func executionLines(cfg *config.Config) []string {
	exec := cfg.Execution.Value
	if exec == nil {
		return nil
	}
	// The service context forces dry-run in test env; report the effective value.
	dryRun := exec.Trade.DryRun || cfg.IsTestEnv()
	lines := []string{
		fmt.Sprintf("Dispatcher: queue %d, workers %d", exec.Dispatcher.QueueSize, exec.Dispatcher.Workers),
		fmt.Sprintf("Trade: margin %s, leverage %d/%d, %s, hedge=%t, dry-run=%t",
			marginLabel(exec.Trade.MarginUSDT), exec.Trade.LeverageLong, exec.Trade.LeverageShort,
			strings.ToLower(exec.Trade.MarginMode()), exec.Trade.Hedge, dryRun),
		fmt.Sprintf("Webhook secret: %s", presence(exec.WebhookSecret != "")),
	}
	if len(exec.SymbolWhitelist) > 0 {
		lines = append(lines, fmt.Sprintf("Symbol whitelist: %s", strings.Join(exec.SymbolWhitelist, ", ")))
	}
	return lines
}

func marginLabel(margin decimal.Decimal) string {
	if !margin.IsPositive() {
		return "alert-specified"
	}
	return margin.String() + " USDT"
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: not configured", name)
	}
}
