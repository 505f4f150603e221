package executor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"sigex/pkg/confkit"
	"sigex/pkg/signal"
)

// Config controls runtime behaviour for the execution pipeline.
type Config struct {
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Trade      TradeConfig      `yaml:"trade"`

	WebhookSecret   string   `yaml:"webhook_secret"`
	SymbolWhitelist []string `yaml:"symbol_whitelist"`
	CloidPrefix     string   `yaml:"cloid_prefix"`
}

// DispatcherConfig bounds the alert queue between the webhook and the
// execution workers.
type DispatcherConfig struct {
	QueueSize int `yaml:"queue_size"`
	Workers   int `yaml:"workers"`
}

// ResilienceConfig tunes the retry loop, circuit breaker, per-symbol
// throttle, and dedupe window.
type ResilienceConfig struct {
	MaxRetries       int     `yaml:"max_retries"`
	BackoffBase      float64 `yaml:"backoff_base"`
	BreakerThreshold int     `yaml:"breaker_threshold"`

	BackoffCapRaw string        `yaml:"backoff_cap"`
	BackoffCap    time.Duration `yaml:"-"`

	BreakerRecoveryRaw string        `yaml:"breaker_recovery"`
	BreakerRecovery    time.Duration `yaml:"-"`

	ThrottleIntervalRaw string        `yaml:"throttle_interval"`
	ThrottleInterval    time.Duration `yaml:"-"`

	DedupeTTLRaw string        `yaml:"dedupe_ttl"`
	DedupeTTL    time.Duration `yaml:"-"`
}

// TradeConfig carries the account-level order defaults applied when an
// alert does not override them.
type TradeConfig struct {
	MarginUSDTRaw string          `yaml:"margin_usdt"`
	MarginUSDT    decimal.Decimal `yaml:"-"`

	LeverageLong  int    `yaml:"leverage_long"`
	LeverageShort int    `yaml:"leverage_short"`
	Isolated      bool   `yaml:"isolated"`
	Hedge         bool   `yaml:"hedge"`
	MarginCoin    string `yaml:"margin_coin"`

	SyncPositionMode bool `yaml:"sync_position_mode"`
	DryRun           bool `yaml:"dry_run"`
}

// MarginMode translates the isolated flag into the wire value.
func (t TradeConfig) MarginMode() string {
	if t.Isolated {
		return "ISOLATED"
	}
	return "CROSSED"
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open execution config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from a reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read execution config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal execution config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.parseValues(); err != nil {
		return nil, err
	}
	cfg.expandFields()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no execution file is
// provided: conservative resilience settings and dry-run off.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.parseValues(); err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Dispatcher.QueueSize <= 0 {
		c.Dispatcher.QueueSize = 100
	}
	if c.Dispatcher.Workers <= 0 {
		c.Dispatcher.Workers = 1
	}

	if c.Resilience.MaxRetries <= 0 {
		c.Resilience.MaxRetries = 3
	}
	if c.Resilience.BackoffBase <= 1 {
		c.Resilience.BackoffBase = 2.0
	}
	if c.Resilience.BreakerThreshold <= 0 {
		c.Resilience.BreakerThreshold = 3
	}
	if strings.TrimSpace(c.Resilience.BackoffCapRaw) == "" {
		c.Resilience.BackoffCapRaw = "30s"
	}
	if strings.TrimSpace(c.Resilience.BreakerRecoveryRaw) == "" {
		c.Resilience.BreakerRecoveryRaw = "30s"
	}
	if strings.TrimSpace(c.Resilience.ThrottleIntervalRaw) == "" {
		c.Resilience.ThrottleIntervalRaw = "1s"
	}
	if strings.TrimSpace(c.Resilience.DedupeTTLRaw) == "" {
		c.Resilience.DedupeTTLRaw = "30s"
	}

	if c.Trade.LeverageLong <= 0 {
		c.Trade.LeverageLong = 1
	}
	if c.Trade.LeverageShort <= 0 {
		c.Trade.LeverageShort = c.Trade.LeverageLong
	}
	if strings.TrimSpace(c.Trade.MarginCoin) == "" {
		c.Trade.MarginCoin = "USDT"
	}
	if strings.TrimSpace(c.CloidPrefix) == "" {
		c.CloidPrefix = signal.DefaultOrderIDPrefix
	}
}

func (c *Config) parseValues() error {
	parse := func(field, raw string) (time.Duration, error) {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("execution config: invalid %s %q: %w", field, raw, err)
		}
		if d <= 0 {
			return 0, fmt.Errorf("execution config: %s must be positive, got %s", field, d)
		}
		return d, nil
	}

	var err error
	if c.Resilience.BackoffCap, err = parse("backoff_cap", c.Resilience.BackoffCapRaw); err != nil {
		return err
	}
	if c.Resilience.BreakerRecovery, err = parse("breaker_recovery", c.Resilience.BreakerRecoveryRaw); err != nil {
		return err
	}
	if c.Resilience.ThrottleInterval, err = parse("throttle_interval", c.Resilience.ThrottleIntervalRaw); err != nil {
		return err
	}
	if c.Resilience.DedupeTTL, err = parse("dedupe_ttl", c.Resilience.DedupeTTLRaw); err != nil {
		return err
	}

	raw := strings.TrimSpace(c.Trade.MarginUSDTRaw)
	if raw != "" {
		margin, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("execution config: invalid margin_usdt %q: %w", raw, err)
		}
		if !margin.IsPositive() {
			return fmt.Errorf("execution config: margin_usdt must be positive, got %s", margin)
		}
		c.Trade.MarginUSDT = margin
	}
	return nil
}

func (c *Config) expandFields() {
	c.WebhookSecret = strings.TrimSpace(os.ExpandEnv(c.WebhookSecret))
	for i, symbol := range c.SymbolWhitelist {
		c.SymbolWhitelist[i] = strings.ToUpper(strings.TrimSpace(symbol))
	}
	c.CloidPrefix = strings.TrimSpace(c.CloidPrefix)
	c.Trade.MarginCoin = strings.ToUpper(strings.TrimSpace(c.Trade.MarginCoin))
}

// Validate ensures configuration sanity.
func (c *Config) Validate() error {
	if c.Dispatcher.QueueSize <= 0 {
		return errors.New("execution config: dispatcher queue_size must be positive")
	}
	if c.Dispatcher.Workers <= 0 {
		return errors.New("execution config: dispatcher workers must be positive")
	}
	if c.Resilience.MaxRetries < 0 {
		return errors.New("execution config: max_retries must not be negative")
	}
	if c.Resilience.BackoffBase <= 1 {
		return errors.New("execution config: backoff_base must be greater than 1")
	}
	if c.Resilience.BreakerThreshold <= 0 {
		return errors.New("execution config: breaker_threshold must be positive")
	}
	if c.Trade.LeverageLong <= 0 || c.Trade.LeverageShort <= 0 {
		return errors.New("execution config: leverage must be positive")
	}
	for _, symbol := range c.SymbolWhitelist {
		if symbol == "" {
			return errors.New("execution config: symbol_whitelist contains empty value")
		}
	}
	return nil
}
