package cache

import (
	"strings"
	"time"

	"sigex/internal/config"
)

// Namespace is the Redis key prefix for the sigex application.
const Namespace = "sigex"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

// Scaled applies a multiplier to a TTL class, useful for half/double TTL variants.
func (t TTLSet) Scaled(class TTLClass, factor float64) time.Duration {
	base := t.Duration(class)
	if base <= 0 || factor <= 0 {
		return base
	}
	return time.Duration(float64(base) * factor)
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// --- Order Audit Keys ---------------------------------------------------------

// OrdersRecentKey caches the default recent order-audit listing.
func OrdersRecentKey() string {
	return formatKey("orders", "recent")
}

// OrderByCloidKey caches a single audit row looked up by client order ID.
func OrderByCloidKey(clientOrderID string) string {
	return formatKey("orders", "cloid", clientOrderID)
}

// --- Accounting Keys ----------------------------------------------------------

// BalanceLatestKey caches the latest balance snapshot per provider.
func BalanceLatestKey(provider string) string {
	return formatKey("balance", "latest", provider)
}

// --- Monitor Keys -------------------------------------------------------------

// MarkPriceKey stores the last polled mark price per provider and symbol.
func MarkPriceKey(provider, symbol string) string {
	return formatKey("mark", provider, symbol)
}

// PositionsSnapshotKey stores the last polled open-positions payload.
func PositionsSnapshotKey(provider string) string {
	return formatKey("positions", provider)
}

// --- TTL Helpers --------------------------------------------------------------

// OrdersRecentTTL returns the TTL for recent order lists.
func OrdersRecentTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// OrderByCloidTTL returns the TTL for single audit row lookups.
func OrderByCloidTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// BalanceLatestTTL returns the TTL for balance snapshots.
func BalanceLatestTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// MarkPriceTTL returns the TTL for polled mark prices.
func MarkPriceTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLShort, 0.5) // target ~5s when short=10s
}

// PositionsSnapshotTTL returns the TTL for open-position snapshots.
func PositionsSnapshotTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}
