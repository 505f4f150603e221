package signal

import (
	"sync"
	"time"
)

// DefaultDedupeTTL bounds how long a processed alert suppresses repeats.
const DefaultDedupeTTL = 30 * time.Second

// DedupeKey derives the suppression key for a signal: symbol, collapsed
// direction and the alert's time token, joined with "|". An empty string
// means the signal carries nothing to deduplicate on.
func DedupeKey(sig TradeSignal) string {
	token := sig.BarTime
	if token == "" {
		token = sig.AlertID
	}
	if sig.Symbol == "" || token == "" {
		return ""
	}
	return sig.Symbol + "|" + actionGroup(sig.Action) + "|" + token
}

// actionGroup collapses open and close of the same side into one bucket, so
// a strategy's paired entry/exit alerts for the same bar dedupe together.
func actionGroup(action Action) string {
	if action == "" {
		return "OTHER"
	}
	return action.Direction()
}

// Cache tracks recently seen dedupe keys within a TTL window.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	nowFn   func() time.Time
	entries map[string]time.Time
}

// NewCache returns a Cache with the given TTL. A non-positive ttl selects
// DefaultDedupeTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &Cache{
		ttl:     ttl,
		nowFn:   time.Now,
		entries: make(map[string]time.Time),
	}
}

// Seen reports whether key was recorded within the TTL window and refreshes
// its timestamp either way. Expired entries are purged lazily on access. An
// empty key is never considered seen.
func (c *Cache) Seen(key string) bool {
	if key == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFn()
	c.purgeLocked(now)
	_, seen := c.entries[key]
	c.entries[key] = now
	return seen
}

// Len returns the number of live entries, purging expired ones first.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeLocked(c.nowFn())
	return len(c.entries)
}

func (c *Cache) purgeLocked(now time.Time) {
	for key, at := range c.entries {
		if now.Sub(at) > c.ttl {
			delete(c.entries, key)
		}
	}
}
