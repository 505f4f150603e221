package signal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultOrderIDPrefix tags client order ids derived from alerts.
	DefaultOrderIDPrefix = "tv"

	// BingX rejects client order ids longer than 64 characters.
	maxClientOrderIDLen = 64
)

var sanitizePattern = regexp.MustCompile(`[^a-z0-9]+`)

// ClientOrderID derives a deterministic client order id of the form
// "{prefix}::{token}::{ts_ms}", truncated to 64 characters. The token is the
// sanitized alert id when present, otherwise a short digest of the payload.
// The timestamp is supplied by the caller so retries of the same attempt
// reuse the identifier instead of minting a fresh one.
func ClientOrderID(prefix, alertID string, payload map[string]any, ts time.Time) string {
	if prefix == "" {
		prefix = DefaultOrderIDPrefix
	}
	token := hashPayload(payload)
	if alertID != "" {
		token = sanitizeToken(alertID)
	}
	id := fmt.Sprintf("%s::%s::%d", prefix, token, ts.UnixMilli())
	if len(id) > maxClientOrderIDLen {
		id = id[:maxClientOrderIDLen]
	}
	return id
}

func sanitizeToken(text string) string {
	cleaned := sanitizePattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), "-")
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		return "order"
	}
	return cleaned
}

// hashPayload digests the canonical JSON encoding of payload. Map keys are
// sorted by encoding/json, which keeps the digest stable for one logical
// alert.
func hashPayload(payload map[string]any) string {
	if len(payload) == 0 {
		return "payload"
	}
	canonical, err := json.Marshal(payload)
	if err != nil {
		return "payload"
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:12]
}
