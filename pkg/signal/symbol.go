package signal

import (
	"regexp"
	"strings"
)

// Quote assets recognised when splitting compact symbols such as BTCUSDT.
var knownQuotes = []string{"USDT", "USDC", "BUSD", "USD", "BTC", "ETH"}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{2,}[-_:/]?[A-Z0-9]{2,}$`)

// NormalizeSymbol converts a raw alert symbol into the BASE-QUOTE form the
// exchange expects. Broker prefixes such as "BINANCE:" are stripped, the
// separators "/" and "_" are unified to "-", and compact forms like BTCUSDT
// are split on a known quote asset (falling back to the last four characters
// for longer tokens). When a non-empty whitelist is given, normalized symbols
// outside it are rejected.
func NormalizeSymbol(symbol string, whitelist ...string) (string, error) {
	token := strings.ToUpper(strings.TrimSpace(symbol))
	if idx := strings.LastIndex(token, ":"); idx >= 0 {
		token = token[idx+1:]
	}
	token = strings.NewReplacer("/", "-", "_", "-").Replace(token)

	if token == "" || !symbolPattern.MatchString(strings.ReplaceAll(token, "-", "")) {
		return "", validationErrorf("invalid symbol %q", symbol)
	}

	var base, quote string
	if strings.Contains(token, "-") {
		if parts := splitNonEmpty(token, "-"); len(parts) >= 2 {
			base, quote = parts[0], parts[1]
		}
	} else {
		base, quote = splitCompactSymbol(token)
	}
	if base == "" || quote == "" {
		return "", validationErrorf("cannot normalize symbol %q", symbol)
	}

	normalized := base + "-" + quote
	if len(whitelist) > 0 {
		if !whitelisted(normalized, whitelist) {
			return "", validationErrorf("symbol %s is not whitelisted", normalized)
		}
	}
	return normalized, nil
}

func splitCompactSymbol(token string) (string, string) {
	for _, quote := range knownQuotes {
		if strings.HasSuffix(token, quote) && len(token) > len(quote) {
			return token[:len(token)-len(quote)], quote
		}
	}
	if len(token) >= 6 {
		return token[:len(token)-4], token[len(token)-4:]
	}
	return "", ""
}

func splitNonEmpty(s, sep string) []string {
	var parts []string
	for _, part := range strings.Split(s, sep) {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func whitelisted(normalized string, whitelist []string) bool {
	for _, entry := range whitelist {
		if strings.ToUpper(strings.TrimSpace(entry)) == normalized {
			return true
		}
	}
	return false
}
