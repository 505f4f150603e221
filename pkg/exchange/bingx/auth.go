package bingx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// encodeParams builds the canonical query string BingX signs against:
// stringified values, timestamp and recvWindow injected when absent (for
// authenticated calls), keys sorted, RFC3986 percent-encoding with -_.~
// preserved.
func (c *Client) encodeParams(params map[string]any, withAuthFields bool) string {
	payload := make(map[string]string, len(params)+2)
	for key, value := range params {
		if value == nil {
			continue
		}
		payload[key] = stringifyParam(value)
	}

	if withAuthFields {
		if _, ok := payload["timestamp"]; !ok {
			payload["timestamp"] = strconv.FormatInt(c.clock().UnixMilli(), 10)
		}
		if _, ok := payload["recvWindow"]; !ok && c.recvWindow > 0 {
			payload["recvWindow"] = strconv.FormatInt(c.recvWindow, 10)
		}
	}
	if len(payload) == 0 {
		return ""
	}

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(rfc3986Encode(key))
		b.WriteByte('=')
		b.WriteString(rfc3986Encode(payload[key]))
	}
	return b.String()
}

// signParams returns the canonical query with the HMAC-SHA256 hex signature
// appended.
func (c *Client) signParams(params map[string]any) string {
	canonical := c.encodeParams(params, true)
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(canonical))
	signature := hex.EncodeToString(mac.Sum(nil))
	if canonical == "" {
		return "signature=" + signature
	}
	return canonical + "&signature=" + signature
}

// stringifyParam renders a parameter the way BingX expects it on the wire.
// Decimal values keep their literal precision and never use exponent
// notation; trailing zeros are stripped so the signed text matches what a
// human would type.
func stringifyParam(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case decimal.Decimal:
		return formatDecimal(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return formatDecimal(decimal.NewFromFloat(v))
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func formatDecimal(d decimal.Decimal) string {
	text := d.String()
	if strings.Contains(text, ".") {
		text = strings.TrimRight(text, "0")
		text = strings.TrimRight(text, ".")
	}
	if text == "" || text == "-" {
		return "0"
	}
	return text
}

const upperhex = "0123456789ABCDEF"

// rfc3986Encode percent-encodes everything outside the RFC3986 unreserved
// set. net/url escapes spaces as "+" and tilde as %7E, both of which break
// the BingX signature, hence the manual encoder.
func rfc3986Encode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch >= 'A' && ch <= 'Z' || ch >= 'a' && ch <= 'z' || ch >= '0' && ch <= '9' ||
			ch == '-' || ch == '_' || ch == '.' || ch == '~' {
			b.WriteByte(ch)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[ch>>4])
		b.WriteByte(upperhex[ch&0x0f])
	}
	return b.String()
}

var signaturePattern = regexp.MustCompile(`(signature=)[0-9a-fA-F]+`)

// redactSignature blanks the signature value so request logging never leaks
// signing material.
func redactSignature(query string) string {
	if query == "" {
		return ""
	}
	return signaturePattern.ReplaceAllString(query, "${1}<redacted>")
}
