package bingx

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// toDecimal converts the loosely typed scalars BingX returns (strings,
// json.Number, occasionally native numbers) into decimals.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Decimal{}, false
	case decimal.Decimal:
		return x, true
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	default:
		return decimal.Decimal{}, false
	}
}

// mapDecimal returns the value of the first key that parses as a decimal.
func mapDecimal(m map[string]any, keys ...string) (decimal.Decimal, bool) {
	for _, key := range keys {
		v, ok := m[key]
		if !ok {
			continue
		}
		if d, ok := toDecimal(v); ok {
			return d, true
		}
	}
	return decimal.Decimal{}, false
}

// mapString returns the first key holding a non-empty scalar, stringified.
func mapString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		switch x := v.(type) {
		case string:
			if s := strings.TrimSpace(x); s != "" {
				return s
			}
		case json.Number:
			return x.String()
		case bool:
			return strconv.FormatBool(x)
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64)
		case int:
			return strconv.Itoa(x)
		case int64:
			return strconv.FormatInt(x, 10)
		}
	}
	return ""
}

// coerceBool interprets the flag spellings seen across BingX responses.
func coerceBool(v any) (value, ok bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case json.Number:
		switch x.String() {
		case "1":
			return true, true
		case "0":
			return false, true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1", "yes", "y", "on":
			return true, true
		case "false", "0", "no", "n", "off":
			return false, true
		}
	case float64:
		switch x {
		case 1:
			return true, true
		case 0:
			return false, true
		}
	case int:
		switch x {
		case 1:
			return true, true
		case 0:
			return false, true
		}
	}
	return false, false
}

// extractDecimal digs a numeric field out of the loosely shaped payloads
// BingX returns: a plain object, an object nesting the value under data, or
// a list of either.
func extractDecimal(payload any, keys ...string) (decimal.Decimal, bool) {
	switch node := payload.(type) {
	case map[string]any:
		if d, ok := mapDecimal(node, keys...); ok {
			return d, true
		}
		if nested, ok := node["data"]; ok {
			return extractDecimal(nested, keys...)
		}
	case []any:
		for _, item := range node {
			if d, ok := extractDecimal(item, keys...); ok {
				return d, true
			}
		}
	}
	return decimal.Decimal{}, false
}

// extractBool is extractDecimal's counterpart for boolean flags.
func extractBool(payload any, keys ...string) (value, ok bool) {
	switch node := payload.(type) {
	case map[string]any:
		for _, key := range keys {
			if v, present := node[key]; present {
				if b, ok := coerceBool(v); ok {
					return b, true
				}
			}
		}
		if nested, present := node["data"]; present {
			return extractBool(nested, keys...)
		}
	case []any:
		for _, item := range node {
			if b, ok := extractBool(item, keys...); ok {
				return b, true
			}
		}
	}
	return false, false
}

// positiveDecimal is mapDecimal restricted to values greater than zero.
// Zero and unparsable values count as absent so fallback chains keep going.
func positiveDecimal(m map[string]any, keys ...string) (decimal.Decimal, bool) {
	for _, key := range keys {
		v, ok := m[key]
		if !ok {
			continue
		}
		if d, ok := toDecimal(v); ok && d.IsPositive() {
			return d, true
		}
	}
	return decimal.Decimal{}, false
}
