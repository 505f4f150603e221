package signal

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Action identifies the canonical intent of an alert.
type Action string

const (
	ActionLongOpen   Action = "LONG_OPEN"
	ActionLongClose  Action = "LONG_CLOSE"
	ActionShortOpen  Action = "SHORT_OPEN"
	ActionShortClose Action = "SHORT_CLOSE"
)

// IsClose reports whether the action reduces an existing position.
func (a Action) IsClose() bool {
	return a == ActionLongClose || a == ActionShortClose
}

// Direction returns "long" or "short" depending on which side of the book
// the action concerns.
func (a Action) Direction() string {
	if a == ActionShortOpen || a == ActionShortClose {
		return "short"
	}
	return "long"
}

// TradeSignal is the canonical form of a TradingView alert. Quantity,
// MarginUSDT and Leverage are zero when the alert does not carry them.
type TradeSignal struct {
	Symbol       string          `json:"symbol"` // BASE-QUOTE
	Action       Action          `json:"action"`
	Quantity     decimal.Decimal `json:"quantity"`
	MarginUSDT   decimal.Decimal `json:"marginUsdt"`
	Leverage     int             `json:"leverage"`
	PositionSide string          `json:"positionSide,omitempty"` // LONG or SHORT override
	OrderType    string          `json:"orderType,omitempty"`    // MARKET when empty
	Price        decimal.Decimal `json:"price"`                  // limit price
	TimeInForce  string          `json:"timeInForce,omitempty"`
	AlertID      string          `json:"alertId,omitempty"`
	BarTime      string          `json:"barTime,omitempty"`
	Secret       string          `json:"-"`

	// Raw holds the decoded payload with the canonical fields overlaid,
	// used for idempotency hashing and audit records.
	Raw map[string]any `json:"-"`
}

var (
	kvSeparator      = regexp.MustCompile(`[;&\n\r]+`)
	keyValueSplitter = regexp.MustCompile(`[=:]`)
)

// Parse decodes a raw webhook body into a TradeSignal. JSON objects and
// delimiter-separated key/value text are both accepted; field aliases used
// by common TradingView alert templates are resolved to the canonical
// fields. A non-empty whitelist restricts the symbols accepted.
func Parse(raw []byte, whitelist ...string) (TradeSignal, error) {
	payload, err := Decode(raw)
	if err != nil {
		return TradeSignal{}, err
	}
	return FromPayload(payload, whitelist...)
}

// Decode parses raw webhook bytes into a payload map without validating
// trade fields, so callers can check the shared secret before field
// validation runs.
func Decode(raw []byte) (map[string]any, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, &ValidationError{Msg: "empty request body"}
	}

	payload, ok := decodePayload(text)
	if !ok {
		return nil, &ValidationError{Msg: "payload must be a JSON object or key-value string"}
	}
	return payload, nil
}

// FromPayload canonicalizes a decoded payload into a TradeSignal.
func FromPayload(payload map[string]any, whitelist ...string) (TradeSignal, error) {
	return fromPayload(payload, whitelist)
}

func decodePayload(text string) (map[string]any, bool) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err == nil && !dec.More() {
		payload, ok := decoded.(map[string]any)
		return payload, ok
	}
	return parseKeyValuePayload(text)
}

func parseKeyValuePayload(text string) (map[string]any, bool) {
	payload := make(map[string]any)
	for _, token := range kvSeparator.Split(text, -1) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		parts := keyValueSplitter.Split(token, 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		payload[key] = strings.TrimSpace(parts[1])
	}
	if len(payload) == 0 {
		return nil, false
	}
	return payload, true
}

func fromPayload(payload map[string]any, whitelist []string) (TradeSignal, error) {
	strategy := nestedObject(payload, "strategy")

	symbol, err := resolveSymbol(payload, strategy, whitelist)
	if err != nil {
		return TradeSignal{}, err
	}

	positionSide := resolvePositionSide(payload)

	action, err := canonicalizeAction(resolveAction(payload, strategy), positionSide)
	if err != nil {
		return TradeSignal{}, err
	}

	quantity, err := resolveDecimal(payload, "quantity", "qty", "quantity", "size", "amount", "positionSize")
	if err != nil {
		return TradeSignal{}, err
	}
	margin, err := resolveDecimal(payload, "margin", "margin_usdt", "marginUsdt", "margin", "marginAmount", "marginValue")
	if err != nil {
		return TradeSignal{}, err
	}
	leverage, err := resolveInt(payload, "leverage", "lev", "leverage", "lev_value", "levValue")
	if err != nil {
		return TradeSignal{}, err
	}
	price, err := resolveDecimal(payload, "price", "price", "order_price", "orderPrice", "limit_price", "limitPrice")
	if err != nil {
		return TradeSignal{}, err
	}

	sig := TradeSignal{
		Symbol:       symbol,
		Action:       action,
		Quantity:     quantity,
		MarginUSDT:   margin,
		Leverage:     leverage,
		PositionSide: positionSide,
		OrderType:    strings.ToUpper(resolveString(payload, "order_type", "orderType", "type")),
		Price:        price,
		TimeInForce:  strings.ToUpper(resolveString(payload, "time_in_force", "timeInForce", "tif")),
		AlertID:      resolveString(payload, "alert_id", "alertId", "id"),
		BarTime:      resolveString(payload, "bar_time", "barTime", "time", "timestamp", "ts", "datetime"),
		Secret:       resolveString(payload, "secret"),
		Raw:          payload,
	}

	payload["symbol"] = symbol
	payload["action"] = string(action)
	if !quantity.IsZero() {
		payload["qty"] = quantity.String()
	}
	if !margin.IsZero() {
		payload["margin_usdt"] = margin.String()
	}
	if sig.OrderType != "" {
		payload["order_type"] = sig.OrderType
	}
	if price.IsPositive() {
		payload["price"] = price.String()
	}
	if leverage > 0 {
		payload["lev"] = strconv.Itoa(leverage)
	}
	if sig.AlertID != "" {
		payload["alert_id"] = sig.AlertID
	}
	if sig.BarTime != "" {
		payload["bar_time"] = sig.BarTime
	}
	return sig, nil
}

func resolveSymbol(payload, strategy map[string]any, whitelist []string) (string, error) {
	candidates := []any{
		payload["symbol"],
		payload["ticker"],
		payload["pair"],
		payload["market"],
		payload["SYMBOL"],
	}
	if strategy != nil {
		candidates = append(candidates, strategy["market"], strategy["symbol"])
	}

	var lastErr error
	for _, candidate := range candidates {
		raw := stringifyScalar(candidate)
		if raw == "" {
			continue
		}
		normalized, err := NormalizeSymbol(raw, whitelist...)
		if err == nil {
			return normalized, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", &ValidationError{Msg: "missing symbol"}
}

// resolveAction mirrors the falsy-or chain TradingView templates rely on: an
// empty action field falls through to the next alias.
func resolveAction(payload, strategy map[string]any) string {
	for _, key := range []string{"action", "intent", "signal"} {
		if token := stringifyScalar(payload[key]); token != "" {
			return token
		}
	}
	if strategy != nil {
		return stringifyScalar(strategy["order_action"])
	}
	return ""
}

func resolvePositionSide(payload map[string]any) string {
	raw, _ := firstPresent(payload, "positionSide", "position_side")
	token := normalizeActionToken(stringifyScalar(raw))
	if token == "LONG" || token == "SHORT" {
		return token
	}
	return ""
}

func canonicalizeAction(raw, sideHint string) (Action, error) {
	token := normalizeActionToken(raw)
	if token == "" {
		return "", &ValidationError{Msg: "missing action"}
	}

	switch token {
	case "LONG_OPEN", "OPEN_LONG", "LONG_BUY", "BUY_LONG":
		return ActionLongOpen, nil
	case "LONG_CLOSE", "CLOSE_LONG", "EXIT_LONG", "LONG_SELL", "SELL_LONG":
		return ActionLongClose, nil
	case "SHORT_OPEN", "OPEN_SHORT", "SHORT_SELL", "SELL_SHORT":
		return ActionShortOpen, nil
	case "SHORT_CLOSE", "CLOSE_SHORT", "EXIT_SHORT", "SHORT_BUY", "BUY_SHORT":
		return ActionShortClose, nil
	case "LONG", "BUY":
		return ActionLongOpen, nil
	case "SHORT", "SELL":
		return ActionShortOpen, nil
	case "CLOSE", "EXIT", "FLAT":
		switch sideHint {
		case "LONG":
			return ActionLongClose, nil
		case "SHORT":
			return ActionShortClose, nil
		}
		return "", validationErrorf("action %q requires a LONG or SHORT position side", raw)
	}

	has := func(s string) bool { return strings.Contains(token, s) }
	closing := has("CLOSE") || has("EXIT")
	switch {
	case has("SHORT") && has("BUY"):
		return ActionShortClose, nil
	case has("SHORT") && has("SELL"):
		return ActionShortOpen, nil
	case has("SHORT") && closing:
		return ActionShortClose, nil
	case has("LONG") && has("SELL"):
		return ActionLongClose, nil
	case has("LONG") && has("BUY"):
		return ActionLongOpen, nil
	case has("LONG") && closing:
		return ActionLongClose, nil
	}
	return "", validationErrorf("unknown action %q", raw)
}

func normalizeActionToken(raw string) string {
	token := strings.ToUpper(strings.TrimSpace(raw))
	token = strings.NewReplacer(" ", "_", "-", "_", "/", "_").Replace(token)
	return strings.Join(splitNonEmpty(token, "_"), "_")
}

func nestedObject(payload map[string]any, key string) map[string]any {
	nested, _ := payload[key].(map[string]any)
	return nested
}

// firstPresent returns the value of the first key present in payload. The
// lookup stops at the first present key even when its value is empty, so an
// explicit blank field shadows later aliases.
func firstPresent(payload map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if value, ok := payload[key]; ok {
			return value, true
		}
	}
	return nil, false
}

func resolveString(payload map[string]any, keys ...string) string {
	value, ok := firstPresent(payload, keys...)
	if !ok {
		return ""
	}
	return stringifyScalar(value)
}

func resolveDecimal(payload map[string]any, name string, keys ...string) (decimal.Decimal, error) {
	value, ok := firstPresent(payload, keys...)
	if !ok || value == nil {
		return decimal.Decimal{}, nil
	}
	parsed, err := scalarDecimal(value)
	if err != nil {
		return decimal.Decimal{}, validationErrorf("invalid %s %v", name, value)
	}
	if parsed.IsNegative() {
		return decimal.Decimal{}, validationErrorf("invalid %s %v", name, value)
	}
	return parsed, nil
}

func resolveInt(payload map[string]any, name string, keys ...string) (int, error) {
	parsed, err := resolveDecimal(payload, name, keys...)
	if err != nil {
		return 0, err
	}
	return int(parsed.IntPart()), nil
}

func scalarDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		token := strings.TrimSpace(v)
		if token == "" {
			return decimal.Decimal{}, nil
		}
		return decimal.NewFromString(token)
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return decimal.Decimal{}, validationErrorf("non-numeric value %v", value)
	}
}

func stringifyScalar(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
