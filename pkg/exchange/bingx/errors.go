package bingx

import (
	"errors"
	"fmt"
	"strings"
)

// ErrGetMarginEndpoint is returned whenever a getMargin route would be
// dispatched. The endpoint is deprecated on the exchange side and silently
// corrupts fallback chains, so it is refused before any request is built.
var ErrGetMarginEndpoint = errors.New("bingx: the getMargin endpoint is deprecated and must not be used")

// APIError describes a request BingX rejected, either at the HTTP layer or
// through a non-zero envelope code.
type APIError struct {
	Method     string
	Target     string // full request URL when known
	Path       string // path as dispatched, drives the order-route hint
	Code       string
	Msg        string
	HTTPStatus int
}

func (e *APIError) Error() string {
	target := e.Target
	if target == "" {
		target = e.Path
	}
	if target == "" {
		target = "<unknown>"
	}
	text := fmt.Sprintf("bingx: %s %s", e.Method, target)
	if details := strings.TrimSpace(strings.TrimSpace(e.Code) + " " + strings.TrimSpace(e.Msg)); details != "" {
		text += ": " + details
	}
	if strings.TrimRight(e.Path, "/") == pathOrder {
		text += fmt.Sprintf(" (use POST %s%s with x-www-form-urlencoded)", BaseURL, pathOrder)
	}
	return text
}

// Documented hints for error codes the upstream docs explain poorly.
var errorHints = map[string]string{
	"109414": "hedge mode is active, send LONG/SHORT position sides",
	"101205": "no matching position on this side to close",
}

func hintFor(code, msgLower string) string {
	if hint, ok := errorHints[code]; ok {
		return hint
	}
	if strings.Contains(msgLower, "signature") || strings.Contains(msgLower, "timestamp") {
		return "check system clock and parameter sorting"
	}
	return ""
}

var rateLimitTokens = []string{"too many", "limit", "frequency"}

func looksRateLimited(msgLower string) bool {
	for _, token := range rateLimitTokens {
		if strings.Contains(msgLower, token) {
			return true
		}
	}
	return false
}

func isDuplicateClientOrderID(msgLower string) bool {
	return strings.Contains(msgLower, "duplicate") && strings.Contains(msgLower, "client")
}

// IsMissingEndpoint reports whether err is the BingX "this api is not exist"
// rejection (code 100400) that lets the fallback chain advance to the next
// candidate path. Every other error aborts the chain.
func IsMissingEndpoint(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	text := strings.ToLower(apiErr.Code + " " + apiErr.Msg)
	return strings.Contains(text, "100400") &&
		strings.Contains(text, "api") &&
		strings.Contains(text, "not exist")
}

// IsRateLimited reports whether err was a rate-limit rejection that survived
// the client's own retry budget.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.HTTPStatus == 429 || looksRateLimited(strings.ToLower(apiErr.Msg))
}
