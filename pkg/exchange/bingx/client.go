package bingx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"sigex/pkg/exchange"
	"sigex/pkg/signal"
)

const (
	defaultHTTPTimeout    = 10 * time.Second
	defaultRecvWindow     = 30_000 // milliseconds
	defaultFilterCacheTTL = 5 * time.Minute
	defaultMaxRetries     = 3
)

// Client talks to the BingX perpetual-futures REST API. It implements
// exchange.Client plus the optional position-mode, balance, and
// cancellation capabilities.
type Client struct {
	baseURL      string
	insecureBase bool
	apiKey       string
	apiSecret    string
	recvWindow   int64
	maxRetries   int
	httpClient   *http.Client
	logger       *log.Logger
	clock        func() time.Time

	filtersMu  sync.RWMutex
	filtersTTL time.Duration
	filters    map[string]filtersEntry
}

var _ exchange.Client = (*Client)(nil)

type filtersEntry struct {
	at      time.Time
	filters exchange.SymbolFilters
}

// ClientOption customises the BingX client.
type ClientOption func(*Client)

// WithBaseURL overrides the base URL. The value must still resolve to the
// official BingX host; tests use WithInsecureBaseURL instead.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithInsecureBaseURL points the client at an arbitrary host and skips the
// official-host guard. Intended for httptest servers, never for production
// configuration; construction logs the override.
func WithInsecureBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
			c.insecureBase = true
		}
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 && c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithLogger attaches a custom logger (defaults to log.Default()).
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source (primarily for testing).
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithRecvWindow sets the recvWindow in milliseconds injected into signed
// queries. Zero disables the injection.
func WithRecvWindow(ms int64) ClientOption {
	return func(c *Client) {
		if ms >= 0 {
			c.recvWindow = ms
		}
	}
}

// WithMaxRetries bounds how often a rate-limited request is retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithFilterCacheTTL sets the contract-filter cache lifetime.
func WithFilterCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		if ttl > 0 {
			c.filtersTTL = ttl
		}
	}
}

// NewClient constructs a BingX trading client for the given credentials.
func NewClient(apiKey, apiSecret string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("bingx: api key and secret are required")
	}

	client := &Client{
		baseURL:    BaseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		recvWindow: defaultRecvWindow,
		maxRetries: defaultMaxRetries,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     log.Default(),
		clock:      time.Now,
		filtersTTL: defaultFilterCacheTTL,
		filters:    make(map[string]filtersEntry),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if client.logger == nil {
		client.logger = log.Default()
	}
	if client.clock == nil {
		client.clock = time.Now
	}

	if client.insecureBase {
		client.logf("bingx: insecure base URL %s configured; the real exchange will not accept these requests", client.baseURL)
	} else if err := assertBase(client.baseURL); err != nil {
		return nil, err
	}
	return client, nil
}

// duplicateOrder wraps the acknowledgement of an order BingX rejected as a
// duplicate client order id. PlaceOrder unwraps it into a success result.
type duplicateOrder struct {
	payload any
}

// request performs one logical API call. The query is signed once up front,
// so rate-limit retries reuse the identical canonical query and timestamp.
func (c *Client) request(ctx context.Context, method, path string, params map[string]any, authenticated bool) (any, error) {
	var query string
	if authenticated {
		query = c.signParams(params)
	} else {
		query = c.encodeParams(params, false)
	}
	url := c.baseURL + path

	for attempt := 0; ; attempt++ {
		payload, retryable, err := c.dispatch(ctx, method, url, path, query, authenticated)
		if err == nil {
			return payload, nil
		}
		if !retryable || attempt >= c.maxRetries {
			return nil, err
		}
		delay := rateLimitBackoff(attempt)
		c.logf("bingx: rate limited (%s %s), retrying in %s", method, path, delay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// dispatch performs a single HTTP round-trip. The bool reports whether the
// failure was a rate limit worth retrying.
func (c *Client) dispatch(ctx context.Context, method, url, path, query string, authenticated bool) (any, bool, error) {
	var (
		httpReq *http.Request
		err     error
	)
	if method == http.MethodPost {
		httpReq, err = http.NewRequestWithContext(ctx, method, url, strings.NewReader(query))
		if err == nil {
			httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		target := url
		if query != "" {
			target = url + "?" + query
		}
		httpReq, err = http.NewRequestWithContext(ctx, method, target, nil)
	}
	if err != nil {
		return nil, false, fmt.Errorf("bingx: build request: %w", err)
	}
	if authenticated {
		httpReq.Header.Set("X-BX-APIKEY", c.apiKey)
	}

	c.logf("bingx → %s %s %s", method, url, redactSignature(query))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, fmt.Errorf("bingx: %s %s: %w", method, url, err)
	}
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, false, fmt.Errorf("bingx: read response: %w", readErr)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, &APIError{
			Method: method, Target: url, Path: path,
			Code: "429", Msg: "rate limit exceeded", HTTPStatus: resp.StatusCode,
		}
	}

	payload, decodeErr := decodeBody(body)
	if decodeErr != nil {
		return nil, false, fmt.Errorf("bingx: decode response from %s %s: %w", method, url, decodeErr)
	}

	if resp.StatusCode != http.StatusOK {
		code, msg := errorDetails(payload, resp.StatusCode)
		return nil, false, &APIError{
			Method: method, Target: url, Path: path,
			Code: code, Msg: msg, HTTPStatus: resp.StatusCode,
		}
	}

	envelope, ok := payload.(map[string]any)
	if !ok {
		return payload, false, nil
	}

	code := envelopeString(envelope, "code")
	if code == "" || code == "0" {
		return envelopeData(envelope), false, nil
	}

	msg := envelopeString(envelope, "msg")
	if msg == "" {
		msg = envelopeString(envelope, "message")
	}
	if msg == "" {
		msg = "unknown error"
	}
	msgLower := strings.ToLower(msg)

	// Parameter-level rejections are terminal; retrying the same query is
	// pointless.
	if code == "100400" {
		return nil, false, &APIError{
			Method: method, Target: url, Path: path,
			Code: code, Msg: msg, HTTPStatus: resp.StatusCode,
		}
	}

	if isDuplicateClientOrderID(msgLower) {
		c.logf("bingx: duplicate clientOrderId on %s, treating as success", path)
		return duplicateOrder{payload: envelopeData(envelope)}, false, nil
	}

	hint := hintFor(code, msgLower)
	retryable := false
	if hint == "" && looksRateLimited(msgLower) {
		retryable = true
		hint = "rate limit exceeded"
	}
	if hint != "" {
		msg = fmt.Sprintf("%s (%s)", msg, hint)
	}
	return nil, retryable, &APIError{
		Method: method, Target: url, Path: path,
		Code: code, Msg: msg, HTTPStatus: resp.StatusCode,
	}
}

// requestWithFallback tries candidate paths in order, advancing only when
// BingX reports the endpoint as missing. Any other error aborts the chain;
// exhausting the candidates returns the last missing-endpoint error.
func (c *Client) requestWithFallback(ctx context.Context, method string, paths []string, params map[string]any, authenticated bool) (any, error) {
	if len(paths) == 0 {
		return nil, errors.New("bingx: no api paths provided")
	}
	for _, path := range paths {
		if strings.Contains(strings.ToLower(path), "getmargin") {
			return nil, ErrGetMarginEndpoint
		}
	}

	var lastErr error
	for _, path := range paths {
		payload, err := c.request(ctx, method, path, params, authenticated)
		if err != nil {
			if !IsMissingEndpoint(err) {
				return nil, err
			}
			c.logf("bingx: endpoint unavailable (%s %s): %v", method, path, err)
			lastErr = err
			continue
		}
		return payload, nil
	}
	return nil, lastErr
}

func (c *Client) normalizeSymbol(symbol string) (string, error) {
	normalized, err := signal.NormalizeSymbol(symbol)
	if err != nil {
		return "", fmt.Errorf("bingx: %w", err)
	}
	return normalized, nil
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

func decodeBody(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func envelopeString(envelope map[string]any, key string) string {
	switch v := envelope[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(v)
	}
}

// envelopeData unwraps the data field, or returns the whole envelope when
// the field is absent.
func envelopeData(envelope map[string]any) any {
	if data, ok := envelope["data"]; ok {
		return data
	}
	return envelope
}

func errorDetails(payload any, status int) (code, msg string) {
	if envelope, ok := payload.(map[string]any); ok {
		code = envelopeString(envelope, "code")
		if code == "" {
			code = fmt.Sprintf("HTTP %d", status)
		}
		msg = envelopeString(envelope, "msg")
		if msg == "" {
			msg = envelopeString(envelope, "message")
		}
		if msg == "" {
			msg = fmt.Sprint(envelope)
		}
		return code, msg
	}
	return fmt.Sprintf("HTTP %d", status), fmt.Sprint(payload)
}

// rateLimitBackoff grows 1s, 2s, 4s, 8s (capped) with up to a second of
// jitter.
func rateLimitBackoff(attempt int) time.Duration {
	base := math.Min(math.Pow(2, float64(attempt)), 8)
	return time.Duration((base + rand.Float64()) * float64(time.Second))
}
