package types

// WebhookResponse acknowledges one TradingView alert. Status is one of
// accepted, dry-run, duplicate, rejected, or error.
type WebhookResponse struct {
	Status        string `json:"status"`
	ClientOrderID string `json:"clientOrderId,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// QueueStatus snapshots the dispatch queue for the health surface.
type QueueStatus struct {
	Depth    int `json:"depth"`
	Capacity int `json:"capacity"`
	Workers  int `json:"workers"`
}

// BreakerStatus reports the execution circuit breaker position.
type BreakerStatus struct {
	State    string `json:"state"`
	Failures int    `json:"failures"`
}

type HealthResponse struct {
	Status        string         `json:"status"`
	Env           string         `json:"env"`
	DryRun        bool           `json:"dryRun"`
	Queue         *QueueStatus   `json:"queue,omitempty"`
	Breaker       *BreakerStatus `json:"breaker,omitempty"`
	DedupeEntries int            `json:"dedupeEntries"`
	Journal       string         `json:"journal,omitempty"`
}

type RecentOrdersRequest struct {
	Limit int `form:"limit,optional"`
}

// OrderView is the wire shape of one order audit row. Quantity and price
// stay strings so the exact decimals sent to the venue survive the trip.
type OrderView struct {
	CreatedAt     string `json:"createdAt"`
	Symbol        string `json:"symbol"`
	Action        string `json:"action"`
	Side          string `json:"side,omitempty"`
	PositionSide  string `json:"positionSide,omitempty"`
	OrderType     string `json:"orderType,omitempty"`
	Quantity      string `json:"quantity,omitempty"`
	Price         string `json:"price,omitempty"`
	Leverage      int    `json:"leverage,omitempty"`
	Status        string `json:"status"`
	OrderID       string `json:"orderId,omitempty"`
	ClientOrderID string `json:"clientOrderId,omitempty"`
	Error         string `json:"error,omitempty"`
	Duplicate     bool   `json:"duplicate,omitempty"`
	DryRun        bool   `json:"dryRun,omitempty"`
	LatencyMs     int64  `json:"latencyMs,omitempty"`
}

// RecentOrdersResponse lists recent execution outcomes. Source names where
// they came from: "postgres" audit rows when storage is configured, the
// local "journal" tail otherwise, "none" when neither is available. Storage
// is true only for the Postgres-backed listing.
type RecentOrdersResponse struct {
	Storage bool        `json:"storage"`
	Source  string      `json:"source"`
	Orders  []OrderView `json:"orders"`
}
