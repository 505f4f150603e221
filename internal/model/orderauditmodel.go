package model

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ OrderAuditModel = (*defaultOrderAuditModel)(nil)

type (
	// OrderAuditModel persists one row per processed webhook signal,
	// successful or not.
	OrderAuditModel interface {
		Insert(ctx context.Context, data *OrderAudit) error
		FindOneByClientOrderID(ctx context.Context, clientOrderID string) (*OrderAudit, error)
		FindRecent(ctx context.Context, limit int) ([]*OrderAudit, error)
		FindRecentBySymbols(ctx context.Context, symbols []string, limit int) ([]*OrderAudit, error)
	}

	defaultOrderAuditModel struct {
		conn  sqlx.SqlConn
		table string
	}

	// OrderAudit mirrors the order_audit table. Quantity and price are stored
	// as text so the row preserves the exact decimal strings sent to the venue.
	OrderAudit struct {
		ID            string    `db:"id"`
		CreatedAt     time.Time `db:"created_at"`
		EnqueuedAt    time.Time `db:"enqueued_at"`
		Symbol        string    `db:"symbol"`
		Action        string    `db:"action"`
		AlertID       string    `db:"alert_id"`
		ClientOrderID string    `db:"client_order_id"`
		OrderID       string    `db:"order_id"`
		Side          string    `db:"side"`
		PositionSide  string    `db:"position_side"`
		OrderType     string    `db:"order_type"`
		Quantity      string    `db:"quantity"`
		Price         string    `db:"price"`
		Leverage      int       `db:"leverage"`
		Status        string    `db:"status"`
		ReduceOnly    bool      `db:"reduce_only"`
		ClosePosition bool      `db:"close_position"`
		Duplicate     bool      `db:"duplicate"`
		DryRun        bool      `db:"dry_run"`
		Error         string    `db:"error"`
		Worker        int       `db:"worker"`
		LatencyMs     int64     `db:"latency_ms"`
	}
)

const orderAuditColumns = `
    id,
    created_at,
    enqueued_at,
    symbol,
    action,
    alert_id,
    client_order_id,
    order_id,
    side,
    position_side,
    order_type,
    quantity,
    price,
    leverage,
    status,
    reduce_only,
    close_position,
    duplicate,
    dry_run,
    error,
    worker,
    latency_ms`

// NewOrderAuditModel returns a model for the order_audit table.
func NewOrderAuditModel(conn sqlx.SqlConn) OrderAuditModel {
	return &defaultOrderAuditModel{conn: conn, table: "public.order_audit"}
}

func (m *defaultOrderAuditModel) Insert(ctx context.Context, data *OrderAudit) error {
	query := fmt.Sprintf(`
INSERT INTO %s (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		m.table, orderAuditColumns)

	_, err := m.conn.ExecCtx(ctx, query,
		data.ID,
		data.CreatedAt,
		data.EnqueuedAt,
		data.Symbol,
		data.Action,
		data.AlertID,
		data.ClientOrderID,
		data.OrderID,
		data.Side,
		data.PositionSide,
		data.OrderType,
		data.Quantity,
		data.Price,
		data.Leverage,
		data.Status,
		data.ReduceOnly,
		data.ClosePosition,
		data.Duplicate,
		data.DryRun,
		data.Error,
		data.Worker,
		data.LatencyMs,
	)
	if err != nil {
		return fmt.Errorf("orderAuditModel.Insert: %w", err)
	}
	return nil
}

func (m *defaultOrderAuditModel) FindOneByClientOrderID(ctx context.Context, clientOrderID string) (*OrderAudit, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE client_order_id = $1
ORDER BY created_at DESC
LIMIT 1`, orderAuditColumns, m.table)

	var data OrderAudit
	err := m.conn.QueryRowCtx(ctx, &data, query, clientOrderID)
	switch err {
	case nil:
		return &data, nil
	case sqlx.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("orderAuditModel.FindOneByClientOrderID: %w", err)
	}
}

func (m *defaultOrderAuditModel) FindRecent(ctx context.Context, limit int) ([]*OrderAudit, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM %s
ORDER BY created_at DESC
LIMIT $1`, orderAuditColumns, m.table)

	var rows []*OrderAudit
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("orderAuditModel.FindRecent: %w", err)
	}
	return rows, nil
}

func (m *defaultOrderAuditModel) FindRecentBySymbols(ctx context.Context, symbols []string, limit int) ([]*OrderAudit, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE symbol = ANY($1)
ORDER BY created_at DESC
LIMIT $2`, orderAuditColumns, m.table)

	var rows []*OrderAudit
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, pq.Array(symbols), limit); err != nil {
		return nil, fmt.Errorf("orderAuditModel.FindRecentBySymbols: %w", err)
	}
	return rows, nil
}
