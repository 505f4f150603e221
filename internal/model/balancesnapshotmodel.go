package model

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ BalanceSnapshotsModel = (*defaultBalanceSnapshotsModel)(nil)

type (
	// BalanceSnapshotsModel persists periodic margin-account snapshots taken
	// by the monitor loop.
	BalanceSnapshotsModel interface {
		Insert(ctx context.Context, data *BalanceSnapshot) error
		FindLatest(ctx context.Context, provider string) (*BalanceSnapshot, error)
	}

	defaultBalanceSnapshotsModel struct {
		conn  sqlx.SqlConn
		table string
	}

	// BalanceSnapshot mirrors the balance_snapshots table. Money fields are
	// stored as text to preserve decimal precision.
	BalanceSnapshot struct {
		ID              string    `db:"id"`
		CreatedAt       time.Time `db:"created_at"`
		Provider        string    `db:"provider"`
		Asset           string    `db:"asset"`
		WalletBalance   string    `db:"wallet_balance"`
		Equity          string    `db:"equity"`
		AvailableMargin string    `db:"available_margin"`
		UsedMargin      string    `db:"used_margin"`
		UnrealizedPnl   string    `db:"unrealized_pnl"`
	}
)

const balanceSnapshotColumns = `
    id,
    created_at,
    provider,
    asset,
    wallet_balance,
    equity,
    available_margin,
    used_margin,
    unrealized_pnl`

// NewBalanceSnapshotsModel returns a model for the balance_snapshots table.
func NewBalanceSnapshotsModel(conn sqlx.SqlConn) BalanceSnapshotsModel {
	return &defaultBalanceSnapshotsModel{conn: conn, table: "public.balance_snapshots"}
}

func (m *defaultBalanceSnapshotsModel) Insert(ctx context.Context, data *BalanceSnapshot) error {
	query := fmt.Sprintf(`
INSERT INTO %s (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, m.table, balanceSnapshotColumns)

	_, err := m.conn.ExecCtx(ctx, query,
		data.ID,
		data.CreatedAt,
		data.Provider,
		data.Asset,
		data.WalletBalance,
		data.Equity,
		data.AvailableMargin,
		data.UsedMargin,
		data.UnrealizedPnl,
	)
	if err != nil {
		return fmt.Errorf("balanceSnapshotsModel.Insert: %w", err)
	}
	return nil
}

func (m *defaultBalanceSnapshotsModel) FindLatest(ctx context.Context, provider string) (*BalanceSnapshot, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE provider = $1
ORDER BY created_at DESC
LIMIT 1`, balanceSnapshotColumns, m.table)

	var data BalanceSnapshot
	err := m.conn.QueryRowCtx(ctx, &data, query, provider)
	switch err {
	case nil:
		return &data, nil
	case sqlx.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("balanceSnapshotsModel.FindLatest: %w", err)
	}
}
