package logic

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"sigex/internal/model"
	"sigex/internal/repo"
	"sigex/internal/svc"
	"sigex/internal/types"
	"sigex/pkg/journal"
)

type RecentOrdersLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewRecentOrdersLogic(ctx context.Context, svcCtx *svc.ServiceContext) *RecentOrdersLogic {
	return &RecentOrdersLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// RecentOrders lists the newest execution outcomes: audit rows when Postgres
// is configured, the journal tail otherwise, so the ops surface stays useful
// without storage.
func (l *RecentOrdersLogic) RecentOrders(req *types.RecentOrdersRequest) (*types.RecentOrdersResponse, error) {
	resp := &types.RecentOrdersResponse{Source: "none", Orders: []types.OrderView{}}

	if l.svcCtx.Repo != nil {
		rows, err := l.svcCtx.Repo.Orders.Recent(l.ctx, req.Limit)
		if err != nil {
			return nil, err
		}
		resp.Storage = true
		resp.Source = "postgres"
		for _, row := range rows {
			resp.Orders = append(resp.Orders, orderView(row))
		}
		return resp, nil
	}

	if l.svcCtx.Journal == nil {
		return resp, nil
	}
	limit := req.Limit
	if limit <= 0 {
		limit = repo.DefaultRecentLimit
	}
	entries, err := l.svcCtx.Journal.Tail(limit)
	if err != nil {
		return nil, err
	}
	resp.Source = "journal"
	// Tail is oldest first; the listing reads newest first like the rows.
	for i := len(entries) - 1; i >= 0; i-- {
		resp.Orders = append(resp.Orders, journalView(entries[i]))
	}
	return resp, nil
}

func orderView(row *model.OrderAudit) types.OrderView {
	return types.OrderView{
		CreatedAt:     row.CreatedAt.UTC().Format(time.RFC3339),
		Symbol:        row.Symbol,
		Action:        row.Action,
		Side:          row.Side,
		PositionSide:  row.PositionSide,
		OrderType:     row.OrderType,
		Quantity:      row.Quantity,
		Price:         row.Price,
		Leverage:      row.Leverage,
		Status:        row.Status,
		OrderID:       row.OrderID,
		ClientOrderID: row.ClientOrderID,
		Error:         row.Error,
		Duplicate:     row.Duplicate,
		DryRun:        row.DryRun,
		LatencyMs:     row.LatencyMs,
	}
}

func journalView(entry journal.Entry) types.OrderView {
	view := types.OrderView{
		CreatedAt: entry.FinishedAt.UTC().Format(time.RFC3339),
		Symbol:    entry.Symbol,
		Action:    entry.Action,
		Error:     entry.Error,
	}
	if !entry.StartedAt.IsZero() && !entry.FinishedAt.IsZero() {
		view.LatencyMs = entry.FinishedAt.Sub(entry.StartedAt).Milliseconds()
	}
	if entry.Error != "" {
		view.Status = "FAILED"
		return view
	}

	order := entry.Order
	if order == nil {
		return view
	}
	view.Side = order.Side
	view.PositionSide = order.PositionSide
	view.OrderType = order.Type
	view.Leverage = order.Leverage
	view.OrderID = order.OrderID
	view.ClientOrderID = order.ClientOrderID
	view.Duplicate = order.Duplicate
	view.DryRun = order.DryRun
	if order.Quantity != "" && order.Quantity != "0" {
		view.Quantity = order.Quantity
	}
	if order.Price != "" && order.Price != "0" {
		view.Price = order.Price
	}

	switch {
	case order.DryRun:
		view.Status = "DRY_RUN"
	case order.Status != "":
		view.Status = order.Status
	case order.Duplicate:
		view.Status = "DUPLICATE"
	default:
		view.Status = "SUBMITTED"
	}
	return view
}
