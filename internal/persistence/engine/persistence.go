package engine

import (
	"context"
	"fmt"

	"sigex/internal/model"
	"sigex/internal/repo"
	"sigex/pkg/dispatch"
	"sigex/pkg/exchange"
)

var _ dispatch.Recorder = (*Service)(nil)

// Service mirrors execution outcomes and account snapshots into Postgres
// through the audit repositories.
type Service struct {
	repos *repo.Set
}

// Config enumerates dependencies needed to persist execution outcomes.
type Config struct {
	Repos *repo.Set
}

// NewService returns a concrete persistence service, or nil when no
// repositories are configured so callers can skip the recorder entirely.
func NewService(cfg Config) *Service {
	if cfg.Repos == nil {
		return nil
	}
	return &Service{repos: cfg.Repos}
}

// RecordExecution writes one audit row per processed alert. The dispatcher
// logs recorder failures and keeps going, so a Postgres outage never blocks
// the trade path.
func (s *Service) RecordExecution(ctx context.Context, rec dispatch.Record) error {
	if s == nil || s.repos == nil {
		return nil
	}
	if err := s.repos.Orders.Save(ctx, auditRow(rec)); err != nil {
		return fmt.Errorf("engine: save order audit: %w", err)
	}
	return nil
}

// RecordBalance persists a margin-account snapshot taken by the monitor loop.
func (s *Service) RecordBalance(ctx context.Context, provider string, bal *exchange.Balance) error {
	if s == nil || s.repos == nil || bal == nil {
		return nil
	}
	snap := &model.BalanceSnapshot{
		Provider:        provider,
		Asset:           bal.Asset,
		WalletBalance:   bal.WalletBalance.String(),
		Equity:          bal.Equity.String(),
		AvailableMargin: bal.AvailableMargin.String(),
		UsedMargin:      bal.UsedMargin.String(),
		UnrealizedPnl:   bal.UnrealizedProfit.String(),
	}
	if err := s.repos.Accounting.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("engine: save balance snapshot: %w", err)
	}
	return nil
}

func auditRow(rec dispatch.Record) *model.OrderAudit {
	audit := &model.OrderAudit{
		CreatedAt:     rec.FinishedAt.UTC(),
		EnqueuedAt:    rec.Task.EnqueuedAt.UTC(),
		Symbol:        rec.Task.Request.Symbol,
		Action:        string(rec.Task.Request.Action),
		AlertID:       rec.Task.Request.AlertID,
		ClientOrderID: rec.Task.Request.ClientOrderID,
		Worker:        rec.Worker,
	}
	if !rec.StartedAt.IsZero() && !rec.FinishedAt.IsZero() {
		audit.LatencyMs = rec.FinishedAt.Sub(rec.StartedAt).Milliseconds()
	}

	if rec.Err != nil {
		audit.Error = rec.Err.Error()
		audit.Status = "FAILED"
		return audit
	}

	order := rec.Order
	if order == nil {
		return audit
	}
	if order.ClientOrderID != "" {
		audit.ClientOrderID = order.ClientOrderID
	}
	audit.OrderID = order.OrderID
	audit.Side = string(order.Request.Side)
	audit.PositionSide = string(order.Request.PositionSide)
	audit.OrderType = string(order.Request.Type)
	audit.Leverage = order.Leverage
	audit.ReduceOnly = order.Request.ReduceOnly
	audit.ClosePosition = order.Request.ClosePosition
	audit.Duplicate = order.Duplicate
	audit.DryRun = order.DryRun
	if order.Quantity.IsPositive() {
		audit.Quantity = order.Quantity.String()
	}
	if order.Price.IsPositive() {
		audit.Price = order.Price.String()
	}

	switch {
	case order.DryRun:
		audit.Status = "DRY_RUN"
	case order.Status != "":
		audit.Status = order.Status
	case order.Duplicate:
		audit.Status = "DUPLICATE"
	default:
		audit.Status = "SUBMITTED"
	}
	return audit
}
