package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"sigex/internal/model"
	"sigex/internal/repo"
	"sigex/pkg/dispatch"
	"sigex/pkg/exchange"
	executorpkg "sigex/pkg/executor"
	"sigex/pkg/signal"
)

type fakeOrders struct {
	saved   []*model.OrderAudit
	saveErr error
}

func (f *fakeOrders) Save(_ context.Context, audit *model.OrderAudit) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, audit)
	return nil
}

func (f *fakeOrders) Recent(context.Context, int) ([]*model.OrderAudit, error) { return nil, nil }

func (f *fakeOrders) RecentBySymbols(context.Context, []string, int) ([]*model.OrderAudit, error) {
	return nil, nil
}

func (f *fakeOrders) FindByClientOrderID(context.Context, string) (*model.OrderAudit, error) {
	return nil, model.ErrNotFound
}

type fakeAccounting struct {
	snaps []*model.BalanceSnapshot
}

func (f *fakeAccounting) SaveSnapshot(_ context.Context, snap *model.BalanceSnapshot) error {
	f.snaps = append(f.snaps, snap)
	return nil
}

func (f *fakeAccounting) LatestSnapshot(context.Context, string) (*model.BalanceSnapshot, error) {
	return nil, model.ErrNotFound
}

func newTestService() (*Service, *fakeOrders, *fakeAccounting) {
	orders := &fakeOrders{}
	accounting := &fakeAccounting{}
	svc := NewService(Config{Repos: &repo.Set{Orders: orders, Accounting: accounting}})
	return svc, orders, accounting
}

func sampleRecord() dispatch.Record {
	enqueued := time.UnixMilli(1718029500000).UTC()
	return dispatch.Record{
		Task: dispatch.Task{
			Request: executorpkg.ExecuteRequest{
				Symbol:  "BTC-USDT",
				Action:  signal.ActionLongOpen,
				AlertID: "alert-1",
			},
			EnqueuedAt: enqueued,
		},
		Order: &executorpkg.ExecutedOrder{
			Request: exchange.OrderRequest{
				Symbol:       "BTC-USDT",
				Side:         exchange.SideBuy,
				Type:         exchange.OrderMarket,
				PositionSide: exchange.PositionLong,
			},
			OrderID:       "42",
			ClientOrderID: "tv::alert-1::1718029500000",
			Status:        "NEW",
			Quantity:      decimal.RequireFromString("0.025"),
			Price:         decimal.RequireFromString("20000"),
			Leverage:      10,
		},
		StartedAt:  enqueued.Add(5 * time.Millisecond),
		FinishedAt: enqueued.Add(255 * time.Millisecond),
		Worker:     1,
	}
}

func TestRecordExecutionMapsOrder(t *testing.T) {
	svc, orders, _ := newTestService()

	if err := svc.RecordExecution(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("RecordExecution: %v", err)
	}
	if len(orders.saved) != 1 {
		t.Fatalf("saved rows = %d, want 1", len(orders.saved))
	}

	audit := orders.saved[0]
	if audit.Symbol != "BTC-USDT" || audit.Action != "LONG_OPEN" {
		t.Fatalf("unexpected signal fields: %+v", audit)
	}
	if audit.Side != "BUY" || audit.PositionSide != "LONG" || audit.OrderType != "MARKET" {
		t.Fatalf("unexpected order fields: %+v", audit)
	}
	if audit.ClientOrderID != "tv::alert-1::1718029500000" || audit.OrderID != "42" {
		t.Fatalf("unexpected ids: %+v", audit)
	}
	if audit.Quantity != "0.025" || audit.Price != "20000" || audit.Leverage != 10 {
		t.Fatalf("unexpected sizing: %+v", audit)
	}
	if audit.Status != "NEW" {
		t.Fatalf("Status = %q, want NEW", audit.Status)
	}
	if audit.LatencyMs != 250 {
		t.Fatalf("LatencyMs = %d, want 250", audit.LatencyMs)
	}
	if audit.Error != "" {
		t.Fatalf("Error = %q, want empty", audit.Error)
	}
}

func TestRecordExecutionMapsFailure(t *testing.T) {
	svc, orders, _ := newTestService()

	rec := sampleRecord()
	rec.Order = nil
	rec.Err = errors.New("exchange unreachable")
	if err := svc.RecordExecution(context.Background(), rec); err != nil {
		t.Fatalf("RecordExecution: %v", err)
	}

	audit := orders.saved[0]
	if audit.Status != "FAILED" {
		t.Fatalf("Status = %q, want FAILED", audit.Status)
	}
	if audit.Error != "exchange unreachable" {
		t.Fatalf("Error = %q", audit.Error)
	}
	if audit.OrderID != "" || audit.Side != "" {
		t.Fatalf("expected no order fields for a failed alert: %+v", audit)
	}
}

func TestRecordExecutionStatuses(t *testing.T) {
	svc, orders, _ := newTestService()

	dryRun := sampleRecord()
	dryRun.Order.DryRun = true
	dup := sampleRecord()
	dup.Order.Duplicate = true
	dup.Order.Status = ""
	bare := sampleRecord()
	bare.Order.Status = ""

	for _, rec := range []dispatch.Record{dryRun, dup, bare} {
		if err := svc.RecordExecution(context.Background(), rec); err != nil {
			t.Fatalf("RecordExecution: %v", err)
		}
	}

	want := []string{"DRY_RUN", "DUPLICATE", "SUBMITTED"}
	for i, status := range want {
		if orders.saved[i].Status != status {
			t.Fatalf("row %d Status = %q, want %q", i, orders.saved[i].Status, status)
		}
	}
}

func TestRecordExecutionSurfacesRepoError(t *testing.T) {
	svc, orders, _ := newTestService()
	orders.saveErr = errors.New("connection refused")

	err := svc.RecordExecution(context.Background(), sampleRecord())
	if err == nil {
		t.Fatal("expected error from repo failure")
	}
}

func TestRecordBalance(t *testing.T) {
	svc, _, accounting := newTestService()

	bal := &exchange.Balance{
		Asset:            "USDT",
		WalletBalance:    decimal.RequireFromString("1000.5"),
		Equity:           decimal.RequireFromString("1012.25"),
		AvailableMargin:  decimal.RequireFromString("900"),
		UsedMargin:       decimal.RequireFromString("112.25"),
		UnrealizedProfit: decimal.RequireFromString("11.75"),
	}
	if err := svc.RecordBalance(context.Background(), "bingx", bal); err != nil {
		t.Fatalf("RecordBalance: %v", err)
	}
	if len(accounting.snaps) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(accounting.snaps))
	}

	snap := accounting.snaps[0]
	if snap.Provider != "bingx" || snap.Asset != "USDT" {
		t.Fatalf("unexpected snapshot identity: %+v", snap)
	}
	if snap.Equity != "1012.25" || snap.UnrealizedPnl != "11.75" {
		t.Fatalf("unexpected snapshot values: %+v", snap)
	}

	if err := svc.RecordBalance(context.Background(), "bingx", nil); err != nil {
		t.Fatalf("nil balance should be a no-op, got %v", err)
	}
	if len(accounting.snaps) != 1 {
		t.Fatalf("nil balance wrote a snapshot")
	}
}

func TestNewServiceWithoutRepos(t *testing.T) {
	if svc := NewService(Config{}); svc != nil {
		t.Fatalf("NewService without repos = %v, want nil", svc)
	}
	var svc *Service
	if err := svc.RecordExecution(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("nil service RecordExecution: %v", err)
	}
}
