package replay

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigex/pkg/dispatch"
	"sigex/pkg/executor"
	"sigex/pkg/journal"
	"sigex/pkg/signal"
)

func TestReplay_JournaledAlertsThroughSim(t *testing.T) {
	ctx := context.Background()
	cloid := "tv::strat-1::1718029500000"

	entries := []journal.Entry{
		{
			Sequence:        1,
			Symbol:          "BTC-USDT",
			Action:          "LONG_OPEN",
			RequestQuantity: "0.5",
			Order:           &journal.OrderEntry{ClientOrderID: cloid, Price: "20000", Status: "FILLED"},
		},
		{
			// Same client order id: the live pipeline recorded a duplicate
			// acknowledgement and the simulator must collapse it again.
			Sequence:        2,
			Symbol:          "BTC-USDT",
			Action:          "LONG_OPEN",
			RequestQuantity: "0.5",
			Order:           &journal.OrderEntry{ClientOrderID: cloid, Price: "20000", Status: "FILLED", Duplicate: true},
		},
		{
			// Sell through the long at a higher mark realizes the PnL.
			Sequence:        3,
			Symbol:          "BTC-USDT",
			Action:          "SHORT_OPEN",
			RequestQuantity: "0.5",
			Order:           &journal.OrderEntry{ClientOrderID: "tv::strat-1::1718029560000", Price: "21000", Status: "FILLED"},
		},
	}

	e := &Engine{Source: NewEntrySource(entries)}
	res, err := e.Run(ctx)
	require.NoError(t, err, "Engine.Run should not error")
	require.NotNil(t, res)

	assert.Equal(t, 3, res.Entries)
	assert.Equal(t, 3, res.Executed)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 0, res.Skipped)

	assert.Equal(t, "100000", res.StartWallet)
	assert.Equal(t, "100500", res.FinalWallet, "0.5 BTC over a 1000 USDT move realizes 500")
	assert.Equal(t, "100500", res.FinalEquity)
	assert.Equal(t, "500", res.RealizedPnL)
	assert.Empty(t, res.OpenPositions, "the sell-through should leave the venue flat")

	require.Len(t, res.Details, 3)
	assert.Equal(t, "FILLED", res.Details[0].Status)
	assert.True(t, res.Details[1].Duplicate, "second entry should collapse on the recorded cloid")
	assert.Equal(t, "0.5", res.Details[2].Quantity)
}

func TestReplay_MarginSizingFromRecordedPrice(t *testing.T) {
	ctx := context.Background()

	entries := []journal.Entry{
		{
			Sequence:        1,
			Symbol:          "BTC-USDT",
			Action:          "LONG_OPEN",
			RequestMargin:   "100",
			RequestLeverage: 10,
			Order:           &journal.OrderEntry{Price: "20000", Status: "FILLED"},
		},
	}

	e := &Engine{Source: NewEntrySource(entries)}
	res, err := e.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Executed)
	require.Len(t, res.OpenPositions, 1)
	assert.Equal(t, "0.05", res.OpenPositions[0].Quantity, "100 USDT at 10x over 20000 sizes to 0.05")
	assert.Equal(t, "20000", res.OpenPositions[0].Entry)
	assert.Equal(t, "0.05", res.Details[0].Quantity)
	assert.Equal(t, "20000", res.Details[0].Price)
}

func TestReplay_HedgeCloseWithoutPositionFails(t *testing.T) {
	ctx := context.Background()

	cfg := executor.Default()
	cfg.Trade.Hedge = true

	entries := []journal.Entry{
		{Sequence: 1, Symbol: "ETH-USDT", Action: "SHORT_CLOSE"},
	}

	e := &Engine{Source: NewEntrySource(entries), Config: cfg}
	res, err := e.Run(ctx)
	require.NoError(t, err, "entry failures are reported, not returned")

	assert.Equal(t, 1, res.Entries)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Executed)
	require.Len(t, res.Details, 1)
	assert.Equal(t, "FAILED", res.Details[0].Status)
	assert.NotEmpty(t, res.Details[0].Error)
}

func TestReplay_SkipsUnreplayableEntries(t *testing.T) {
	ctx := context.Background()

	entries := []journal.Entry{
		{Sequence: 1, Symbol: "BTC-USDT", Action: "REBALANCE"},
		{Sequence: 2, Symbol: "", Action: "LONG_OPEN"},
	}

	e := &Engine{Source: NewEntrySource(entries)}
	res, err := e.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Entries)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 0, res.Executed)
	assert.Equal(t, "SKIPPED", res.Details[0].Status)
	assert.Equal(t, "SKIPPED", res.Details[1].Status)
}

func TestReplay_WritesReport(t *testing.T) {
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "replay.json")

	entries := []journal.Entry{
		{
			Sequence:        1,
			Symbol:          "BTC-USDT",
			Action:          "LONG_OPEN",
			RequestQuantity: "0.1",
			Order:           &journal.OrderEntry{Price: "20000", Status: "FILLED"},
		},
	}

	e := &Engine{Source: NewEntrySource(entries), OutputPath: out}
	_, err := e.Run(ctx)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err, "report file should be written")

	var report Result
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 1, report.Entries)
	assert.Equal(t, 1, report.Executed)
	assert.Equal(t, "100000", report.StartWallet)
}

func TestReplay_JournalFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	j, err := journal.Open(dir, nil)
	require.NoError(t, err)

	now := time.Now()
	rec := dispatch.Record{
		Task: dispatch.Task{
			Request: executor.ExecuteRequest{
				Symbol:     "BTC-USDT",
				Action:     signal.ActionLongOpen,
				MarginUSDT: decimal.RequireFromString("100"),
				Leverage:   5,
				AlertID:    "strat-9",
			},
			EnqueuedAt: now,
		},
		Order: &executor.ExecutedOrder{
			OrderID:       "41",
			ClientOrderID: "tv::strat-9::1718029500000",
			Status:        "FILLED",
			Quantity:      decimal.RequireFromString("0.025"),
			Price:         decimal.RequireFromString("20000"),
			Leverage:      5,
		},
		StartedAt:  now,
		FinishedAt: now.Add(25 * time.Millisecond),
	}
	require.NoError(t, j.RecordExecution(ctx, rec))
	require.NoError(t, j.Close())

	source, err := NewJournalSource(j.Path())
	require.NoError(t, err)

	e := &Engine{Source: source}
	res, err := e.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Entries)
	assert.Equal(t, 1, res.Executed)
	require.Len(t, res.OpenPositions, 1)
	assert.Equal(t, "0.025", res.OpenPositions[0].Quantity)
	assert.Equal(t, "20000", res.OpenPositions[0].Entry)
}
