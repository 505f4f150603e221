// Package replay re-executes journalled alerts against the simulated venue.
// It answers "what would these recorded signals have done" without touching
// a real exchange: every entry flows through the same executor used live,
// with fills settled by the in-memory simulator.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sigex/pkg/exchange/sim"
	"sigex/pkg/executor"
	"sigex/pkg/journal"
	"sigex/pkg/signal"
)

// Source yields recorded execution entries, oldest first.
type Source interface {
	Next(ctx context.Context) (*journal.Entry, bool, error)
}

// Engine wires a Source, an executor configuration, and a simulated venue.
type Engine struct {
	Source Source
	Venue  *sim.Provider    // fresh simulator when nil
	Config *executor.Config // executor.Default() when nil

	// Optional: write JSON report to this path
	OutputPath string
}

// Detail records one replayed entry for analysis.
type Detail struct {
	Sequence  uint64 `json:"sequence"`
	Symbol    string `json:"symbol"`
	Action    string `json:"action"`
	Status    string `json:"status,omitempty"`
	Quantity  string `json:"quantity,omitempty"`
	Price     string `json:"price,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PositionDetail is an open bucket left on the venue after the run.
type PositionDetail struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Quantity string `json:"quantity"`
	Entry    string `json:"entry"`
}

// Result summarizes a replay run. Money fields stay strings with exact
// decimals, matching the journal they came from.
type Result struct {
	Entries    int
	Skipped    int
	Executed   int
	Duplicates int
	Failed     int

	StartWallet string
	FinalWallet string
	FinalEquity string
	RealizedPnL string

	OpenPositions []PositionDetail
	Details       []Detail
}

func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.Source == nil {
		return nil, fmt.Errorf("replay: source is required")
	}
	venue := e.Venue
	if venue == nil {
		venue = sim.New()
	}
	cfg := e.Config
	if cfg == nil {
		cfg = executor.Default()
	}

	// Fills settle on the simulator, so dry-run and same-symbol pacing
	// have no meaning here.
	runCfg := *cfg
	runCfg.Trade.DryRun = false
	runCfg.Resilience.ThrottleInterval = time.Nanosecond
	if err := venue.SetPositionMode(ctx, runCfg.Trade.Hedge); err != nil {
		return nil, fmt.Errorf("replay: align position mode: %w", err)
	}

	exec, err := executor.New(venue, &runCfg, executor.WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		return nil, err
	}

	start, err := venue.Balance(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{StartWallet: start.WalletBalance.String()}
	for {
		entry, ok, err := e.Source.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		res.Entries++
		detail := Detail{Sequence: entry.Sequence, Symbol: entry.Symbol, Action: entry.Action}

		req, ok := requestFromEntry(entry)
		if !ok {
			res.Skipped++
			detail.Status = "SKIPPED"
			res.Details = append(res.Details, detail)
			continue
		}

		// Execute at the recorded price: re-seed the simulator's mark from
		// the price the live order was sized against.
		if entry.Order != nil && entry.Order.Price != "" {
			if px, err := decimal.NewFromString(entry.Order.Price); err == nil && px.IsPositive() {
				venue.SetMark(entry.Symbol, px)
			}
		}

		order, err := exec.ExecuteMarketOrder(ctx, req)
		if err != nil {
			res.Failed++
			detail.Status = "FAILED"
			detail.Error = err.Error()
			res.Details = append(res.Details, detail)
			continue
		}
		res.Executed++
		if order.Duplicate {
			res.Duplicates++
			detail.Duplicate = true
		}
		detail.Status = order.Status
		detail.Quantity = order.Quantity.String()
		detail.Price = order.Price.String()
		res.Details = append(res.Details, detail)
	}

	final, err := venue.Balance(ctx)
	if err != nil {
		return nil, err
	}
	res.FinalWallet = final.WalletBalance.String()
	res.FinalEquity = final.Equity.String()
	res.RealizedPnL = final.WalletBalance.Sub(start.WalletBalance).String()

	positions, err := venue.OpenPositions(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, pos := range positions {
		res.OpenPositions = append(res.OpenPositions, PositionDetail{
			Symbol:   pos.Symbol,
			Side:     string(pos.PositionSide),
			Quantity: pos.Quantity.String(),
			Entry:    pos.EntryPrice.String(),
		})
	}

	if e.OutputPath != "" {
		if err := writeReport(e.OutputPath, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// requestFromEntry rebuilds the executor request a journal entry was
// produced by. Entries without a canonical action or symbol cannot be
// replayed.
func requestFromEntry(entry *journal.Entry) (executor.ExecuteRequest, bool) {
	action := signal.Action(strings.ToUpper(strings.TrimSpace(entry.Action)))
	switch action {
	case signal.ActionLongOpen, signal.ActionLongClose, signal.ActionShortOpen, signal.ActionShortClose:
	default:
		return executor.ExecuteRequest{}, false
	}
	if strings.TrimSpace(entry.Symbol) == "" {
		return executor.ExecuteRequest{}, false
	}

	req := executor.ExecuteRequest{
		Symbol:   entry.Symbol,
		Action:   action,
		Leverage: entry.RequestLeverage,
		AlertID:  entry.AlertID,
	}
	if entry.RequestQuantity != "" {
		if qty, err := decimal.NewFromString(entry.RequestQuantity); err == nil {
			req.Quantity = qty
		}
	}
	if entry.RequestMargin != "" {
		if margin, err := decimal.NewFromString(entry.RequestMargin); err == nil {
			req.MarginUSDT = margin
		}
	}
	// Reusing the recorded client order id makes journalled duplicates
	// collapse on the simulator exactly as they did live.
	if entry.Order != nil && entry.Order.ClientOrderID != "" {
		req.ClientOrderID = entry.Order.ClientOrderID
	}
	return req, true
}

func writeReport(path string, r *Result) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
