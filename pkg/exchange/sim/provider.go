package sim

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"sigex/pkg/exchange"
)

// Defaults for a fresh simulator account.
var (
	defaultEquity      = decimal.NewFromInt(100000)
	defaultMark        = decimal.NewFromInt(100)
	defaultStepSize    = decimal.RequireFromString("0.001")
	defaultMinQty      = decimal.RequireFromString("0.001")
	defaultTickSize    = decimal.RequireFromString("0.1")
	defaultMinNotional = decimal.NewFromInt(1)
)

var (
	_ exchange.Client             = (*Provider)(nil)
	_ exchange.PositionModeClient = (*Provider)(nil)
	_ exchange.AccountClient      = (*Provider)(nil)
	_ exchange.OrderCanceler      = (*Provider)(nil)
)

// Provider is a paper-trading venue. Orders fill immediately at the mark
// price (or the limit price); positions, balances and per-symbol settings
// stay in memory. It implements the same Client surface as a real venue so
// the execution pipeline can run end to end without credentials.
type Provider struct {
	mu sync.Mutex

	hedge bool
	asset string
	cash  decimal.Decimal

	marks     map[string]decimal.Decimal
	filters   map[string]exchange.SymbolFilters
	margins   map[string]exchange.MarginMode
	leverages map[leverageKey]int
	positions map[bucketKey]*bucket
	orders    map[string]exchange.OrderResult
	lastID    int64
}

type bucketKey struct {
	symbol string
	side   exchange.PositionSide
}

type leverageKey struct {
	symbol string
	side   exchange.PositionSide
}

// bucket holds one position bucket. Quantity is signed: hedge LONG buckets
// stay non-negative, hedge SHORT buckets non-positive, and the one-way BOTH
// bucket carries the net of both directions.
type bucket struct {
	qty   decimal.Decimal
	entry decimal.Decimal
}

// New constructs a simulator funded with the default equity.
func New() *Provider {
	return &Provider{
		asset:     "USDT",
		cash:      defaultEquity,
		marks:     make(map[string]decimal.Decimal),
		filters:   make(map[string]exchange.SymbolFilters),
		margins:   make(map[string]exchange.MarginMode),
		leverages: make(map[leverageKey]int),
		positions: make(map[bucketKey]*bucket),
		orders:    make(map[string]exchange.OrderResult),
	}
}

func canonical(symbol string) string { return strings.ToUpper(strings.TrimSpace(symbol)) }

// SetMark seeds the mark price used for fills and unrealised PnL.
func (p *Provider) SetMark(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.marks[canonical(symbol)] = price
}

// SetFilters overrides the tradability constraints for one symbol.
func (p *Provider) SetFilters(symbol string, filters exchange.SymbolFilters) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filters[canonical(symbol)] = filters
}

// MarkPrice returns the stored mark, falling back to an open position's
// entry and finally to the default seed price.
func (p *Provider) MarkPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	c := canonical(symbol)
	if c == "" {
		return decimal.Zero, fmt.Errorf("sim: symbol is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.markLocked(c), nil
}

func (p *Provider) markLocked(symbol string) decimal.Decimal {
	if price, ok := p.marks[symbol]; ok && price.IsPositive() {
		return price
	}
	for key, b := range p.positions {
		if key.symbol == symbol && b.entry.IsPositive() {
			return b.entry
		}
	}
	return defaultMark
}

// SymbolFilters returns the stored filters or permissive defaults.
func (p *Provider) SymbolFilters(_ context.Context, symbol string) (exchange.SymbolFilters, error) {
	c := canonical(symbol)
	if c == "" {
		return exchange.SymbolFilters{}, fmt.Errorf("sim: symbol is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if filters, ok := p.filters[c]; ok {
		return filters, nil
	}
	return exchange.SymbolFilters{
		StepSize:    defaultStepSize,
		MinQty:      defaultMinQty,
		TickSize:    defaultTickSize,
		MinNotional: defaultMinNotional,
	}, nil
}

// SetMarginMode records the collateral mode for a symbol.
func (p *Provider) SetMarginMode(_ context.Context, symbol string, mode exchange.MarginMode, _ string) error {
	c := canonical(symbol)
	if c == "" {
		return fmt.Errorf("sim: symbol is required")
	}
	switch mode {
	case exchange.MarginIsolated, exchange.MarginCrossed:
	default:
		return fmt.Errorf("sim: unsupported margin mode %q", mode)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.margins[c] = mode
	return nil
}

// SetLeverage records leverage for one position side of a symbol.
func (p *Provider) SetLeverage(_ context.Context, symbol string, params exchange.SetLeverageParams) error {
	c := canonical(symbol)
	if c == "" {
		return fmt.Errorf("sim: symbol is required")
	}
	if params.Leverage <= 0 {
		return fmt.Errorf("sim: leverage must be positive")
	}
	side := params.PositionSide
	if side == "" {
		side = exchange.PositionBoth
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leverages[leverageKey{symbol: c, side: side}] = params.Leverage
	return nil
}

// PositionMode reports whether the simulator runs in hedge mode.
func (p *Provider) PositionMode(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hedge, nil
}

// SetPositionMode switches between hedge and one-way mode. Like the real
// venue it refuses the switch while positions are open.
func (p *Provider) SetPositionMode(_ context.Context, hedge bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hedge == hedge {
		return nil
	}
	if len(p.positions) > 0 {
		return fmt.Errorf("sim: cannot switch position mode with open positions")
	}
	p.hedge = hedge
	return nil
}

// PlaceOrder fills the order synchronously. A repeated client order id
// returns the original acknowledgement flagged as a duplicate.
func (p *Provider) PlaceOrder(_ context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	symbol := canonical(req.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("sim: symbol is required")
	}
	if req.Side != exchange.SideBuy && req.Side != exchange.SideSell {
		return nil, fmt.Errorf("sim: unsupported side %q", req.Side)
	}
	if !req.ClosePosition && !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("sim: quantity must be positive")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if req.ClientOrderID != "" {
		if prior, ok := p.orders[req.ClientOrderID]; ok {
			dup := prior
			dup.Duplicate = true
			return &dup, nil
		}
	}

	price := p.markLocked(symbol)
	if req.Type == exchange.OrderLimit {
		if !req.Price.IsPositive() {
			return nil, fmt.Errorf("sim: limit order requires a positive price")
		}
		price = req.Price
	}

	key, err := p.bucketKeyFor(symbol, req)
	if err != nil {
		return nil, err
	}

	filled, realized, err := p.fillLocked(key, req, price)
	if err != nil {
		return nil, err
	}
	if !realized.IsZero() {
		p.cash = p.cash.Add(realized)
	}
	if filled.IsPositive() {
		p.marks[symbol] = price
	}

	p.lastID++
	result := exchange.OrderResult{
		OrderID:       strconv.FormatInt(p.lastID, 10),
		ClientOrderID: req.ClientOrderID,
		Status:        "FILLED",
		AvgPrice:      price,
	}
	if req.ClientOrderID != "" {
		p.orders[req.ClientOrderID] = result
	}
	return &result, nil
}

// bucketKeyFor picks the position bucket an order acts on and validates the
// side/position-side combination against the current mode.
func (p *Provider) bucketKeyFor(symbol string, req exchange.OrderRequest) (bucketKey, error) {
	if !p.hedge {
		if req.PositionSide == exchange.PositionLong || req.PositionSide == exchange.PositionShort {
			return bucketKey{}, fmt.Errorf("sim: position side %s requires hedge mode", req.PositionSide)
		}
		return bucketKey{symbol: symbol, side: exchange.PositionBoth}, nil
	}

	switch req.PositionSide {
	case exchange.PositionLong, exchange.PositionShort:
	default:
		return bucketKey{}, fmt.Errorf("sim: hedge mode requires an explicit position side")
	}
	opens := (req.PositionSide == exchange.PositionLong && req.Side == exchange.SideBuy) ||
		(req.PositionSide == exchange.PositionShort && req.Side == exchange.SideSell)
	if !opens && !req.ReduceOnly && !req.ClosePosition {
		return bucketKey{}, fmt.Errorf("sim: %s on the %s side must be reduce-only", req.Side, req.PositionSide)
	}
	return bucketKey{symbol: symbol, side: req.PositionSide}, nil
}

func (p *Provider) fillLocked(key bucketKey, req exchange.OrderRequest, price decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	state := p.positions[key]

	if req.ClosePosition && !req.Quantity.IsPositive() {
		if state == nil || state.qty.IsZero() {
			return decimal.Zero, decimal.Zero, nil
		}
		size := state.qty.Abs()
		delta := size
		if state.qty.IsPositive() {
			delta = size.Neg()
		}
		realized := state.apply(delta, price)
		p.dropIfFlat(key, state)
		return size, realized, nil
	}

	delta := req.Quantity
	if req.Side == exchange.SideSell {
		delta = delta.Neg()
	}

	if req.ReduceOnly {
		if state == nil || state.qty.IsZero() {
			return decimal.Zero, decimal.Zero, nil
		}
		if state.qty.Sign()*delta.Sign() > 0 {
			return decimal.Zero, decimal.Zero, fmt.Errorf("sim: reduce-only order would increase position")
		}
		if delta.Abs().GreaterThan(state.qty.Abs()) {
			delta = state.qty.Neg()
		}
	}

	if state == nil {
		state = &bucket{}
		p.positions[key] = state
	}
	realized := state.apply(delta, price)
	p.dropIfFlat(key, state)
	return delta.Abs(), realized, nil
}

func (p *Provider) dropIfFlat(key bucketKey, state *bucket) {
	if state.qty.IsZero() {
		delete(p.positions, key)
	}
}

// apply adjusts the bucket by delta filled at price and returns realized PnL.
func (b *bucket) apply(delta, price decimal.Decimal) decimal.Decimal {
	old := b.qty
	realized := decimal.Zero

	if !old.IsZero() && old.Sign()*delta.Sign() < 0 {
		closeQty := decimal.Min(old.Abs(), delta.Abs())
		diff := price.Sub(b.entry)
		if old.Sign() < 0 {
			diff = diff.Neg()
		}
		realized = closeQty.Mul(diff)
	}

	newQty := old.Add(delta)
	switch {
	case old.IsZero():
		b.entry = price
	case old.Sign()*delta.Sign() > 0:
		b.entry = old.Mul(b.entry).Add(delta.Mul(price)).Div(newQty)
	case newQty.IsZero():
		b.entry = decimal.Zero
	case old.Sign()*newQty.Sign() < 0:
		// crossed through zero; the remainder opens at the fill price
		b.entry = price
	}
	b.qty = newQty
	return realized
}

// OpenPositions lists non-flat buckets, optionally restricted to one symbol.
func (p *Provider) OpenPositions(_ context.Context, symbol string) ([]exchange.Position, error) {
	filter := canonical(symbol)
	p.mu.Lock()
	defer p.mu.Unlock()

	var positions []exchange.Position
	for key, state := range p.positions {
		if filter != "" && key.symbol != filter {
			continue
		}
		if state.qty.IsZero() {
			continue
		}
		side := key.side
		if side == exchange.PositionBoth {
			side = exchange.PositionLong
			if state.qty.IsNegative() {
				side = exchange.PositionShort
			}
		}
		mark := p.markLocked(key.symbol)
		positions = append(positions, exchange.Position{
			Symbol:        key.symbol,
			PositionSide:  side,
			Quantity:      state.qty.Abs(),
			EntryPrice:    state.entry,
			UnrealizedPnL: state.qty.Mul(mark.Sub(state.entry)),
			Leverage:      p.leverageLocked(key),
			MarginMode:    p.margins[key.symbol],
		})
	}
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].Symbol != positions[j].Symbol {
			return positions[i].Symbol < positions[j].Symbol
		}
		return positions[i].PositionSide < positions[j].PositionSide
	})
	return positions, nil
}

func (p *Provider) leverageLocked(key bucketKey) int {
	if lev, ok := p.leverages[leverageKey{symbol: key.symbol, side: key.side}]; ok {
		return lev
	}
	if lev, ok := p.leverages[leverageKey{symbol: key.symbol, side: exchange.PositionBoth}]; ok {
		return lev
	}
	return 1
}

// Balance reports cash plus mark-to-market PnL across open buckets.
func (p *Provider) Balance(context.Context) (*exchange.Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	unrealized := decimal.Zero
	used := decimal.Zero
	for key, state := range p.positions {
		mark := p.markLocked(key.symbol)
		unrealized = unrealized.Add(state.qty.Mul(mark.Sub(state.entry)))
		notional := state.qty.Abs().Mul(mark)
		lev := decimal.NewFromInt(int64(p.leverageLocked(key)))
		used = used.Add(notional.Div(lev))
	}
	equity := p.cash.Add(unrealized)
	return &exchange.Balance{
		Asset:            p.asset,
		WalletBalance:    p.cash,
		Equity:           equity,
		AvailableMargin:  equity.Sub(used),
		UsedMargin:       used,
		UnrealizedProfit: unrealized,
	}, nil
}

// CancelOrder is a no-op because simulator orders fill immediately.
func (p *Provider) CancelOrder(context.Context, string, string, string) error { return nil }

func init() {
	exchange.RegisterProvider("sim", func(string, *exchange.ProviderConfig) (exchange.Client, error) {
		return New(), nil
	})
}
