package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"sigex/pkg/exchange"
	"sigex/pkg/signal"
)

// Executor drives one alert through resolve, synchronize, size, submit,
// and settle against a single exchange client. It holds no package-level
// state; construct one per provider.
type Executor struct {
	client   exchange.Client
	cfg      *Config
	logger   *log.Logger
	clock    func() time.Time
	breaker  *CircuitBreaker
	throttle *Throttle
	retry    RetryPolicy

	syncMu    sync.Mutex
	syncState map[string]syncState
}

// syncState is the account configuration last pushed successfully for a
// symbol. Matching state skips the redundant round-trips before an open.
type syncState struct {
	marginMode exchange.MarginMode
	marginCoin string
	levLong    int
	levShort   int
	hedge      bool
}

// Option customises Executor construction.
type Option func(*Executor)

// WithLogger attaches a custom logger (defaults to log.Default()).
func WithLogger(logger *log.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the time source (primarily for testing).
func WithClock(clock func() time.Time) Option {
	return func(e *Executor) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// New constructs an Executor bound to one exchange client. A nil config
// uses the defaults.
func New(client exchange.Client, cfg *Config, opts ...Option) (*Executor, error) {
	if client == nil {
		return nil, errors.New("executor: exchange client is required")
	}
	if cfg == nil {
		cfg = Default()
	}
	e := &Executor{
		client:    client,
		cfg:       cfg,
		logger:    log.Default(),
		clock:     time.Now,
		breaker:   NewCircuitBreaker(cfg.Resilience.BreakerThreshold, cfg.Resilience.BreakerRecovery),
		throttle:  NewThrottle(cfg.Resilience.ThrottleInterval),
		retry:     NewRetryPolicy(cfg.Resilience.MaxRetries, cfg.Resilience.BackoffBase, cfg.Resilience.BackoffCap),
		syncState: make(map[string]syncState),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.Default()
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	return e, nil
}

// GetConfig exposes the immutable execution configuration.
func (e *Executor) GetConfig() *Config { return e.cfg }

// BreakerState reports the circuit breaker position for health reporting.
func (e *Executor) BreakerState() (state string, failures int) {
	return e.breaker.State()
}

// orderPlan is the side/position-side/flags tuple derived from a canonical
// action under the account's position mode.
type orderPlan struct {
	side          exchange.Side
	positionSide  exchange.PositionSide
	reduceOnly    bool
	closePosition bool
	isClose       bool
}

func planOrder(action signal.Action, hedge bool, override exchange.PositionSide) (orderPlan, error) {
	var plan orderPlan
	switch action {
	case signal.ActionLongOpen:
		plan = orderPlan{side: exchange.SideBuy, positionSide: exchange.PositionLong}
	case signal.ActionLongClose:
		plan = orderPlan{side: exchange.SideSell, positionSide: exchange.PositionLong}
	case signal.ActionShortOpen:
		plan = orderPlan{side: exchange.SideSell, positionSide: exchange.PositionShort}
	case signal.ActionShortClose:
		plan = orderPlan{side: exchange.SideBuy, positionSide: exchange.PositionShort}
	default:
		return orderPlan{}, validationErrorf("unknown action %q", action)
	}
	plan.isClose = action.IsClose()

	if hedge {
		plan.reduceOnly = plan.isClose
	} else {
		plan.positionSide = exchange.PositionBoth
		plan.closePosition = plan.isClose
	}

	// An explicit position side from the alert wins over the derived one.
	switch override {
	case exchange.PositionLong, exchange.PositionShort:
		plan.positionSide = override
	case "", exchange.PositionBoth:
	default:
		return orderPlan{}, validationErrorf("unsupported position side override %q", override)
	}
	return plan, nil
}

// ExecuteMarketOrder runs one execution attempt end to end and returns the
// settled outcome. Validation failures surface as *ValidationError, venue
// failures after retries as *ExecutionError.
func (e *Executor) ExecuteMarketOrder(ctx context.Context, req ExecuteRequest) (*ExecutedOrder, error) {
	symbol, err := signal.NormalizeSymbol(req.Symbol, e.cfg.SymbolWhitelist...)
	if err != nil {
		var sigErr *signal.ValidationError
		if errors.As(err, &sigErr) {
			return nil, &ValidationError{Msg: sigErr.Msg}
		}
		return nil, err
	}

	plan, err := planOrder(req.Action, e.cfg.Trade.Hedge, req.PositionSide)
	if err != nil {
		return nil, err
	}

	orderType := req.OrderType
	if orderType == "" {
		orderType = exchange.OrderMarket
	}
	tif := req.TimeInForce
	switch orderType {
	case exchange.OrderMarket:
	case exchange.OrderLimit:
		if !req.Price.IsPositive() {
			return nil, validationErrorf("limit order requires a positive price")
		}
		if tif == "" {
			tif = exchange.TIFGoodTilCancel
		}
		switch tif {
		case exchange.TIFGoodTilCancel, exchange.TIFImmediateOrKill, exchange.TIFFillOrKill:
		default:
			return nil, validationErrorf("unsupported time in force %q", tif)
		}
	default:
		return nil, validationErrorf("unsupported order type %q", orderType)
	}

	levLong, levShort := e.resolveLeverage(req)
	leverage := levLong
	if plan.side == exchange.SideSell {
		leverage = levShort
	}

	dryRun := e.cfg.Trade.DryRun
	if !plan.isClose && !dryRun {
		e.synchronize(ctx, symbol, levLong, levShort, leverage)
	}

	quantity := req.Quantity
	var price decimal.Decimal
	switch {
	case quantity.IsPositive():
		if orderType == exchange.OrderLimit {
			price = req.Price
		}
	case plan.closePosition:
		// One-way close-all: the exchange flattens the position without a
		// quantity.
	case plan.isClose:
		quantity, err = e.closeQuantity(ctx, symbol, plan.positionSide)
		if err != nil {
			return nil, err
		}
	default:
		margin := req.MarginUSDT
		if !margin.IsPositive() {
			margin = e.cfg.Trade.MarginUSDT
		}
		if orderType == exchange.OrderLimit {
			price = req.Price
		} else {
			price, err = e.client.MarkPrice(ctx, symbol)
			if err != nil {
				return nil, fmt.Errorf("executor: mark price %s: %w", symbol, err)
			}
		}
		filters, err := e.client.SymbolFilters(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("executor: filters %s: %w", symbol, err)
		}
		quantity, err = ComputeQuantity(margin, leverage, price, filters)
		if err != nil {
			return nil, err
		}
	}

	cloid := req.ClientOrderID
	if cloid == "" && (req.AlertID != "" || len(req.Payload) > 0) {
		cloid = signal.ClientOrderID(e.cfg.CloidPrefix, req.AlertID, req.Payload, e.clock())
	}

	// A one-way close with an explicit quantity is a partial close; only a
	// quantityless one flattens the whole position.
	closeAll := plan.closePosition && !quantity.IsPositive()
	reduceOnly := plan.reduceOnly || (plan.closePosition && quantity.IsPositive())

	orderReq := exchange.OrderRequest{
		Symbol:        symbol,
		Side:          plan.side,
		Type:          orderType,
		PositionSide:  plan.positionSide,
		Quantity:      quantity,
		Price:         req.Price,
		TimeInForce:   tif,
		ReduceOnly:    reduceOnly,
		ClosePosition: closeAll,
		ClientOrderID: cloid,
		MarginMode:    exchange.MarginMode(e.cfg.Trade.MarginMode()),
		MarginCoin:    e.cfg.Trade.MarginCoin,
		Leverage:      leverage,
	}

	if dryRun {
		e.logf("executor: dry-run %s %s %s quantity=%s", orderReq.Side, orderReq.Symbol, orderReq.Type, quantity)
		return &ExecutedOrder{
			Request:       orderReq,
			ClientOrderID: cloid,
			Quantity:      quantity,
			Price:         price,
			Leverage:      leverage,
			DryRun:        true,
		}, nil
	}

	if err := e.throttle.Wait(ctx, symbol); err != nil {
		return nil, err
	}
	if !e.breaker.Allow() {
		return nil, ErrCircuitOpen
	}

	var result *exchange.OrderResult
	submitErr := e.retry.Do(ctx, func() error {
		var placeErr error
		result, placeErr = e.client.PlaceOrder(ctx, orderReq)
		return placeErr
	})
	if submitErr != nil {
		if errors.Is(submitErr, context.Canceled) || errors.Is(submitErr, context.DeadlineExceeded) {
			return nil, submitErr
		}
		var validationErr *ValidationError
		if errors.As(submitErr, &validationErr) {
			return nil, submitErr
		}
		e.breaker.RecordFailure()
		return nil, &ExecutionError{Op: "submit", Symbol: symbol, Err: submitErr}
	}
	e.breaker.RecordSuccess()

	executed := &ExecutedOrder{
		Request:       orderReq,
		OrderID:       result.OrderID,
		ClientOrderID: result.ClientOrderID,
		Status:        result.Status,
		Quantity:      quantity,
		Price:         price,
		Leverage:      leverage,
		Duplicate:     result.Duplicate,
		Response:      result,
	}
	if executed.ClientOrderID == "" {
		executed.ClientOrderID = cloid
	}
	return executed, nil
}

func (e *Executor) resolveLeverage(req ExecuteRequest) (levLong, levShort int) {
	levLong = e.cfg.Trade.LeverageLong
	if levLong < 1 {
		levLong = 1
	}
	levShort = e.cfg.Trade.LeverageShort
	if levShort < 1 {
		levShort = levLong
	}
	if req.Leverage > 0 {
		levLong, levShort = req.Leverage, req.Leverage
	}
	return levLong, levShort
}

// closeQuantity resolves the live position size for a quantityless
// reduce-only close.
func (e *Executor) closeQuantity(ctx context.Context, symbol string, side exchange.PositionSide) (decimal.Decimal, error) {
	positions, err := e.client.OpenPositions(ctx, symbol)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("executor: positions %s: %w", symbol, err)
	}
	for _, position := range positions {
		if position.Symbol != "" && !strings.EqualFold(position.Symbol, symbol) {
			continue
		}
		if position.PositionSide == side && position.Quantity.IsPositive() {
			return position.Quantity, nil
		}
	}
	return decimal.Decimal{}, &ExecutionError{
		Op:     "close",
		Symbol: symbol,
		Err:    fmt.Errorf("no %s position to close", strings.ToLower(string(side))),
	}
}

// synchronize pushes position mode, margin mode, and leverage ahead of an
// opening order. Failures are logged, never fatal: the exchange re-validates
// everything at order time. A fully successful push is cached per symbol so
// the next open skips the round-trips.
func (e *Executor) synchronize(ctx context.Context, symbol string, levLong, levShort, oneWayLeverage int) {
	target := syncState{
		marginMode: exchange.MarginMode(e.cfg.Trade.MarginMode()),
		marginCoin: e.cfg.Trade.MarginCoin,
		levLong:    levLong,
		levShort:   levShort,
		hedge:      e.cfg.Trade.Hedge,
	}
	if !target.hedge {
		target.levLong, target.levShort = oneWayLeverage, oneWayLeverage
	}

	e.syncMu.Lock()
	current, seen := e.syncState[symbol]
	e.syncMu.Unlock()
	if seen && current == target {
		return
	}

	ok := true

	if e.cfg.Trade.SyncPositionMode {
		if modeClient, capable := e.client.(exchange.PositionModeClient); capable {
			hedge, err := modeClient.PositionMode(ctx)
			switch {
			case err != nil:
				e.logf("executor: position mode check failed for %s: %v", symbol, err)
				ok = false
			case hedge != target.hedge:
				if err := modeClient.SetPositionMode(ctx, target.hedge); err != nil {
					e.logf("executor: position mode push failed for %s: %v", symbol, err)
					ok = false
				}
			}
		}
	}

	if err := e.client.SetMarginMode(ctx, symbol, target.marginMode, target.marginCoin); err != nil {
		e.logf("executor: margin mode push failed for %s: %v", symbol, err)
		ok = false
	}

	if target.hedge {
		for _, push := range []exchange.SetLeverageParams{
			{Leverage: levLong, PositionSide: exchange.PositionLong, MarginMode: target.marginMode, MarginCoin: target.marginCoin},
			{Leverage: levShort, PositionSide: exchange.PositionShort, MarginMode: target.marginMode, MarginCoin: target.marginCoin},
		} {
			if err := e.client.SetLeverage(ctx, symbol, push); err != nil {
				e.logf("executor: leverage push failed for %s %s: %v", symbol, push.PositionSide, err)
				ok = false
			}
		}
	} else {
		push := exchange.SetLeverageParams{Leverage: oneWayLeverage, MarginMode: target.marginMode, MarginCoin: target.marginCoin}
		if err := e.client.SetLeverage(ctx, symbol, push); err != nil {
			e.logf("executor: leverage push failed for %s: %v", symbol, err)
			ok = false
		}
	}

	e.syncMu.Lock()
	if ok {
		e.syncState[symbol] = target
	} else {
		delete(e.syncState, symbol)
	}
	e.syncMu.Unlock()
}

func (e *Executor) logf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}
