package dispatch

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	executorpkg "sigex/pkg/executor"
	"sigex/pkg/signal"
)

var (
	// ErrQueueFull is returned by Enqueue when the bounded queue has no
	// room. The webhook handler maps it to HTTP 503.
	ErrQueueFull = errors.New("dispatch: queue full")

	// ErrStopped is returned by Enqueue after Stop.
	ErrStopped = errors.New("dispatch: dispatcher stopped")
)

// Task is one accepted alert queued for execution.
type Task struct {
	Signal     signal.TradeSignal
	Request    executorpkg.ExecuteRequest
	EnqueuedAt time.Time
}

// Record is the outcome of one processed task, offered to every recorder
// regardless of success or failure.
type Record struct {
	Task       Task
	Order      *executorpkg.ExecutedOrder
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
	Worker     int
}

// Recorder persists execution outcomes (journal file, audit rows). Recorder
// failures are logged by the dispatcher and never affect the trade path.
type Recorder interface {
	RecordExecution(ctx context.Context, rec Record) error
}

type noopRecorder struct{}

func (noopRecorder) RecordExecution(context.Context, Record) error { return nil }

type multiRecorder []Recorder

func (m multiRecorder) RecordExecution(ctx context.Context, rec Record) error {
	var errs []error
	for _, recorder := range m {
		if err := recorder.RecordExecution(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiRecorder fans each record out to every non-nil recorder.
func MultiRecorder(recorders ...Recorder) Recorder {
	kept := make(multiRecorder, 0, len(recorders))
	for _, recorder := range recorders {
		if recorder != nil {
			kept = append(kept, recorder)
		}
	}
	switch len(kept) {
	case 0:
		return noopRecorder{}
	case 1:
		return kept[0]
	default:
		return kept
	}
}

// Executor is the slice of the orchestrator the dispatcher drives.
type Executor interface {
	ExecuteMarketOrder(ctx context.Context, req executorpkg.ExecuteRequest) (*executorpkg.ExecutedOrder, error)
}

// Stats is a point-in-time queue snapshot for the health endpoint.
type Stats struct {
	QueueDepth    int `json:"queueDepth"`
	QueueCapacity int `json:"queueCapacity"`
	Workers       int `json:"workers"`
}

// Dispatcher owns the bounded queue between webhook intake and the
// execution workers. Workers consume sequentially: one alert runs to
// completion, every network round-trip included, before the next dequeue.
type Dispatcher struct {
	executor Executor
	queue    chan Task
	workers  int
	recorder Recorder
	logger   *log.Logger
	clock    func() time.Time

	mu        sync.Mutex
	stopped   bool
	startOnce sync.Once
	stopOnce  sync.Once
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// Option customises Dispatcher construction.
type Option func(*Dispatcher)

// WithLogger attaches a custom logger (defaults to log.Default()).
func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithClock overrides the time source (primarily for testing).
func WithClock(clock func() time.Time) Option {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithRecorder injects the outcome recorder. A nil recorder keeps the noop.
func WithRecorder(recorder Recorder) Option {
	return func(d *Dispatcher) {
		if recorder != nil {
			d.recorder = recorder
		}
	}
}

// New constructs a Dispatcher around an executor. Non-positive queue size
// or worker count fall back to 100 and 1.
func New(exec Executor, cfg executorpkg.DispatcherConfig, opts ...Option) (*Dispatcher, error) {
	if exec == nil {
		return nil, errors.New("dispatch: executor is required")
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	d := &Dispatcher{
		executor: exec,
		queue:    make(chan Task, queueSize),
		workers:  workers,
		recorder: noopRecorder{},
		logger:   log.Default(),
		clock:    time.Now,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = log.Default()
	}
	if d.clock == nil {
		d.clock = time.Now
	}
	return d, nil
}

// Start launches the worker pool. ctx is the root context every task is
// processed under; cancelling it aborts in-flight work. Start is a no-op
// after the first call.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.run(ctx, i)
		}
		d.logf("dispatch: started %d worker(s), queue capacity %d", d.workers, cap(d.queue))
	})
}

// Enqueue offers a task to the queue without blocking.
func (d *Dispatcher) Enqueue(task Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = d.clock()
	}
	select {
	case d.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop rejects further enqueues, lets workers drain everything already
// queued, and blocks until they exit.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()
		close(d.stopChan)
		d.wg.Wait()
		d.logf("dispatch: stopped")
	})
}

// QueueStats reports the current queue occupancy.
func (d *Dispatcher) QueueStats() Stats {
	return Stats{
		QueueDepth:    len(d.queue),
		QueueCapacity: cap(d.queue),
		Workers:       d.workers,
	}
}

func (d *Dispatcher) run(ctx context.Context, worker int) {
	defer d.wg.Done()
	for {
		select {
		case <-d.stopChan:
			for {
				select {
				case task := <-d.queue:
					d.process(ctx, worker, task)
				default:
					return
				}
			}
		case task := <-d.queue:
			d.process(ctx, worker, task)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, worker int, task Task) {
	startedAt := d.clock()
	order, err := d.executor.ExecuteMarketOrder(ctx, task.Request)
	finishedAt := d.clock()
	elapsed := finishedAt.Sub(startedAt)

	switch {
	case err != nil:
		d.logf("dispatch: worker %d: %s %s failed after %s: %v",
			worker, task.Request.Action, task.Request.Symbol, elapsed, err)
	case order.DryRun:
		d.logf("dispatch: worker %d: dry-run %s %s quantity=%s",
			worker, task.Request.Action, task.Request.Symbol, order.Quantity)
	case order.Duplicate:
		d.logf("dispatch: worker %d: duplicate %s %s cloid=%s",
			worker, task.Request.Action, task.Request.Symbol, order.ClientOrderID)
	default:
		d.logf("dispatch: worker %d: %s %s filled in %s order=%s cloid=%s",
			worker, task.Request.Action, task.Request.Symbol, elapsed, order.OrderID, order.ClientOrderID)
	}

	rec := Record{
		Task:       task,
		Order:      order,
		Err:        err,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Worker:     worker,
	}
	if recErr := d.recorder.RecordExecution(ctx, rec); recErr != nil {
		d.logf("dispatch: record keeping failed for %s: %v", task.Request.Symbol, recErr)
	}
}

func (d *Dispatcher) logf(format string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}
