package dispatch

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	executorpkg "sigex/pkg/executor"
	"sigex/pkg/signal"
)

type fakeExecutor struct {
	mu       sync.Mutex
	requests []executorpkg.ExecuteRequest
	execute  func(req executorpkg.ExecuteRequest) (*executorpkg.ExecutedOrder, error)
}

func (f *fakeExecutor) ExecuteMarketOrder(_ context.Context, req executorpkg.ExecuteRequest) (*executorpkg.ExecutedOrder, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.execute != nil {
		return f.execute(req)
	}
	return &executorpkg.ExecutedOrder{OrderID: "1", Status: "NEW"}, nil
}

func (f *fakeExecutor) seen() []executorpkg.ExecuteRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]executorpkg.ExecuteRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

type chanRecorder struct{ ch chan Record }

func (r *chanRecorder) RecordExecution(_ context.Context, rec Record) error {
	r.ch <- rec
	return nil
}

func waitRecord(t *testing.T, ch chan Record) Record {
	t.Helper()
	select {
	case rec := <-ch:
		return rec
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a record")
		return Record{}
	}
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func task(symbol string) Task {
	return Task{
		Signal:  signal.TradeSignal{Symbol: symbol, Action: signal.ActionLongOpen},
		Request: executorpkg.ExecuteRequest{Symbol: symbol, Action: signal.ActionLongOpen},
	}
}

func TestDispatcherProcessesInOrder(t *testing.T) {
	fake := &fakeExecutor{}
	recorder := &chanRecorder{ch: make(chan Record, 8)}
	d, err := New(fake, executorpkg.DispatcherConfig{QueueSize: 8, Workers: 1},
		WithLogger(quietLogger()), WithRecorder(recorder))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	symbols := []string{"BTC-USDT", "ETH-USDT", "SOL-USDT"}
	for _, symbol := range symbols {
		if err := d.Enqueue(task(symbol)); err != nil {
			t.Fatalf("Enqueue(%s): %v", symbol, err)
		}
	}
	d.Start(context.Background())
	defer d.Stop()

	for i, symbol := range symbols {
		rec := waitRecord(t, recorder.ch)
		if rec.Task.Request.Symbol != symbol {
			t.Fatalf("record %d: symbol = %s, want %s", i, rec.Task.Request.Symbol, symbol)
		}
		if rec.Err != nil || rec.Order == nil || rec.Order.OrderID != "1" {
			t.Fatalf("record %d: outcome = %+v err=%v", i, rec.Order, rec.Err)
		}
		if rec.FinishedAt.Before(rec.StartedAt) {
			t.Fatalf("record %d: finished before started", i)
		}
	}

	seen := fake.seen()
	if len(seen) != 3 {
		t.Fatalf("executor saw %d requests, want 3", len(seen))
	}
	for i, symbol := range symbols {
		if seen[i].Symbol != symbol {
			t.Fatalf("request %d out of order: %s", i, seen[i].Symbol)
		}
	}
}

func TestEnqueueRejectsWhenFull(t *testing.T) {
	fake := &fakeExecutor{}
	d, err := New(fake, executorpkg.DispatcherConfig{QueueSize: 1, Workers: 1}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := d.Enqueue(task("BTC-USDT")); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := d.Enqueue(task("ETH-USDT")); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("got %v, want ErrQueueFull", err)
	}
}

func TestEnqueueAfterStop(t *testing.T) {
	fake := &fakeExecutor{}
	d, err := New(fake, executorpkg.DispatcherConfig{}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	d.Start(context.Background())
	d.Stop()
	if err := d.Enqueue(task("BTC-USDT")); !errors.Is(err, ErrStopped) {
		t.Fatalf("got %v, want ErrStopped", err)
	}
}

func TestStopDrainsQueue(t *testing.T) {
	fake := &fakeExecutor{}
	d, err := New(fake, executorpkg.DispatcherConfig{QueueSize: 8, Workers: 2}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := d.Enqueue(task("BTC-USDT")); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	d.Start(context.Background())
	d.Stop()
	if got := len(fake.seen()); got != 5 {
		t.Fatalf("drained %d tasks, want 5", got)
	}
	// Stop is idempotent.
	d.Stop()
}

func TestRecorderFailuresDoNotBlockProcessing(t *testing.T) {
	fake := &fakeExecutor{}
	processed := make(chan Record, 4)
	failing := recorderFunc(func(ctx context.Context, rec Record) error {
		processed <- rec
		return errors.New("database down")
	})
	d, err := New(fake, executorpkg.DispatcherConfig{QueueSize: 4, Workers: 1},
		WithLogger(quietLogger()), WithRecorder(failing))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	d.Start(context.Background())
	defer d.Stop()

	if err := d.Enqueue(task("BTC-USDT")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := d.Enqueue(task("ETH-USDT")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitRecord(t, processed)
	waitRecord(t, processed)
	if got := len(fake.seen()); got != 2 {
		t.Fatalf("processed %d tasks, want 2", got)
	}
}

type recorderFunc func(ctx context.Context, rec Record) error

func (f recorderFunc) RecordExecution(ctx context.Context, rec Record) error { return f(ctx, rec) }

func TestExecutionFailureStillRecorded(t *testing.T) {
	fake := &fakeExecutor{}
	fake.execute = func(executorpkg.ExecuteRequest) (*executorpkg.ExecutedOrder, error) {
		return nil, errors.New("exchange down")
	}
	recorder := &chanRecorder{ch: make(chan Record, 1)}
	d, err := New(fake, executorpkg.DispatcherConfig{},
		WithLogger(quietLogger()), WithRecorder(recorder))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	d.Start(context.Background())
	defer d.Stop()

	if err := d.Enqueue(task("BTC-USDT")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	rec := waitRecord(t, recorder.ch)
	if rec.Err == nil || rec.Order != nil {
		t.Fatalf("failure not recorded: %+v", rec)
	}
}

func TestMultiRecorder(t *testing.T) {
	var first, second int
	okRec := recorderFunc(func(context.Context, Record) error { first++; return nil })
	badRec := recorderFunc(func(context.Context, Record) error { second++; return errors.New("disk full") })

	combined := MultiRecorder(okRec, nil, badRec)
	err := combined.RecordExecution(context.Background(), Record{})
	if first != 1 || second != 1 {
		t.Fatalf("recorder calls = %d/%d, want 1/1", first, second)
	}
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("joined error lost: %v", err)
	}

	if err := MultiRecorder().RecordExecution(context.Background(), Record{}); err != nil {
		t.Fatalf("empty multi recorder: %v", err)
	}
}

func TestQueueStats(t *testing.T) {
	fake := &fakeExecutor{}
	d, err := New(fake, executorpkg.DispatcherConfig{QueueSize: 4, Workers: 2}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := d.Enqueue(task("BTC-USDT")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	stats := d.QueueStats()
	if stats.QueueDepth != 1 || stats.QueueCapacity != 4 || stats.Workers != 2 {
		t.Fatalf("stats = %+v", stats)
	}
}
