package journal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"sigex/pkg/dispatch"
)

const fileName = "executions.msgpack"

// Entry is one appended execution record. Money fields are stored as
// strings so the journal stays readable without the decimal library.
type Entry struct {
	Sequence   uint64    `msgpack:"sequence"`
	EnqueuedAt time.Time `msgpack:"enqueued_at"`
	StartedAt  time.Time `msgpack:"started_at"`
	FinishedAt time.Time `msgpack:"finished_at"`
	Worker     int       `msgpack:"worker"`

	Symbol          string `msgpack:"symbol"`
	Action          string `msgpack:"action"`
	AlertID         string `msgpack:"alert_id,omitempty"`
	RequestQuantity string `msgpack:"request_quantity,omitempty"`
	RequestMargin   string `msgpack:"request_margin,omitempty"`
	RequestLeverage int    `msgpack:"request_leverage,omitempty"`

	Order *OrderEntry `msgpack:"order,omitempty"`
	Error string      `msgpack:"error,omitempty"`
}

// OrderEntry is the settled order snapshot stored with successful entries.
type OrderEntry struct {
	OrderID       string `msgpack:"order_id,omitempty"`
	ClientOrderID string `msgpack:"client_order_id,omitempty"`
	Status        string `msgpack:"status,omitempty"`
	Side          string `msgpack:"side"`
	PositionSide  string `msgpack:"position_side,omitempty"`
	Type          string `msgpack:"type"`
	Quantity      string `msgpack:"quantity"`
	Price         string `msgpack:"price,omitempty"`
	Leverage      int    `msgpack:"leverage,omitempty"`
	ReduceOnly    bool   `msgpack:"reduce_only"`
	ClosePosition bool   `msgpack:"close_position"`
	Duplicate     bool   `msgpack:"duplicate"`
	DryRun        bool   `msgpack:"dry_run"`
}

// Journal appends execution outcomes to a single msgpack stream under the
// data directory. It implements dispatch.Recorder.
type Journal struct {
	mu   sync.Mutex
	path string
	file *os.File
	enc  *msgpack.Encoder
	seq  uint64
}

var _ dispatch.Recorder = (*Journal)(nil)

// Open creates or reopens the journal under dir. Existing records are
// counted so sequence numbers keep increasing across restarts; a file with
// a corrupt tail (crash mid-write) is moved aside and a fresh one started.
func Open(dir string, logger *log.Logger) (*Journal, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, fileName)

	seq, err := countRecords(path)
	if err != nil {
		damaged := fmt.Sprintf("%s.corrupt-%d", path, time.Now().UnixMilli())
		if renameErr := os.Rename(path, damaged); renameErr != nil {
			return nil, fmt.Errorf("journal: quarantine corrupt file: %w", renameErr)
		}
		if logger != nil {
			logger.Printf("journal: %v; moved damaged file to %s", err, damaged)
		}
		seq = 0
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	return &Journal{path: path, file: file, enc: msgpack.NewEncoder(file), seq: seq}, nil
}

// Path reports the journal file location.
func (j *Journal) Path() string { return j.path }

// RecordExecution appends one outcome.
func (j *Journal) RecordExecution(_ context.Context, rec dispatch.Record) error {
	entry := newEntry(rec)
	j.mu.Lock()
	defer j.mu.Unlock()
	j.seq++
	entry.Sequence = j.seq
	if err := j.enc.Encode(&entry); err != nil {
		return fmt.Errorf("journal: append record %d: %w", j.seq, err)
	}
	return nil
}

// Close releases the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// ReadAll decodes every record in a journal file, oldest first.
func ReadAll(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	defer file.Close()

	dec := msgpack.NewDecoder(file)
	var entries []Entry
	for {
		var entry Entry
		if err := dec.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				return entries, nil
			}
			return entries, fmt.Errorf("journal: decode record %d: %w", len(entries)+1, err)
		}
		entries = append(entries, entry)
	}
}

// Tail returns the most recent n records, oldest first.
func (j *Journal) Tail(n int) ([]Entry, error) {
	entries, err := ReadAll(j.path)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

func countRecords(path string) (uint64, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("journal: open %s: %w", path, err)
	}
	defer file.Close()

	dec := msgpack.NewDecoder(file)
	var n uint64
	for {
		if err := dec.Decode(&Entry{}); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("journal: record %d is damaged: %w", n+1, err)
		}
		n++
	}
}

func newEntry(rec dispatch.Record) Entry {
	entry := Entry{
		EnqueuedAt:      rec.Task.EnqueuedAt,
		StartedAt:       rec.StartedAt,
		FinishedAt:      rec.FinishedAt,
		Worker:          rec.Worker,
		Symbol:          rec.Task.Request.Symbol,
		Action:          string(rec.Task.Request.Action),
		AlertID:         rec.Task.Request.AlertID,
		RequestLeverage: rec.Task.Request.Leverage,
	}
	if rec.Task.Request.Quantity.IsPositive() {
		entry.RequestQuantity = rec.Task.Request.Quantity.String()
	}
	if rec.Task.Request.MarginUSDT.IsPositive() {
		entry.RequestMargin = rec.Task.Request.MarginUSDT.String()
	}
	if rec.Err != nil {
		entry.Error = rec.Err.Error()
	}
	if rec.Order != nil {
		entry.Order = &OrderEntry{
			OrderID:       rec.Order.OrderID,
			ClientOrderID: rec.Order.ClientOrderID,
			Status:        rec.Order.Status,
			Side:          string(rec.Order.Request.Side),
			PositionSide:  string(rec.Order.Request.PositionSide),
			Type:          string(rec.Order.Request.Type),
			Quantity:      rec.Order.Quantity.String(),
			Price:         rec.Order.Price.String(),
			Leverage:      rec.Order.Leverage,
			ReduceOnly:    rec.Order.Request.ReduceOnly,
			ClosePosition: rec.Order.Request.ClosePosition,
			Duplicate:     rec.Order.Duplicate,
			DryRun:        rec.Order.DryRun,
		}
	}
	return entry
}
