package replay

import (
	"context"

	"sigex/pkg/journal"
)

// EntrySource replays an in-memory slice of journal entries.
type EntrySource struct {
	entries []journal.Entry
	idx     int
}

func NewEntrySource(entries []journal.Entry) *EntrySource {
	return &EntrySource{entries: entries}
}

// NewJournalSource loads every entry from a journal file up front. Replays
// read the file once; a damaged tail fails the load rather than the run.
func NewJournalSource(path string) (*EntrySource, error) {
	entries, err := journal.ReadAll(path)
	if err != nil {
		return nil, err
	}
	return NewEntrySource(entries), nil
}

func (s *EntrySource) Next(ctx context.Context) (*journal.Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if s.idx >= len(s.entries) {
		return nil, false, nil
	}
	entry := &s.entries[s.idx]
	s.idx++
	return entry, true, nil
}
