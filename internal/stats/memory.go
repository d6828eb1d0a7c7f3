package stats

import (
	"context"
	"sync"

	"github.com/j-veylop/rdio-stats/internal/models"
)

// MemoryStore is an in-memory CounterStore and Ledger. It is safe for
// concurrent use and loses everything on exit.
type MemoryStore struct {
	mu     sync.RWMutex
	counts map[string]int64
	calls  []models.CallRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counts: make(map[string]int64),
	}
}

// Increment adds one to key under the write lock.
func (m *MemoryStore) Increment(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counts[key]++
	return nil
}

// ReadAll returns a copy of every counter.
func (m *MemoryStore) ReadAll(_ context.Context) ([]models.CounterEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]models.CounterEntry, 0, len(m.counts))
	for key, count := range m.counts {
		entries = append(entries, models.CounterEntry{Key: key, Count: count})
	}
	return entries, nil
}

// Append stores a copy of rec and assigns its sequence number.
func (m *MemoryStore) Append(_ context.Context, rec *models.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.ID = int64(len(m.calls) + 1)
	m.calls = append(m.calls, *rec)
	return nil
}

// MostRecent returns the call with the greatest timestamp, later appends winning ties.
func (m *MemoryStore) MostRecent(_ context.Context) (*models.CallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.calls) == 0 {
		return nil, nil
	}

	best := m.calls[0]
	for _, c := range m.calls[1:] {
		if c.TimestampMillis >= best.TimestampMillis {
			best = c
		}
	}
	return &best, nil
}

// Count returns the current value of key.
func (m *MemoryStore) Count(key string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[key]
}

// Calls returns the number of ledger entries.
func (m *MemoryStore) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}
