package dlq

import (
	"context"
	"sync"
)

// MemoryStore keeps dead-letter entries in memory. Used in tests and as a
// last-resort fallback when the SQLite store cannot be opened.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewMemoryStore creates an in-memory dead-letter store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert appends one entry
func (m *MemoryStore) Insert(ctx context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// List returns entries newest first
func (m *MemoryStore) List(ctx context.Context, limit, offset int) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	// entries are appended in arrival order; walk backwards for newest first
	var result []*Entry
	for i := len(m.entries) - 1 - offset; i >= 0 && len(result) < limit; i-- {
		result = append(result, m.entries[i])
	}
	return result, nil
}

// Stats returns aggregate statistics
func (m *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{TotalEntries: int64(len(m.entries))}
	if len(m.entries) > 0 {
		oldest := m.entries[0].RecordedAt
		newest := m.entries[len(m.entries)-1].RecordedAt
		stats.OldestEntry = &oldest
		stats.NewestEntry = &newest
	}
	return stats, nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}
