package facts

import (
	"context"
	"sync"
)

// MemorySink collects facts in memory, used in tests
type MemorySink struct {
	mu    sync.RWMutex
	facts []Fact
}

// NewMemorySink creates an in-memory fact sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record appends one fact
func (m *MemorySink) Record(ctx context.Context, fact Fact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts = append(m.facts, fact)
	return nil
}

// Facts returns a copy of everything recorded so far
func (m *MemorySink) Facts() []Fact {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Fact, len(m.facts))
	copy(out, m.facts)
	return out
}

// ByType returns recorded facts matching the given fact type
func (m *MemorySink) ByType(factType string) []Fact {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Fact
	for _, f := range m.facts {
		if f.FactType == factType {
			out = append(out, f)
		}
	}
	return out
}

// Close is a no-op
func (m *MemorySink) Close() error {
	return nil
}

// NoopSink discards every fact. Used when no facts database is
// configured.
type NoopSink struct{}

// NewNoopSink creates a discarding sink
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

// Record discards the fact
func (NoopSink) Record(ctx context.Context, fact Fact) error {
	return nil
}

// Close is a no-op
func (NoopSink) Close() error {
	return nil
}
