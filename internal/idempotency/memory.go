package idempotency

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryBackend keeps idempotency records in process memory using
// patrickmn/go-cache. Suitable for a single relay instance; use the Redis
// backend when running more than one.
type MemoryBackend struct {
	cache *gocache.Cache
}

// NewMemoryBackend creates an in-memory backend. The cleanup interval
// bounds how long expired entries linger before the janitor removes them;
// lookups never return expired entries regardless.
func NewMemoryBackend(defaultTTL, cleanupInterval time.Duration) *MemoryBackend {
	return &MemoryBackend{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get returns the stored response for key
func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, found := m.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	return value.([]byte), true, nil
}

// Set stores a response under key with the given TTL
func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.cache.Set(key, value, ttl)
	return nil
}

// Delete removes a record
func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

// Sweep removes expired entries immediately
func (m *MemoryBackend) Sweep(ctx context.Context) error {
	m.cache.DeleteExpired()
	return nil
}

// Len returns the number of live records, expired entries included until
// the next sweep.
func (m *MemoryBackend) Len() int {
	return m.cache.ItemCount()
}
