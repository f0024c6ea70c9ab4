// Package idempotency suppresses duplicate execution of guarded
// operations. A completed operation's response is cached under its
// idempotency key until the TTL expires; a second call with the same key
// returns the cached response without re-executing.
//
// Do holds a per-key lock for the duration of the guarded operation, so
// concurrent duplicates share one execution (single-flight) instead of
// racing on write-once semantics.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"webhook-relay/internal/common/logging"
)

// DefaultTTL is the record lifetime used when callers pass a zero TTL.
const DefaultTTL = 24 * time.Hour

// Backend stores idempotency records keyed by string
type Backend interface {
	// Get returns the stored response for key, if a live record exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores a response under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes a record.
	Delete(ctx context.Context, key string) error
	// Sweep removes expired records. Backends with native expiry may
	// treat this as a no-op.
	Sweep(ctx context.Context) error
}

// Store wraps a Backend with single-flight execution
type Store struct {
	backend Backend
	logger  logging.Logger

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewStore creates an idempotency store over the given backend
func NewStore(backend Backend, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Store{
		backend: backend,
		logger:  logger,
		locks:   make(map[string]*keyLock),
	}
}

// Do executes fn at most once per live key. If a record exists the cached
// response is returned and fn is not invoked; otherwise fn runs, its
// result is stored with the TTL, and the result is returned. cached
// reports whether the response came from the store.
//
// A failed fn is not recorded, so the next call with the same key
// executes again.
func (s *Store) Do(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) ([]byte, error)) (value []byte, cached bool, err error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	lock := s.acquire(key)
	defer s.release(key, lock)

	if stored, found, lookupErr := s.backend.Get(ctx, key); lookupErr != nil {
		// A broken lookup must not block the delivery path; execute and
		// attempt the write anyway.
		s.logger.Warn("Idempotency lookup failed, executing anyway",
			logging.Field{Key: "key", Value: key},
			logging.Field{Key: "error", Value: lookupErr.Error()},
		)
	} else if found {
		s.logger.Debug("Idempotency hit, suppressing duplicate execution",
			logging.Field{Key: "key", Value: key},
		)
		return stored, true, nil
	}

	value, err = fn(ctx)
	if err != nil {
		return nil, false, err
	}

	if storeErr := s.backend.Set(ctx, key, value, ttl); storeErr != nil {
		s.logger.Warn("Failed to store idempotency record",
			logging.Field{Key: "key", Value: key},
			logging.Field{Key: "error", Value: storeErr.Error()},
		)
	}

	return value, false, nil
}

// Sweep removes expired records from the backend
func (s *Store) Sweep(ctx context.Context) error {
	return s.backend.Sweep(ctx)
}

func (s *Store) acquire(key string) *keyLock {
	s.mu.Lock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &keyLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (s *Store) release(key string, lock *keyLock) {
	lock.mu.Unlock()

	s.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, key)
	}
	s.mu.Unlock()
}

// DedupKey derives the idempotency key for an inbound webhook. Preference
// order: an externally supplied request ID namespaced by source, then the
// natural source:entityID:timestamp composite, then a hash of the raw
// body.
func DedupKey(source, requestID, entityID, timestamp string, body []byte) string {
	if requestID != "" {
		return fmt.Sprintf("%s:req:%s", source, requestID)
	}
	if entityID != "" && timestamp != "" {
		return fmt.Sprintf("%s:%s:%s", source, entityID, timestamp)
	}

	digest := sha256.Sum256(body)
	return fmt.Sprintf("%s:body:%s", source, hex.EncodeToString(digest[:]))
}
