// Package ratelimit provides courtesy rate limiting for outbound calls to
// partner APIs. Each guarded resource gets a token bucket with a fixed
// capacity that refills to full at every window boundary; callers suspend
// on Acquire until a token is available.
//
// This is deliberately not a continuously-refilling bucket: tokens are
// restored all at once when the window rolls over, matching partner APIs
// that meter in fixed windows.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config holds token bucket configuration
type Config struct {
	// Capacity is the number of tokens restored each window
	Capacity int
	// Window is the refill interval
	Window time.Duration
	// Enabled toggles limiting; a disabled bucket always admits
	Enabled bool
}

// DefaultConfig returns the default outbound limit of 10 calls per second
func DefaultConfig() Config {
	return Config{
		Capacity: 10,
		Window:   time.Second,
		Enabled:  true,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("Capacity must be positive, got %d", c.Capacity)
	}
	if c.Window <= 0 {
		return fmt.Errorf("Window must be positive, got %v", c.Window)
	}
	return nil
}

// Bucket is a fixed-window token bucket
type Bucket struct {
	mu         sync.Mutex
	config     Config
	tokens     int
	lastRefill time.Time

	// now is swappable for tests
	now func() time.Time
}

// NewBucket creates a token bucket starting at full capacity
func NewBucket(config Config) (*Bucket, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	b := &Bucket{
		config: config,
		tokens: config.Capacity,
		now:    time.Now,
	}
	b.lastRefill = b.now()
	return b, nil
}

// Acquire consumes one token, suspending the calling goroutine until the
// next window refill when the bucket is empty. It returns early with the
// context's error if the context is cancelled while waiting.
func (b *Bucket) Acquire(ctx context.Context) error {
	if !b.config.Enabled {
		return nil
	}

	for {
		b.mu.Lock()
		b.refillLocked()
		if b.tokens > 0 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		wait := b.lastRefill.Add(b.config.Window).Sub(b.now())
		b.mu.Unlock()

		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire consumes a token without blocking, reporting whether one was
// available.
func (b *Bucket) TryAcquire() bool {
	if !b.config.Enabled {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Tokens returns the number of tokens currently available
func (b *Bucket) Tokens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	return b.tokens
}

// Stats returns bucket statistics
func (b *Bucket) Stats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()

	return map[string]interface{}{
		"enabled":          b.config.Enabled,
		"capacity":         b.config.Capacity,
		"window":           b.config.Window.String(),
		"available_tokens": b.tokens,
		"last_refill":      b.lastRefill.Format(time.RFC3339),
	}
}

// refillLocked restores the bucket to full capacity once the window has
// elapsed. Caller must hold b.mu.
func (b *Bucket) refillLocked() {
	now := b.now()
	if now.Sub(b.lastRefill) >= b.config.Window {
		b.tokens = b.config.Capacity
		b.lastRefill = now
	}
}

// Registry hands out one bucket per guarded resource name
type Registry struct {
	mu      sync.Mutex
	config  Config
	buckets map[string]*Bucket
}

// NewRegistry creates a registry that builds buckets with the given config
func NewRegistry(config Config) (*Registry, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Registry{
		config:  config,
		buckets: make(map[string]*Bucket),
	}, nil
}

// Get returns the bucket for a resource, creating it on first use
func (r *Registry) Get(resource string) *Bucket {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.buckets[resource]
	if !ok {
		// Config was validated at registry construction.
		bucket, _ = NewBucket(r.config)
		r.buckets[resource] = bucket
	}
	return bucket
}
