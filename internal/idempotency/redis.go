package idempotency

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisBackend stores idempotency records in Redis so duplicate webhooks
// landing on different relay instances still dedupe against one another.
type RedisBackend struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisBackend creates a Redis-backed idempotency backend
func NewRedisBackend(client *redis.Client, keyPrefix string) *RedisBackend {
	if keyPrefix == "" {
		keyPrefix = "idem:"
	}
	return &RedisBackend{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get returns the stored response for key
func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores a response under key with the given TTL
func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.keyPrefix+key, value, ttl).Err()
}

// Delete removes a record
func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.keyPrefix+key).Err()
}

// Sweep is a no-op: Redis expires records natively
func (r *RedisBackend) Sweep(ctx context.Context) error {
	return nil
}
