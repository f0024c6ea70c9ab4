// Package retry executes operations under a bounded-attempt exponential
// backoff policy. It is a pure retry primitive: callers route exhausted
// failures to the dead-letter recorder and record budget usage themselves.
package retry

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"time"

	apperrors "webhook-relay/internal/common/errors"
)

// Policy holds configuration for retry operations with exponential backoff
type Policy struct {
	// MaxAttempts is the maximum number of attempts, including the first
	MaxAttempts int

	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth
	MaxDelay time.Duration

	// BackoffFactor is the multiplier applied per attempt (2.0 doubles)
	BackoffFactor float64

	// JitterFactor adds randomness to delays (0.1 = up to 10% extra)
	JitterFactor float64

	// Retryable determines which errors allow another attempt.
	// Nil uses the delivery classification in common/errors.
	Retryable func(error) bool
}

// DefaultPolicy returns the relay's default delivery policy: three
// attempts, 500ms base, doubling, 30s cap, 10% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		BaseDelay:     500 * time.Millisecond,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// Validate checks if the policy is usable
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("MaxAttempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("BaseDelay must be positive, got %v", p.BaseDelay)
	}
	if p.BackoffFactor < 1 {
		return fmt.Errorf("BackoffFactor must be at least 1, got %v", p.BackoffFactor)
	}
	if p.JitterFactor < 0 || p.JitterFactor > 1 {
		return fmt.Errorf("JitterFactor must be in [0,1], got %v", p.JitterFactor)
	}
	return nil
}

// Delay computes the backoff before retrying after attempt n (0-indexed),
// without jitter: min(BaseDelay * BackoffFactor^n, MaxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	delay := time.Duration(float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Execute runs op up to policy.MaxAttempts times. Attempts are strictly
// sequential; the backoff sleep between them is the only suspension
// point and honors ctx cancellation.
//
// A non-retryable error fails immediately without consuming further
// attempts. A rate-limit error carrying a Retry-After hint overrides the
// computed backoff for that attempt. On exhaustion the last error is
// returned; attempts reports how many times op ran.
func Execute(ctx context.Context, policy Policy, op func(ctx context.Context) error) (attempts int, err error) {
	if validateErr := policy.Validate(); validateErr != nil {
		return 0, validateErr
	}

	retryable := policy.Retryable
	if retryable == nil {
		retryable = apperrors.IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		attempts++

		if lastErr = op(ctx); lastErr == nil {
			return attempts, nil
		}

		if !retryable(lastErr) {
			return attempts, lastErr
		}
		if attempt == policy.MaxAttempts-1 {
			break
		}

		delay := policy.Delay(attempt)
		if hint := apperrors.RetryAfterHint(lastErr); hint > 0 {
			delay = hint
		} else if policy.JitterFactor > 0 {
			jitter := time.Duration(float64(delay) * policy.JitterFactor)
			delay += time.Duration(randomInt64n(int64(jitter)))
		}

		select {
		case <-ctx.Done():
			return attempts, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return attempts, lastErr
}

// randomInt64n returns a random int64 in [0, n), falling back to
// time-based randomness if crypto/rand fails.
func randomInt64n(n int64) int64 {
	if n <= 0 {
		return 0
	}

	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return time.Now().UnixNano() % n
	}

	val := int64(bytes[0])<<56 | int64(bytes[1])<<48 | int64(bytes[2])<<40 | int64(bytes[3])<<32 |
		int64(bytes[4])<<24 | int64(bytes[5])<<16 | int64(bytes[6])<<8 | int64(bytes[7])
	if val < 0 {
		val = -val
	}

	return val % n
}
