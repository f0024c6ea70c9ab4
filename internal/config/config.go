// Package config provides configuration management for the webhook relay.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration so the relay starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Webhook Authentication:
//   - WEBHOOK_SECRET: Shared HMAC-SHA256 secret for inbound webhooks.
//     Empty disables verification (non-production escape hatch, logged).
//   - SIGNATURE_HEADER: Header carrying the HMAC signature
//     (default: X-Source-Signature)
//
// Downstream Forwarding:
//   - AGENT_ENDPOINT: Downstream webhook-receiver URL (required)
//   - AGENT_SERVICE_NAME: Service name used for budget/SLA bookkeeping
//     (default: agent-sdk)
//   - FORWARD_TIMEOUT: Per-attempt transport timeout (default: 10s)
//
// Retry Policy:
//   - RETRY_MAX_ATTEMPTS: Attempts per delivery, including the first
//     (default: 3)
//   - RETRY_BASE_DELAY: Delay before the first retry (default: 500ms)
//   - RETRY_MAX_DELAY: Cap on the computed backoff (default: 30s)
//   - RETRY_BACKOFF_FACTOR: Exponential multiplier (default: 2.0)
//
// Rate Limiting (outbound, courtesy):
//   - RATE_LIMIT_CAPACITY: Tokens per window (default: 10)
//   - RATE_LIMIT_WINDOW: Refill window (default: 1s)
//
// Retry Budget:
//   - RETRY_BUDGET_CAP: Retries allowed per service per hour (default: 100)
//
// Idempotency:
//   - IDEMPOTENCY_TTL: Dedup record lifetime (default: 24h)
//   - IDEMPOTENCY_BACKEND: "memory" or "redis" (default: memory)
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//
// Dead Letters:
//   - DLQ_DATABASE_PATH: SQLite file for dead-letter entries
//     (default: ./webhook_relay_dlq.db)
//
// Facts Persistence:
//   - FACTS_DATABASE_URL: Postgres URL for the facts sink. Empty keeps
//     facts in memory (single instance / tests).
//
// SLA Thresholds:
//   - SLA_P95_LATENCY_MS: p95 latency threshold (default: 5000)
//   - SLA_ERROR_RATE_PERCENT: error-rate threshold (default: 10)
//   - SLA_AVAILABILITY_PERCENT: availability floor (default: 99)
//
// Queue Depth:
//   - QUEUE_DEPTH_ALERT: warning threshold (default: 50)
//   - QUEUE_DEPTH_ESCALATION: critical threshold (default: 100)
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the webhook relay.
// Load it with Load() and call Validate() before use.
type Config struct {
	// Application settings
	Port     string
	LogLevel string

	// Webhook authentication
	WebhookSecret   string
	SignatureHeader string

	// Downstream forwarding
	AgentEndpoint    string
	AgentServiceName string
	ForwardTimeout   time.Duration

	// Retry policy
	RetryMaxAttempts   int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	RetryBackoffFactor float64

	// Outbound rate limiting
	RateLimitCapacity int
	RateLimitWindow   time.Duration

	// Retry budget
	RetryBudgetCap int

	// Idempotency
	IdempotencyTTL     time.Duration
	IdempotencyBackend string
	RedisAddress       string
	RedisPassword      string
	RedisDB            int

	// Dead letters
	DLQDatabasePath string

	// Facts persistence
	FactsDatabaseURL string

	// SLA thresholds
	SLAP95LatencyMs        int
	SLAErrorRatePercent    float64
	SLAAvailabilityPercent float64

	// Queue depth thresholds
	QueueDepthAlert      int
	QueueDepthEscalation int
}

// Load creates a new Config instance with values loaded from environment
// variables, falling back to defaults for anything unset. It does not
// validate; call Validate() on the result.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		WebhookSecret:   getEnv("WEBHOOK_SECRET", ""),
		SignatureHeader: getEnv("SIGNATURE_HEADER", "X-Source-Signature"),

		AgentEndpoint:    getEnv("AGENT_ENDPOINT", ""),
		AgentServiceName: getEnv("AGENT_SERVICE_NAME", "agent-sdk"),
		ForwardTimeout:   getDurationEnv("FORWARD_TIMEOUT", 10*time.Second),

		RetryMaxAttempts:   getIntEnv("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:     getDurationEnv("RETRY_BASE_DELAY", 500*time.Millisecond),
		RetryMaxDelay:      getDurationEnv("RETRY_MAX_DELAY", 30*time.Second),
		RetryBackoffFactor: getFloatEnv("RETRY_BACKOFF_FACTOR", 2.0),

		RateLimitCapacity: getIntEnv("RATE_LIMIT_CAPACITY", 10),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Second),

		RetryBudgetCap: getIntEnv("RETRY_BUDGET_CAP", 100),

		IdempotencyTTL:     getDurationEnv("IDEMPOTENCY_TTL", 24*time.Hour),
		IdempotencyBackend: getEnv("IDEMPOTENCY_BACKEND", "memory"),
		RedisAddress:       getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getIntEnv("REDIS_DB", 0),

		DLQDatabasePath: getEnv("DLQ_DATABASE_PATH", "./webhook_relay_dlq.db"),

		FactsDatabaseURL: getEnv("FACTS_DATABASE_URL", ""),

		SLAP95LatencyMs:        getIntEnv("SLA_P95_LATENCY_MS", 5000),
		SLAErrorRatePercent:    getFloatEnv("SLA_ERROR_RATE_PERCENT", 10),
		SLAAvailabilityPercent: getFloatEnv("SLA_AVAILABILITY_PERCENT", 99),

		QueueDepthAlert:      getIntEnv("QUEUE_DEPTH_ALERT", 50),
		QueueDepthEscalation: getIntEnv("QUEUE_DEPTH_ESCALATION", 100),
	}
}

// Validate checks that required fields are present and all values are
// usable before the relay starts.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if c.AgentEndpoint == "" {
		return fmt.Errorf("AGENT_ENDPOINT environment variable is required")
	}
	if u, err := url.Parse(c.AgentEndpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("AGENT_ENDPOINT must be an absolute URL")
	}

	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.RetryBaseDelay <= 0 {
		return fmt.Errorf("RETRY_BASE_DELAY must be positive")
	}
	if c.RetryBackoffFactor < 1 {
		return fmt.Errorf("RETRY_BACKOFF_FACTOR must be at least 1")
	}

	if c.RateLimitCapacity < 1 {
		return fmt.Errorf("RATE_LIMIT_CAPACITY must be a positive number")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be a positive duration")
	}

	if c.RetryBudgetCap < 1 {
		return fmt.Errorf("RETRY_BUDGET_CAP must be a positive number")
	}

	switch c.IdempotencyBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("IDEMPOTENCY_BACKEND must be 'memory' or 'redis'")
	}
	if c.IdempotencyBackend == "redis" {
		if c.RedisAddress == "" {
			return fmt.Errorf("REDIS_ADDRESS is required when using the redis idempotency backend")
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
	}

	if c.QueueDepthEscalation <= c.QueueDepthAlert {
		return fmt.Errorf("QUEUE_DEPTH_ESCALATION must be greater than QUEUE_DEPTH_ALERT")
	}

	return nil
}

// getEnv retrieves an environment variable value or returns a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves an integer environment variable or returns a default
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getFloatEnv retrieves a float environment variable or returns a default
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv retrieves a duration environment variable or returns a default
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
