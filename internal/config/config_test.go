package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Load()
	cfg.AgentEndpoint = "http://localhost:9090/api/webhooks/helpdesk"
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "X-Source-Signature", cfg.SignatureHeader)
	assert.Equal(t, "agent-sdk", cfg.AgentServiceName)
	assert.Equal(t, 10*time.Second, cfg.ForwardTimeout)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, 2.0, cfg.RetryBackoffFactor)
	assert.Equal(t, 10, cfg.RateLimitCapacity)
	assert.Equal(t, time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 100, cfg.RetryBudgetCap)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, "memory", cfg.IdempotencyBackend)
	assert.Equal(t, 50, cfg.QueueDepthAlert)
	assert.Equal(t, 100, cfg.QueueDepthEscalation)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("RETRY_BASE_DELAY", "200ms")
	t.Setenv("RATE_LIMIT_WINDOW", "2s")
	t.Setenv("SLA_ERROR_RATE_PERCENT", "25")

	cfg := Load()

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, 2*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 25.0, cfg.SLAErrorRatePercent)
}

func TestLoadIgnoresMalformedEnv(t *testing.T) {
	t.Setenv("RETRY_MAX_ATTEMPTS", "lots")
	t.Setenv("RETRY_BASE_DELAY", "soon")

	cfg := Load()

	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBaseDelay)
}

func TestValidate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("missing agent endpoint", func(t *testing.T) {
		cfg := Load()
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AGENT_ENDPOINT")
	})

	t.Run("relative agent endpoint", func(t *testing.T) {
		cfg := validConfig()
		cfg.AgentEndpoint = "/api/webhooks/helpdesk"
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid port", func(t *testing.T) {
		cfg := validConfig()
		cfg.Port = "not-a-port"
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero attempts", func(t *testing.T) {
		cfg := validConfig()
		cfg.RetryMaxAttempts = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("backoff factor below one", func(t *testing.T) {
		cfg := validConfig()
		cfg.RetryBackoffFactor = 0.5
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown idempotency backend", func(t *testing.T) {
		cfg := validConfig()
		cfg.IdempotencyBackend = "memcached"
		assert.Error(t, cfg.Validate())
	})

	t.Run("redis backend requires address", func(t *testing.T) {
		cfg := validConfig()
		cfg.IdempotencyBackend = "redis"
		cfg.RedisAddress = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("escalation must exceed alert threshold", func(t *testing.T) {
		cfg := validConfig()
		cfg.QueueDepthEscalation = cfg.QueueDepthAlert
		assert.Error(t, cfg.Validate())
	})
}
