package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorError(t *testing.T) {
	t.Run("type and message", func(t *testing.T) {
		err := TransportError("connection refused", nil)
		assert.Equal(t, "transport: connection refused", err.Error())
	})

	t.Run("includes status", func(t *testing.T) {
		err := ServerError(503, "service unavailable")
		assert.Contains(t, err.Error(), "status=503")
	})

	t.Run("includes cause", func(t *testing.T) {
		cause := stderrors.New("dial tcp: timeout")
		err := TransportError("forward failed", cause)
		assert.Contains(t, err.Error(), "cause=dial tcp: timeout")
	})

	t.Run("includes context", func(t *testing.T) {
		err := ClientError(400, "bad payload").WithContext("endpoint", "/api/webhooks")
		assert.Contains(t, err.Error(), "endpoint=/api/webhooks")
	})
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := stderrors.New("underlying")
	err := InternalError("wrapper", cause)

	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.True(t, stderrors.Is(err, cause))
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status   int
		wantType ErrorType
	}{
		{429, ErrTypeRateLimit},
		{500, ErrTypeServer},
		{502, ErrTypeServer},
		{503, ErrTypeServer},
		{401, ErrTypeAuth},
		{403, ErrTypeAuth},
		{400, ErrTypeClient},
		{404, ErrTypeClient},
		{410, ErrTypeClient},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			err := FromHTTPStatus(tt.status, "body")
			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, tt.status, err.Status)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	t.Run("retryable classes", func(t *testing.T) {
		assert.True(t, IsRetryable(TransportError("timeout", nil)))
		assert.True(t, IsRetryable(ServerError(500, "boom")))
		assert.True(t, IsRetryable(RateLimitError("agent-sdk")))
	})

	t.Run("terminal classes", func(t *testing.T) {
		assert.False(t, IsRetryable(ClientError(404, "not found")))
		assert.False(t, IsRetryable(AuthError("bad signature")))
		assert.False(t, IsRetryable(ValidationError("empty body")))
		assert.False(t, IsRetryable(ConfigError("missing endpoint")))
	})

	t.Run("nil is not retryable", func(t *testing.T) {
		assert.False(t, IsRetryable(nil))
	})

	t.Run("unclassified errors are retried", func(t *testing.T) {
		assert.True(t, IsRetryable(stderrors.New("something network-ish")))
	})
}

func TestRetryAfterHint(t *testing.T) {
	t.Run("carries hint", func(t *testing.T) {
		err := RateLimitError("agent-sdk").WithRetryAfter(5 * time.Second)
		assert.Equal(t, 5*time.Second, RetryAfterHint(err))
	})

	t.Run("no hint", func(t *testing.T) {
		assert.Zero(t, RetryAfterHint(ServerError(500, "boom")))
		assert.Zero(t, RetryAfterHint(stderrors.New("plain")))
	})
}

func TestIsTypeAndGetType(t *testing.T) {
	err := AuthError("signature mismatch")

	assert.True(t, IsType(err, ErrTypeAuth))
	assert.False(t, IsType(err, ErrTypeClient))
	assert.False(t, IsType(nil, ErrTypeAuth))
	assert.Equal(t, ErrTypeAuth, GetType(err))
	assert.Equal(t, ErrTypeInternal, GetType(stderrors.New("plain")))
	assert.Equal(t, ErrorType(""), GetType(nil))
}
