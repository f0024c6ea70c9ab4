// Package errors provides the structured error taxonomy used across the
// relay. Every delivery failure is classified so the retry engine can decide
// whether another attempt is worthwhile: transport, server (5xx) and
// rate-limit (429) errors are retryable; client (other 4xx), authentication
// and validation errors are terminal.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorType represents the classification of an error
type ErrorType string

const (
	// ErrTypeTransport represents network and timeout failures
	ErrTypeTransport ErrorType = "transport"
	// ErrTypeRateLimit represents HTTP 429 responses from a partner API
	ErrTypeRateLimit ErrorType = "rate_limit"
	// ErrTypeServer represents HTTP 5xx responses
	ErrTypeServer ErrorType = "server"
	// ErrTypeClient represents HTTP 4xx responses other than 429
	ErrTypeClient ErrorType = "client"
	// ErrTypeAuth represents authentication failures (e.g. bad signature)
	ErrTypeAuth ErrorType = "authentication"
	// ErrTypeValidation represents malformed input
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeNotFound represents missing resources
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Status  int                    `json:"status,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`

	// RetryAfter carries a server-supplied delay hint on rate-limit
	// errors. Zero means no hint was given.
	RetryAfter time.Duration `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}
	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRetryAfter attaches a server-supplied backoff hint
func (e *AppError) WithRetryAfter(d time.Duration) *AppError {
	e.RetryAfter = d
	return e
}

// TransportError creates a new transport error
func TransportError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeTransport,
		Message: msg,
		Cause:   cause,
	}
}

// RateLimitError creates a new rate limit error
func RateLimitError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeRateLimit,
		Message: fmt.Sprintf("rate limit exceeded for %s", resource),
		Status:  429,
	}
}

// ServerError creates a new server (5xx) error
func ServerError(status int, msg string) *AppError {
	return &AppError{
		Type:    ErrTypeServer,
		Message: msg,
		Status:  status,
	}
}

// ClientError creates a new client (4xx) error
func ClientError(status int, msg string) *AppError {
	return &AppError{
		Type:    ErrTypeClient,
		Message: msg,
		Status:  status,
	}
}

// AuthError creates a new authentication error
func AuthError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeAuth,
		Message: msg,
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// NotFoundError creates a new not found error
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// FromHTTPStatus classifies an unsuccessful HTTP response status
func FromHTTPStatus(status int, body string) *AppError {
	msg := fmt.Sprintf("HTTP %d", status)
	if body != "" {
		msg = fmt.Sprintf("HTTP %d: %s", status, body)
	}

	switch {
	case status == 429:
		return &AppError{Type: ErrTypeRateLimit, Message: msg, Status: status}
	case status >= 500:
		return &AppError{Type: ErrTypeServer, Message: msg, Status: status}
	case status == 401 || status == 403:
		return &AppError{Type: ErrTypeAuth, Message: msg, Status: status}
	case status >= 400:
		return &AppError{Type: ErrTypeClient, Message: msg, Status: status}
	default:
		return &AppError{Type: ErrTypeInternal, Message: msg, Status: status}
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}

	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return ErrTypeInternal
	}

	return appErr.Type
}

// IsRetryable reports whether a delivery should be attempted again after
// this error. Unclassified errors are treated as transport failures and
// retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return true
	}

	switch appErr.Type {
	case ErrTypeTransport, ErrTypeServer, ErrTypeRateLimit:
		return true
	default:
		return false
	}
}

// RetryAfterHint returns the server-supplied delay hint attached to a
// rate-limit error, or zero when none exists.
func RetryAfterHint(err error) time.Duration {
	appErr, ok := err.(*AppError)
	if !ok {
		return 0
	}
	return appErr.RetryAfter
}
