package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"webhook-relay/internal/common/logging"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequestID assigns each request an ID, honoring one supplied by the
// caller, and exposes it on the response and the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), logging.RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging logs all HTTP requests with method, path, status, and duration
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap the ResponseWriter to capture status code
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // default to 200
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		fields := []logging.Field{
			{Key: "method", Value: r.Method},			{Key: "path", Value: r.URL.Path},			{Key: "status", Value: wrapped.statusCode},			{Key: "duration_ms", Value: duration.Milliseconds()},			{Key: "remote_addr", Value: r.RemoteAddr},		}

		if r.URL.RawQuery != "" {
			fields = append(fields, logging.Field{Key: "query", Value: r.URL.RawQuery})
		}

		if ua := r.Header.Get("User-Agent"); ua != "" {
			fields = append(fields, logging.Field{Key: "user_agent", Value: ua})
		}

		if requestID, ok := r.Context().Value(logging.RequestIDKey).(string); ok && requestID != "" {
			fields = append(fields, logging.Field{Key: "request_id", Value: requestID})
		}

		if wrapped.statusCode >= 500 {
			logging.Error("HTTP request completed", nil, fields...)
		} else if wrapped.statusCode >= 400 {
			logging.Warn("HTTP request completed", fields...)
		} else {
			logging.Info("HTTP request completed", fields...)
		}
	})
}
