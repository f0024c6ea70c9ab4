// Package logging provides zap-based structured logging
package logging

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapAdapter wraps zap.Logger to implement the Logger interface
type ZapAdapter struct {
	logger *zap.Logger
}

// NewZapLogger creates a new zap-based logger
func NewZapLogger(config LogConfig) (Logger, error) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}

	var writer zapcore.WriteSyncer
	if config.Output != nil {
		writer = zapcore.AddSync(config.Output)
	} else {
		writer = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), writer, toZapLevel(config.Level))
	logger := zap.New(core)
	if config.Name != "" {
		logger = logger.Named(config.Name)
	}

	return &ZapAdapter{logger: logger}, nil
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() Logger {
	logger, err := NewZapLogger(DefaultLogConfig())
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

// InitGlobalLogger initializes the global logger from LOG_LEVEL and LOG_FILE
func InitGlobalLogger() {
	config := LogConfig{
		Level:      ParseLevel(os.Getenv("LOG_LEVEL")),
		TimeFormat: time.RFC3339,
	}

	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			panic(fmt.Sprintf("failed to open log file %s: %v", logFile, err))
		}
		config.Output = file
	}

	logger, err := NewZapLogger(config)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	SetGlobalLogger(logger)
	logger.Info("Logger initialized", Field{"level", config.Level.String()})
}

// MustSync flushes any buffered log entries; call before exit
func MustSync() {
	if zapLogger, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = zapLogger.Sync()
	}
}

// Debug logs a debug message
func (z *ZapAdapter) Debug(msg string, fields ...Field) {
	z.logger.Debug(msg, convertFields(fields)...)
}

// Info logs an info message
func (z *ZapAdapter) Info(msg string, fields ...Field) {
	z.logger.Info(msg, convertFields(fields)...)
}

// Warn logs a warning message
func (z *ZapAdapter) Warn(msg string, fields ...Field) {
	z.logger.Warn(msg, convertFields(fields)...)
}

// Error logs an error message
func (z *ZapAdapter) Error(msg string, err error, fields ...Field) {
	zapFields := convertFields(fields)
	if err != nil {
		zapFields = append(zapFields, zap.Error(err))
	}
	z.logger.Error(msg, zapFields...)
}

// WithFields returns a new logger with additional fields
func (z *ZapAdapter) WithFields(fields ...Field) Logger {
	if len(fields) == 0 {
		return z
	}
	return &ZapAdapter{logger: z.logger.With(convertFields(fields)...)}
}

// WithContext returns a new logger carrying request-scoped fields
func (z *ZapAdapter) WithContext(ctx context.Context) Logger {
	fields := []zap.Field{}

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if source, ok := ctx.Value(SourceKey).(string); ok {
		fields = append(fields, zap.String("source", source))
	}

	if len(fields) == 0 {
		return z
	}
	return &ZapAdapter{logger: z.logger.With(fields...)}
}

// Sync flushes any buffered log entries
func (z *ZapAdapter) Sync() error {
	return z.logger.Sync()
}

type contextKey string

// Context keys recognized by WithContext.
const (
	RequestIDKey contextKey = "request_id"
	SourceKey    contextKey = "source"
)

func toZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func convertFields(fields []Field) []zap.Field {
	zapFields := make([]zap.Field, len(fields))
	for i, field := range fields {
		zapFields[i] = zap.Any(field.Key, field.Value)
	}
	return zapFields
}

// Typed field constructors

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float64 field
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Time creates a time field
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field with key "error"
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any creates a field with any value
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}
