package logger

import (
	"go.uber.org/zap"
)

// Logger is the interface for structured logging
type Logger interface {
	// Core logging methods
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	Fatal(msg string, keysAndValues ...any)

	// With returns a logger with additional fields
	With(keysAndValues ...any) Logger

	// WithError returns a logger with an error field
	WithError(err error) Logger

	// Named logger for component identification
	Named(name string) Logger

	// Sync flushes any buffered log entries
	Sync() error
}

// zapLogger wraps zap.SugaredLogger to implement the Logger interface
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// Config holds logger configuration
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	File   string `json:"file" yaml:"file"`
	Caller bool   `json:"caller" yaml:"caller"`
}

// DefaultConfig returns a default logger configuration
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Caller: true,
	}
}
