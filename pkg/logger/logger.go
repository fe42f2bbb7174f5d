package logger

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a new logger instance with the given configuration
func New(cfg Config) Logger {
	outputs := []string{"stderr"}
	if cfg.File != "" {
		outputs = append(outputs, cfg.File)
	}

	encoding := cfg.Format
	if encoding != "console" {
		encoding = "json"
	}

	zapConfig := zap.Config{
		Level:             parseLevel(cfg.Level),
		DisableCaller:     !cfg.Caller,
		DisableStacktrace: true,
		Encoding:          encoding,
		EncoderConfig:     getEncoderConfig(encoding),
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		InitialFields: map[string]any{
			"app": "robomonkey",
			"pid": os.Getpid(),
		},
	}

	logger, err := zapConfig.Build(
		zap.AddCallerSkip(1),
	)

	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return &zapLogger{
		sugar: logger.Sugar(),
	}
}

// NewNop returns a no-op logger for testing
func NewNop() Logger {
	return &zapLogger{
		sugar: zap.NewNop().Sugar(),
	}
}

// getEncoderConfig returns the appropriate encoder config based on format
func getEncoderConfig(format string) zapcore.EncoderConfig {
	base := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if format == "console" {
		base.EncodeLevel = zapcore.CapitalColorLevelEncoder
		base.EncodeTime = localTimeEncoder
		base.ConsoleSeparator = " | "
	}

	return base
}

// localTimeEncoder encodes time in local format for console output
func localTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}

// parseLevel parses the log level string
func parseLevel(level string) zap.AtomicLevel {
	switch level {
	case "debug", "DEBUG":
		return zap.NewAtomicLevelAt(zap.DebugLevel)

	case "info", "INFO":
		return zap.NewAtomicLevelAt(zap.InfoLevel)

	case "warn", "warning", "WARNING":
		return zap.NewAtomicLevelAt(zap.WarnLevel)

	case "error", "ERROR":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)

	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}

// Debug logs a debug message
func (l *zapLogger) Debug(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs an info message
func (l *zapLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs a warning message
func (l *zapLogger) Warn(msg string, keysAndValues ...any) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs an error message
func (l *zapLogger) Error(msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Fatal logs a fatal message and exits the program
func (l *zapLogger) Fatal(msg string, keysAndValues ...any) {
	l.sugar.Fatalw(msg, keysAndValues...)
}

// With returns a logger with additional fields
func (l *zapLogger) With(keysAndValues ...any) Logger {
	return &zapLogger{
		sugar: l.sugar.With(keysAndValues...),
	}
}

// WithError returns a logger with an error field
func (l *zapLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}

	return &zapLogger{
		sugar: l.sugar.With("error", err.Error()),
	}
}

// Named returns a named logger
func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{
		sugar: l.sugar.Named(name),
	}
}

// Sync flushes any buffered log entries
func (l *zapLogger) Sync() error {
	return l.sugar.Sync()
}
