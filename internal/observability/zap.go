package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a zap.Logger to the Logger interface.
type ZapLogger struct {
	base *zap.Logger
}

// NewZapLogger builds a production zap logger at the given level.
// Format is "json" or "console".
func NewZapLogger(level, format string) (*ZapLogger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	if format == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &ZapLogger{base: base}, nil
}

// Debug logs at debug level.
func (l *ZapLogger) Debug(msg string, fields ...Field) { l.base.Debug(msg, zapFields(fields)...) }

// Info logs at info level.
func (l *ZapLogger) Info(msg string, fields ...Field) { l.base.Info(msg, zapFields(fields)...) }

// Warn logs at warn level.
func (l *ZapLogger) Warn(msg string, fields ...Field) { l.base.Warn(msg, zapFields(fields)...) }

// Error logs at error level.
func (l *ZapLogger) Error(msg string, fields ...Field) { l.base.Error(msg, zapFields(fields)...) }

// Sync flushes buffered log entries.
func (l *ZapLogger) Sync() error { return l.base.Sync() }

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
