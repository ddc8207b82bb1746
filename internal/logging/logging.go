// Package logging builds the zap loggers shared by the lakehouse binaries.
package logging

import (
	"fmt"
	"strings"

	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production zap logger at the named level.
func New(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// MustNew is New for main packages; an unparseable level falls back to info.
func MustNew(level string) *zap.Logger {
	logger, err := New(level)
	if err == nil {
		return logger
	}
	logger, err = New("info")
	if err != nil {
		return zap.NewNop()
	}
	logger.Warn("falling back to info logging", zap.String("level", level))
	return logger
}

// temporalLogger adapts zap to the Temporal SDK logger interface.
type temporalLogger struct {
	sugar *zap.SugaredLogger
}

// NewTemporalLogger wraps a zap logger for client.Options.Logger.
func NewTemporalLogger(logger *zap.Logger) log.Logger {
	return &temporalLogger{sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.sugar.Debugw(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.sugar.Infow(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.sugar.Warnw(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.sugar.Errorw(msg, keyvals...)
}

func (l *temporalLogger) With(keyvals ...interface{}) log.Logger {
	return &temporalLogger{sugar: l.sugar.With(keyvals...)}
}
