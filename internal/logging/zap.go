package logging

import (
	"go.uber.org/zap"

	"github.com/gitxandert/process-monitor/types"
)

// ZapLogger implements types.Logger using zap's SugaredLogger.
//
// The Logger interface mirrors the sugared key-value calling convention, so
// this adapter is a thin pass-through.
type ZapLogger struct {
	logger *zap.SugaredLogger
}

// Compile-time assertion that ZapLogger implements Logger.
var _ types.Logger = (*ZapLogger)(nil)

// NewZap creates a zap-backed logger.
//
// Parameters:
//   - logger: The underlying zap.SugaredLogger instance to use
//
// Returns:
//   - *ZapLogger: A new logger instance that wraps the provided SugaredLogger
//
// Example:
//
//	z, _ := zap.NewProduction()
//	logger := NewZap(z.Sugar())
//	logger.Info("monitor started", "instance", "monitor-1")
func NewZap(logger *zap.SugaredLogger) *ZapLogger {
	return &ZapLogger{logger: logger}
}

// Debug logs a debug-level message with optional key-value pairs.
func (l *ZapLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

// Info logs an info-level message with optional key-value pairs.
func (l *ZapLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Infow(msg, keysAndValues...)
}

// Warn logs a warning-level message with optional key-value pairs.
func (l *ZapLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warnw(msg, keysAndValues...)
}

// Error logs an error-level message with optional key-value pairs.
func (l *ZapLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, keysAndValues...)
}

// Fatal logs a fatal-level message with optional key-value pairs, then exits
// via zap's Fatal handling.
func (l *ZapLogger) Fatal(msg string, keysAndValues ...any) {
	l.logger.Fatalw(msg, keysAndValues...)
}
