package types

// Logger defines methods for structured logging.
//
// Compatible with zap.SugaredLogger and other structured loggers.
// All methods accept alternating key-value pairs for structured fields.
type Logger interface {
	// Debug logs a message at DebugLevel with optional structured fields.
	Debug(msg string, keysAndValues ...any)

	// Info logs a message at InfoLevel with optional structured fields.
	Info(msg string, keysAndValues ...any)

	// Warn logs a message at WarnLevel with optional structured fields.
	Warn(msg string, keysAndValues ...any)

	// Error logs a message at ErrorLevel with optional structured fields.
	Error(msg string, keysAndValues ...any)

	// Fatal logs a message at FatalLevel, then calls os.Exit(1) even if
	// logging at FatalLevel is disabled.
	Fatal(msg string, keysAndValues ...any)
}
