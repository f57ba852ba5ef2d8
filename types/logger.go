package types

// Logger is a minimal structured logging interface.
//
// The method set is compatible with zap.SugaredLogger, so a sugared zap
// logger can be passed directly. Messages carry alternating key/value pairs.
type Logger interface {
	// Debug logs a debug-level message with key/value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs an info-level message with key/value pairs.
	Info(msg string, keysAndValues ...any)

	// Warn logs a warning-level message with key/value pairs.
	Warn(msg string, keysAndValues ...any)

	// Error logs an error-level message with key/value pairs.
	Error(msg string, keysAndValues ...any)
}
