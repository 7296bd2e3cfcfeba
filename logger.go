package plughost

// Logger defines the interface for kernel logging.
// The kernel uses structured logging with key-value pairs so hosting
// applications can control how kernel logs appear.
//
// The Logger interface uses variadic arguments in key-value pairs:
//
//	logger.Info("message", "key1", "value1", "key2", "value2")
//
// This approach is compatible with popular structured logging libraries
// like slog, logrus, zap, and others. An slog-backed implementation is a
// few lines:
//
//	type SlogLogger struct{ logger *slog.Logger }
//
//	func (l *SlogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
//	func (l *SlogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
//	func (l *SlogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
//	func (l *SlogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
type Logger interface {
	// Info logs an informational message with optional key-value pairs.
	// Used for normal kernel events like registrations and lifecycle transitions.
	Info(msg string, args ...any)

	// Error logs an error message with optional key-value pairs.
	// Used for errors that don't abort the operation but should be noted,
	// such as individual handler failures during dispatch.
	Error(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, args ...any)

	// Debug logs a debug message with optional key-value pairs.
	// Used for detailed diagnostic information, typically disabled in production.
	Debug(msg string, args ...any)
}

// noopLogger discards all log output. Used when a component is constructed
// without a logger.
type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}
