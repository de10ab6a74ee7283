package lr1

// Progress contains information about a running flash transfer.
// Passed to ProgressCallback during ReadFlash and WriteFlash; the
// calibration load at open time reports through it too.
type Progress struct {
	// Operation names the transfer, "read flash" or "write flash"
	Operation string

	// BytesDone is the number of payload bytes transferred so far
	BytesDone int

	// BytesTotal is the total number of payload bytes requested
	BytesTotal int
}

// ProgressCallback is called after each flash batch or chunk to report
// transfer progress. Implementations should return quickly; the callback
// runs between packet exchanges.
type ProgressCallback func(Progress)

// Logger is an optional logging interface the session reports through.
// This allows integration with any logging framework.
//
// Example with the standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{})   { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})    { log.Println(msg, kv) }
//	func (l *StdLogger) Warning(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{})   { log.Println(msg, kv) }
//
//	spectro, err := lr1.Open(ctx, device, lr1.WithLogger(&StdLogger{}))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Warning logs a warning message with optional key-value pairs
	Warning(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
