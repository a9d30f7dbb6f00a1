package log

// Logger is the interface applications implement to receive engine
// diagnostics events. Pass nil or NoopLogger to disable diagnostics.
type Logger interface {
	// Log records a diagnostics event. Implementations must be
	// thread-safe and must not block; queue or drop under pressure.
	Log(event Event)
}

// NoopLogger discards all events. Use when diagnostics are disabled.
// NoopLogger is safe for concurrent use and usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}

// OrNoop returns l, or NoopLogger when l is nil, so engine components
// can log unconditionally.
func OrNoop(l Logger) Logger {
	if l == nil {
		return NoopLogger{}
	}
	return l
}
