package log

// MultiLogger fans each event out to a set of sinks, typically a
// FileLogger for the durable CBOR stream plus a SlogAdapter mirroring
// events to the console during debugging. Sinks receive events in
// registration order; a slow sink delays the ones after it.
type MultiLogger struct {
	sinks []Logger
}

// NewMultiLogger combines the given sinks into one Logger. Nil entries
// are skipped so callers can pass optional sinks unconditionally.
func NewMultiLogger(sinks ...Logger) *MultiLogger {
	m := &MultiLogger{sinks: make([]Logger, 0, len(sinks))}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Log delivers the event to every sink.
func (m *MultiLogger) Log(event Event) {
	for _, s := range m.sinks {
		s.Log(event)
	}
}

// Compile-time interface satisfaction check.
var _ Logger = (*MultiLogger)(nil)
