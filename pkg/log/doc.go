// Package log provides structured diagnostics events for the connection
// engine.
//
// Events capture state transitions, reconnection outcomes, session
// resolution results and timeout diagnostics. Applications receive them
// through the Logger interface and forward them to whatever telemetry
// pipeline they use. Delivery is fire-and-forget: a Logger must never
// block the engine, and encoding errors are swallowed.
//
// Events are encoded as CBOR with integer keys for compact on-device
// log files. FileLogger writes a raw CBOR stream; Reader reads one back.
// SlogAdapter mirrors events to a log/slog logger for development.
package log
