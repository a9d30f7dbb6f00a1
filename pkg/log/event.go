package log

import (
	"time"
)

// Event represents a diagnostics event captured by the engine.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the engine instance/connection
	// (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"3,keyasint"`

	// Wallet is the wallet type name, when known.
	Wallet string `cbor:"4,keyasint,omitempty"`

	// Topic is the session topic the event relates to, when known.
	Topic string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	StateChange *StateChangeEvent `cbor:"6,keyasint,omitempty"`
	Reconnect   *ReconnectEvent   `cbor:"7,keyasint,omitempty"`
	Resolution  *ResolutionEvent  `cbor:"8,keyasint,omitempty"`
	Timeout     *TimeoutEvent     `cbor:"9,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"10,keyasint,omitempty"`
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState indicates a connection state change.
	CategoryState Category = 0
	// CategoryReconnect indicates a reconnection attempt outcome.
	CategoryReconnect Category = 1
	// CategoryResolution indicates a session restoration outcome.
	CategoryResolution Category = 2
	// CategoryTimeout indicates an approval timeout.
	CategoryTimeout Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryReconnect:
		return "RECONNECT"
	case CategoryResolution:
		return "RESOLUTION"
	case CategoryTimeout:
		return "TIMEOUT"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures a connection state machine transition.
type StateChangeEvent struct {
	// OldState is the previous state.
	OldState string `cbor:"1,keyasint"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Forced indicates the transition bypassed table validation.
	Forced bool `cbor:"3,keyasint,omitempty"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// ReconnectEvent captures the outcome of one reconnection attempt.
type ReconnectEvent struct {
	// Source names the trigger (lifecycle, deeplink, transport-error,
	// progressive).
	Source string `cbor:"1,keyasint"`

	// Attempt is the attempt number within the current sequence.
	Attempt int `cbor:"2,keyasint"`

	// MaxAttempts is the attempt budget, when bounded (0 = unbounded).
	MaxAttempts int `cbor:"3,keyasint,omitempty"`

	// Timeout is the per-attempt timeout used.
	Timeout time.Duration `cbor:"4,keyasint,omitempty"`

	// Success reports whether the attempt ended connected.
	Success bool `cbor:"5,keyasint"`

	// Background indicates the app was backgrounded during the attempt.
	Background bool `cbor:"6,keyasint,omitempty"`

	// Skipped indicates the attempt was refused (debounced, budget
	// exhausted, backgrounded without pending approval).
	Skipped bool `cbor:"7,keyasint,omitempty"`
}

// ResolutionEvent captures the outcome of a session restoration search.
type ResolutionEvent struct {
	// Outcome is the classification (restored, orphan,
	// relay-disconnected, offline-pending, invalid).
	Outcome string `cbor:"1,keyasint"`

	// MatchedBy names the rule that matched (topic, address,
	// loose-address, metadata), empty when nothing matched.
	MatchedBy string `cbor:"2,keyasint,omitempty"`

	// TopicMigrated indicates a fallback rule matched a session with a
	// different topic than the persisted record.
	TopicMigrated bool `cbor:"3,keyasint,omitempty"`
}

// TimeoutKind distinguishes hard and soft approval timeouts.
type TimeoutKind uint8

const (
	// TimeoutHard fired while foregrounded: the attempt fails.
	TimeoutHard TimeoutKind = 0
	// TimeoutSoft fired while backgrounded: one more recovery attempt
	// happens on the next resume.
	TimeoutSoft TimeoutKind = 1
)

// String returns the timeout kind name.
func (k TimeoutKind) String() string {
	switch k {
	case TimeoutHard:
		return "HARD"
	case TimeoutSoft:
		return "SOFT"
	default:
		return "UNKNOWN"
	}
}

// TimeoutEvent captures approval timeout diagnostics.
type TimeoutEvent struct {
	// Kind is hard or soft.
	Kind TimeoutKind `cbor:"1,keyasint"`

	// Elapsed is the time since the attempt started.
	Elapsed time.Duration `cbor:"2,keyasint"`

	// RelayState is the connection state at expiry.
	RelayState string `cbor:"3,keyasint"`

	// SessionKnown reports whether any candidate session was visible at
	// expiry.
	SessionKnown bool `cbor:"4,keyasint,omitempty"`

	// DeepLinkDispatched reports whether a wallet deep link was opened
	// for this attempt.
	DeepLinkDispatched bool `cbor:"5,keyasint,omitempty"`

	// DeepLinkReturnReceived reports whether a deep-link callback was
	// observed before expiry.
	DeepLinkReturnReceived bool `cbor:"6,keyasint,omitempty"`

	// BackgroundDuration is the total time spent backgrounded during
	// the attempt (soft timeouts).
	BackgroundDuration time.Duration `cbor:"7,keyasint,omitempty"`
}

// ErrorEventData captures error events.
type ErrorEventData struct {
	// Code is the error classification name (transport-unavailable,
	// approval-timeout, orphan-session, session-invalid,
	// max-retries-exceeded).
	Code string `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`

	// Context describes where the error occurred.
	Context string `cbor:"3,keyasint,omitempty"`
}
