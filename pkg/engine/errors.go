package engine

import (
	"errors"
	"fmt"
	"time"
)

// Engine errors surfaced to callers. Benign stream-state races are
// absorbed internally and never appear here.
var (
	// ErrTransportUnavailable means the relay could not be connected.
	// Often recoverable by retrying.
	ErrTransportUnavailable = errors.New("relay transport unavailable")

	// ErrApprovalTimeout is the class sentinel for *ApprovalTimeoutError.
	ErrApprovalTimeout = errors.New("wallet approval timed out")

	// ErrOrphanSession means the persisted record is definitively stale.
	// The record must be discarded, not retried.
	ErrOrphanSession = errors.New("persisted session is an orphan")

	// ErrSessionInvalid means a session was found but failed structural
	// validation. A fresh connection is required.
	ErrSessionInvalid = errors.New("session failed validation")

	// ErrMaxRetriesExceeded means the reconnection budget is exhausted.
	// Terminal for the current attempt; the caller must start a new one.
	ErrMaxRetriesExceeded = errors.New("reconnection attempts exhausted")

	// ErrApprovalPending is returned by Connect while another approval
	// attempt is still outstanding.
	ErrApprovalPending = errors.New("approval attempt already pending")

	// ErrNoSessionRecord is returned by RestoreByIdentifier when neither
	// the store nor the caller supplies anything to restore from.
	ErrNoSessionRecord = errors.New("no session record to restore")

	// ErrEngineClosed is returned by operations on a closed controller.
	ErrEngineClosed = errors.New("engine closed")
)

// ApprovalTimeoutError carries the diagnostic context captured when an
// approval attempt expired. It unwraps to ErrApprovalTimeout.
type ApprovalTimeoutError struct {
	// Soft reports whether the timeout fired while backgrounded. A soft
	// timeout is only surfaced after the extra resume-time recovery pass
	// also failed.
	Soft bool

	// Elapsed is the time since the attempt started.
	Elapsed time.Duration

	// RelayState is the connection state at expiry.
	RelayState string

	// SessionKnown reports whether any session was visible at expiry.
	SessionKnown bool

	// DeepLinkDispatched reports whether a wallet deep link was opened
	// for the attempt.
	DeepLinkDispatched bool

	// DeepLinkReturnReceived reports whether a deep-link callback came
	// back before expiry.
	DeepLinkReturnReceived bool

	// BackgroundDuration is the total time spent backgrounded during the
	// attempt.
	BackgroundDuration time.Duration
}

// Error implements the error interface.
func (e *ApprovalTimeoutError) Error() string {
	kind := "hard"
	if e.Soft {
		kind = "soft"
	}
	return fmt.Sprintf("wallet approval timed out (%s) after %v, relay %s",
		kind, e.Elapsed.Round(time.Millisecond), e.RelayState)
}

// Unwrap makes errors.Is(err, ErrApprovalTimeout) hold.
func (e *ApprovalTimeoutError) Unwrap() error {
	return ErrApprovalTimeout
}
