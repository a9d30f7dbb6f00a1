package relay

import (
	"errors"
	"strings"
)

// Relay boundary errors.
var (
	// ErrSessionNotFound is returned by GetSession for unknown topics.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStreamStateConflict marks benign transport races: the stream
	// was already closed, or a connect raced a teardown. Transports
	// should wrap this sentinel where they can detect the condition.
	ErrStreamStateConflict = errors.New("stream state conflict")

	// ErrTransportClosed is returned by operations on a transport that
	// has been shut down for good.
	ErrTransportClosed = errors.New("transport closed")
)

// benignFragments are message substrings observed from SDKs that do not
// expose a typed stream-state error. Kept as a fallback only; transports
// built in this repository wrap ErrStreamStateConflict instead.
var benignFragments = []string{
	"bad state",
	"already closed",
	"use of closed network connection",
	"websocket: close sent",
}

// IsBenignStreamError reports whether err is a stream-state race that
// should be absorbed rather than surfaced: the transport's actual state
// must be re-sampled instead of trusting the error.
func IsBenignStreamError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStreamStateConflict) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range benignFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
