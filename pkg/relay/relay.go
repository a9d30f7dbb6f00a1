package relay

import (
	"context"
	"time"
)

// PeerMetadata describes the remote wallet application as reported by the
// relay SDK. Wallets report this inconsistently; treat every field as a
// hint rather than an identifier.
type PeerMetadata struct {
	// Name is the wallet's display name (e.g. "MetaMask").
	Name string

	// URL is the wallet's homepage, if reported.
	URL string

	// Description is free-form text supplied by the wallet.
	Description string

	// Icons are icon URLs supplied by the wallet.
	Icons []string
}

// Session is the SDK's view of one established dApp/wallet channel.
type Session struct {
	// Topic is the opaque identifier for the channel.
	Topic string

	// PairingTopic is the topic of the pairing this session was
	// established over (empty when the SDK does not expose it).
	PairingTopic string

	// Peer describes the remote wallet.
	Peer PeerMetadata

	// Accounts are CAIP-10 account identifiers ("eip155:1:0xabc...").
	Accounts []string

	// Chains are CAIP-2 chain identifiers the session is approved for.
	Chains []string

	// Expiry is when the session expires, if the SDK reports one.
	Expiry time.Time

	// Acknowledged reports whether the wallet acknowledged the session
	// settlement.
	Acknowledged bool
}

// Transport is the low-level relay connection the engine exclusively owns.
// No other component may call Connect or Disconnect directly.
type Transport interface {
	// Connect establishes the relay connection. The returned error may
	// be a benign stream-state race; see IsBenignStreamError.
	Connect(ctx context.Context) error

	// Disconnect tears down the relay connection. Calling it on an
	// already-closed transport returns a benign error.
	Disconnect(ctx context.Context) error

	// IsConnected reports the transport's cached connected flag. The
	// flag may be stale after an error; re-sample it before trusting a
	// failure report.
	IsConnected() bool

	// OnConnect registers a callback invoked when the transport
	// confirms a connection. Returns a release function.
	OnConnect(fn func()) (release func())

	// OnDisconnect registers a callback invoked when the transport
	// drops. Returns a release function.
	OnDisconnect(fn func(reason error)) (release func())

	// OnError registers a callback for asynchronous transport errors.
	// Returns a release function.
	OnError(fn func(err error)) (release func())
}

// SessionClient is the SDK's session bookkeeping surface.
type SessionClient interface {
	// ListSessions returns all sessions the SDK currently knows,
	// consulting the relay where necessary.
	ListSessions(ctx context.Context) ([]Session, error)

	// GetSession returns the session for topic, or ErrSessionNotFound.
	GetSession(ctx context.Context, topic string) (Session, error)

	// ListSessionsOffline returns the SDK's local session cache without
	// touching the network. Used to distinguish "relay down but the
	// session probably exists" from "relay down, nothing known".
	ListSessionsOffline() []Session

	// OnSessionConnect registers a callback invoked when a new session
	// settles. Returns a release function.
	OnSessionConnect(fn func(s Session)) (release func())

	// OnSessionDelete registers a callback invoked when a session is
	// deleted (by either side). Returns a release function.
	OnSessionDelete(fn func(topic string)) (release func())

	// OnSessionUpdate registers a callback invoked when a session's
	// namespaces change. Returns a release function.
	OnSessionUpdate(fn func(s Session)) (release func())

	// OnSessionEvent registers a callback for wallet-emitted session
	// events (chain changed, accounts changed). Returns a release
	// function.
	OnSessionEvent(fn func(topic, name string, data any)) (release func())
}
