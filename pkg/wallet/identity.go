package wallet

import (
	"strings"

	"github.com/walletrelay/walletrelay-go/pkg/relay"
)

// Type identifies a supported wallet application.
type Type uint8

const (
	// TypeUnknown is a wallet that matched no predicate.
	TypeUnknown Type = iota

	// TypeMetaMask is the MetaMask wallet.
	TypeMetaMask

	// TypeTrust is Trust Wallet.
	TypeTrust

	// TypeRainbow is the Rainbow wallet.
	TypeRainbow

	// TypePhantom is the Phantom wallet (Solana clusters).
	TypePhantom
)

// String returns a human-readable wallet type name.
func (t Type) String() string {
	switch t {
	case TypeMetaMask:
		return "METAMASK"
	case TypeTrust:
		return "TRUST"
	case TypeRainbow:
		return "RAINBOW"
	case TypePhantom:
		return "PHANTOM"
	default:
		return "UNKNOWN"
	}
}

// Identity is the result of classifying a session's peer metadata.
// Either Known is true and Type holds the classification, or the peer
// could not be identified.
type Identity struct {
	Known bool
	Type  Type
}

// KnownIdentity returns an Identity for a recognized wallet type.
func KnownIdentity(t Type) Identity {
	return Identity{Known: true, Type: t}
}

// UnknownIdentity returns the unidentified Identity.
func UnknownIdentity() Identity {
	return Identity{}
}

// predicate reports whether peer metadata belongs to a wallet type.
type predicate func(peer relay.PeerMetadata) bool

// nameContains builds a predicate matching a case-insensitive substring
// of the peer display name.
func nameContains(fragments ...string) predicate {
	return func(peer relay.PeerMetadata) bool {
		name := strings.ToLower(peer.Name)
		for _, f := range fragments {
			if strings.Contains(name, f) {
				return true
			}
		}
		return false
	}
}

// predicates is the central wallet-identification table. Order matters:
// the first match wins, so more specific names come first.
var predicates = []struct {
	typ   Type
	match predicate
}{
	{TypeMetaMask, nameContains("metamask")},
	{TypeTrust, nameContains("trust wallet", "trustwallet")},
	{TypeRainbow, nameContains("rainbow")},
	{TypePhantom, nameContains("phantom")},
}

// Identify classifies peer metadata against the predicate table.
func Identify(peer relay.PeerMetadata) Identity {
	for _, entry := range predicates {
		if entry.match(peer) {
			return KnownIdentity(entry.typ)
		}
	}
	return UnknownIdentity()
}

// Matches reports whether peer metadata is consistent with the given
// wallet type. Unknown never matches.
func Matches(peer relay.PeerMetadata, t Type) bool {
	if t == TypeUnknown {
		return false
	}
	id := Identify(peer)
	return id.Known && id.Type == t
}

// ParseType parses a wallet type name as used in policy files and
// persisted records. Unrecognized names map to TypeUnknown.
func ParseType(s string) Type {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "METAMASK":
		return TypeMetaMask
	case "TRUST":
		return TypeTrust
	case "RAINBOW":
		return TypeRainbow
	case "PHANTOM":
		return TypePhantom
	default:
		return TypeUnknown
	}
}
