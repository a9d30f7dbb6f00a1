package session

import (
	"strings"
	"time"

	"github.com/walletrelay/walletrelay-go/pkg/relay"
	"github.com/walletrelay/walletrelay-go/pkg/wallet"
)

// Record is the durable, minimal representation of an established
// session: enough to find the live session again after a cold start.
type Record struct {
	// WalletType identifies the wallet the session was approved by.
	WalletType wallet.Type `json:"wallet_type"`

	// Topic is the session topic at the time of persistence.
	Topic string `json:"topic"`

	// Addresses are the normalized account addresses of the session.
	Addresses []string `json:"addresses"`

	// Chain is the chain or cluster the session was requested for.
	Chain string `json:"chain"`

	// PeerName is the wallet's display name as reported at approval,
	// used by the metadata fallback during restoration.
	PeerName string `json:"peer_name,omitempty"`

	// CreatedAt is when the session was approved.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is updated on every successful restoration.
	LastUsedAt time.Time `json:"last_used_at"`

	// ExpiresAt is the SDK-reported session expiry, when known.
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// NewRecord builds a record from a freshly approved session.
func NewRecord(t wallet.Type, chain string, s relay.Session, now time.Time) *Record {
	return &Record{
		WalletType: t,
		Topic:      s.Topic,
		Addresses:  NormalizedAddresses(s),
		Chain:      chain,
		PeerName:   s.Peer.Name,
		CreatedAt:  now,
		LastUsedAt: now,
		ExpiresAt:  s.Expiry,
	}
}

// Touch marks the record as used. Callers persist the record afterwards.
func (r *Record) Touch(now time.Time) {
	r.LastUsedAt = now
}

// Migrate rewrites the record for a session whose topic changed during
// restoration.
func (r *Record) Migrate(s relay.Session, now time.Time) {
	r.Topic = s.Topic
	r.Addresses = NormalizedAddresses(s)
	r.ExpiresAt = s.Expiry
	if s.Peer.Name != "" {
		r.PeerName = s.Peer.Name
	}
	r.LastUsedAt = now
}

// RecordStore is the persistence boundary for session records. The
// engine reads and writes exactly one record per wallet adapter; the
// store's file format is the host application's concern.
type RecordStore interface {
	// Load returns the persisted record, or (nil, nil) when none exists.
	Load() (*Record, error)

	// Save persists the record, replacing any previous one.
	Save(record *Record) error

	// Delete removes the persisted record. Deleting an absent record
	// is not an error.
	Delete() error
}

// NormalizeAddress lowercases an account address and strips a CAIP-10
// chain prefix ("eip155:1:0xAbC..." -> "0xabc...").
func NormalizeAddress(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		addr = addr[i+1:]
	}
	return strings.ToLower(strings.TrimSpace(addr))
}

// NormalizedAddresses extracts the distinct normalized addresses of a
// session's accounts.
func NormalizedAddresses(s relay.Session) []string {
	seen := make(map[string]struct{}, len(s.Accounts))
	var out []string
	for _, acct := range s.Accounts {
		norm := NormalizeAddress(acct)
		if norm == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

// HasAddress reports whether the session holds the (normalized) address.
func HasAddress(s relay.Session, address string) bool {
	want := NormalizeAddress(address)
	if want == "" {
		return false
	}
	for _, acct := range s.Accounts {
		if NormalizeAddress(acct) == want {
			return true
		}
	}
	return false
}
