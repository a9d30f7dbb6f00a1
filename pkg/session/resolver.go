package session

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/walletrelay/walletrelay-go/pkg/log"
	"github.com/walletrelay/walletrelay-go/pkg/relay"
	"github.com/walletrelay/walletrelay-go/pkg/wallet"
)

// Outcome classifies the result of a restoration search.
type Outcome uint8

const (
	// OutcomeRestored means a live session was found. Check
	// RestoreResult.TopicMigrated to see whether the persisted record
	// needs rewriting.
	OutcomeRestored Outcome = iota

	// OutcomeOrphanSession means the relay was reachable and no session
	// matched: the persisted record is definitively stale and must be
	// deleted, not retried.
	OutcomeOrphanSession

	// OutcomeRelayDisconnected means connectivity could not be
	// established before the search: the result is inconclusive and
	// the caller should retry.
	OutcomeRelayDisconnected

	// OutcomeOfflinePending means the relay is down but the persisted
	// topic or address exists in the SDK's offline cache: render
	// "connected (verifying)" while the transport reconnects in the
	// background.
	OutcomeOfflinePending

	// OutcomeSessionInvalid means a session matched but failed
	// structural validation (no accounts, expired): a fresh connection
	// is required.
	OutcomeSessionInvalid
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeRestored:
		return "RESTORED"
	case OutcomeOrphanSession:
		return "ORPHAN_SESSION"
	case OutcomeRelayDisconnected:
		return "RELAY_DISCONNECTED"
	case OutcomeOfflinePending:
		return "OFFLINE_PENDING"
	case OutcomeSessionInvalid:
		return "SESSION_INVALID"
	default:
		return "UNKNOWN"
	}
}

// ShouldRetry reports whether the outcome is recoverable by retrying
// the restoration. Orphaned and invalid outcomes are terminal for the
// persisted record.
func (o Outcome) ShouldRetry() bool {
	return o == OutcomeRelayDisconnected || o == OutcomeOfflinePending
}

// MatchRule names the fallback rule that located a session.
type MatchRule uint8

const (
	// MatchNone means no rule matched.
	MatchNone MatchRule = iota

	// MatchTopic is an exact topic match.
	MatchTopic

	// MatchAddress is a wallet-type-filtered address match.
	MatchAddress

	// MatchLooseAddress is an address match ignoring wallet identity.
	MatchLooseAddress

	// MatchMetadata is a peer-display-name plus chain match.
	MatchMetadata
)

// String returns the rule name.
func (m MatchRule) String() string {
	switch m {
	case MatchTopic:
		return "TOPIC"
	case MatchAddress:
		return "ADDRESS"
	case MatchLooseAddress:
		return "LOOSE_ADDRESS"
	case MatchMetadata:
		return "METADATA"
	default:
		return "NONE"
	}
}

// RestoreResult is the classified outcome of a restoration search.
type RestoreResult struct {
	// Outcome is the classification.
	Outcome Outcome

	// Session is the live session (valid only for OutcomeRestored).
	Session relay.Session

	// MatchedBy names the rule that found the session.
	MatchedBy MatchRule

	// TopicMigrated indicates a fallback rule matched a session whose
	// topic differs from the persisted record; the caller should
	// migrate its record.
	TopicMigrated bool
}

// EnsureFunc establishes relay connectivity, waiting up to timeout.
// Satisfied by (*connection.Orchestrator).EnsureConnected.
type EnsureFunc func(ctx context.Context, timeout time.Duration) bool

// ResolverConfig configures a restoration resolver.
type ResolverConfig struct {
	// Sessions is the SDK session surface. Required.
	Sessions relay.SessionClient

	// Ensure establishes relay connectivity before the search. Required.
	Ensure EnsureFunc

	// ConnectTimeout bounds the pre-search connectivity attempt.
	// Defaults to 10 seconds.
	ConnectTimeout time.Duration

	// Clock provides timestamps. Defaults to the system clock.
	Clock clock.Clock

	// Logger receives operational logs. Defaults to a discard logger.
	Logger *slog.Logger

	// Diagnostics receives structured resolution events (optional).
	Diagnostics log.Logger

	// ConnectionID identifies this engine instance in diagnostics.
	ConnectionID string
}

// Resolver maps a persisted session record back to a live SDK session.
type Resolver struct {
	sessions relay.SessionClient
	ensure   EnsureFunc
	timeout  time.Duration
	clk      clock.Clock
	logger   *slog.Logger
	diag     log.Logger
	connID   string
}

// NewResolver creates a restoration resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{
		sessions: cfg.Sessions,
		ensure:   cfg.Ensure,
		timeout:  cfg.ConnectTimeout,
		clk:      cfg.Clock,
		logger:   cfg.Logger,
		diag:     log.OrNoop(cfg.Diagnostics),
		connID:   cfg.ConnectionID,
	}
}

// Resolve finds the live session for a persisted record. fallbackAddr
// supplements the record's addresses when the caller knows one (it may
// be empty).
//
// A failed search is only definitive when the relay was reachable:
// "not found" over a dead relay is OutcomeRelayDisconnected (or
// OutcomeOfflinePending when the offline cache still holds a
// candidate), never OutcomeOrphanSession.
func (r *Resolver) Resolve(ctx context.Context, record *Record, fallbackAddr string) RestoreResult {
	addrs := r.candidateAddresses(record, fallbackAddr)

	if !r.ensure(ctx, r.timeout) {
		// Local-only check, no network: does the offline cache still
		// hold the topic or an address candidate?
		for _, s := range r.sessions.ListSessionsOffline() {
			if s.Topic == record.Topic || r.anyAddress(s, addrs) {
				r.logger.Info("relay down but session cached locally",
					"topic", record.Topic)
				return r.classified(record, RestoreResult{Outcome: OutcomeOfflinePending})
			}
		}
		return r.classified(record, RestoreResult{Outcome: OutcomeRelayDisconnected})
	}

	list, err := r.sessions.ListSessions(ctx)
	if err != nil {
		// Listing failed after connectivity was confirmed; the search
		// is inconclusive, not negative.
		r.logger.Warn("session list failed during restoration", "err", err)
		return r.classified(record, RestoreResult{Outcome: OutcomeRelayDisconnected})
	}

	result := r.search(record, addrs, list)
	return r.classified(record, result)
}

// search walks the layered fallback rules over the known sessions.
func (r *Resolver) search(record *Record, addrs []string, list []relay.Session) RestoreResult {
	// 1. Exact topic match.
	for _, s := range list {
		if s.Topic == record.Topic {
			return r.found(record, s, MatchTopic)
		}
	}

	// 2. Strict address match: wallet identity must be consistent with
	// the record.
	for _, s := range list {
		if wallet.Matches(s.Peer, record.WalletType) && r.anyAddress(s, addrs) {
			return r.found(record, s, MatchAddress)
		}
	}

	// 3. Loose address match: some wallets report inconsistent peer
	// metadata, so an address hit without the identity filter is still
	// a candidate. Logged as a mismatch.
	for _, s := range list {
		if r.anyAddress(s, addrs) {
			r.logger.Warn("session matched by address with mismatched wallet metadata",
				"expected", record.WalletType.String(), "peer", s.Peer.Name)
			return r.found(record, s, MatchLooseAddress)
		}
	}

	// 4. Metadata match: display name plus chain, for wallets that
	// rotate account representations between reconnects.
	if record.PeerName != "" {
		for _, s := range list {
			if strings.EqualFold(s.Peer.Name, record.PeerName) && r.hasChain(s, record.Chain) {
				return r.found(record, s, MatchMetadata)
			}
		}
	}

	return RestoreResult{Outcome: OutcomeOrphanSession}
}

// found validates a matched session structurally before declaring it
// restored.
func (r *Resolver) found(record *Record, s relay.Session, rule MatchRule) RestoreResult {
	if len(s.Accounts) == 0 {
		return RestoreResult{Outcome: OutcomeSessionInvalid, MatchedBy: rule}
	}
	if !s.Expiry.IsZero() && s.Expiry.Before(r.clk.Now()) {
		return RestoreResult{Outcome: OutcomeSessionInvalid, MatchedBy: rule}
	}
	return RestoreResult{
		Outcome:       OutcomeRestored,
		Session:       s,
		MatchedBy:     rule,
		TopicMigrated: s.Topic != record.Topic,
	}
}

// candidateAddresses merges the record's addresses with the caller's
// fallback address, normalized and deduplicated.
func (r *Resolver) candidateAddresses(record *Record, fallbackAddr string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(addr string) {
		norm := NormalizeAddress(addr)
		if norm == "" {
			return
		}
		if _, dup := seen[norm]; dup {
			return
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	for _, a := range record.Addresses {
		add(a)
	}
	add(fallbackAddr)
	return out
}

// anyAddress reports whether the session holds any candidate address.
func (r *Resolver) anyAddress(s relay.Session, addrs []string) bool {
	for _, a := range addrs {
		if HasAddress(s, a) {
			return true
		}
	}
	return false
}

// hasChain reports whether the session covers the chain (or reports no
// chains at all, which some SDKs do for single-chain wallets).
func (r *Resolver) hasChain(s relay.Session, chain string) bool {
	if chain == "" || len(s.Chains) == 0 {
		return true
	}
	for _, c := range s.Chains {
		if c == chain {
			return true
		}
	}
	return false
}

// classified emits the resolution diagnostics event and returns result.
func (r *Resolver) classified(record *Record, result RestoreResult) RestoreResult {
	r.diag.Log(log.Event{
		Timestamp:    r.clk.Now(),
		ConnectionID: r.connID,
		Category:     log.CategoryResolution,
		Wallet:       record.WalletType.String(),
		Topic:        record.Topic,
		Resolution: &log.ResolutionEvent{
			Outcome:       result.Outcome.String(),
			MatchedBy:     result.MatchedBy.String(),
			TopicMigrated: result.TopicMigrated,
		},
	})
	return result
}
