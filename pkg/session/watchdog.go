package session

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/walletrelay/walletrelay-go/pkg/relay"
	"github.com/walletrelay/walletrelay-go/pkg/wallet"
)

// DefaultPollInterval is the watchdog's session poll interval.
const DefaultPollInterval = 1 * time.Second

// Attempt represents one in-flight "await wallet approval" operation.
// It is owned exclusively by the controller for the duration of one
// connect call and destroyed when the attempt resolves.
type Attempt struct {
	// ID uniquely identifies the attempt in logs.
	ID string

	// WalletType is the wallet being connected to.
	WalletType wallet.Type

	// Chain is the target chain or cluster.
	Chain string

	// CreatedAt is when the attempt started.
	CreatedAt time.Time

	// initialKnown is the set of session topics that existed before the
	// attempt started. A session present here can never satisfy the
	// attempt: it predates it.
	initialKnown map[string]struct{}
}

// NewAttempt snapshots the currently known sessions and starts a new
// attempt for the given wallet and chain.
func NewAttempt(sessions relay.SessionClient, t wallet.Type, chain string, now time.Time) *Attempt {
	known := make(map[string]struct{})
	for _, s := range sessions.ListSessionsOffline() {
		known[s.Topic] = struct{}{}
	}
	return &Attempt{
		ID:           uuid.NewString(),
		WalletType:   t,
		Chain:        chain,
		CreatedAt:    now,
		initialKnown: known,
	}
}

// Accepts reports whether a session satisfies this attempt: it must be
// new (absent from the initial snapshot) and valid for the attempt's
// wallet and chain.
func (a *Attempt) Accepts(s relay.Session) bool {
	if _, preexisting := a.initialKnown[s.Topic]; preexisting {
		return false
	}
	if len(s.Accounts) == 0 {
		return false
	}
	// Wallet-specific validity: peer metadata must be consistent with
	// the requested wallet. Unknown requests accept any wallet.
	if a.WalletType != wallet.TypeUnknown && !wallet.Matches(s.Peer, a.WalletType) {
		return false
	}
	if a.Chain != "" && len(s.Chains) > 0 {
		found := false
		for _, c := range s.Chains {
			if c == a.Chain {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Watchdog detects that a pending connection attempt has been approved,
// tolerating the loss of the primary approval event.
type Watchdog struct {
	sessions     relay.SessionClient
	clk          clock.Clock
	logger       *slog.Logger
	pollInterval time.Duration
}

// WatchdogConfig configures a Watchdog.
type WatchdogConfig struct {
	// Sessions is the SDK session surface. Required.
	Sessions relay.SessionClient

	// Clock drives the poll timer. Defaults to the system clock.
	Clock clock.Clock

	// Logger receives operational logs. Defaults to a discard logger.
	Logger *slog.Logger

	// PollInterval overrides DefaultPollInterval.
	PollInterval time.Duration
}

// NewWatchdog creates an approval watchdog.
func NewWatchdog(cfg WatchdogConfig) *Watchdog {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Watchdog{
		sessions:     cfg.Sessions,
		clk:          cfg.Clock,
		logger:       cfg.Logger,
		pollInterval: cfg.PollInterval,
	}
}

// Await blocks until a session satisfying the attempt appears, racing
// the SDK's session-established event against a periodic poll of the
// session list. Whichever source resolves first wins; the second
// arrival is a no-op. Await returns ctx.Err() when cancelled.
//
// The poll path exists because the event can be dropped while the OS
// has the app suspended; polling on the next run of the loop still
// observes the new session in the SDK's cache.
func (w *Watchdog) Await(ctx context.Context, attempt *Attempt) (relay.Session, error) {
	// Buffered so the losing source's late completion never blocks.
	won := make(chan relay.Session, 1)

	release := w.sessions.OnSessionConnect(func(s relay.Session) {
		if !attempt.Accepts(s) {
			return
		}
		select {
		case won <- s:
		default:
		}
	})
	defer release()

	// The session may have settled between the attempt snapshot and the
	// subscription above; check once before waiting.
	if s, ok := w.pollOnce(ctx, attempt); ok {
		return s, nil
	}

	for {
		select {
		case s := <-won:
			w.logger.Debug("approval observed via event", "attempt", attempt.ID, "topic", s.Topic)
			return s, nil
		case <-ctx.Done():
			return relay.Session{}, ctx.Err()
		case <-w.clk.TickAfter(w.pollInterval):
			if s, ok := w.pollOnce(ctx, attempt); ok {
				w.logger.Debug("approval observed via poll", "attempt", attempt.ID, "topic", s.Topic)
				return s, nil
			}
		}
	}
}

// pollOnce lists sessions and returns the first one the attempt accepts.
func (w *Watchdog) pollOnce(ctx context.Context, attempt *Attempt) (relay.Session, bool) {
	list, err := w.sessions.ListSessions(ctx)
	if err != nil {
		// Poll errors are expected while the relay flaps; the next tick
		// retries.
		w.logger.Debug("session poll failed", "attempt", attempt.ID, "err", err)
		return relay.Session{}, false
	}
	for _, s := range list {
		if attempt.Accepts(s) {
			return s, true
		}
	}
	return relay.Session{}, false
}
