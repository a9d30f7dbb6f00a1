package engine

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/walletrelay/walletrelay-go/pkg/log"
)

// DefaultApprovalTimeout bounds how long a connect call waits for the
// wallet approval before the monitor fires.
const DefaultApprovalTimeout = 60 * time.Second

// MonitorConfig configures an approval timeout monitor.
type MonitorConfig struct {
	// Clock drives the one-shot timer. Defaults to the system clock.
	Clock clock.Clock

	// Logger receives operational logs. Defaults to a discard logger.
	Logger *slog.Logger

	// Foregrounded reports whether the app is in the foreground at
	// expiry, deciding hard versus soft. Defaults to always-true.
	Foregrounded func() bool
}

// Monitor bounds the wait for wallet approval. A timer that expires
// while foregrounded is a hard timeout; while backgrounded it is soft
// and the controller grants one extra recovery pass on resume.
type Monitor struct {
	clk          clock.Clock
	logger       *slog.Logger
	foregrounded func() bool
}

// NewMonitor creates an approval timeout monitor.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Foregrounded == nil {
		cfg.Foregrounded = func() bool { return true }
	}
	return &Monitor{
		clk:          cfg.Clock,
		logger:       cfg.Logger,
		foregrounded: cfg.Foregrounded,
	}
}

// Arm schedules a one-shot callback after timeout. fire runs at most
// once, only if the monitor is still armed at expiry, with the kind
// decided by the foreground state at that moment. The returned cancel
// is idempotent and must be called on every terminal outcome.
func (m *Monitor) Arm(timeout time.Duration, fire func(kind log.TimeoutKind)) (cancel func()) {
	if timeout <= 0 {
		timeout = DefaultApprovalTimeout
	}

	done := make(chan struct{})
	var once sync.Once
	cancel = func() {
		once.Do(func() { close(done) })
	}

	go func() {
		select {
		case <-done:
			return
		case <-m.clk.TickAfter(timeout):
		}

		// A cancel landing exactly at expiry wins: the callback must not
		// fire after a terminal outcome.
		fired := false
		once.Do(func() {
			close(done)
			fired = true
		})
		if !fired {
			return
		}

		kind := log.TimeoutHard
		if !m.foregrounded() {
			kind = log.TimeoutSoft
		}
		m.logger.Debug("approval timeout fired", "kind", kind.String(), "timeout", timeout)
		fire(kind)
	}()

	return cancel
}
