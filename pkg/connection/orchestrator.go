package connection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/walletrelay/walletrelay-go/pkg/log"
	"github.com/walletrelay/walletrelay-go/pkg/relay"
	"github.com/walletrelay/walletrelay-go/pkg/wallet"
)

// Orchestrator errors.
var (
	ErrConnectTimeout = errors.New("connect confirmation timeout")
	ErrTransportNil   = errors.New("transport is required")
)

// Orchestrator timing constants.
const (
	// DefaultConnectTimeout bounds one connect attempt when the caller
	// passes no timeout.
	DefaultConnectTimeout = 15 * time.Second

	// TeardownGrace is the pause between dropping a stale transport
	// handle and dialing a fresh one, letting stream teardown settle.
	TeardownGrace = 300 * time.Millisecond

	// ZombieGrace is the pause before re-sampling the transport's
	// connected flag after an error. The low-level layer may complete
	// the connect asynchronously despite the error.
	ZombieGrace = 500 * time.Millisecond

	// ScheduleDelay spaces out reconnects triggered by transport
	// errors so a flapping relay does not cause a retry storm.
	ScheduleDelay = 500 * time.Millisecond
)

// OrchestratorConfig configures a reconnection orchestrator.
type OrchestratorConfig struct {
	// Transport is the relay transport the orchestrator exclusively
	// drives. Required.
	Transport relay.Transport

	// Machine is the connection state machine. A new one is created
	// when nil.
	Machine *StateMachine

	// Policy is the reconnection policy. Zero value means defaults.
	Policy wallet.Policy

	// Clock drives all timer waits. Defaults to the system clock;
	// tests inject a mock clock.
	Clock clock.Clock

	// Logger receives operational logs. Defaults to a discard logger.
	Logger *slog.Logger

	// Diagnostics receives structured engine events (optional).
	Diagnostics log.Logger

	// ConnectionID identifies this engine instance in diagnostics.
	ConnectionID string

	// Foregrounded reports whether the app is in the foreground.
	// Defaults to always-true (non-mobile hosts).
	Foregrounded func() bool

	// ApprovalPending reports whether a wallet approval is awaited.
	// Defaults to always-false.
	ApprovalPending func() bool
}

// inflightAttempt is the shared pending-result handle. Callers that
// arrive while an attempt is outstanding await the same handle instead
// of starting a second low-level connect.
type inflightAttempt struct {
	done chan struct{}
	ok   bool
}

// Orchestrator decides whether and when to reconnect the relay
// transport. It guarantees at most one live low-level connect call at a
// time.
type Orchestrator struct {
	transport relay.Transport
	machine   *StateMachine
	policy    wallet.Policy
	clk       clock.Clock
	logger    *slog.Logger
	diag      log.Logger
	connID    string

	foregrounded    func() bool
	approvalPending func() bool
	backoff         *Backoff

	mu                 sync.Mutex
	inflight           *inflightAttempt
	lastAttempt        time.Time
	backgroundAttempts int
	attemptSeq         int
	closed             bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates a reconnection orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Transport == nil {
		return nil, ErrTransportNil
	}
	if cfg.Machine == nil {
		cfg.Machine = NewStateMachine()
	}
	if len(cfg.Policy.ReconnectTimeouts) == 0 {
		cfg.Policy = wallet.DefaultPolicy()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Foregrounded == nil {
		cfg.Foregrounded = func() bool { return true }
	}
	if cfg.ApprovalPending == nil {
		cfg.ApprovalPending = func() bool { return false }
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		transport:       cfg.Transport,
		machine:         cfg.Machine,
		policy:          cfg.Policy,
		clk:             cfg.Clock,
		logger:          cfg.Logger,
		diag:            log.OrNoop(cfg.Diagnostics),
		connID:          cfg.ConnectionID,
		foregrounded:    cfg.Foregrounded,
		approvalPending: cfg.ApprovalPending,
		backoff:         NewBackoff(),
		ctx:             ctx,
		cancel:          cancel,
	}

	// Mirror committed state transitions into diagnostics.
	changes, release := o.machine.Subscribe()
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer release()
		for {
			select {
			case <-o.ctx.Done():
				return
			case change, ok := <-changes:
				if !ok {
					return
				}
				o.logger.Debug("connection state changed",
					"from", change.From.String(), "to", change.To.String(), "forced", change.Forced)
				o.diag.Log(log.Event{
					Timestamp:    change.At,
					ConnectionID: o.connID,
					Category:     log.CategoryState,
					StateChange: &log.StateChangeEvent{
						OldState: change.From.String(),
						NewState: change.To.String(),
						Forced:   change.Forced,
					},
				})
			}
		}
	}()

	return o, nil
}

// Machine returns the state machine the orchestrator mutates.
func (o *Orchestrator) Machine() *StateMachine {
	return o.machine
}

// Close cancels scheduled reconnects and releases subscriptions.
// It does not touch the transport.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.cancel()
	o.wg.Wait()
}

// EnsureConnected makes sure the relay transport is connected, waiting
// up to timeout for confirmation. If an attempt is already in flight
// the caller awaits that attempt's result instead of starting a second
// one. Returns true when the transport ends up connected.
func (o *Orchestrator) EnsureConnected(ctx context.Context, timeout time.Duration) bool {
	// Fast path: nothing to do.
	if o.machine.Current() == StateConnected && o.transport.IsConnected() {
		return true
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	if a := o.inflight; a != nil {
		o.mu.Unlock()
		select {
		case <-a.done:
			return a.ok
		case <-ctx.Done():
			return false
		}
	}
	a := &inflightAttempt{done: make(chan struct{})}
	o.inflight = a
	o.lastAttempt = o.clk.Now()
	o.attemptSeq++
	seq := o.attemptSeq
	o.mu.Unlock()

	ok := o.connectOnce(ctx, timeout)

	o.mu.Lock()
	o.inflight = nil
	o.mu.Unlock()

	a.ok = ok
	close(a.done)

	o.diag.Log(log.Event{
		Timestamp:    o.clk.Now(),
		ConnectionID: o.connID,
		Category:     log.CategoryReconnect,
		Reconnect: &log.ReconnectEvent{
			Source:     "ensure-connected",
			Attempt:    seq,
			Timeout:    timeout,
			Success:    ok,
			Background: !o.foregrounded(),
		},
	})
	return ok
}

// connectOnce performs one full teardown-and-dial cycle.
func (o *Orchestrator) connectOnce(ctx context.Context, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	// ERROR only allows CONNECTING; every other source state reaches
	// RECONNECTING directly.
	if !o.machine.TryTransition(StateReconnecting) {
		o.machine.TryTransition(StateConnecting)
	}

	// Subscribe before touching the transport so an immediate confirm
	// is not lost.
	confirmed := make(chan struct{}, 1)
	release := o.transport.OnConnect(func() {
		select {
		case confirmed <- struct{}{}:
		default:
		}
	})
	defer release()

	// Drop any stale handle. An already-closed handle is a benign race.
	if err := o.transport.Disconnect(ctx); err != nil && !relay.IsBenignStreamError(err) {
		o.logger.Debug("stale transport disconnect failed", "err", err)
	}
	if !o.sleep(ctx, TeardownGrace) {
		return o.failWithRecheck(ctx, ctx.Err())
	}

	err := o.transport.Connect(ctx)
	if err == nil && o.transport.IsConnected() {
		return o.succeed()
	}
	if err != nil && !relay.IsBenignStreamError(err) {
		o.logger.Warn("relay connect failed", "err", err)
		return o.failWithRecheck(ctx, err)
	}

	// The initiating call raced a teardown or returned before the
	// transport settled; wait for the confirm event.
	select {
	case <-confirmed:
		return o.succeed()
	case <-o.clk.TickAfter(timeout):
		return o.failWithRecheck(ctx, ErrConnectTimeout)
	case <-ctx.Done():
		return o.failWithRecheck(ctx, ctx.Err())
	}
}

// succeed commits the CONNECTED state.
func (o *Orchestrator) succeed() bool {
	if !o.machine.TryTransition(StateConnected) {
		o.machine.ForceState(StateConnected)
	}
	return true
}

// failWithRecheck re-samples the actual transport flag after a grace
// delay before declaring failure. The low-level layer may report
// success asynchronously despite an error on the initiating call.
func (o *Orchestrator) failWithRecheck(ctx context.Context, cause error) bool {
	o.sleep(ctx, ZombieGrace)
	if o.transport.IsConnected() {
		o.logger.Info("transport recovered despite error", "cause", cause)
		if !o.machine.TryTransition(StateConnected) {
			o.machine.ForceState(StateConnected)
		}
		return true
	}

	o.machine.TryTransition(StateError)
	if cause != nil {
		o.diag.Log(log.Event{
			Timestamp:    o.clk.Now(),
			ConnectionID: o.connID,
			Category:     log.CategoryError,
			Error: &log.ErrorEventData{
				Code:    "transport-unavailable",
				Message: cause.Error(),
				Context: "ensure-connected",
			},
		})
	}
	return false
}

// ScheduleReconnect handles an asynchronous transport error. Returns
// true when a reconnect was scheduled.
//
// Policy: backgrounded with no approval pending, do nothing (the next
// foreground resume reconnects). Backgrounded with an approval pending,
// allow up to Policy.MaxBackgroundAttempts. Foregrounded, always
// schedule: the first retry after a short fixed delay, repeated
// failures spaced by jittered exponential backoff so a flapping relay
// does not cause a retry storm.
func (o *Orchestrator) ScheduleReconnect(source string) bool {
	background := !o.foregrounded()
	if background {
		if !o.approvalPending() {
			o.logger.Debug("reconnect deferred to next resume", "source", source)
			o.logSkipped(source, true)
			return false
		}
		o.mu.Lock()
		if o.backgroundAttempts >= o.policy.MaxBackgroundAttempts {
			o.mu.Unlock()
			o.logger.Debug("background reconnect budget exhausted",
				"source", source, "max", o.policy.MaxBackgroundAttempts)
			o.logSkipped(source, true)
			return false
		}
		o.backgroundAttempts++
		o.mu.Unlock()
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		delay := ScheduleDelay
		if o.backoff.Attempts() > 0 {
			delay = o.backoff.Peek()
		}
		if !o.sleep(o.ctx, delay) {
			return
		}
		if o.EnsureConnected(o.ctx, o.policy.ReconnectTimeouts[0]) {
			o.backoff.Reset()
		} else {
			o.backoff.Next()
		}
	}()
	return true
}

// AttemptDebounced is a debounced EnsureConnected: it refuses to run
// when another attempt is in flight or when the previous attempt was
// less than Policy.DebounceInterval ago, returning false without side
// effects.
func (o *Orchestrator) AttemptDebounced(ctx context.Context, source string, timeout time.Duration) bool {
	o.mu.Lock()
	if o.closed || o.inflight != nil {
		o.mu.Unlock()
		return false
	}
	now := o.clk.Now()
	if !o.lastAttempt.IsZero() && now.Sub(o.lastAttempt) < o.policy.DebounceInterval {
		o.mu.Unlock()
		o.logger.Debug("reconnect debounced", "source", source)
		o.logSkipped(source, !o.foregrounded())
		return false
	}
	o.mu.Unlock()

	return o.EnsureConnected(ctx, timeout)
}

// ProgressiveReconnect walks the policy's escalating timeout list,
// pausing Policy.RetryDelay between attempts and stopping at the first
// success. Used where a single fixed timeout is known to be
// insufficient, such as background-to-foreground transitions.
func (o *Orchestrator) ProgressiveReconnect(ctx context.Context) bool {
	for i, timeout := range o.policy.ReconnectTimeouts {
		o.logger.Debug("progressive reconnect attempt",
			"attempt", i+1, "of", len(o.policy.ReconnectTimeouts), "timeout", timeout)
		if o.EnsureConnected(ctx, timeout) {
			return true
		}
		if i < len(o.policy.ReconnectTimeouts)-1 {
			if !o.sleep(ctx, o.policy.RetryDelay) {
				return false
			}
		}
	}
	o.diag.Log(log.Event{
		Timestamp:    o.clk.Now(),
		ConnectionID: o.connID,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Code:    "max-retries-exceeded",
			Message: "progressive reconnect exhausted",
			Context: "progressive-reconnect",
		},
	})
	return false
}

// ResetBackgroundBudget clears the background attempt counter. The
// controller calls it on foreground resume and when an approval attempt
// resolves.
func (o *Orchestrator) ResetBackgroundBudget() {
	o.mu.Lock()
	o.backgroundAttempts = 0
	o.mu.Unlock()
}

// BackgroundAttempts returns reconnects consumed from the background
// budget since the last reset.
func (o *Orchestrator) BackgroundAttempts() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.backgroundAttempts
}

// logSkipped records a refused reconnect in diagnostics.
func (o *Orchestrator) logSkipped(source string, background bool) {
	o.diag.Log(log.Event{
		Timestamp:    o.clk.Now(),
		ConnectionID: o.connID,
		Category:     log.CategoryReconnect,
		Reconnect: &log.ReconnectEvent{
			Source:      source,
			MaxAttempts: o.policy.MaxBackgroundAttempts,
			Background:  background,
			Skipped:     true,
		},
	})
}

// sleep waits for d on the injected clock, returning false when ctx is
// cancelled first.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-o.clk.TickAfter(d):
		return true
	}
}
