package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/walletrelay/walletrelay-go/pkg/connection"
	"github.com/walletrelay/walletrelay-go/pkg/deeplink"
	"github.com/walletrelay/walletrelay-go/pkg/lifecycle"
	"github.com/walletrelay/walletrelay-go/pkg/log"
	"github.com/walletrelay/walletrelay-go/pkg/relay"
	"github.com/walletrelay/walletrelay-go/pkg/session"
	"github.com/walletrelay/walletrelay-go/pkg/wallet"
)

// ApprovalContext is the transient state tracked while a connect
// attempt awaits wallet approval. Reset when the attempt resolves or a
// new one starts.
type ApprovalContext struct {
	// IsWaitingForApproval reports whether an attempt is pending.
	IsWaitingForApproval bool

	// BackgroundReconnectAttempts is the background reconnect budget
	// consumed during the attempt.
	BackgroundReconnectAttempts int

	// AccumulatedBackground is the total time spent backgrounded during
	// the attempt.
	AccumulatedBackground time.Duration

	// SoftTimeoutOccurred reports that the approval timer expired while
	// backgrounded; the next resume gets one extra recovery pass.
	SoftTimeoutOccurred bool

	// DeepLinkDispatched reports that a wallet deep link was opened for
	// the attempt.
	DeepLinkDispatched bool

	// DeepLinkReturnReceived reports that a deep-link callback came back
	// during the attempt.
	DeepLinkReturnReceived bool
}

// ControllerConfig configures a connection/session controller.
type ControllerConfig struct {
	// Transport is the relay transport the controller exclusively owns.
	// Required.
	Transport relay.Transport

	// Sessions is the SDK session surface. Required.
	Sessions relay.SessionClient

	// Store persists the session record (optional; nil disables
	// persistence).
	Store session.RecordStore

	// WalletType is the wallet this controller connects to.
	WalletType wallet.Type

	// Policy overrides the wallet's default reconnection policy.
	Policy wallet.Policy

	// ApprovalTimeout bounds the wait for wallet approval
	// (default: DefaultApprovalTimeout).
	ApprovalTimeout time.Duration

	// PollInterval overrides the watchdog's session poll interval
	// (default: session.DefaultPollInterval).
	PollInterval time.Duration

	// Lifecycle supplies OS app-lifecycle transitions (optional; the
	// controller assumes always-foregrounded without one).
	Lifecycle *lifecycle.Notifier

	// DeepLinks is the dispatcher to register the wallet's callback
	// handler on (optional).
	DeepLinks *deeplink.Dispatcher

	// Clock drives all timer waits. Defaults to the system clock.
	Clock clock.Clock

	// Logger receives operational logs. Defaults to a discard logger.
	Logger *slog.Logger

	// Diagnostics receives structured engine events (optional).
	Diagnostics log.Logger
}

// Controller composes the state machine, orchestrator, watchdog,
// resolver and timeout monitor behind the public engine contract.
type Controller struct {
	transport relay.Transport
	sessions  relay.SessionClient
	store     session.RecordStore

	walletType      wallet.Type
	policy          wallet.Policy
	approvalTimeout time.Duration
	pollInterval    time.Duration

	clk    clock.Clock
	logger *slog.Logger
	diag   log.Logger
	connID string

	machine  *connection.StateMachine
	orch     *connection.Orchestrator
	watchdog *session.Watchdog
	resolver *session.Resolver
	monitor  *Monitor
	expiry   *session.ExpiryManager
	status   *statusFeed
	notifier *lifecycle.Notifier

	mu                   sync.Mutex
	approval             ApprovalContext
	attempt              *session.Attempt
	attemptStarted       time.Time
	backgroundedAt       time.Time
	cancelMonitor        func()
	failAttempt          func(err *ApprovalTimeoutError)
	sessionCheckInFlight bool
	record               *session.Record
	closed               bool

	releases []func()
	wg       sync.WaitGroup
}

// NewController creates and wires a controller. Close must be called
// when done.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session client is required")
	}
	if len(cfg.Policy.ReconnectTimeouts) == 0 {
		cfg.Policy = wallet.PolicyFor(cfg.WalletType)
	}
	if cfg.ApprovalTimeout <= 0 {
		cfg.ApprovalTimeout = DefaultApprovalTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = session.DefaultPollInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Controller{
		transport:       cfg.Transport,
		sessions:        cfg.Sessions,
		store:           cfg.Store,
		walletType:      cfg.WalletType,
		policy:          cfg.Policy,
		approvalTimeout: cfg.ApprovalTimeout,
		pollInterval:    cfg.PollInterval,
		clk:             cfg.Clock,
		logger:          cfg.Logger,
		diag:            log.OrNoop(cfg.Diagnostics),
		connID:          uuid.NewString(),
		machine:         connection.NewStateMachine(),
		status:          newStatusFeed(),
		notifier:        cfg.Lifecycle,
	}

	orch, err := connection.NewOrchestrator(connection.OrchestratorConfig{
		Transport:       cfg.Transport,
		Machine:         c.machine,
		Policy:          c.policy,
		Clock:           c.clk,
		Logger:          c.logger,
		Diagnostics:     cfg.Diagnostics,
		ConnectionID:    c.connID,
		Foregrounded:    c.foregrounded,
		ApprovalPending: c.approvalPending,
	})
	if err != nil {
		return nil, err
	}
	c.orch = orch

	c.watchdog = session.NewWatchdog(session.WatchdogConfig{
		Sessions:     cfg.Sessions,
		Clock:        c.clk,
		Logger:       c.logger,
		PollInterval: c.pollInterval,
	})
	c.resolver = session.NewResolver(session.ResolverConfig{
		Sessions:     cfg.Sessions,
		Ensure:       c.orch.EnsureConnected,
		Clock:        c.clk,
		Logger:       c.logger,
		Diagnostics:  cfg.Diagnostics,
		ConnectionID: c.connID,
	})
	c.monitor = NewMonitor(MonitorConfig{
		Clock:        c.clk,
		Logger:       c.logger,
		Foregrounded: c.foregrounded,
	})
	c.expiry = session.NewExpiryManager(c.clk, c.onSessionExpired)

	// Listener order matters on teardown: releases run before the status
	// feed closes, so nothing publishes after close.
	c.releases = append(c.releases,
		cfg.Transport.OnDisconnect(c.onTransportDisconnect),
		cfg.Transport.OnError(c.onTransportError),
		cfg.Sessions.OnSessionDelete(c.onSessionDelete),
	)
	if cfg.Lifecycle != nil {
		c.releases = append(c.releases, cfg.Lifecycle.Subscribe(func(_, state lifecycle.AppState) {
			c.HandleLifecycle(state)
		}))
	}
	if cfg.DeepLinks != nil {
		c.releases = append(c.releases, cfg.DeepLinks.Register(c.walletType.String(), func(uri *url.URL) {
			c.HandleDeepLink(uri.String())
		}))
	}

	// Mirror committed state transitions into the status stream.
	changes, release := c.machine.Subscribe()
	c.releases = append(c.releases, release)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for change := range changes {
			c.status.publish(c.statusFor(change.To))
		}
	}()

	if c.store != nil {
		record, err := c.store.Load()
		switch {
		case err != nil:
			c.logger.Warn("session record load failed", "err", err)
		case record != nil && !record.ExpiresAt.IsZero() && !record.ExpiresAt.After(c.clk.Now()):
			c.logger.Info("persisted session already expired", "topic", record.Topic)
			if err := c.store.Delete(); err != nil {
				c.logger.Warn("expired record delete failed", "err", err)
			}
		case record != nil:
			c.mu.Lock()
			c.record = record
			c.mu.Unlock()
			c.expiry.Track(record.Topic, record.ExpiresAt)
		}
	}

	return c, nil
}

// Close tears the controller down: listeners are released before any
// channel is closed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel := c.cancelMonitor
	c.cancelMonitor = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, release := range c.releases {
		release()
	}
	c.expiry.Close()
	c.orch.Close()
	c.wg.Wait()
	c.status.close()
}

// Status returns the observable status stream and its release function.
func (c *Controller) Status() (<-chan StatusUpdate, func()) {
	return c.status.subscribe()
}

// Approval returns a snapshot of the pending attempt's approval context.
func (c *Controller) Approval() ApprovalContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := c.approval
	snapshot.BackgroundReconnectAttempts = c.orch.BackgroundAttempts()
	return snapshot
}

// MarkDeepLinkDispatched records that the host opened the wallet app
// for the pending attempt. Deep-link URL construction is the host's
// concern; the flag only feeds timeout diagnostics.
func (c *Controller) MarkDeepLinkDispatched() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.approval.IsWaitingForApproval {
		c.approval.DeepLinkDispatched = true
	}
}

// Connect establishes relay connectivity and awaits wallet approval of
// a new session on the given chain. On success the session record is
// persisted and returned.
func (c *Controller) Connect(ctx context.Context, chain string) (*session.Record, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrEngineClosed
	}
	if c.attempt != nil {
		c.mu.Unlock()
		return nil, ErrApprovalPending
	}

	attempt := session.NewAttempt(c.sessions, c.walletType, chain, c.clk.Now())
	c.attempt = attempt
	c.attemptStarted = c.clk.Now()
	c.approval = ApprovalContext{IsWaitingForApproval: true}
	c.mu.Unlock()

	defer c.clearAttempt()

	c.publishStatus(StatusConnecting, "connecting to relay")
	if !c.orch.EnsureConnected(ctx, c.policy.ReconnectTimeouts[0]) {
		return nil, fmt.Errorf("%w: connect for approval", ErrTransportUnavailable)
	}

	c.publishStatus(StatusConnecting, "waiting for wallet approval")

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()

	var timeoutErr *ApprovalTimeoutError
	var timeoutMu sync.Mutex
	fail := func(err *ApprovalTimeoutError) {
		timeoutMu.Lock()
		if timeoutErr == nil {
			timeoutErr = err
		}
		timeoutMu.Unlock()
		cancelWatch()
	}

	cancelMonitor := c.monitor.Arm(c.approvalTimeout, func(kind log.TimeoutKind) {
		c.onApprovalExpiry(kind, fail)
	})
	c.mu.Lock()
	c.cancelMonitor = cancelMonitor
	c.failAttempt = fail
	c.mu.Unlock()
	defer cancelMonitor()

	s, err := c.watchdog.Await(watchCtx, attempt)
	if err != nil {
		timeoutMu.Lock()
		te := timeoutErr
		timeoutMu.Unlock()
		if te != nil {
			c.publishStatus(StatusError, "wallet approval timed out")
			return nil, te
		}
		c.publishStatus(StatusError, "connect cancelled")
		return nil, err
	}

	record := session.NewRecord(c.walletType, chain, s, c.clk.Now())
	c.saveRecord(record)
	c.orch.ResetBackgroundBudget()
	c.publishStatus(StatusConnected, "session approved")
	c.logger.Info("session established", "topic", s.Topic, "wallet", c.walletType.String())
	return record, nil
}

// RestoreByIdentifier maps a persisted or caller-supplied identifier
// back to a live session. The returned RestoreResult always carries the
// outcome classification; the error mirrors terminal classifications so
// callers can use errors.Is.
func (c *Controller) RestoreByIdentifier(ctx context.Context, topic, fallbackAddr string) (session.RestoreResult, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return session.RestoreResult{}, ErrEngineClosed
	}
	record := c.record
	c.mu.Unlock()

	if record == nil || (topic != "" && record.Topic != topic) {
		if topic == "" && fallbackAddr == "" {
			return session.RestoreResult{}, ErrNoSessionRecord
		}
		record = &session.Record{
			WalletType: c.walletType,
			Topic:      topic,
			CreatedAt:  c.clk.Now(),
		}
	}

	c.publishStatus(StatusConnecting, "restoring session")
	result := c.resolver.Resolve(ctx, record, fallbackAddr)
	return result, c.settleRestore(ctx, record, fallbackAddr, result)
}

// settleRestore applies the side effects of a restoration outcome.
func (c *Controller) settleRestore(ctx context.Context, record *session.Record, fallbackAddr string, result session.RestoreResult) error {
	switch result.Outcome {
	case session.OutcomeRestored:
		if result.TopicMigrated {
			record.Migrate(result.Session, c.clk.Now())
		} else {
			record.Touch(c.clk.Now())
		}
		c.saveRecord(record)
		c.publishStatus(StatusConnected, "session restored")
		return nil

	case session.OutcomeOrphanSession:
		// Definitive: the relay answered and does not know this record.
		c.deleteRecord()
		c.publishStatus(StatusDisconnected, "session no longer exists")
		return fmt.Errorf("topic %s: %w", record.Topic, ErrOrphanSession)

	case session.OutcomeSessionInvalid:
		c.publishStatus(StatusError, "session failed validation")
		return fmt.Errorf("topic %s: %w", record.Topic, ErrSessionInvalid)

	case session.OutcomeOfflinePending:
		// Optimistic: render connected-verifying and recover in the
		// background.
		c.publishStatus(StatusConnecting, "connected (verifying)")
		c.spawnOfflineRecovery(record, fallbackAddr)
		return nil

	default: // OutcomeRelayDisconnected
		c.publishStatus(StatusError, "relay unreachable")
		return fmt.Errorf("restore topic %s: %w", record.Topic, ErrTransportUnavailable)
	}
}

// spawnOfflineRecovery retries connectivity in the background and
// re-resolves once, publishing the final status.
func (c *Controller) spawnOfflineRecovery(record *session.Record, fallbackAddr string) {
	c.mu.Lock()
	if c.closed || c.sessionCheckInFlight {
		c.mu.Unlock()
		return
	}
	c.sessionCheckInFlight = true
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer c.clearSessionCheck()

		ctx := context.Background()
		if !c.orch.ProgressiveReconnect(ctx) {
			c.publishStatus(StatusError, "relay unreachable")
			return
		}
		result := c.resolver.Resolve(ctx, record, fallbackAddr)
		if err := c.settleRestore(ctx, record, fallbackAddr, result); err != nil {
			c.logger.Warn("offline-pending recovery failed",
				"topic", record.Topic, "outcome", result.Outcome.String(), "err", err)
		}
	}()
}

// Disconnect tears down the relay connection and cancels any pending
// approval attempt.
func (c *Controller) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancelMonitor
	c.cancelMonitor = nil
	fail := c.failAttempt
	c.failAttempt = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if fail != nil {
		// Unblock a pending Connect; the caller asked for teardown.
		fail(nil)
	}

	c.machine.TryTransition(connection.StateDisconnecting)
	err := c.transport.Disconnect(ctx)
	if err != nil && !relay.IsBenignStreamError(err) {
		c.machine.TryTransition(connection.StateError)
		return fmt.Errorf("disconnect relay: %w", err)
	}
	if !c.machine.TryTransition(connection.StateDisconnected) {
		c.machine.ForceState(connection.StateDisconnected)
	}
	return nil
}

// HandleLifecycle is the host's OS lifecycle entry point.
func (c *Controller) HandleLifecycle(state lifecycle.AppState) {
	if !state.Foreground() {
		c.mu.Lock()
		if c.backgroundedAt.IsZero() {
			c.backgroundedAt = c.clk.Now()
		}
		c.mu.Unlock()
		c.logger.Debug("app backgrounded", "state", state.String())
		return
	}

	c.mu.Lock()
	if !c.backgroundedAt.IsZero() {
		c.approval.AccumulatedBackground += c.clk.Now().Sub(c.backgroundedAt)
		c.backgroundedAt = time.Time{}
	}
	softPending := c.approval.SoftTimeoutOccurred && c.approval.IsWaitingForApproval
	hasRecord := c.record != nil
	waiting := c.approval.IsWaitingForApproval
	c.mu.Unlock()

	c.logger.Debug("app resumed", "softTimeoutPending", softPending)
	c.orch.ResetBackgroundBudget()

	switch {
	case softPending:
		c.spawnSoftRecovery()
	case hasRecord && !waiting:
		c.spawnSessionCheck("lifecycle-resume")
	}
}

// HandleDeepLink is the wallet callback entry point. The URI is opaque;
// its arrival is the signal that the user returned from the wallet, so
// a session check runs immediately instead of waiting for a poll.
func (c *Controller) HandleDeepLink(rawURI string) {
	c.mu.Lock()
	if c.approval.IsWaitingForApproval {
		c.approval.DeepLinkReturnReceived = true
	}
	waiting := c.approval.IsWaitingForApproval
	c.mu.Unlock()

	c.logger.Debug("deep-link callback received", "waiting", waiting)
	if waiting {
		// The watchdog's poll path picks the session up; nothing to do.
		return
	}
	c.spawnSessionCheck("deeplink")
}

// spawnSessionCheck runs one reconnect-then-resolve pass in the
// background. The advisory flag keeps the lifecycle and deep-link paths
// from running two checks at once.
func (c *Controller) spawnSessionCheck(source string) {
	c.mu.Lock()
	if c.closed || c.sessionCheckInFlight || c.record == nil {
		c.mu.Unlock()
		return
	}
	c.sessionCheckInFlight = true
	record := c.record
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer c.clearSessionCheck()

		ctx := context.Background()
		if !c.orch.AttemptDebounced(ctx, source, c.policy.ReconnectTimeouts[0]) {
			return
		}
		result := c.resolver.Resolve(ctx, record, "")
		if err := c.settleRestore(ctx, record, "", result); err != nil {
			c.logger.Debug("session check unresolved", "source", source, "err", err)
		}
	}()
}

// spawnSoftRecovery performs the one extra restoration pass a soft
// timeout earns on resume: reconnect, then give the watchdog a short
// window to observe the session before the attempt finally fails.
func (c *Controller) spawnSoftRecovery() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	fail := c.failAttempt
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()

		ctx := context.Background()
		c.logger.Info("soft timeout recovery pass")
		c.orch.EnsureConnected(ctx, c.policy.ReconnectTimeouts[0])

		// Give the watchdog's poll path a window to observe the session.
		<-c.clk.TickAfter(2 * c.pollInterval)

		c.mu.Lock()
		stillWaiting := c.approval.IsWaitingForApproval
		c.mu.Unlock()
		if stillWaiting && fail != nil {
			fail(c.timeoutError(true))
		}
	}()
}

// onApprovalExpiry handles the monitor firing.
func (c *Controller) onApprovalExpiry(kind log.TimeoutKind, fail func(*ApprovalTimeoutError)) {
	c.mu.Lock()
	waiting := c.approval.IsWaitingForApproval
	if kind == log.TimeoutSoft && waiting {
		c.approval.SoftTimeoutOccurred = true
	}
	c.mu.Unlock()
	if !waiting {
		return
	}

	err := c.timeoutError(kind == log.TimeoutSoft)
	c.emitTimeout(kind, err)

	if kind == log.TimeoutHard {
		fail(err)
	}
	// Soft: the attempt survives; the next resume runs the extra pass.
}

// timeoutError snapshots the diagnostic context for a timeout failure.
func (c *Controller) timeoutError(soft bool) *ApprovalTimeoutError {
	sessionKnown := len(c.sessions.ListSessionsOffline()) > 0

	c.mu.Lock()
	defer c.mu.Unlock()
	return &ApprovalTimeoutError{
		Soft:                   soft,
		Elapsed:                c.clk.Now().Sub(c.attemptStarted),
		RelayState:             c.machine.Current().String(),
		SessionKnown:           sessionKnown,
		DeepLinkDispatched:     c.approval.DeepLinkDispatched,
		DeepLinkReturnReceived: c.approval.DeepLinkReturnReceived,
		BackgroundDuration:     c.approval.AccumulatedBackground,
	}
}

// emitTimeout records the timeout in diagnostics.
func (c *Controller) emitTimeout(kind log.TimeoutKind, err *ApprovalTimeoutError) {
	c.diag.Log(log.Event{
		Timestamp:    c.clk.Now(),
		ConnectionID: c.connID,
		Category:     log.CategoryTimeout,
		Wallet:       c.walletType.String(),
		Timeout: &log.TimeoutEvent{
			Kind:                   kind,
			Elapsed:                err.Elapsed,
			RelayState:             err.RelayState,
			SessionKnown:           err.SessionKnown,
			DeepLinkDispatched:     err.DeepLinkDispatched,
			DeepLinkReturnReceived: err.DeepLinkReturnReceived,
			BackgroundDuration:     err.BackgroundDuration,
		},
	})
}

// onTransportDisconnect reacts to the relay dropping underneath us.
func (c *Controller) onTransportDisconnect(reason error) {
	if reason == nil {
		// Deliberate local teardown; nothing to recover.
		return
	}
	c.machine.TryTransition(connection.StateError)
	c.orch.ScheduleReconnect("transport-disconnect")
}

// onTransportError only logs. An abnormal drop fires the error callback
// and then the disconnect callback for the same event; scheduling from
// both would consume two background budget slots per physical drop, so
// onTransportDisconnect is the single scheduling path.
func (c *Controller) onTransportError(err error) {
	if relay.IsBenignStreamError(err) {
		return
	}
	c.logger.Warn("transport error", "err", err)
}

// onSessionExpired drops the record when its SDK-reported expiry
// passes. Stale timers for migrated-away topics miss the record check
// and fall through.
func (c *Controller) onSessionExpired(topic string) {
	c.mu.Lock()
	matches := c.record != nil && c.record.Topic == topic
	c.mu.Unlock()
	if !matches {
		return
	}
	c.logger.Info("session expired", "topic", topic)
	c.diag.Log(log.Event{
		Timestamp:    c.clk.Now(),
		ConnectionID: c.connID,
		Category:     log.CategoryError,
		Wallet:       c.walletType.String(),
		Topic:        topic,
		Error: &log.ErrorEventData{
			Code:    "session-expired",
			Message: "session reached its expiry",
			Context: "expiry-timer",
		},
	})
	c.deleteRecord()
	c.publishStatus(StatusDisconnected, "session expired")
}

// onSessionDelete drops the persisted record when the wallet (or relay)
// deletes our session.
func (c *Controller) onSessionDelete(topic string) {
	c.mu.Lock()
	matches := c.record != nil && c.record.Topic == topic
	c.mu.Unlock()
	if !matches {
		return
	}
	c.logger.Info("session deleted by peer", "topic", topic)
	c.deleteRecord()
	c.publishStatus(StatusDisconnected, "session ended by wallet")
}

// Record returns the current persisted session record (nil when none).
func (c *Controller) Record() *session.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record
}

func (c *Controller) clearAttempt() {
	c.mu.Lock()
	c.attempt = nil
	c.approval = ApprovalContext{}
	cancel := c.cancelMonitor
	c.cancelMonitor = nil
	c.failAttempt = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Controller) clearSessionCheck() {
	c.mu.Lock()
	c.sessionCheckInFlight = false
	c.mu.Unlock()
}

func (c *Controller) saveRecord(record *session.Record) {
	c.mu.Lock()
	c.record = record
	c.mu.Unlock()
	c.expiry.Track(record.Topic, record.ExpiresAt)
	if c.store == nil {
		return
	}
	if err := c.store.Save(record); err != nil {
		c.logger.Warn("session record save failed", "err", err)
	}
}

func (c *Controller) deleteRecord() {
	c.mu.Lock()
	topic := ""
	if c.record != nil {
		topic = c.record.Topic
	}
	c.record = nil
	c.mu.Unlock()
	if topic != "" {
		c.expiry.Cancel(topic)
	}
	if c.store == nil {
		return
	}
	if err := c.store.Delete(); err != nil {
		c.logger.Warn("session record delete failed", "err", err)
	}
}

func (c *Controller) foregrounded() bool {
	if c.notifier == nil {
		return true
	}
	return c.notifier.Foreground()
}

func (c *Controller) approvalPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.approval.IsWaitingForApproval
}

func (c *Controller) publishStatus(level StatusLevel, message string) {
	c.status.publish(StatusUpdate{
		Level:      level,
		Message:    message,
		RetryCount: c.orch.BackgroundAttempts(),
		MaxRetries: c.policy.MaxBackgroundAttempts,
		At:         c.clk.Now(),
	})
}

// statusFor maps a committed machine state to a status update.
func (c *Controller) statusFor(s connection.State) StatusUpdate {
	level := StatusDisconnected
	message := "disconnected"
	switch s {
	case connection.StateConnecting:
		level, message = StatusConnecting, "connecting"
	case connection.StateReconnecting:
		level, message = StatusConnecting, "reconnecting"
	case connection.StateConnected:
		level, message = StatusConnected, "connected"
	case connection.StateError:
		level, message = StatusError, "connection error"
	case connection.StateDisconnecting:
		level, message = StatusDisconnected, "disconnecting"
	}
	return StatusUpdate{
		Level:      level,
		Message:    message,
		RetryCount: c.orch.BackgroundAttempts(),
		MaxRetries: c.policy.MaxBackgroundAttempts,
		At:         c.clk.Now(),
	}
}
