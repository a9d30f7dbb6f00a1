// Package connection owns the canonical relay connection state and the
// policy for reconnecting.
//
// This package handles:
//   - A validated connection state machine (single source of truth)
//   - Deduplication of concurrent reconnect attempts
//   - Debouncing and bounded background retry budgets
//   - Progressive reconnects with escalating per-attempt timeouts
//   - Exponential backoff with jitter for unattended retries
//
// # Why a state machine
//
// Three independent event sources race for the transport: OS lifecycle
// transitions, deep-link callbacks from the wallet app, and relay
// transport events. Each of them wants to "ensure connected". The state
// machine serializes those decisions: transitions commit under a lock
// and illegal transitions are refused without changing state, so no
// sequence of racing triggers can produce an impossible state.
//
// # Zombie recovery
//
// The transport's cached connected flag can be stale: the low-level
// layer may report success asynchronously after the initiating call
// already returned an error. The orchestrator therefore re-samples the
// actual flag after a short grace delay before declaring failure.
package connection
