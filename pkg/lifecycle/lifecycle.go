// Package lifecycle distributes OS app-lifecycle transitions to engine
// components.
//
// The host application calls Set from its platform lifecycle hooks;
// subscribers (the controller, diagnostics) receive each transition.
// Subscriptions are scoped handles released on every exit path, so a
// teardown racing a notification can never publish to a dead observer.
package lifecycle

import (
	"sync"
)

// AppState is the OS application lifecycle state.
type AppState uint8

const (
	// StateResumed means the app is foregrounded and interactive.
	StateResumed AppState = iota

	// StatePaused means the app is fully backgrounded.
	StatePaused

	// StateInactive means the app is transitioning (app switcher,
	// incoming call); treated as backgrounded for reconnect policy.
	StateInactive
)

// String returns the state name.
func (s AppState) String() string {
	switch s {
	case StateResumed:
		return "RESUMED"
	case StatePaused:
		return "PAUSED"
	case StateInactive:
		return "INACTIVE"
	default:
		return "UNKNOWN"
	}
}

// Foreground reports whether the state counts as foregrounded.
func (s AppState) Foreground() bool {
	return s == StateResumed
}

// Notifier fans lifecycle transitions out to subscribers.
// The zero value is not usable; create one with NewNotifier.
type Notifier struct {
	mu      sync.Mutex
	state   AppState
	nextSub int
	subs    map[int]func(old, new AppState)
}

// NewNotifier creates a notifier in StateResumed (apps start
// foregrounded).
func NewNotifier() *Notifier {
	return &Notifier{
		state: StateResumed,
		subs:  make(map[int]func(old, new AppState)),
	}
}

// Current returns the last reported state.
func (n *Notifier) Current() AppState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Foreground reports whether the app is currently foregrounded.
func (n *Notifier) Foreground() bool {
	return n.Current().Foreground()
}

// Set records a lifecycle transition and notifies subscribers.
// Same-state reports are ignored.
func (n *Notifier) Set(state AppState) {
	n.mu.Lock()
	if state == n.state {
		n.mu.Unlock()
		return
	}
	old := n.state
	n.state = state
	subs := make([]func(old, new AppState), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mu.Unlock()

	// Callbacks run outside the lock; a subscriber may call back into
	// the notifier.
	for _, fn := range subs {
		fn(old, state)
	}
}

// Subscribe registers a transition callback and returns a release
// function. The release function must be called on every exit path.
func (n *Notifier) Subscribe(fn func(old, new AppState)) (release func()) {
	n.mu.Lock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}
