package connection

import (
	"sync"
	"time"
)

// State represents the relay connection state.
type State uint8

const (
	// StateDisconnected indicates no active relay connection.
	StateDisconnected State = iota

	// StateConnecting indicates an initial connection attempt is in
	// progress.
	StateConnecting

	// StateConnected indicates an active relay connection.
	StateConnected

	// StateDisconnecting indicates an orderly teardown is in progress.
	StateDisconnecting

	// StateReconnecting indicates a reconnection attempt is in progress.
	StateReconnecting

	// StateError indicates the connection failed and has not recovered.
	StateError
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnecting:
		return "DISCONNECTING"
	case StateReconnecting:
		return "RECONNECTING"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// transitions is the allowed-transition table. A state maps to the set
// of states reachable from it; self-transitions are always permitted
// no-ops and are not listed.
var transitions = map[State][]State{
	StateDisconnected:  {StateConnecting, StateReconnecting},
	StateConnecting:    {StateConnected, StateError, StateDisconnected},
	StateConnected:     {StateDisconnecting, StateReconnecting, StateError},
	StateDisconnecting: {StateDisconnected, StateError},
	StateReconnecting:  {StateConnected, StateDisconnected, StateError},
	StateError:         {StateConnecting, StateDisconnected},
}

// Change describes one committed state transition.
type Change struct {
	// From is the state before the transition.
	From State

	// To is the state after the transition.
	To State

	// Forced indicates the transition bypassed table validation.
	Forced bool

	// At is when the transition committed.
	At time.Time
}

// changeBuffer is the per-subscriber channel depth. Slow subscribers
// lose the oldest change rather than blocking a transition.
const changeBuffer = 16

// StateMachine is the single source of truth for the relay connection
// state. All mutation goes through TryTransition (or the ForceState
// escape hatch); concurrent callers serialize on an internal lock.
type StateMachine struct {
	mu    sync.Mutex
	state State

	nextSub int
	subs    map[int]chan Change
}

// NewStateMachine creates a state machine in StateDisconnected.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		state: StateDisconnected,
		subs:  make(map[int]chan Change),
	}
}

// Current returns the current state.
func (sm *StateMachine) Current() State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state
}

// TryTransition attempts to move to next. It returns true and commits
// iff next is reachable from the current state per the transition
// table. A same-state transition is a permitted no-op that returns true
// without publishing a change.
func (sm *StateMachine) TryTransition(next State) bool {
	sm.mu.Lock()

	if next == sm.state {
		sm.mu.Unlock()
		return true
	}

	allowed := false
	for _, s := range transitions[sm.state] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		sm.mu.Unlock()
		return false
	}

	change := Change{From: sm.state, To: next, At: time.Now()}
	sm.state = next
	sm.publishLocked(change)
	sm.mu.Unlock()
	return true
}

// ForceState commits next without table validation. It exists for
// emergency recovery from an unknown condition (the orchestrator's
// error-absorption path) and must not be used by ordinary callers.
func (sm *StateMachine) ForceState(next State) {
	sm.mu.Lock()
	if next == sm.state {
		sm.mu.Unlock()
		return
	}
	change := Change{From: sm.state, To: next, Forced: true, At: time.Now()}
	sm.state = next
	sm.publishLocked(change)
	sm.mu.Unlock()
}

// Subscribe returns a channel of state changes and a release function.
// The channel is buffered; when a subscriber falls behind, the oldest
// pending change is dropped so transitions never block. The release
// function must be called on every exit path; the channel is closed by
// it.
func (sm *StateMachine) Subscribe() (<-chan Change, func()) {
	sm.mu.Lock()
	id := sm.nextSub
	sm.nextSub++
	ch := make(chan Change, changeBuffer)
	sm.subs[id] = ch
	sm.mu.Unlock()

	release := func() {
		sm.mu.Lock()
		if sub, ok := sm.subs[id]; ok {
			delete(sm.subs, id)
			close(sub)
		}
		sm.mu.Unlock()
	}
	return ch, release
}

// publishLocked fans a change out to subscribers. Callers hold sm.mu.
func (sm *StateMachine) publishLocked(change Change) {
	for _, ch := range sm.subs {
		for {
			select {
			case ch <- change:
			default:
				// Full: drop the oldest and retry once.
				select {
				case <-ch:
					continue
				default:
				}
			}
			break
		}
	}
}
