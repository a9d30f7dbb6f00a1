package session

import (
	"context"
	"sync"

	"github.com/walletrelay/walletrelay-go/pkg/relay"
)

// fakeSessions is a controllable relay.SessionClient for tests.
type fakeSessions struct {
	mu       sync.Mutex
	sessions []relay.Session
	offline  []relay.Session
	listErr  error

	nextCB    int
	onConnect map[int]func(relay.Session)
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{onConnect: make(map[int]func(relay.Session))}
}

func (f *fakeSessions) ListSessions(ctx context.Context) ([]relay.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]relay.Session, len(f.sessions))
	copy(out, f.sessions)
	return out, nil
}

func (f *fakeSessions) GetSession(ctx context.Context, topic string) (relay.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.Topic == topic {
			return s, nil
		}
	}
	return relay.Session{}, relay.ErrSessionNotFound
}

func (f *fakeSessions) ListSessionsOffline() []relay.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]relay.Session, len(f.offline))
	copy(out, f.offline)
	return out
}

func (f *fakeSessions) OnSessionConnect(fn func(relay.Session)) func() {
	f.mu.Lock()
	id := f.nextCB
	f.nextCB++
	f.onConnect[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.onConnect, id)
		f.mu.Unlock()
	}
}

func (f *fakeSessions) OnSessionDelete(fn func(string)) func()             { return func() {} }
func (f *fakeSessions) OnSessionUpdate(fn func(relay.Session)) func()      { return func() {} }
func (f *fakeSessions) OnSessionEvent(fn func(string, string, any)) func() { return func() {} }

func (f *fakeSessions) addSession(s relay.Session) {
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
}

func (f *fakeSessions) fireSessionConnect(s relay.Session) {
	f.mu.Lock()
	cbs := make([]func(relay.Session), 0, len(f.onConnect))
	for _, cb := range f.onConnect {
		cbs = append(cbs, cb)
	}
	f.mu.Unlock()
	for _, cb := range cbs {
		cb(s)
	}
}

// Compile-time interface satisfaction check.
var _ relay.SessionClient = (*fakeSessions)(nil)
