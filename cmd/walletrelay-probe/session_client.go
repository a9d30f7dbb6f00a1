package main

import (
	"context"
	"sync"

	"github.com/walletrelay/walletrelay-go/pkg/relay"
)

// simSessionClient is an in-memory relay.SessionClient. The probe talks
// to a real relay transport but has no wallet on the other end, so
// session bookkeeping is simulated: `approve` and `seed` commands feed
// it the sessions a wallet would have settled.
type simSessionClient struct {
	mu       sync.Mutex
	sessions []relay.Session
	offline  []relay.Session

	nextCB    int
	onConnect map[int]func(relay.Session)
	onDelete  map[int]func(string)
}

func newSimSessionClient() *simSessionClient {
	return &simSessionClient{
		onConnect: make(map[int]func(relay.Session)),
		onDelete:  make(map[int]func(string)),
	}
}

func (c *simSessionClient) ListSessions(ctx context.Context) ([]relay.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]relay.Session, len(c.sessions))
	copy(out, c.sessions)
	return out, nil
}

func (c *simSessionClient) GetSession(ctx context.Context, topic string) (relay.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sessions {
		if s.Topic == topic {
			return s, nil
		}
	}
	return relay.Session{}, relay.ErrSessionNotFound
}

func (c *simSessionClient) ListSessionsOffline() []relay.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]relay.Session, len(c.offline))
	copy(out, c.offline)
	return out
}

func (c *simSessionClient) OnSessionConnect(fn func(relay.Session)) func() {
	c.mu.Lock()
	id := c.nextCB
	c.nextCB++
	c.onConnect[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.onConnect, id)
		c.mu.Unlock()
	}
}

func (c *simSessionClient) OnSessionDelete(fn func(string)) func() {
	c.mu.Lock()
	id := c.nextCB
	c.nextCB++
	c.onDelete[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.onDelete, id)
		c.mu.Unlock()
	}
}

func (c *simSessionClient) OnSessionUpdate(fn func(relay.Session)) func()      { return func() {} }
func (c *simSessionClient) OnSessionEvent(fn func(string, string, any)) func() { return func() {} }

// settle records a session and fires the session-connect event, like a
// wallet approving a pairing.
func (c *simSessionClient) settle(s relay.Session) {
	c.mu.Lock()
	c.sessions = append(c.sessions, s)
	c.offline = append(c.offline, s)
	cbs := make([]func(relay.Session), 0, len(c.onConnect))
	for _, cb := range c.onConnect {
		cbs = append(cbs, cb)
	}
	c.mu.Unlock()
	for _, cb := range cbs {
		cb(s)
	}
}

// seed adds a session to the offline cache only, for exercising the
// offline-pending restoration path.
func (c *simSessionClient) seed(s relay.Session) {
	c.mu.Lock()
	c.offline = append(c.offline, s)
	c.mu.Unlock()
}

// drop deletes a session by topic and fires the delete event.
func (c *simSessionClient) drop(topic string) {
	c.mu.Lock()
	kept := c.sessions[:0]
	for _, s := range c.sessions {
		if s.Topic != topic {
			kept = append(kept, s)
		}
	}
	c.sessions = kept
	cbs := make([]func(string), 0, len(c.onDelete))
	for _, cb := range c.onDelete {
		cbs = append(cbs, cb)
	}
	c.mu.Unlock()
	for _, cb := range cbs {
		cb(topic)
	}
}

var _ relay.SessionClient = (*simSessionClient)(nil)
