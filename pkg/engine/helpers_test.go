package engine

import (
	"context"
	"sync"
	"time"

	"github.com/walletrelay/walletrelay-go/pkg/relay"
	"github.com/walletrelay/walletrelay-go/pkg/session"
	"github.com/walletrelay/walletrelay-go/pkg/wallet"
)

// fastPolicy keeps engine tests quick.
func fastPolicy() wallet.Policy {
	return wallet.Policy{
		ReconnectTimeouts:     []time.Duration{50 * time.Millisecond, 80 * time.Millisecond, 120 * time.Millisecond},
		RetryDelay:            10 * time.Millisecond,
		DebounceInterval:      20 * time.Millisecond,
		MaxBackgroundAttempts: 3,
	}
}

// fakeTransport is a controllable relay.Transport.
type fakeTransport struct {
	mu         sync.Mutex
	connected  bool
	connectErr error

	connectCalls    int
	disconnectCalls int

	nextCB       int
	onConnect    map[int]func()
	onDisconnect map[int]func(error)
	onError      map[int]func(error)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		onConnect:    make(map[int]func()),
		onDisconnect: make(map[int]func(error)),
		onError:      make(map[int]func(error)),
	}
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connectCalls++
	err := f.connectErr
	if err == nil {
		f.connected = true
	}
	cbs := make([]func(), 0, len(f.onConnect))
	for _, cb := range f.onConnect {
		cbs = append(cbs, cb)
	}
	f.mu.Unlock()

	if err != nil {
		return err
	}
	for _, cb := range cbs {
		cb()
	}
	return nil
}

func (f *fakeTransport) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnectCalls++
	f.connected = false
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) setConnectErr(err error) {
	f.mu.Lock()
	f.connectErr = err
	f.mu.Unlock()
}

func (f *fakeTransport) OnConnect(fn func()) func() {
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

func (f *fakeTransport) OnDisconnect(fn func(error)) func() {
	f.mu.Lock()
	id := f.nextCB
	f.nextCB++
	f.onDisconnect[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.onDisconnect, id)
		f.mu.Unlock()
	}
}

func (f *fakeTransport) OnError(fn func(error)) func() {
	f.mu.Lock()
	id := f.nextCB
	f.nextCB++
	f.onError[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.onError, id)
		f.mu.Unlock()
	}
}

func (f *fakeTransport) fireError(err error) {
	f.mu.Lock()
	cbs := make([]func(error), 0, len(f.onError))
	for _, cb := range f.onError {
		cbs = append(cbs, cb)
	}
	f.mu.Unlock()
	for _, cb := range cbs {
		cb(err)
	}
}

func (f *fakeTransport) fireDisconnect(reason error) {
	f.mu.Lock()
	f.connected = false
	cbs := make([]func(error), 0, len(f.onDisconnect))
	for _, cb := range f.onDisconnect {
		cbs = append(cbs, cb)
	}
	f.mu.Unlock()
	for _, cb := range cbs {
		cb(reason)
	}
}

// fakeSessions is a controllable relay.SessionClient.
type fakeSessions struct {
	mu       sync.Mutex
	sessions []relay.Session
	offline  []relay.Session

	nextCB    int
	onConnect map[int]func(relay.Session)
	onDelete  map[int]func(string)
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		onConnect: make(map[int]func(relay.Session)),
		onDelete:  make(map[int]func(string)),
	}
}

func (f *fakeSessions) ListSessions(ctx context.Context) ([]relay.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
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

func (f *fakeSessions) OnSessionDelete(fn func(string)) func() {
	f.mu.Lock()
	id := f.nextCB
	f.nextCB++
	f.onDelete[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.onDelete, id)
		f.mu.Unlock()
	}
}

func (f *fakeSessions) OnSessionUpdate(fn func(relay.Session)) func()      { return func() {} }
func (f *fakeSessions) OnSessionEvent(fn func(string, string, any)) func() { return func() {} }

func (f *fakeSessions) addSession(s relay.Session) {
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.offline = append(f.offline, s)
	f.mu.Unlock()
}

func (f *fakeSessions) addOffline(s relay.Session) {
	f.mu.Lock()
	f.offline = append(f.offline, s)
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

func (f *fakeSessions) fireSessionDelete(topic string) {
	f.mu.Lock()
	cbs := make([]func(string), 0, len(f.onDelete))
	for _, cb := range f.onDelete {
		cbs = append(cbs, cb)
	}
	f.mu.Unlock()
	for _, cb := range cbs {
		cb(topic)
	}
}

// memStore is an in-memory session.RecordStore.
type memStore struct {
	mu     sync.Mutex
	record *session.Record
}

func (m *memStore) Load() (*session.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record, nil
}

func (m *memStore) Save(record *session.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = record
	return nil
}

func (m *memStore) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = nil
	return nil
}

func metamaskSession(topic, account string) relay.Session {
	return relay.Session{
		Topic:    topic,
		Peer:     relay.PeerMetadata{Name: "MetaMask"},
		Accounts: []string{"eip155:1:" + account},
		Chains:   []string{"eip155:1"},
	}
}

// Compile-time interface satisfaction checks.
var (
	_ relay.Transport     = (*fakeTransport)(nil)
	_ relay.SessionClient = (*fakeSessions)(nil)
	_ session.RecordStore = (*memStore)(nil)
)
