package session

import (
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

// expiryTimer is one armed session expiry.
type expiryTimer struct {
	topic     string
	expiresAt time.Time
	cancel    chan struct{}
}

// ExpiryManager fires a callback when tracked sessions reach their
// SDK-reported expiry. Timers are keyed by topic; tracking a topic again
// replaces its timer.
type ExpiryManager struct {
	mu       sync.Mutex
	clk      clock.Clock
	onExpire func(topic string)
	timers   map[string]*expiryTimer
	closed   bool
}

// NewExpiryManager creates an expiry manager. The callback runs on the
// timer goroutine; it must not block.
func NewExpiryManager(clk clock.Clock, onExpire func(topic string)) *ExpiryManager {
	return &ExpiryManager{
		clk:      clk,
		onExpire: onExpire,
		timers:   make(map[string]*expiryTimer),
	}
}

// Track arms (or re-arms) the expiry timer for a topic. A zero expiry
// means the SDK reported none; any existing timer for the topic is
// cancelled. An expiry already in the past fires promptly.
func (m *ExpiryManager) Track(topic string, expiresAt time.Time) {
	if topic == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.timers[topic]; ok {
		close(existing.cancel)
		delete(m.timers, topic)
	}
	if m.closed || expiresAt.IsZero() {
		return
	}

	t := &expiryTimer{
		topic:     topic,
		expiresAt: expiresAt,
		cancel:    make(chan struct{}),
	}
	m.timers[topic] = t

	remaining := expiresAt.Sub(m.clk.Now())
	go m.await(t, remaining)
}

func (m *ExpiryManager) await(t *expiryTimer, remaining time.Duration) {
	select {
	case <-m.clk.TickAfter(remaining):
	case <-t.cancel:
		return
	}

	m.mu.Lock()
	// Only fire if this exact timer is still the armed one; a replace or
	// cancel racing the tick wins.
	if current, ok := m.timers[t.topic]; !ok || current != t {
		m.mu.Unlock()
		return
	}
	delete(m.timers, t.topic)
	m.mu.Unlock()

	m.onExpire(t.topic)
}

// Cancel disarms the timer for a topic without firing.
func (m *ExpiryManager) Cancel(topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[topic]; ok {
		close(t.cancel)
		delete(m.timers, topic)
	}
}

// Remaining returns the time until a tracked topic expires.
func (m *ExpiryManager) Remaining(topic string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.timers[topic]
	if !ok {
		return 0, false
	}
	remaining := t.expiresAt.Sub(m.clk.Now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Count returns the number of armed timers.
func (m *ExpiryManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Close disarms all timers. Track calls after Close are ignored.
func (m *ExpiryManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for topic, t := range m.timers {
		close(t.cancel)
		delete(m.timers, topic)
	}
}
