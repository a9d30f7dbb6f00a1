package session

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExpiryHarness(t *testing.T) (*ExpiryManager, *clock.TestClock, chan string) {
	t.Helper()
	clk := clock.NewTestClock(time.Date(2026, 8, 14, 12, 0, 0, 0, time.UTC))
	expired := make(chan string, 4)
	m := NewExpiryManager(clk, func(topic string) { expired <- topic })
	t.Cleanup(m.Close)
	return m, clk, expired
}

func expectExpiry(t *testing.T, expired chan string, topic string) {
	t.Helper()
	select {
	case got := <-expired:
		assert.Equal(t, topic, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("expiry for %s never fired", topic)
	}
}

func expectNoExpiry(t *testing.T, expired chan string) {
	t.Helper()
	select {
	case got := <-expired:
		t.Fatalf("unexpected expiry for %s", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestExpiryFiresAtDeadline(t *testing.T) {
	m, clk, expired := newExpiryHarness(t)

	m.Track("topic-1", clk.Now().Add(time.Minute))
	require.Equal(t, 1, m.Count())

	expectNoExpiry(t, expired)

	clk.SetTime(clk.Now().Add(time.Minute))
	expectExpiry(t, expired, "topic-1")
	assert.Equal(t, 0, m.Count())
}

func TestExpiryAlreadyPastFiresPromptly(t *testing.T) {
	m, clk, expired := newExpiryHarness(t)

	m.Track("topic-1", clk.Now().Add(-time.Second))
	expectExpiry(t, expired, "topic-1")
}

func TestExpiryZeroDeadlineIgnored(t *testing.T) {
	m, _, expired := newExpiryHarness(t)

	m.Track("topic-1", time.Time{})
	assert.Equal(t, 0, m.Count())
	expectNoExpiry(t, expired)
}

func TestExpiryCancelDisarms(t *testing.T) {
	m, clk, expired := newExpiryHarness(t)

	m.Track("topic-1", clk.Now().Add(time.Minute))
	m.Cancel("topic-1")
	assert.Equal(t, 0, m.Count())

	clk.SetTime(clk.Now().Add(2 * time.Minute))
	expectNoExpiry(t, expired)
}

func TestExpiryRetrackReplacesDeadline(t *testing.T) {
	m, clk, expired := newExpiryHarness(t)
	start := clk.Now()

	m.Track("topic-1", start.Add(time.Minute))
	m.Track("topic-1", start.Add(2*time.Minute))
	require.Equal(t, 1, m.Count())

	clk.SetTime(start.Add(time.Minute))
	expectNoExpiry(t, expired)

	clk.SetTime(start.Add(2 * time.Minute))
	expectExpiry(t, expired, "topic-1")
	expectNoExpiry(t, expired)
}

func TestExpiryRetrackZeroDisarms(t *testing.T) {
	// A migrated session may lose its expiry; re-tracking with a zero
	// deadline must drop the old timer.
	m, clk, expired := newExpiryHarness(t)

	m.Track("topic-1", clk.Now().Add(time.Minute))
	m.Track("topic-1", time.Time{})
	assert.Equal(t, 0, m.Count())

	clk.SetTime(clk.Now().Add(2 * time.Minute))
	expectNoExpiry(t, expired)
}

func TestExpiryRemaining(t *testing.T) {
	m, clk, _ := newExpiryHarness(t)

	_, ok := m.Remaining("topic-1")
	assert.False(t, ok)

	m.Track("topic-1", clk.Now().Add(time.Minute))
	remaining, ok := m.Remaining("topic-1")
	require.True(t, ok)
	assert.Equal(t, time.Minute, remaining)
}

func TestExpiryCloseDisarmsAll(t *testing.T) {
	m, clk, expired := newExpiryHarness(t)

	m.Track("topic-1", clk.Now().Add(time.Minute))
	m.Track("topic-2", clk.Now().Add(time.Minute))
	m.Close()
	assert.Equal(t, 0, m.Count())

	m.Track("topic-3", clk.Now().Add(time.Minute))
	assert.Equal(t, 0, m.Count(), "track after close must be ignored")

	clk.SetTime(clk.Now().Add(2 * time.Minute))
	expectNoExpiry(t, expired)
}
