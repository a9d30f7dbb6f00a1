package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletrelay/walletrelay-go/pkg/relay"
	"github.com/walletrelay/walletrelay-go/pkg/wallet"
)

func metamaskSession(topic, account string) relay.Session {
	return relay.Session{
		Topic:    topic,
		Peer:     relay.PeerMetadata{Name: "MetaMask"},
		Accounts: []string{account},
		Chains:   []string{"eip155:1"},
	}
}

func TestAttemptAccepts(t *testing.T) {
	sessions := newFakeSessions()
	sessions.offline = []relay.Session{metamaskSession("topic-a", "eip155:1:0xaaa")}

	attempt := NewAttempt(sessions, wallet.TypeMetaMask, "eip155:1", time.Now())

	t.Run("PreexistingRefused", func(t *testing.T) {
		assert.False(t, attempt.Accepts(metamaskSession("topic-a", "eip155:1:0xaaa")))
	})

	t.Run("NewValidAccepted", func(t *testing.T) {
		assert.True(t, attempt.Accepts(metamaskSession("topic-b", "eip155:1:0xbbb")))
	})

	t.Run("WrongWalletRefused", func(t *testing.T) {
		s := metamaskSession("topic-c", "eip155:1:0xccc")
		s.Peer.Name = "Phantom"
		assert.False(t, attempt.Accepts(s))
	})

	t.Run("WrongChainRefused", func(t *testing.T) {
		s := metamaskSession("topic-d", "eip155:137:0xddd")
		s.Chains = []string{"eip155:137"}
		assert.False(t, attempt.Accepts(s))
	})

	t.Run("NoAccountsRefused", func(t *testing.T) {
		s := metamaskSession("topic-e", "")
		s.Accounts = nil
		assert.False(t, attempt.Accepts(s))
	})

	t.Run("UnknownWalletAcceptsAnyPeer", func(t *testing.T) {
		anyAttempt := NewAttempt(sessions, wallet.TypeUnknown, "", time.Now())
		s := metamaskSession("topic-f", "eip155:1:0xfff")
		s.Peer.Name = "Some Obscure Wallet"
		assert.True(t, anyAttempt.Accepts(s))
	})
}

func TestWatchdogEventPath(t *testing.T) {
	sessions := newFakeSessions()
	w := NewWatchdog(WatchdogConfig{Sessions: sessions, PollInterval: time.Hour})
	attempt := NewAttempt(sessions, wallet.TypeMetaMask, "eip155:1", time.Now())

	type outcome struct {
		s   relay.Session
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		s, err := w.Await(context.Background(), attempt)
		done <- outcome{s, err}
	}()

	// Give Await time to subscribe, then deliver the approval event.
	time.Sleep(50 * time.Millisecond)
	approved := metamaskSession("topic-new", "eip155:1:0xabc")
	sessions.fireSessionConnect(approved)

	select {
	case got := <-done:
		require.NoError(t, got.err)
		assert.Equal(t, "topic-new", got.s.Topic)
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not resolve on the event path")
	}
}

func TestWatchdogPollPathRescuesLostEvent(t *testing.T) {
	// The approval event never fires, but the new session becomes
	// listable. The poll path must still resolve within one interval.
	sessions := newFakeSessions()
	sessions.offline = []relay.Session{metamaskSession("topic-a", "eip155:1:0xaaa")}
	sessions.sessions = []relay.Session{metamaskSession("topic-a", "eip155:1:0xaaa")}

	w := NewWatchdog(WatchdogConfig{Sessions: sessions, PollInterval: 50 * time.Millisecond})
	attempt := NewAttempt(sessions, wallet.TypeMetaMask, "eip155:1", time.Now())

	go func() {
		time.Sleep(80 * time.Millisecond)
		sessions.addSession(metamaskSession("topic-b", "eip155:1:0xbbb"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	s, err := w.Await(ctx, attempt)
	require.NoError(t, err)
	assert.Equal(t, "topic-b", s.Topic, "must resolve the new session, not the pre-existing one")
	assert.Less(t, time.Since(start), time.Second, "poll path should resolve within a couple of intervals")
}

func TestWatchdogCancellation(t *testing.T) {
	// Only the pre-existing session is ever listable; Await must block
	// until cancelled instead of matching it.
	sessions := newFakeSessions()
	sessions.offline = []relay.Session{metamaskSession("topic-a", "eip155:1:0xaaa")}
	sessions.sessions = []relay.Session{metamaskSession("topic-a", "eip155:1:0xaaa")}

	w := NewWatchdog(WatchdogConfig{Sessions: sessions, PollInterval: 20 * time.Millisecond})
	attempt := NewAttempt(sessions, wallet.TypeMetaMask, "eip155:1", time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := w.Await(ctx, attempt)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWatchdogResolvesImmediatelySettledSession(t *testing.T) {
	// The session settled between the attempt snapshot and Await: the
	// initial check must catch it without waiting for a poll tick.
	sessions := newFakeSessions()
	attempt := NewAttempt(sessions, wallet.TypeMetaMask, "eip155:1", time.Now())
	sessions.addSession(metamaskSession("topic-fast", "eip155:1:0xabc"))

	w := NewWatchdog(WatchdogConfig{Sessions: sessions, PollInterval: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	s, err := w.Await(ctx, attempt)
	require.NoError(t, err)
	assert.Equal(t, "topic-fast", s.Topic)
}
