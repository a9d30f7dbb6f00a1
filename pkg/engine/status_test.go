package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFeed(t *testing.T) {
	t.Run("InitialSnapshotDelivered", func(t *testing.T) {
		f := newStatusFeed()
		updates, release := f.subscribe()
		defer release()

		select {
		case update := <-updates:
			assert.Equal(t, StatusDisconnected, update.Level)
		default:
			t.Fatal("no immediate snapshot")
		}
	})

	t.Run("PublishReachesAllSubscribers", func(t *testing.T) {
		f := newStatusFeed()
		a, releaseA := f.subscribe()
		b, releaseB := f.subscribe()
		defer releaseA()
		defer releaseB()
		<-a
		<-b

		f.publish(StatusUpdate{Level: StatusConnected, Message: "connected", At: time.Now()})

		for name, ch := range map[string]<-chan StatusUpdate{"a": a, "b": b} {
			select {
			case update := <-ch:
				assert.Equal(t, StatusConnected, update.Level, name)
			default:
				t.Fatalf("subscriber %s missed the update", name)
			}
		}
	})

	t.Run("SlowSubscriberKeepsNewest", func(t *testing.T) {
		f := newStatusFeed()
		updates, release := f.subscribe()
		defer release()
		<-updates

		for i := 0; i < statusBuffer*2; i++ {
			f.publish(StatusUpdate{Level: StatusConnecting, RetryCount: i})
		}

		var last StatusUpdate
		drained := false
		for !drained {
			select {
			case update := <-updates:
				last = update
			default:
				drained = true
			}
		}
		assert.Equal(t, statusBuffer*2-1, last.RetryCount, "newest update must survive overflow")
	})

	t.Run("ReleaseClosesChannel", func(t *testing.T) {
		f := newStatusFeed()
		updates, release := f.subscribe()
		release()
		release() // idempotent

		_, open := <-updates
		require.False(t, open)
	})

	t.Run("SubscribeAfterClose", func(t *testing.T) {
		f := newStatusFeed()
		f.close()
		updates, release := f.subscribe()
		defer release()
		_, open := <-updates
		assert.False(t, open)
	})
}
