package engine

import (
	"sync"
	"time"
)

// StatusLevel is the coarse connection status shown to the user.
type StatusLevel uint8

const (
	// StatusDisconnected means no connection exists or is wanted.
	StatusDisconnected StatusLevel = iota

	// StatusConnecting means a connect or reconnect is in progress.
	StatusConnecting

	// StatusConnected means the relay connection is live.
	StatusConnected

	// StatusError means the last attempt failed.
	StatusError
)

// String returns the status level name.
func (l StatusLevel) String() string {
	switch l {
	case StatusDisconnected:
		return "DISCONNECTED"
	case StatusConnecting:
		return "CONNECTING"
	case StatusConnected:
		return "CONNECTED"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// StatusUpdate is one entry of the observable status stream. It carries
// enough structure for a presentation layer to render progress, retry
// prompts, or a definitive failure.
type StatusUpdate struct {
	// Level is the coarse status.
	Level StatusLevel

	// Message is a human-readable progress message.
	Message string

	// RetryCount is reconnect attempts consumed in the current sequence.
	RetryCount int

	// MaxRetries is the attempt budget, when bounded.
	MaxRetries int

	// At is when the update was produced.
	At time.Time
}

// statusBuffer is the per-subscriber channel depth. A slow subscriber
// loses the oldest updates, never the newest.
const statusBuffer = 16

// statusFeed fans status updates out to subscribers.
type statusFeed struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan StatusUpdate
	last   StatusUpdate
	closed bool
}

func newStatusFeed() *statusFeed {
	return &statusFeed{
		subs: map[int]chan StatusUpdate{},
		last: StatusUpdate{Level: StatusDisconnected, Message: "disconnected"},
	}
}

// subscribe returns a channel of updates and a release function. The
// current status is delivered immediately so a UI can render without
// waiting for the next change.
func (f *statusFeed) subscribe() (<-chan StatusUpdate, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan StatusUpdate, statusBuffer)
	if f.closed {
		close(ch)
		return ch, func() {}
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	ch <- f.last

	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if ch, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(ch)
		}
	}
}

// publish delivers an update to every subscriber without blocking.
func (f *statusFeed) publish(update StatusUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.last = update
	for _, ch := range f.subs {
		for {
			select {
			case ch <- update:
			default:
				// Full: evict the oldest entry and retry.
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// current returns the last published update.
func (f *statusFeed) current() StatusUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// close releases all subscriber channels.
func (f *statusFeed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
