package deeplink

import (
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"
)

func TestDispatcher(t *testing.T) {
	t.Run("RoutesToRegisteredHandler", func(t *testing.T) {
		d := NewDispatcher()

		var got *url.URL
		release := d.Register("metamask", func(uri *url.URL) { got = uri })
		defer release()

		err := d.Dispatch("metamask", "myapp://wc?requestId=42")
		if err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if got == nil || got.Scheme != "myapp" {
			t.Errorf("handler received %v", got)
		}
		if got.Query().Get("requestId") != "42" {
			t.Errorf("query lost: %v", got.RawQuery)
		}
	})

	t.Run("UnknownWallet", func(t *testing.T) {
		d := NewDispatcher()
		err := d.Dispatch("phantom", "myapp://wc")
		if !errors.Is(err, ErrNoHandler) {
			t.Errorf("got %v, want ErrNoHandler", err)
		}
	})

	t.Run("MalformedURI", func(t *testing.T) {
		d := NewDispatcher()
		release := d.Register("metamask", func(*url.URL) {})
		defer release()

		err := d.Dispatch("metamask", "://no-scheme")
		if !errors.Is(err, ErrBadCallback) {
			t.Errorf("got %v, want ErrBadCallback", err)
		}
	})

	t.Run("ReleaseRemovesHandler", func(t *testing.T) {
		d := NewDispatcher()
		release := d.Register("metamask", func(*url.URL) {})
		release()

		err := d.Dispatch("metamask", "myapp://wc")
		if !errors.Is(err, ErrNoHandler) {
			t.Errorf("got %v after release, want ErrNoHandler", err)
		}
	})

	t.Run("SerializedPerWallet", func(t *testing.T) {
		d := NewDispatcher()

		var mu sync.Mutex
		active := 0
		maxActive := 0
		release := d.Register("metamask", func(*url.URL) {
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		})
		defer release()

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = d.Dispatch("metamask", "myapp://wc")
			}()
		}
		wg.Wait()

		if maxActive != 1 {
			t.Errorf("handler overlapped, max concurrency %d", maxActive)
		}
	})
}
