// Package deeplink routes wallet callback URIs to registered handlers.
//
// Wallets return control to the app through a deep link after the user
// acts on a request. The dispatcher maps the callback to the wallet
// adapter that initiated the request; URI construction for outgoing
// deep links is the adapter's concern and lives outside this package.
package deeplink

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
)

// Dispatcher errors.
var (
	ErrNoHandler   = errors.New("no handler registered for wallet")
	ErrBadCallback = errors.New("malformed callback URI")
)

// Handler processes one callback URI. The URI is opaque to the
// dispatcher; the handler owns its interpretation.
type Handler func(uri *url.URL)

// Dispatcher routes callback URIs to handlers keyed by wallet
// identifier. Handler invocation is serialized per wallet so a burst of
// callbacks cannot race one adapter's session check.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[string]Handler
	inflight map[string]*sync.Mutex
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
		inflight: make(map[string]*sync.Mutex),
	}
}

// Register installs the handler for a wallet identifier, replacing any
// previous one. It returns a release function that removes the handler.
func (d *Dispatcher) Register(walletID string, handler Handler) (release func()) {
	d.mu.Lock()
	d.handlers[walletID] = handler
	if _, ok := d.inflight[walletID]; !ok {
		d.inflight[walletID] = &sync.Mutex{}
	}
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.handlers, walletID)
		d.mu.Unlock()
	}
}

// Dispatch parses rawURI and invokes the handler registered for
// walletID. The call blocks until the handler returns; concurrent
// dispatches to the same wallet serialize.
func (d *Dispatcher) Dispatch(walletID, rawURI string) error {
	uri, err := url.Parse(rawURI)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadCallback, err)
	}

	d.mu.Lock()
	handler, ok := d.handlers[walletID]
	gate := d.inflight[walletID]
	d.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, walletID)
	}

	gate.Lock()
	defer gate.Unlock()
	handler(uri)
	return nil
}
