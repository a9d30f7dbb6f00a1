package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/walletrelay/walletrelay-go/pkg/relay"
)

// Websocket defaults.
const (
	// DefaultHandshakeTimeout bounds the websocket upgrade.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds individual frame writes.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultMaxMessageSize is the largest inbound frame accepted.
	DefaultMaxMessageSize = 1 << 20

	// closeGrace is how long a graceful close frame may take to flush.
	closeGrace = time.Second
)

// ErrNotConnected is returned by Send on a transport with no live
// connection.
var ErrNotConnected = errors.New("not connected")

// Config configures a websocket relay transport.
type Config struct {
	// URL is the relay websocket endpoint (wss://...).
	URL string

	// HandshakeTimeout bounds the websocket upgrade (default: 10s).
	HandshakeTimeout time.Duration

	// WriteTimeout bounds individual frame writes (default: 10s).
	WriteTimeout time.Duration

	// MaxMessageSize is the largest inbound frame accepted (default: 1MB).
	MaxMessageSize int64

	// KeepAlive configures liveness monitoring.
	KeepAlive KeepAliveConfig

	// Logger receives operational logs. Defaults to a discard logger.
	Logger *slog.Logger
}

// WebSocketTransport is the websocket implementation of relay.Transport.
type WebSocketTransport struct {
	config Config
	dialer *websocket.Dialer
	logger *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	keepAlive *KeepAlive
	cancelKA  context.CancelFunc
	closed    bool

	connected atomic.Bool
	writeMu   sync.Mutex

	cbMu         sync.Mutex
	nextCB       int
	onConnect    map[int]func()
	onDisconnect map[int]func(reason error)
	onError      map[int]func(err error)
	onMessage    map[int]func(payload []byte)
}

// NewWebSocketTransport creates a transport for the given relay endpoint.
func NewWebSocketTransport(config Config) *WebSocketTransport {
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &WebSocketTransport{
		config: config,
		dialer: &websocket.Dialer{
			HandshakeTimeout: config.HandshakeTimeout,
		},
		logger:       config.Logger,
		onConnect:    make(map[int]func()),
		onDisconnect: make(map[int]func(reason error)),
		onError:      make(map[int]func(err error)),
		onMessage:    make(map[int]func(payload []byte)),
	}
}

// Connect dials the relay endpoint. Connecting while a connection is
// live returns a benign stream-state error.
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return relay.ErrTransportClosed
	}
	if t.conn != nil {
		t.mu.Unlock()
		return fmt.Errorf("%w: connect while connected", relay.ErrStreamStateConflict)
	}
	t.mu.Unlock()

	conn, _, err := t.dialer.DialContext(ctx, t.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}

	conn.SetReadLimit(t.config.MaxMessageSize)
	readWindow := t.config.KeepAlive.DetectionDelay()
	conn.SetReadDeadline(time.Now().Add(readWindow))

	ka := NewKeepAlive(t.config.KeepAlive,
		func(seq uint32) error {
			payload := []byte(strconv.FormatUint(uint64(seq), 10))
			t.writeMu.Lock()
			defer t.writeMu.Unlock()
			return conn.WriteControl(websocket.PingMessage, payload,
				time.Now().Add(t.config.WriteTimeout))
		},
		func() {
			t.logger.Warn("keep-alive timeout, dropping connection")
			t.teardown(fmt.Errorf("keep-alive timeout"))
		},
	)
	conn.SetPongHandler(func(appData string) error {
		if seq, err := strconv.ParseUint(appData, 10, 32); err == nil {
			ka.PongReceived(uint32(seq))
		}
		conn.SetReadDeadline(time.Now().Add(readWindow))
		return nil
	})

	t.mu.Lock()
	if t.conn != nil || t.closed {
		t.mu.Unlock()
		conn.Close()
		return fmt.Errorf("%w: connect raced another connect", relay.ErrStreamStateConflict)
	}
	t.conn = conn
	t.keepAlive = ka
	kaCtx, cancel := context.WithCancel(context.Background())
	t.cancelKA = cancel
	t.mu.Unlock()

	ka.Start(kaCtx)
	go t.readPump(conn, readWindow)

	t.connected.Store(true)
	t.logger.Info("relay connected", "url", t.config.URL)
	for _, fn := range t.connectCallbacks() {
		fn()
	}
	return nil
}

// Disconnect closes the connection gracefully. Disconnecting while not
// connected returns a benign stream-state error.
func (t *WebSocketTransport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("%w: disconnect while not connected", relay.ErrStreamStateConflict)
	}

	deadline := time.Now().Add(closeGrace)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	t.writeMu.Lock()
	conn.WriteControl(websocket.CloseMessage, msg, deadline)
	t.writeMu.Unlock()

	t.teardown(nil)
	return nil
}

// Close shuts the transport down for good. Subsequent Connect calls
// return ErrTransportClosed.
func (t *WebSocketTransport) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.teardown(nil)
}

// IsConnected reports the cached connected flag.
func (t *WebSocketTransport) IsConnected() bool {
	return t.connected.Load()
}

// Send writes one payload frame to the relay.
func (t *WebSocketTransport) Send(payload []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
	return conn.WriteMessage(websocket.BinaryMessage, payload)
}

// OnConnect registers a connect callback. Returns a release function.
func (t *WebSocketTransport) OnConnect(fn func()) (release func()) {
	t.cbMu.Lock()
	id := t.nextCB
	t.nextCB++
	t.onConnect[id] = fn
	t.cbMu.Unlock()
	return func() {
		t.cbMu.Lock()
		delete(t.onConnect, id)
		t.cbMu.Unlock()
	}
}

// OnDisconnect registers a disconnect callback. Returns a release function.
func (t *WebSocketTransport) OnDisconnect(fn func(reason error)) (release func()) {
	t.cbMu.Lock()
	id := t.nextCB
	t.nextCB++
	t.onDisconnect[id] = fn
	t.cbMu.Unlock()
	return func() {
		t.cbMu.Lock()
		delete(t.onDisconnect, id)
		t.cbMu.Unlock()
	}
}

// OnError registers an async error callback. Returns a release function.
func (t *WebSocketTransport) OnError(fn func(err error)) (release func()) {
	t.cbMu.Lock()
	id := t.nextCB
	t.nextCB++
	t.onError[id] = fn
	t.cbMu.Unlock()
	return func() {
		t.cbMu.Lock()
		delete(t.onError, id)
		t.cbMu.Unlock()
	}
}

// OnMessage registers an inbound payload callback. Returns a release
// function.
func (t *WebSocketTransport) OnMessage(fn func(payload []byte)) (release func()) {
	t.cbMu.Lock()
	id := t.nextCB
	t.nextCB++
	t.onMessage[id] = fn
	t.cbMu.Unlock()
	return func() {
		t.cbMu.Lock()
		delete(t.onMessage, id)
		t.cbMu.Unlock()
	}
}

func (t *WebSocketTransport) readPump(conn *websocket.Conn, readWindow time.Duration) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.teardown(err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(readWindow))
		for _, fn := range t.messageCallbacks() {
			fn(payload)
		}
	}
}

// teardown closes the live connection, if any, and notifies observers.
// Safe to call from any goroutine; only the caller that actually owned
// the connection publishes the disconnect.
func (t *WebSocketTransport) teardown(reason error) {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	ka := t.keepAlive
	t.keepAlive = nil
	cancel := t.cancelKA
	t.cancelKA = nil
	t.mu.Unlock()

	if conn == nil {
		return
	}
	if ka != nil {
		ka.Stop()
	}
	if cancel != nil {
		cancel()
	}
	conn.Close()
	t.connected.Store(false)

	if reason != nil {
		if relay.IsBenignStreamError(reason) {
			t.logger.Debug("relay stream closed", "reason", reason)
		} else {
			t.logger.Warn("relay disconnected", "reason", reason)
			for _, fn := range t.errorCallbacks() {
				fn(reason)
			}
		}
	} else {
		t.logger.Info("relay disconnected")
	}
	for _, fn := range t.disconnectCallbacks() {
		fn(reason)
	}
}

func (t *WebSocketTransport) connectCallbacks() []func() {
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	out := make([]func(), 0, len(t.onConnect))
	for _, fn := range t.onConnect {
		out = append(out, fn)
	}
	return out
}

func (t *WebSocketTransport) disconnectCallbacks() []func(error) {
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	out := make([]func(error), 0, len(t.onDisconnect))
	for _, fn := range t.onDisconnect {
		out = append(out, fn)
	}
	return out
}

func (t *WebSocketTransport) errorCallbacks() []func(error) {
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	out := make([]func(error), 0, len(t.onError))
	for _, fn := range t.onError {
		out = append(out, fn)
	}
	return out
}

func (t *WebSocketTransport) messageCallbacks() []func([]byte) {
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	out := make([]func([]byte), 0, len(t.onMessage))
	for _, fn := range t.onMessage {
		out = append(out, fn)
	}
	return out
}

// Compile-time interface satisfaction check.
var _ relay.Transport = (*WebSocketTransport)(nil)
