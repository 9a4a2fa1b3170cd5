package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"govorilka/internal/models"

	"github.com/gorilla/websocket"
)

// State is the connection state of a Transport.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// Handler receives the raw payload of a single event. Handlers are
// invoked sequentially from the transport's run goroutine, never
// concurrently with each other.
type Handler func(data json.RawMessage)

type Config struct {
	Endpoint          string
	ReconnectAttempts int
	DialTimeout       time.Duration
	ReconnectDelay    time.Duration
}

const (
	DefaultReconnectAttempts = 5
	DefaultDialTimeout       = 10 * time.Second
	DefaultReconnectDelay    = 2 * time.Second
)

func (c *Config) setDefaults() {
	if c.ReconnectAttempts == 0 {
		c.ReconnectAttempts = DefaultReconnectAttempts
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
}

// Transport owns one physical websocket connection to the backend and
// the reconnection policy for it. Inbound events and lifecycle events
// (connect, disconnect, reconnect, reconnect_failed) are dispatched
// through the same handler registry.
type Transport struct {
	config Config
	log    *slog.Logger
	dialer *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	closing  bool
	closed   chan struct{}
	handlers map[models.EventName]Handler
}

func New(config Config, log *slog.Logger) *Transport {
	config.setDefaults()
	if log == nil {
		log = slog.Default()
	}

	return &Transport{
		config: config,
		log:    log,
		dialer: &websocket.Dialer{
			HandshakeTimeout: config.DialTimeout,
		},
		state:    StateDisconnected,
		closed:   make(chan struct{}),
		handlers: make(map[models.EventName]Handler),
	}
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// On registers the handler for an event name, replacing any previous
// one. One handler per event name keeps resubscription across
// reconnects from double-delivering.
func (t *Transport) On(event models.EventName, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[event] = h
}

// Off removes the handler for an event name.
func (t *Transport) Off(event models.EventName) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handlers, event)
}

// Connect starts the connection. It returns immediately; a successful
// connect is signaled through the "connect" event. If the transport is
// already connecting or connected the call is a no-op.
func (t *Transport) Connect(ctx context.Context) {
	t.mu.Lock()
	if t.state != StateDisconnected || t.closing {
		t.mu.Unlock()
		return
	}
	t.state = StateConnecting
	t.mu.Unlock()

	go t.run(ctx)
}

// Emit sends one event to the backend. Outbound events while not
// connected are dropped and logged, never surfaced to the caller.
func (t *Transport) Emit(event models.EventName, payload any) {
	t.mu.Lock()
	conn := t.conn
	state := t.state
	t.mu.Unlock()

	if state != StateConnected || conn == nil {
		t.log.Warn("dropping event while not connected", "event", event, "state", state)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.log.Error("failed to marshal event payload", "event", event, "error", err)
		return
	}

	env := models.Envelope{Event: string(event), Data: data}

	// Writes are serialized under the transport mutex; gorilla
	// connections do not support concurrent writers.
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != conn {
		t.log.Warn("dropping event, connection replaced", "event", event)
		return
	}
	if err := conn.WriteJSON(env); err != nil {
		t.log.Warn("failed to write event", "event", event, "error", err)
	}
}

// Disconnect closes the connection and suppresses reconnection.
// Safe to call on an already-disconnected transport.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		return
	}
	t.closing = true
	close(t.closed)
	conn := t.conn
	t.conn = nil
	t.state = StateDisconnected
	t.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	t.dispatch(models.EventDisconnect, nil)
}

func (t *Transport) run(ctx context.Context) {
	conn, err := t.dial(ctx)
	if err != nil {
		t.log.Warn("initial dial failed", "endpoint", t.config.Endpoint, "error", err)
		if !t.reconnect(ctx) {
			return
		}
	} else {
		t.setConnected(conn)
		t.dispatch(models.EventConnect, nil)
	}

	for {
		if err := t.readLoop(); err != nil {
			t.mu.Lock()
			closing := t.closing
			t.conn = nil
			if !closing {
				t.state = StateReconnecting
			}
			t.mu.Unlock()

			if closing || ctx.Err() != nil {
				return
			}

			t.log.Warn("connection lost", "error", err)
			t.dispatch(models.EventDisconnect, nil)

			if !t.reconnect(ctx) {
				return
			}
		}
	}
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, t.config.DialTimeout)
	defer cancel()

	conn, _, err := t.dialer.DialContext(dialCtx, t.config.Endpoint, nil)
	return conn, err
}

func (t *Transport) setConnected(conn *websocket.Conn) {
	t.mu.Lock()
	t.conn = conn
	t.state = StateConnected
	t.mu.Unlock()
}

// reconnect retries the dial up to the configured attempt cap with a
// fixed inter-attempt delay. Returns false when the transport should
// stop, either because it is closing or because the cap was exceeded.
func (t *Transport) reconnect(ctx context.Context) bool {
	for attempt := 1; attempt <= t.config.ReconnectAttempts; attempt++ {
		select {
		case <-t.closed:
			return false
		case <-ctx.Done():
			return false
		case <-time.After(t.config.ReconnectDelay):
		}

		t.log.Info("reconnecting", "attempt", attempt, "max", t.config.ReconnectAttempts)
		conn, err := t.dial(ctx)
		if err != nil {
			t.log.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}

		t.mu.Lock()
		if t.closing {
			t.mu.Unlock()
			_ = conn.Close()
			return false
		}
		t.conn = conn
		t.state = StateConnected
		t.mu.Unlock()

		t.dispatch(models.EventReconnect, nil)
		return true
	}

	t.mu.Lock()
	t.state = StateDisconnected
	t.mu.Unlock()

	t.log.Error("reconnection failed after maximum attempts", "attempts", t.config.ReconnectAttempts)
	t.dispatch(models.EventReconnectFailed, nil)
	return false
}

// readLoop reads envelopes until the connection fails. Malformed frames
// are dropped and logged; they never tear down the connection.
func (t *Transport) readLoop() error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return models.ErrNotConnected
	}

	for {
		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if _, ok := err.(*json.SyntaxError); ok {
				t.log.Warn("dropping malformed frame", "error", err)
				continue
			}
			if _, ok := err.(*json.UnmarshalTypeError); ok {
				t.log.Warn("dropping malformed frame", "error", err)
				continue
			}
			return err
		}
		if env.Event == "" {
			t.log.Warn("dropping frame without event name")
			continue
		}
		t.dispatch(models.EventName(env.Event), env.Data)
	}
}

func (t *Transport) dispatch(event models.EventName, data json.RawMessage) {
	t.mu.Lock()
	h, ok := t.handlers[event]
	t.mu.Unlock()

	if !ok {
		return
	}
	h(data)
}
