package socket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"focusrelay/client/model"
)

// State is the observable connection state. The zero value is Disconnected.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateBackoff
	StateGaveUp
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateBackoff:
		return "Backoff"
	case StateGaveUp:
		return "GaveUp"
	}
	return "Unknown"
}

const (
	maxAttempts        = 5
	defaultBackoffUnit = 2 * time.Second
)

var (
	ErrNotConnected = errors.New("socket: not connected")
	ErrClosed       = errors.New("socket: client closed")
)

// Conn is the transport slice the client uses; *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a transport connection. Tests inject fakes.
type Dialer func(url string) (Conn, error)

func defaultDialer(url string) (Conn, error) {
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Handler receives the data field of every envelope on a channel. An alias
// so interfaces over the client can spell the func type directly.
type Handler = func(data json.RawMessage)

// Client owns exactly one relay connection. Connect is explicit; after an
// established connection drops (or a reconnect dial fails) the client retries
// with a 2s-per-attempt backoff, giving up for good after 5 attempts.
// Desired channel subscriptions are replayed on every successful connect.
type Client struct {
	url     string
	dial    Dialer
	backoff time.Duration
	log     *zap.Logger

	mu       sync.Mutex
	wmu      sync.Mutex
	state    State
	attempts int
	gen      int
	conn     Conn
	handlers map[string][]Handler
	channels []string
	watchers []func(State)
	timer    *time.Timer
	closed   bool
}

type Option func(*Client)

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dial = d }
}

// WithBackoffUnit replaces the per-attempt backoff unit.
func WithBackoffUnit(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

func New(url string, log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		url:      url,
		dial:     defaultDialer,
		backoff:  defaultBackoffUnit,
		log:      log,
		handlers: make(map[string][]Handler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the relay. On failure a reconnect is scheduled, so callers
// that can live with eventual connectivity may ignore the error.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	watchers := c.setStateLocked(StateConnecting)
	c.mu.Unlock()
	fire(watchers, StateConnecting)

	conn, err := c.dial(c.url)
	if err != nil {
		c.mu.Lock()
		watchers = c.scheduleReconnectLocked()
		st := c.state
		c.mu.Unlock()
		fire(watchers, st)
		return errors.Wrapf(err, "dial %s", c.url)
	}

	c.mu.Lock()
	c.conn = conn
	c.gen++
	gen := c.gen
	c.attempts = 0
	channels := append([]string(nil), c.channels...)
	watchers = c.setStateLocked(StateConnected)
	c.mu.Unlock()
	fire(watchers, StateConnected)

	for _, ch := range channels {
		if err := c.writeJSON(model.Frame{Type: model.FrameSubscribe, Channel: ch}); err != nil {
			c.log.Warn("resubscribe failed", zap.String("channel", ch), zap.Error(err))
		}
	}

	go c.readLoop(conn, gen)
	c.log.Debug("connected", zap.String("url", c.url))
	return nil
}

// Subscribe registers a per-channel callback and records the channel so the
// subscribe frame is (re)sent on every connect. If currently connected the
// frame goes out immediately.
func (c *Client) Subscribe(channel string, h Handler) {
	c.mu.Lock()
	c.handlers[channel] = append(c.handlers[channel], h)
	if !contains(c.channels, channel) {
		c.channels = append(c.channels, channel)
	}
	connected := c.state == StateConnected
	c.mu.Unlock()

	if connected {
		if err := c.writeJSON(model.Frame{Type: model.FrameSubscribe, Channel: channel}); err != nil {
			c.log.Warn("subscribe failed", zap.String("channel", channel), zap.Error(err))
		}
	}
}

// Send writes a frame to the relay. Returns ErrNotConnected when the
// connection is down.
func (c *Client) Send(frame model.Frame) error {
	c.mu.Lock()
	connected := c.state == StateConnected && c.conn != nil
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	return c.writeJSON(frame)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the connection is currently up.
func (c *Client) Connected() bool {
	return c.State() == StateConnected
}

// OnStateChange registers an observer invoked on every state transition.
func (c *Client) OnStateChange(f func(State)) {
	c.mu.Lock()
	c.watchers = append(c.watchers, f)
	c.mu.Unlock()
}

// Close tears the connection down and stops any pending reconnect.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	conn := c.conn
	c.conn = nil
	c.gen++
	watchers := c.setStateLocked(StateDisconnected)
	c.mu.Unlock()
	fire(watchers, StateDisconnected)

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) readLoop(conn Conn, gen int) {
	for {
		_, p, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var env model.Envelope
		if err := json.Unmarshal(p, &env); err != nil {
			c.log.Warn("undecodable envelope", zap.Error(err))
			continue
		}
		c.dispatch(&env)
	}

	c.mu.Lock()
	if c.gen != gen || c.closed {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	watchers := c.scheduleReconnectLocked()
	st := c.state
	c.mu.Unlock()
	fire(watchers, st)
}

func (c *Client) dispatch(env *model.Envelope) {
	c.mu.Lock()
	hs := append([]Handler(nil), c.handlers[env.Channel]...)
	c.mu.Unlock()
	for _, h := range hs {
		h(env.Data)
	}
}

// scheduleReconnectLocked counts a failed attempt and either arms the
// backoff timer or gives up for good.
func (c *Client) scheduleReconnectLocked() []func(State) {
	if c.closed {
		return c.setStateLocked(StateDisconnected)
	}
	c.attempts++
	if c.attempts > maxAttempts {
		c.log.Warn("reconnect attempts exhausted", zap.String("url", c.url))
		return c.setStateLocked(StateGaveUp)
	}
	delay := time.Duration(c.attempts) * c.backoff
	c.timer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		skip := c.closed || c.state != StateBackoff
		c.mu.Unlock()
		if skip {
			return
		}
		_ = c.Connect()
	})
	c.log.Debug("reconnect scheduled",
		zap.Int("attempt", c.attempts), zap.Duration("delay", delay))
	return c.setStateLocked(StateBackoff)
}

func (c *Client) setStateLocked(s State) []func(State) {
	c.state = s
	return append(([]func(State))(nil), c.watchers...)
}

func (c *Client) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal frame")
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func fire(watchers []func(State), s State) {
	for _, f := range watchers {
		f(s)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
