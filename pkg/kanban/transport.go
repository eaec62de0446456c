package kanban

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

const (
	heartbeatInterval = 25 * time.Second
	reconnectDelay    = 3 * time.Second

	// EventPing is the heartbeat envelope sent every heartbeatInterval while
	// the channel is open. The payload is the sender's unix-millis clock.
	EventPing = "ping"
)

// ChannelState is the lifecycle state of a Channel.
type ChannelState string

const (
	StateClosed     ChannelState = "closed"
	StateConnecting ChannelState = "connecting"
	StateOpen       ChannelState = "open"
)

// Envelope is the wire frame for every notification: an event name and an
// opaque payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Channel is a board-scoped websocket connection that feeds incoming
// envelopes into a Bus. It holds at most one connection; connecting to a new
// board tears down the old one first. Delivery is best effort in both
// directions: sends are dropped silently when the socket is not open, and
// unparseable frames are discarded.
//
// On an unexpected close the channel schedules a reconnect after a fixed
// delay, drawn from a backoff policy so tests can shrink it. A generation
// counter fences every scheduled reconnect: Disconnect or a Connect to a
// different board bumps the generation, so a stale timer firing afterwards
// finds itself outdated and does nothing.
type Channel struct {
	baseURL    string
	token      string
	bus        *Bus
	log        *slog.Logger
	dialer     *websocket.Dialer
	newBackoff func() backoff.BackOff

	mu       sync.Mutex
	wmu      sync.Mutex
	boardID  string
	conn     *websocket.Conn
	state    ChannelState
	gen      uint64
	policy   backoff.BackOff
	retry    *time.Timer
	stopPing chan struct{}
}

// ChannelOption customizes a Channel.
type ChannelOption func(*Channel)

// WithBackoff replaces the reconnect delay policy. The factory is invoked
// once per board connection.
func WithBackoff(factory func() backoff.BackOff) ChannelOption {
	return func(c *Channel) { c.newBackoff = factory }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) ChannelOption {
	return func(c *Channel) { c.dialer = d }
}

// NewChannel creates a disconnected channel. baseURL is the websocket
// endpoint root, e.g. "ws://host/ws/boards"; the board id is appended as a
// path segment and the token as a query parameter on dial.
func NewChannel(baseURL, token string, bus *Bus, log *slog.Logger, opts ...ChannelOption) *Channel {
	if log == nil {
		log = slog.Default()
	}
	c := &Channel{
		baseURL: baseURL,
		token:   token,
		bus:     bus,
		log:     log,
		dialer:  websocket.DefaultDialer,
		state:   StateClosed,
		newBackoff: func() backoff.BackOff {
			return backoff.NewConstantBackOff(reconnectDelay)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BoardID returns the board the channel is bound to, or "".
func (c *Channel) BoardID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.boardID
}

// Connect binds the channel to a board and dials. Calling it again for the
// same board while connected or connecting is a no-op; a different board
// closes the existing connection and dials fresh.
func (c *Channel) Connect(boardID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.boardID == boardID && c.state != StateClosed {
		return nil
	}
	c.teardownLocked()
	c.gen++
	c.boardID = boardID
	c.policy = c.newBackoff()
	return c.dialLocked()
}

// Disconnect closes the connection, cancels the heartbeat and any pending
// reconnect, and unbinds the board. Safe to call at any time, repeatedly.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	c.gen++
	c.boardID = ""
	c.state = StateClosed
}

// Send marshals an envelope and writes it to the socket. When the channel
// is not open the message is dropped without error.
func (c *Channel) Send(event string, data any) {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()
	if !open || conn == nil {
		return
	}

	raw, err := json.Marshal(data)
	if err != nil {
		c.log.Warn("dropping unmarshalable outbound event", "event", event, "error", err)
		return
	}
	c.wmu.Lock()
	err = conn.WriteJSON(Envelope{Event: event, Data: raw})
	c.wmu.Unlock()
	if err != nil {
		c.log.Debug("send failed", "event", event, "error", err)
	}
}

func (c *Channel) dialURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing websocket base url: %w", err)
	}
	u = u.JoinPath(c.boardID)
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Channel) dialLocked() error {
	c.state = StateConnecting

	addr, err := c.dialURL()
	if err != nil {
		c.state = StateClosed
		return err
	}
	conn, _, err := c.dialer.Dial(addr, nil)
	if err != nil {
		c.state = StateClosed
		c.scheduleReconnectLocked()
		return &Error{Kind: KindNetwork, Message: "websocket dial failed", Err: err}
	}

	c.conn = conn
	c.state = StateOpen
	c.stopPing = make(chan struct{})
	gen := c.gen
	c.log.Info("websocket connected", "board", c.boardID)

	go c.readLoop(conn, gen)
	go c.heartbeat(conn, c.stopPing)
	return nil
}

func (c *Channel) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			c.log.Debug("dropping unparseable frame", "error", err)
			continue
		}
		c.bus.Publish(env.Event, env.Data)
	}
}

func (c *Channel) heartbeat(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			raw, _ := json.Marshal(time.Now().UnixMilli())
			c.wmu.Lock()
			err := conn.WriteJSON(Envelope{Event: EventPing, Data: raw})
			c.wmu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// handleClose runs on the read loop after a socket error. A generation
// mismatch means Disconnect or a newer Connect already superseded this
// connection, in which case nothing is scheduled.
func (c *Channel) handleClose(gen uint64, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.log.Warn("websocket closed", "board", c.boardID, "error", cause)
	c.closeConnLocked()
	c.state = StateClosed
	c.scheduleReconnectLocked()
}

func (c *Channel) scheduleReconnectLocked() {
	delay := c.policy.NextBackOff()
	if delay == backoff.Stop {
		c.log.Warn("websocket reconnect exhausted", "board", c.boardID)
		return
	}
	gen := c.gen
	c.retry = time.AfterFunc(delay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen || c.boardID == "" || c.state != StateClosed {
			return
		}
		if err := c.dialLocked(); err != nil {
			c.log.Warn("websocket reconnect failed", "board", c.boardID, "error", err)
		}
	})
}

func (c *Channel) closeConnLocked() {
	if c.stopPing != nil {
		close(c.stopPing)
		c.stopPing = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Channel) teardownLocked() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.closeConnLocked()
}
