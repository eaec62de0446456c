package kanban

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsHub is a test websocket endpoint that records every accepted
// connection and lets tests push frames or slam the socket shut.
type wsHub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*websocket.Conn
	dials []string // request URI of each accepted dial
	recv  chan Envelope
}

func newWSHub(t *testing.T) (*wsHub, *httptest.Server) {
	h := &wsHub{recv: make(chan Envelope, 16)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.mu.Lock()
		h.conns = append(h.conns, conn)
		h.dials = append(h.dials, r.URL.RequestURI())
		h.mu.Unlock()
		go func() {
			for {
				var env Envelope
				if err := conn.ReadJSON(&env); err != nil {
					return
				}
				h.recv <- env
			}
		}()
	}))
	t.Cleanup(srv.Close)
	return h, srv
}

func (h *wsHub) dialCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *wsHub) lastDial() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dials[len(h.dials)-1]
}

func (h *wsHub) push(t *testing.T, env Envelope) {
	h.mu.Lock()
	conn := h.conns[len(h.conns)-1]
	h.mu.Unlock()
	require.NoError(t, conn.WriteJSON(env))
}

func (h *wsHub) dropLast() {
	h.mu.Lock()
	conn := h.conns[len(h.conns)-1]
	h.mu.Unlock()
	conn.Close()
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/boards"
}

func shortBackoff() ChannelOption {
	return WithBackoff(func() backoff.BackOff {
		return backoff.NewConstantBackOff(20 * time.Millisecond)
	})
}

func TestChannelConnect(t *testing.T) {
	hub, srv := newWSHub(t)
	bus := NewBus(nil)
	ch := NewChannel(wsURL(srv), "tok123", bus, nil, shortBackoff())
	defer ch.Disconnect()

	require.NoError(t, ch.Connect("b7"))

	t.Run("dial carries board path and token query", func(t *testing.T) {
		assert.Equal(t, "/boards/b7?token=tok123", hub.lastDial())
		assert.Equal(t, StateOpen, ch.State())
		assert.Equal(t, "b7", ch.BoardID())
	})

	t.Run("connect to the same board is a no-op", func(t *testing.T) {
		require.NoError(t, ch.Connect("b7"))
		assert.Equal(t, 1, hub.dialCount())
	})

	t.Run("incoming envelopes reach the bus", func(t *testing.T) {
		got := make(chan json.RawMessage, 1)
		bus.Subscribe("card_created", func(data json.RawMessage) { got <- data })

		hub.push(t, Envelope{Event: "card_created", Data: json.RawMessage(`{"id":"c1"}`)})

		select {
		case data := <-got:
			assert.JSONEq(t, `{"id":"c1"}`, string(data))
		case <-time.After(2 * time.Second):
			t.Fatal("envelope never arrived")
		}
	})

	t.Run("malformed frames are dropped without killing the connection", func(t *testing.T) {
		hub.mu.Lock()
		conn := hub.conns[len(hub.conns)-1]
		hub.mu.Unlock()
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

		got := make(chan struct{}, 1)
		bus.Subscribe("list_created", func(json.RawMessage) { got <- struct{}{} })
		hub.push(t, Envelope{Event: "list_created", Data: json.RawMessage(`{}`)})

		select {
		case <-got:
		case <-time.After(2 * time.Second):
			t.Fatal("connection did not survive the malformed frame")
		}
	})
}

func TestChannelSend(t *testing.T) {
	hub, srv := newWSHub(t)
	ch := NewChannel(wsURL(srv), "tok", NewBus(nil), nil, shortBackoff())
	defer ch.Disconnect()

	t.Run("dropped silently when closed", func(t *testing.T) {
		ch.Send("card_created", map[string]any{"id": "c1"})
		assert.Equal(t, 0, hub.dialCount())
	})

	t.Run("delivered when open", func(t *testing.T) {
		require.NoError(t, ch.Connect("b1"))
		ch.Send("card_created", map[string]any{"id": "c1"})

		select {
		case env := <-hub.recv:
			assert.Equal(t, "card_created", env.Event)
			assert.JSONEq(t, `{"id":"c1"}`, string(env.Data))
		case <-time.After(2 * time.Second):
			t.Fatal("send never arrived")
		}
	})
}

func TestChannelReconnect(t *testing.T) {
	t.Run("reconnects once per close to the same board", func(t *testing.T) {
		hub, srv := newWSHub(t)
		ch := NewChannel(wsURL(srv), "tok", NewBus(nil), nil, shortBackoff())
		defer ch.Disconnect()

		require.NoError(t, ch.Connect("b1"))
		hub.dropLast()

		require.Eventually(t, func() bool { return hub.dialCount() == 2 },
			2*time.Second, 10*time.Millisecond)
		assert.Equal(t, "/boards/b1?token=tok", hub.lastDial())
		assert.Eventually(t, func() bool { return ch.State() == StateOpen },
			2*time.Second, 10*time.Millisecond)
	})

	t.Run("no reconnect after disconnect", func(t *testing.T) {
		hub, srv := newWSHub(t)
		ch := NewChannel(wsURL(srv), "tok", NewBus(nil), nil, shortBackoff())

		require.NoError(t, ch.Connect("b1"))
		ch.Disconnect()

		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, 1, hub.dialCount())
		assert.Equal(t, StateClosed, ch.State())
	})

	t.Run("switching boards abandons the old connection", func(t *testing.T) {
		hub, srv := newWSHub(t)
		ch := NewChannel(wsURL(srv), "tok", NewBus(nil), nil, shortBackoff())
		defer ch.Disconnect()

		require.NoError(t, ch.Connect("b1"))
		require.NoError(t, ch.Connect("b2"))

		assert.Equal(t, "/boards/b2?token=tok", hub.lastDial())
		assert.Equal(t, "b2", ch.BoardID())

		// the stale b1 socket closing must not trigger a b1 redial
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, 2, hub.dialCount())
	})
}
