package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Hub tracks every open WebSocket connection process-wide so the liveness
// supervisor can sweep them. Session membership lives in the quiz registry,
// not here: the hub deliberately does not know which session a connection
// belongs to.
type Hub struct {
	mu          sync.RWMutex
	connections map[*Connection]struct{}
	logger      zerolog.Logger
}

// NewHub creates an empty connection hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[*Connection]struct{}),
		logger:      logger,
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn] = struct{}{}
}

// Unregister removes a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, conn)
}

// Len reports the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// ForEach calls fn for every registered connection. The snapshot is taken
// under the read lock so fn may register or unregister connections.
func (h *Hub) ForEach(fn func(*Connection)) {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.connections))
	for c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		fn(c)
	}
}

// CloseAll terminates every registered connection.
func (h *Hub) CloseAll() {
	h.ForEach(func(c *Connection) {
		c.Close()
	})
}

// Connection wraps a WebSocket connection with a buffered send queue.
// All writes go through the write pump, which gives strict per-connection
// ordering and keeps a slow peer from blocking message handling.
type Connection struct {
	conn   *websocket.Conn
	sendCh chan Message
	pingCh chan struct{}
	mu     sync.Mutex
	closed bool
	alive  bool
	logger zerolog.Logger
}

// NewConnection wraps a WebSocket connection. It starts out alive so the
// first supervisor sweep probes it instead of killing it.
func NewConnection(conn *websocket.Conn, logger zerolog.Logger) *Connection {
	return &Connection{
		conn:   conn,
		sendCh: make(chan Message, 256),
		pingCh: make(chan struct{}, 1),
		alive:  true,
		logger: logger,
	}
}

// Send queues a message for delivery. Delivery is fire-and-forget: a full
// queue or closed connection is reported to the caller but never blocks.
func (c *Connection) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Ping queues a liveness probe. Coalesces if one is already pending.
func (c *Connection) Ping() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.pingCh <- struct{}{}:
	default:
	}
}

// Sweep reports whether the peer confirmed liveness since the last sweep
// and clears the flag for the next cycle.
func (c *Connection) Sweep() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	alive := c.alive
	c.alive = false
	return alive
}

// markAlive records a liveness confirmation from the peer.
func (c *Connection) markAlive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = true
}

// Close shuts down the connection. Safe to call more than once.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.sendCh)
	c.conn.Close()
}

// WritePump drains the send and ping queues onto the wire.
func (c *Connection) WritePump() {
	defer c.conn.Close()

	for {
		select {
		case msg, ok := <-c.sendCh:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn().Err(err).Msg("write error")
				return
			}
		case <-c.pingCh:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn().Err(err).Msg("ping write error")
				return
			}
		}
	}
}

// ReadPump receives messages and calls the handler. Pong frames from the
// peer count as liveness confirmations. Returns when the peer goes away or
// the connection is closed.
func (c *Connection) ReadPump(handler func(Message)) {
	defer c.conn.Close()

	c.conn.SetPongHandler(func(string) error {
		c.markAlive()
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			break
		}

		c.markAlive()

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			// Protocol error: drop with a local diagnostic, no client
			// notification.
			c.logger.Debug().Err(err).Msg("dropping malformed message")
			continue
		}

		handler(msg)
	}
}

var (
	ErrConnectionClosed = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull    = &Error{Code: "send_queue_full", Message: "Send queue is full"}
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
