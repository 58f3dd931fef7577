package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mise-app/mise-api/internal/logger"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Voice note clips ride the
	// socket base64-encoded, so the limit is generous.
	maxMessageSize = 512 * 1024

	// Outbound queue depth per client. Response audio is dropped, not
	// queued, once this fills.
	sendBuffer = 256
)

// Client is one live cook-mode socket. Outbound messages go through
// Enqueue; the write pump drains the queue onto the wire.
type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	UserID   uint
	RecipeID uint

	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewClient wraps an upgraded connection for the hub's pumps.
func NewClient(hub *Hub, conn *websocket.Conn, userID, recipeID uint) *Client {
	return &Client{
		Hub:      hub,
		Conn:     conn,
		UserID:   userID,
		RecipeID: recipeID,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
}

// Enqueue queues one outbound message and reports whether it was
// accepted. It never blocks: messages are dropped when the client is
// gone or its queue is full. Safe to call from any goroutine,
// including dialogue receive loops that outlive the socket.
func (c *Client) Enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Done is closed once the client is finished. After that every Enqueue
// is a no-op.
func (c *Client) Done() <-chan struct{} { return c.done }

// finish marks the client dead. The send channel is never closed, so a
// racing Enqueue can only drop, not panic.
func (c *Client) finish() {
	c.once.Do(func() { close(c.done) })
}

// Hub tracks live cook-mode clients so the server can count them and
// drain them on shutdown.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]bool
	stopped bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

// register adds a client. Returns false when the hub has already shut
// down, in which case the caller must close the connection itself.
func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()

	logger.Get().Info("cook socket registered",
		zap.Uint("user_id", c.UserID),
		zap.Uint("recipe_id", c.RecipeID),
		zap.Int("active", n),
	)
	return true
}

// unregister removes a client and marks it finished. Idempotent.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	removed := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.finish()
	if removed {
		logger.Get().Info("cook socket unregistered",
			zap.Uint("user_id", c.UserID),
			zap.Uint("recipe_id", c.RecipeID),
			zap.Int("active", n),
		)
	}
}

// Count returns the number of live clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown finishes every client and rejects new registrations. The
// write pumps send close frames, which unwinds the read pumps and
// their session teardown. Safe to call more than once.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.stopped = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.finish()
	}
}

// ReadPump reads messages from the WebSocket connection and hands each
// one to handler. It is intended to run in a per-client goroutine and
// returns when the peer goes away.
func (c *Client) ReadPump(handler func([]byte)) {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
			) {
				logger.Get().Warn("unexpected websocket close",
					zap.Uint("user_id", c.UserID),
					zap.Uint("recipe_id", c.RecipeID),
					zap.Error(err),
				)
			}
			return
		}
		handler(message)
	}
}

// WritePump sends queued messages to the WebSocket connection and
// pings the peer to keep it alive. It is intended to run in a
// per-client goroutine. When the client finishes, the pump writes a
// close frame and closes the connection, which unblocks ReadPump.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
