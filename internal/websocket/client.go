package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tripunite/gateway/internal/domain"
	"github.com/tripunite/gateway/internal/realtime"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer (64KB covers SDP blobs)
	maxMessageSize = 65536

	// Outbound frames buffered per connection
	sendBufferSize = 256
)

// Client is one authenticated WebSocket connection. Its identity is fixed at handshake.
type Client struct {
	id       string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	identity domain.Identity
	mu       sync.RWMutex
	closed   bool
	logger   *slog.Logger
}

// NewClient creates a new client
func NewClient(hub *Hub, conn *websocket.Conn, identity domain.Identity, logger *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:       id,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		identity: identity,
		logger:   logger.With("conn_id", id, "user_id", identity.UserID),
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// Identity returns the user behind the connection.
func (c *Client) Identity() domain.Identity {
	return c.identity
}

// Send queues an encoded frame. It never blocks: a full buffer or a closed connection
// drops the frame and returns false.
func (c *Client) Send(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close stops the write pump. Safe to call more than once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump pumps messages from the WebSocket connection to the hub. Events from one
// connection are handled one at a time in arrival order.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.logger.Warn("websocket read error", "error", err)
				}
				return
			}

			var msg Message
			if err := json.Unmarshal(message, &msg); err != nil || msg.Type == "" {
				c.sendError("", ErrCodeInvalidMessage, "Failed to parse message")
				continue
			}

			c.hub.HandleMessage(ctx, c, &msg)
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendError sends an ERROR event to this connection only
func (c *Client) sendError(event, code, message string) {
	data, err := realtime.Encode(realtime.EventError, realtime.ErrorPayload{
		Event:   event,
		Code:    code,
		Message: message,
	})
	if err != nil {
		return
	}
	if !c.Send(data) {
		c.logger.Warn("client send buffer full, dropping error", "code", code)
	}
}
