package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tandarun/coach/domain"
	"github.com/tandarun/coach/utils/log"
	"go.uber.org/zap"
)

// Client owns one browser connection: a read pump feeding the inbound
// frame channel, a write pump draining the outbound one. Frames are
// delivered strictly in the order they are queued.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	inbound chan []byte

	incomingPing chan string
	ctx          context.Context
	cancel       context.CancelFunc
	mu           sync.RWMutex
	closed       bool

	userID string
	access domain.AccessLevel
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 8 * 1024
)

// NewClient creates a new WebSocket client.
func NewClient(conn *websocket.Conn, userID string, access domain.AccessLevel) *Client {
	ctx := context.TODO()
	ctx = context.WithValue(ctx, "user_id", userID)
	ctx = context.WithValue(ctx, "access_level", string(access))
	ctx = context.WithValue(ctx, "session_id", uuid.NewString())
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		conn:         conn,
		send:         make(chan []byte, 256),
		inbound:      make(chan []byte, 16),
		incomingPing: make(chan string, 1),
		ctx:          ctx,
		cancel:       cancel,
		userID:       userID,
		access:       access,
	}
}

func (c *Client) Run() {
	c.setupHandlers()

	go c.Ping()
	go c.readPump()
	go c.writePump()
}

// setupHandlers configures all WebSocket control handlers.
func (c *Client) setupHandlers() {
	c.conn.SetCloseHandler(func(code int, text string) error {
		log.WithCtx(c.ctx).Debug("WebSocket connection closed", zap.Int("code", code), zap.String("text", text))
		c.Close()
		return nil
	})

	c.conn.SetPingHandler(func(appData string) error {
		select {
		case c.incomingPing <- appData:
		default:
		}
		return c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	c.conn.SetPongHandler(func(appData string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
}

// Close gracefully closes the client connection. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}

	if c.conn != nil {
		c.conn.Close()
	}
}

// IsClosed returns true if the client connection is closed.
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Context returns the client's context. It is cancelled when the
// connection goes away.
func (c *Client) Context() context.Context {
	return c.ctx
}

// UserID returns the authenticated user id, empty for anonymous
// connections.
func (c *Client) UserID() string {
	return c.userID
}

// Access returns the connection's access level.
func (c *Client) Access() domain.AccessLevel {
	return c.access
}

// Inbound returns the channel of raw client frames. It is closed when
// the read pump exits.
func (c *Client) Inbound() <-chan []byte {
	return c.inbound
}

// SendQueue returns the outbound frame queue drained by the write pump.
func (c *Client) SendQueue() chan<- []byte {
	return c.send
}

func (c *Client) Ping() {
	for {
		select {
		case <-c.incomingPing:
		case <-time.After(pingPeriod):
			if c.IsClosed() {
				return
			}

			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()

			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				log.WithCtx(c.ctx).Error("Failed to send ping", zap.Error(err))
				c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// readPump feeds raw inbound frames to the chat handler.
func (c *Client) readPump() {
	defer func() {
		close(c.inbound)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.WithCtx(c.ctx).Error("WebSocket error", zap.Error(err))
			}
			return
		}

		select {
		case c.inbound <- message:
		case <-c.ctx.Done():
			return
		}
	}
}

// writePump drains the outbound queue. Writes preserve queue order, so
// frames reach the client exactly as the handler produced them.
func (c *Client) writePump() {
	defer c.Close()

	for {
		select {
		case message := <-c.send:
			if c.IsClosed() {
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.WithCtx(c.ctx).Error("Failed to write message", zap.Error(err))
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// SendMessage queues a message for the client. Used for out-of-band
// notifications (hub broadcasts); the chat handler writes to the send
// queue directly.
func (c *Client) SendMessage(message []byte) error {
	if c.IsClosed() {
		return websocket.ErrCloseSent
	}

	select {
	case c.send <- message:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		// Queue full: the client stopped draining, drop it.
		c.Close()
		return websocket.ErrCloseSent
	}
}
