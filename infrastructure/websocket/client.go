package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 64
)

// Client is one websocket connection watching one room. The server only
// pushes; anything the peer sends is read and discarded to keep pongs and
// close frames flowing.
type Client struct {
	conn   *websocket.Conn
	send   chan *WSMessage
	UserID string
	RoomID string
	ID     string

	logger *logger.Logger

	mu       sync.Mutex
	finished bool
	closed   chan struct{}
	once     sync.Once
}

func NewClient(conn *websocket.Conn, id, userID, roomID string, logger *logger.Logger) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan *WSMessage, sendBufferSize),
		ID:     id,
		UserID: userID,
		RoomID: roomID,
		logger: logger,
		closed: make(chan struct{}),
	}
}

// Enqueue hands msg to the write pump without blocking. It reports false when
// the buffer is full or the client is finishing.
func (c *Client) Enqueue(msg *WSMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finished {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Finish lets the write pump flush what is queued, send a close frame and
// stop. Later Enqueue calls are dropped.
func (c *Client) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.finished {
		c.finished = true
		close(c.send)
	}
}

func (c *Client) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// Close tears the connection down immediately.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// ReadPump blocks until the peer goes away.
func (c *Client) ReadPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Debug("ws read error",
					zap.String("clientID", c.ID),
					zap.String("roomID", c.RoomID),
					zap.Error(err))
			}
			return
		}
	}
}

// WritePump owns all writes to the connection. onSent runs after every
// delivered message.
func (c *Client) WritePump(onSent func(*WSMessage)) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("ws write error", zap.String("clientID", c.ID), zap.Error(err))
				return
			}
			if onSent != nil {
				onSent(msg)
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("ws ping error", zap.String("clientID", c.ID), zap.Error(err))
				return
			}

		case <-c.closed:
			return
		}
	}
}
