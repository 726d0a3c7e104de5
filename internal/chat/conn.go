package chat

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to the peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size allowed from the peer.
	maxMessageSize = 4096
)

// Conn adapts one websocket connection to the Sink contract. Send only
// enqueues; the writer goroutine owns all writes to the socket, so frames
// reach the peer in the order they were enqueued.
type Conn struct {
	id     string
	ws     *websocket.Conn
	logger *slog.Logger

	mu     sync.Mutex
	out    chan any
	closed bool
}

func NewConn(ws *websocket.Conn, buffer int, logger *slog.Logger) *Conn {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Conn{
		id:     id,
		ws:     ws,
		logger: logger.With("conn_id", id),
		out:    make(chan any, buffer),
	}
}

// Send enqueues a frame for the writer goroutine. A full or closed queue
// means the peer is treated as disconnected.
func (c *Conn) Send(frame any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrPeerUnreachable
	}
	select {
	case c.out <- frame:
		return nil
	default:
		return ErrPeerUnreachable
	}
}

// CloseSend stops the writer once the queue drains. Idempotent; both the
// registry (on unregister and shutdown) and the transport call it.
func (c *Conn) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.out)
	}
}

// writePump drains the outbound queue to the peer and keeps the connection
// alive with periodic pings. One writer per connection.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case frame, ok := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) configureRead() {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// readFrame blocks for the next frame from the peer. Any error, including a
// clean close, means the connection is done.
func (c *Conn) readFrame() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

// closeWith sends a close frame carrying a reason, then drops the connection.
// WriteControl is safe to call concurrently with the writer goroutine.
func (c *Conn) closeWith(code int, reason string) {
	deadline := time.Now().Add(writeWait)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = c.ws.Close()
}
