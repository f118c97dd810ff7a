package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/GriffinCanCode/nuitester/internal/domain/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// editedHtml carries a whole document
	maxMessageSize = 8 << 20
)

// conn serializes writes to one socket. gorilla allows one concurrent
// writer, and workspace deliveries arrive from any goroutine.
type conn struct {
	id string
	ws *websocket.Conn

	mu        sync.Mutex
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn) *conn {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &conn{id: uuid.NewString(), ws: ws}
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

func (c *conn) writeText(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// shutdown says goodbye with a close frame and closes the socket.
func (c *conn) shutdown(code int, reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		c.mu.Unlock()
		_ = c.ws.Close()
	})
}

// keepAlive pings until stop is called. When done fires the socket is shut
// down, which ends the caller's read loop.
func (c *conn) keepAlive(done <-chan struct{}) (stop func()) {
	quit := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.ping(); err != nil {
					return
				}
			case <-done:
				c.shutdown(websocket.CloseGoingAway, "workspace closed")
				return
			case <-quit:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(quit) }) }
}

// bridgeConn is the sandbox side of a workspace.
type bridgeConn struct {
	*conn
	onSend func(kind protocol.Kind)
}

// Deliver implements workspace.Bridge.
func (b bridgeConn) Deliver(msg protocol.Message) error {
	raw, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if err := b.writeText(raw); err != nil {
		return err
	}
	if b.onSend != nil {
		b.onSend(msg.Kind())
	}
	return nil
}
