package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/ikkim/shopcore-backend/pkg/logger"
)

// The order feed is server push; inbound frames are pings and are small.
const (
	writeTimeout    = 10 * time.Second
	idleTimeout     = 60 * time.Second
	keepalivePeriod = idleTimeout * 9 / 10 // must stay below idleTimeout
	maxInboundBytes = 4 * 1024
)

// Conn is the transport behind a Client.
type Conn struct {
	ws *websocket.Conn
}

func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

func (c *Conn) write(kind int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(kind, payload)
}

// Serve pushes queued events and reads client frames until either side
// closes. It returns once the session is unregistered.
func (c *Client) Serve() {
	go c.pushEvents()
	c.readFrames()
}

func (c *Client) readFrames() {
	ws := c.Conn.ws
	defer func() {
		c.Hub.Unregister(c)
		_ = ws.Close()
	}()

	ws.SetReadLimit(maxInboundBytes)
	_ = ws.SetReadDeadline(time.Now().Add(idleTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Order feed closed unexpectedly", map[string]interface{}{
					"user_id": c.UserID,
					"error":   err.Error(),
				})
			}
			return
		}
		c.Hub.HandleClientMessage(c, frame)
	}
}

// pushEvents drains Send. The hub closes Send when it drops the session.
func (c *Client) pushEvents() {
	keepalive := time.NewTicker(keepalivePeriod)
	defer func() {
		keepalive.Stop()
		_ = c.Conn.ws.Close()
	}()

	for {
		select {
		case payload, open := <-c.Send:
			if !open {
				_ = c.Conn.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.write(websocket.TextMessage, payload); err != nil {
				logger.Warn("Order feed write failed", map[string]interface{}{
					"user_id": c.UserID,
					"error":   err.Error(),
				})
				return
			}
		case <-keepalive.C:
			if err := c.Conn.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
