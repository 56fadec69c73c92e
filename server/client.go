package main

import (
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 512
	sendBufSize       = 256
	maxMessagesPerSec = 5
)

// frame is one queued websocket message
type frame struct {
	kind int // websocket.TextMessage or websocket.BinaryMessage
	data []byte
}

// Client is one spectator's WebSocket connection. Spectators only listen;
// anything they send is discarded, and flooding gets them disconnected.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan frame
	battleID   string
	remoteAddr string
	limiter    *rate.Limiter
}

// NewClient creates a new Client watching battleID
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr, battleID string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan frame, sendBufSize),
		battleID:   battleID,
		remoteAddr: remoteAddr,
		limiter:    rate.NewLimiter(maxMessagesPerSec, maxMessagesPerSec),
	}
}

// ReadPump drains the connection so pongs and close frames get processed
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Release(c.remoteAddr)
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stop:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug().Err(err).Str("ip", c.remoteAddr).Msg("spectator read")
			}
			return
		}
		if !c.limiter.Allow() {
			c.hub.log.Warn().Str("ip", c.remoteAddr).Str("battle", c.battleID).Msg("spectator flooding, disconnecting")
			return
		}
	}
}

// WritePump delivers queued frames and keeps the connection alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(f.kind, f.data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendRaw queues pre-marshaled JSON as a text frame
func (c *Client) SendRaw(data []byte) {
	c.enqueue(frame{kind: websocket.TextMessage, data: data})
}

// SendBinary queues a msgpack payload as a binary frame
func (c *Client) SendBinary(data []byte) {
	c.enqueue(frame{kind: websocket.BinaryMessage, data: data})
}

// enqueue drops the frame when the spectator can't keep up
func (c *Client) enqueue(f frame) {
	select {
	case c.send <- f:
	default:
		c.hub.log.Debug().Str("ip", c.remoteAddr).Msg("spectator too slow, frame dropped")
	}
}
