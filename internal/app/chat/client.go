package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/metrics"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod is how often pings are sent. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxInboundSize bounds a single inbound frame.
	maxInboundSize = 64 << 10

	// sendQueueSize is the per-client outbound buffer.
	sendQueueSize = 256

	// closeCodeRemoved is the application close code sent when the server
	// forcibly removes a connection.
	closeCodeRemoved = 4001
)

// Client is one websocket connection bound to the hub and the gateway.
type Client struct {
	// ID is the connection id, generated at upgrade time. It is the presence
	// registry's connection key.
	ID string

	// Username is the authenticated identity from the access token.
	Username string

	hub     *Hub
	gateway *Gateway
	conn    *websocket.Conn

	// sendMu orders enqueue against closeSend. The hub releases its own lock
	// before enqueueing, so a delivery can race the teardown of the same
	// client; the stopped flag keeps it off the closed channel.
	sendMu  sync.Mutex
	stopped bool
	send    chan []byte
}

// NewClient binds an upgraded connection to the hub and gateway.
func NewClient(id, username string, conn *websocket.Conn, hub *Hub, gateway *Gateway) *Client {
	return &Client{
		ID:       id,
		Username: username,
		hub:      hub,
		gateway:  gateway,
		conn:     conn,
		send:     make(chan []byte, sendQueueSize),
	}
}

// enqueue puts a serialized frame on the client's send queue, dropping the
// frame when the queue is full or the client is already torn down.
func (c *Client) enqueue(event EventName, frame []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.stopped {
		return
	}
	select {
	case c.send <- frame:
		metrics.EventEmitted(string(event))
	default:
		logx.Warn("send queue full, dropping event",
			"conn_id", c.ID,
			"event", string(event),
		)
	}
}

// closeSend shuts the send queue exactly once. Frames enqueued after the
// close are dropped instead of hitting the closed channel.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.stopped {
		return
	}
	c.stopped = true
	close(c.send)
}

// ReadPump reads inbound frames and dispatches them to the gateway until the
// connection drops, then unwinds the session: hub unregistration first so no
// further frames are queued, then the gateway's disconnect handling.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c.ID)
		c.gateway.Disconnect(ctx, c.ID)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logx.Warn("unexpected socket close", "conn_id", c.ID, "error", err.Error())
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			logx.Warn("undecodable frame dropped", "conn_id", c.ID)
			continue
		}
		c.gateway.HandleEvent(ctx, c.ID, env.Event, env.Payload)
	}
}

// WritePump drains the send queue to the socket and keeps the connection alive
// with periodic pings. It exits when the queue is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
