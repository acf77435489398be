package chat

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/metrics"
)

// Envelope is the wire frame for every event in both directions.
type Envelope struct {
	Event   EventName       `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hub is the websocket Transport: it tracks live connections and their room
// membership and fans serialized events into per-client send queues. A client
// whose queue is full has the frame dropped; slow consumers never stall a
// broadcast.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client

	closed bool
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// Register adds a connected client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		c.closeSend()
		return
	}
	h.clients[c.ID] = c
	metrics.SessionOpened()
}

// Unregister removes a client from the hub and every room it joined, and
// closes its send queue.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	delete(h.clients, connID)
	for room, members := range h.rooms {
		if _, in := members[connID]; in {
			delete(members, connID)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	c.closeSend()
	metrics.SessionClosed()
}

// JoinRoom adds the connection to a room's delivery set.
func (h *Hub) JoinRoom(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[connID] = c
}

// LeaveRoom removes the connection from a room's delivery set.
func (h *Hub) LeaveRoom(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// ToConn delivers one event to one connection.
func (h *Hub) ToConn(connID string, event EventName, payload any) {
	frame, ok := encodeFrame(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	c, found := h.clients[connID]
	h.mu.RUnlock()
	if found {
		c.enqueue(event, frame)
	}
}

// ToRoom delivers an event to every connection joined to the room.
func (h *Hub) ToRoom(room string, event EventName, payload any) {
	h.toRoom(room, "", event, payload)
}

// ToRoomExcept delivers to every room connection except one.
func (h *Hub) ToRoomExcept(room, exceptConn string, event EventName, payload any) {
	h.toRoom(room, exceptConn, event, payload)
}

func (h *Hub) toRoom(room, exceptConn string, event EventName, payload any) {
	frame, ok := encodeFrame(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for id, c := range h.rooms[room] {
		if id == exceptConn {
			continue
		}
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.enqueue(event, frame)
	}
}

// ToAll delivers an event to every connection on the hub.
func (h *Hub) ToAll(event EventName, payload any) {
	frame, ok := encodeFrame(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		c.enqueue(event, frame)
	}
}

// CloseConn sends a close frame with an application close code and tears the
// connection down. The read pump unwinds through its normal disconnect path.
func (h *Hub) CloseConn(connID, reason string) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	msg := websocket.FormatCloseMessage(closeCodeRemoved, reason)
	deadline := time.Now().Add(writeWait)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		logx.Warn("failed to send close frame", "conn_id", connID, "error", err.Error())
	}
	_ = c.conn.Close()
}

// Shutdown closes every connection and refuses new registrations.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	all := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		all = append(all, c)
	}
	h.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, c := range all {
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = c.conn.Close()
	}
}

func encodeFrame(event EventName, payload any) ([]byte, bool) {
	body, err := json.Marshal(payload)
	if err != nil {
		logx.Error(err, "failed to marshal event payload", "event", string(event))
		return nil, false
	}
	frame, err := json.Marshal(Envelope{Event: event, Payload: body})
	if err != nil {
		logx.Error(err, "failed to marshal event envelope", "event", string(event))
		return nil, false
	}
	return frame, true
}
