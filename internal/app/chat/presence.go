/*
Package chat contains the core logic for room sessions: the presence registry,
moderation state, message rate limiting, and the gateway that orchestrates
inbound client events into store mutations and fan-out.

This file defines the Session record and the Presence registry, the in-memory
map from room name to the set of live sessions. Presence is never persisted; a
process restart discards it.
*/
package chat

import (
	"sync"
	"time"

	"chatrelay/internal/app/store"
)

// Session is one live connection's presence record within a room.
type Session struct {
	// ConnID is the opaque connection identifier used for targeted delivery.
	ConnID string `json:"socketId"`

	// Username is the display name, unique per room among active sessions.
	// When two connections join under the same name, the later registration
	// wins for name-keyed lookups.
	Username string `json:"name"`

	Gender  string `json:"gender,omitempty"`
	Country string `json:"country,omitempty"`
	Avatar  string `json:"avatar,omitempty"`

	Active bool                 `json:"isActive"`
	Status store.PresenceStatus `json:"status"`
	Role   store.Role           `json:"role,omitempty"`

	// registeredAt orders sessions for the last-join-wins rule.
	registeredAt time.Time
}

// Presence maps room names to the sessions currently connected to them.
// All access is serialized by an internal mutex; snapshots returned by List
// are copies and carry no validity guarantee after the call returns.
type Presence struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Session // room -> connID -> session
	seq   int64
}

// NewPresence returns an empty presence registry.
func NewPresence() *Presence {
	return &Presence{
		rooms: make(map[string]map[string]*Session),
	}
}

// Add registers the session in the room, keyed by its connection identifier.
// Adding an already-registered connection is a no-op, not an error.
func (p *Presence) Add(room string, s Session) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sessions, ok := p.rooms[room]
	if !ok {
		sessions = make(map[string]*Session)
		p.rooms[room] = sessions
	}

	if _, exists := sessions[s.ConnID]; exists {
		return
	}

	p.seq++
	s.registeredAt = time.Unix(0, p.seq) // strictly increasing, clock-independent
	sessions[s.ConnID] = &s
}

// RemoveByName removes every session in the room with the given display name.
// No-op if none match.
func (p *Presence) RemoveByName(room, username string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for connID, s := range p.rooms[room] {
		if s.Username == username {
			delete(p.rooms[room], connID)
		}
	}
	p.dropRoomIfEmpty(room)
}

// RemoveConn removes the session with the given connection identifier from the
// room. No-op if absent.
func (p *Presence) RemoveConn(room, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.rooms[room], connID)
	p.dropRoomIfEmpty(room)
}

// dropRoomIfEmpty is called with the lock held.
func (p *Presence) dropRoomIfEmpty(room string) {
	if len(p.rooms[room]) == 0 {
		delete(p.rooms, room)
	}
}

// List returns a snapshot of the room's live sessions. The slice is a copy;
// order is unspecified apart from being stable for equal inputs.
func (p *Presence) List(room string) []Session {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Session, 0, len(p.rooms[room]))
	for _, s := range p.rooms[room] {
		out = append(out, *s)
	}
	return out
}

// FindByConn scans all rooms for the session with the given connection
// identifier. The scan is linear in the number of rooms, which stays small in
// a single-process deployment.
func (p *Presence) FindByConn(connID string) (room string, session Session, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for r, sessions := range p.rooms {
		if s, found := sessions[connID]; found {
			return r, *s, true
		}
	}
	return "", Session{}, false
}

// ConnForUser returns the connection identifier addressed by the display name
// in the room. When several sessions share the name, the most recently
// registered one wins.
func (p *Presence) ConnForUser(room, username string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var (
		best   *Session
		connID string
	)
	for id, s := range p.rooms[room] {
		if s.Username != username {
			continue
		}
		if best == nil || s.registeredAt.After(best.registeredAt) {
			best = s
			connID = id
		}
	}
	return connID, best != nil
}
