/*
Package chat contains the core logic for room sessions.

This file defines the Moderation component: the per-room ban cache mirroring
the persisted ban list, and the role checks behind every moderation action.
The cache is advisory; the persisted room record is authoritative.
*/
package chat

import (
	"context"
	"errors"
	"sync"

	"chatrelay/internal/app/store"
)

// ModAction identifies a moderation action for permission checks.
type ModAction int

const (
	ActionKick ModAction = iota
	ActionBan
	ActionPromoteModerator
	// owner-only actions
	ActionPromoteAdmin
	ActionDeleteRoom
)

// Moderation tracks per-room bans with a fast-path in-memory mirror of the
// persisted ban list, and answers role-based permission questions.
type Moderation struct {
	rooms store.Rooms

	mu   sync.RWMutex
	bans map[string]map[string]struct{} // room -> identity
}

// NewModeration constructs a Moderation over the given room collection.
func NewModeration(rooms store.Rooms) *Moderation {
	return &Moderation{
		rooms: rooms,
		bans:  make(map[string]map[string]struct{}),
	}
}

// IsBanned reports whether the identity is banned from the room. The cache is
// consulted first; a miss falls through to the authoritative store read and
// refreshes the cache. A store failure is returned as-is: callers deciding
// admission must fail closed rather than admit a possibly-banned user.
func (m *Moderation) IsBanned(ctx context.Context, room, identity string) (bool, error) {
	m.mu.RLock()
	_, cached := m.bans[room][identity]
	m.mu.RUnlock()

	if cached {
		return true, nil
	}

	return m.checkStore(ctx, room, identity)
}

// CheckBanned always reads the persisted room record, bypassing the cache.
// Joins use this so a ban completed just before the join can never be missed
// through a stale mirror.
func (m *Moderation) CheckBanned(ctx context.Context, room, identity string) (bool, error) {
	return m.checkStore(ctx, room, identity)
}

func (m *Moderation) checkStore(ctx context.Context, room, identity string) (bool, error) {
	rec, err := m.rooms.GetByName(ctx, room)
	if errors.Is(err, store.ErrNotFound) {
		// Unknown room carries no ban.
		return false, nil
	}
	if err != nil {
		return false, err
	}

	m.refresh(room, rec.Banned)

	for _, banned := range rec.Banned {
		if banned == identity {
			return true, nil
		}
	}
	return false, nil
}

// refresh replaces the cached ban set for the room.
func (m *Moderation) refresh(room string, banned []string) {
	set := make(map[string]struct{}, len(banned))
	for _, b := range banned {
		set[b] = struct{}{}
	}

	m.mu.Lock()
	m.bans[room] = set
	m.mu.Unlock()
}

// Ban persists the identity into the room's banned set (idempotent) and
// updates the cache from the returned record.
func (m *Moderation) Ban(ctx context.Context, room, identity string) error {
	rec, err := m.rooms.AddBan(ctx, room, identity)
	if err != nil {
		return err
	}
	m.refresh(room, rec.Banned)
	return nil
}

// Unban removes the identity from the room's persisted banned set and updates
// the cache.
func (m *Moderation) Unban(ctx context.Context, room, identity string) error {
	rec, err := m.rooms.RemoveBan(ctx, room, identity)
	if err != nil {
		return err
	}
	m.refresh(room, rec.Banned)
	return nil
}

// Forget drops the cached ban set for a room, e.g. after room deletion.
func (m *Moderation) Forget(room string) {
	m.mu.Lock()
	delete(m.bans, room)
	m.mu.Unlock()
}

// CanModerate reports whether the actor may perform the action in the room.
// The room creator may do anything. Admins may do anything except owner-only
// actions (promote-to-admin, delete-room). Moderators may kick, ban, and
// promote to moderator.
func CanModerate(room *store.Room, actor string, action ModAction) bool {
	if room.CreatedBy == actor {
		return true
	}

	switch action {
	case ActionPromoteAdmin, ActionDeleteRoom:
		return false
	}

	for _, admin := range room.Admins {
		if admin == actor {
			return true
		}
	}

	switch action {
	case ActionKick, ActionBan, ActionPromoteModerator:
		for _, mod := range room.Moderators {
			if mod == actor {
				return true
			}
		}
	}

	return false
}
