package chat

import (
	"context"
	"errors"

	"chatrelay/internal/app/store"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
)

// Kick removes an identity from a room without persisting anything: the target
// is told first, then detached, then the room is told. A kicked identity may
// rejoin; a ban is the durable form.
func (g *Gateway) Kick(ctx context.Context, connID string, p KickPayload) {
	if p.Username == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}
	room, ok := g.authorizeModeration(ctx, connID, p.Room, p.By, ActionKick)
	if !ok {
		return
	}

	lock := g.roomLock(room.Name)
	lock.Lock()
	g.detach(room.Name, p.Username, EvtKicked, KickedPayload{Room: room.Name, By: p.By})
	lock.Unlock()

	g.transport.ToRoom(room.Name, EvtUserKicked, ModeratedPayload{Username: p.Username, By: p.By})
	g.transport.ToRoom(room.Name, EvtUpdateUsers, g.presence.List(room.Name))
}

// Ban persists the ban first, then removes the target the way a kick does and
// closes its socket. Ordering matters: once the room sees the removal the ban
// is already durable, so an immediate rejoin attempt is refused.
func (g *Gateway) Ban(ctx context.Context, connID string, p KickPayload) {
	if p.Username == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}
	room, ok := g.authorizeModeration(ctx, connID, p.Room, p.By, ActionBan)
	if !ok {
		return
	}

	lock := g.roomLock(room.Name)
	lock.Lock()
	if err := g.moderation.Ban(ctx, room.Name, p.Username); err != nil {
		lock.Unlock()
		g.storeFailure(connID, "banUser", err)
		return
	}
	conn, connected := g.detach(room.Name, p.Username, EvtBanned, KickedPayload{Room: room.Name, By: p.By})
	lock.Unlock()

	if connected {
		g.transport.CloseConn(conn, "banned from room")
	}
	g.transport.ToRoom(room.Name, EvtUserBanned, ModeratedPayload{Username: p.Username, By: p.By})
	g.transport.ToRoom(room.Name, EvtUpdateUsers, g.presence.List(room.Name))
}

// Promote grants a role in a room. Moderators and above may mint other
// moderators; minting admins is creator-only.
func (g *Gateway) Promote(ctx context.Context, connID string, p PromotePayload) {
	if p.Username == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}
	var action ModAction
	switch p.Role {
	case store.RoleAdmin:
		action = ActionPromoteAdmin
	case store.RoleModerator:
		action = ActionPromoteModerator
	default:
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}

	room, ok := g.authorizeModeration(ctx, connID, p.Room, p.By, action)
	if !ok {
		return
	}

	lock := g.roomLock(room.Name)
	lock.Lock()
	updated, err := g.rooms.Promote(ctx, room.Name, p.Username, p.Role)
	lock.Unlock()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return
		}
		g.storeFailure(connID, "promoteUser", err)
		return
	}
	if updated == nil {
		return
	}

	g.transport.ToRoom(room.Name, EvtUserPromoted, PromotedPayload{
		Username: p.Username,
		Role:     p.Role,
		By:       p.By,
	})
}

// authorizeModeration loads the room and checks the actor's privilege for the
// action. A missing room is silent (nothing to moderate); an insufficient role
// is a rejection to the actor only.
func (g *Gateway) authorizeModeration(ctx context.Context, connID, roomName, actor string, action ModAction) (*store.Room, bool) {
	if roomName == "" || actor == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return nil, false
	}

	room, err := g.rooms.GetByName(ctx, roomName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false
		}
		g.storeFailure(connID, "getRoom", err)
		return nil, false
	}
	if !CanModerate(room, actor, action) {
		logx.Warn("moderation denied", "room", roomName, "actor", actor)
		g.sendError(connID, errs.NewError(errs.ErrPermissionDenied))
		return nil, false
	}
	return room, true
}

// detach tells the target it is out, then removes it from the transport room
// and the presence registry. It reports the target's connection, if it had
// one. Callers hold the room lock.
func (g *Gateway) detach(room, username string, event EventName, payload any) (string, bool) {
	conn, ok := g.presence.ConnForUser(room, username)
	if ok {
		g.transport.ToConn(conn, event, payload)
		g.transport.LeaveRoom(conn, room)
	}
	g.presence.RemoveByName(room, username)
	return conn, ok
}
