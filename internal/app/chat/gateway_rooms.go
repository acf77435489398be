package chat

import (
	"context"
	"errors"

	"chatrelay/internal/app/store"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/randx"
)

// CreateRoom creates a new named room with the creator as its first member,
// confirms to the creator and refreshes every client's room list.
func (g *Gateway) CreateRoom(ctx context.Context, connID string, p CreateRoomPayload) {
	if !randx.IsValidRoomName(p.Name) || p.CreatedBy == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}

	visibility := p.Type
	if visibility == "" {
		visibility = store.VisibilityPublic
	}

	room := &store.Room{
		ID:          randx.RoomID(),
		Name:        p.Name,
		Description: p.Description,
		CreatedBy:   p.CreatedBy,
		Members:     []string{p.CreatedBy},
		Moderators:  []string{},
		Admins:      []string{},
		Banned:      []string{},
		Visibility:  visibility,
		Active:      true,
		CreatedAt:   g.now(),
	}

	if err := g.rooms.Insert(ctx, room); err != nil {
		if errors.Is(err, store.ErrConflict) {
			g.sendError(connID, errs.NewError(errs.ErrRoomNameExists))
			return
		}
		g.storeFailure(connID, "createRoom", err)
		return
	}

	g.transport.ToConn(connID, EvtRoomCreated, room)
	g.broadcastRoomList(ctx)
}

// JoinRoomByID admits a connection into a room addressed by id rather than
// name: the room must exist and be active, private rooms admit members only,
// and bans apply the same way they do on a join by name. The membership set is
// grown before admission so later private joins succeed.
func (g *Gateway) JoinRoomByID(ctx context.Context, connID string, p JoinRoomByIDPayload) {
	if p.RoomID == "" || p.Username == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}

	room, err := g.rooms.GetByID(ctx, p.RoomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendError(connID, errs.NewError(errs.ErrRoomNotFound))
			return
		}
		g.storeFailure(connID, "joinRoomById", err)
		return
	}
	if !room.Active {
		g.sendError(connID, errs.NewError(errs.ErrRoomNotFound))
		return
	}
	if room.Visibility == store.VisibilityPrivate && !contains(room.Members, p.Username) {
		g.sendError(connID, errs.NewError(errs.ErrRoomPrivate))
		return
	}

	lock := g.roomLock(room.Name)
	lock.Lock()
	defer lock.Unlock()

	banned, err := g.moderation.CheckBanned(ctx, room.Name, p.Username)
	if err != nil {
		g.storeFailure(connID, "checkBanned", err)
		return
	}
	if banned {
		g.sendError(connID, errs.NewError(errs.ErrBannedFromRoom))
		return
	}

	if _, err := g.rooms.AddMember(ctx, room.Name, p.Username); err != nil {
		logx.Warn("failed to persist room membership", "room", room.Name, "username", p.Username, "error", err.Error())
	}

	g.admit(ctx, connID, room.Name, Session{
		ConnID:   connID,
		Username: p.Username,
		Gender:   p.Gender,
		Country:  p.Country,
		Avatar:   p.Avatar,
		Active:   true,
		Status:   store.StatusOnline,
	})

	g.transport.ToConn(connID, EvtJoinedRoom, room)
	g.sendHistory(ctx, connID, room.Name, p.Username)
	g.announceJoin(room.Name, p.Username, p.Avatar)
}

// DeleteRoom soft-deletes a room. Only the exact creator may do this; admins
// and moderators are refused.
func (g *Gateway) DeleteRoom(ctx context.Context, connID string, p DeleteRoomPayload) {
	if p.RoomID == "" || p.Username == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}

	room, err := g.rooms.GetByID(ctx, p.RoomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendError(connID, errs.NewError(errs.ErrRoomNotFound))
			return
		}
		g.storeFailure(connID, "deleteRoom", err)
		return
	}
	if !CanModerate(room, p.Username, ActionDeleteRoom) {
		g.sendError(connID, errs.NewError(errs.ErrOwnerOnly))
		return
	}

	lock := g.roomLock(room.Name)
	lock.Lock()
	defer lock.Unlock()

	if _, err := g.rooms.SetActive(ctx, room.ID, false); err != nil {
		g.storeFailure(connID, "deleteRoom", err)
		return
	}
	g.moderation.Forget(room.Name)

	g.transport.ToRoom(room.Name, EvtRoomDeleted, RoomDeletedPayload{RoomID: room.ID})
	g.broadcastRoomList(ctx)
}

// broadcastRoomList pushes the active room list to every connection.
func (g *Gateway) broadcastRoomList(ctx context.Context) {
	rooms, err := g.rooms.ListActive(ctx)
	if err != nil {
		logx.Error(err, "failed to list active rooms")
		return
	}
	g.transport.ToAll(EvtRoomListUpdated, rooms)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
