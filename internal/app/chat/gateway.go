package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"chatrelay/internal/app/messages"
	"chatrelay/internal/app/store"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
)

// Gateway orchestrates room sessions: it receives decoded client events,
// coordinates presence, moderation, rate limiting and the message engine, and
// fans resulting events out through the Transport.
//
// Handlers that mutate presence or roles for a room run under that room's
// lock so that admissions cannot race moderation (a ban immediately followed
// by a join observes the ban). Message mutations do not take the room lock;
// they rely on the store's atomic update primitives instead.
type Gateway struct {
	presence   *Presence
	moderation *Moderation
	limiter    *MessageLimiter
	engine     *messages.Engine
	rooms      store.Rooms
	users      store.Users
	transport  Transport
	blobs      BlobPurger

	mu        sync.Mutex
	roomLocks map[string]*sync.Mutex

	now func() time.Time
}

// NewGateway wires a gateway over its collaborators.
func NewGateway(st store.Store, transport Transport) *Gateway {
	return &Gateway{
		presence:   NewPresence(),
		moderation: NewModeration(st.Rooms),
		limiter:    NewMessageLimiter(),
		engine:     messages.NewEngine(st.Messages),
		rooms:      st.Rooms,
		users:      st.Users,
		transport:  transport,
		roomLocks:  make(map[string]*sync.Mutex),
		now:        time.Now,
	}
}

// BlobPurger removes stored file blobs that no message references anymore.
// The storage service satisfies it.
type BlobPurger interface {
	Delete(ctx context.Context, key string) error
}

// WithBlobs routes blob cleanup for deleted file messages through the purger.
// Without one, deleting a file message leaves its blob in place.
func (g *Gateway) WithBlobs(b BlobPurger) *Gateway {
	g.blobs = b
	return g
}

// Presence exposes the gateway's presence registry, used by the HTTP layer
// for room occupancy listings.
func (g *Gateway) Presence() *Presence { return g.presence }

// Limiter exposes the message rate limiter for periodic sweeping.
func (g *Gateway) Limiter() *MessageLimiter { return g.limiter }

// roomLock returns the mutex serializing presence and role mutations for a
// room. Locks are created on demand and never removed; the set of room names
// over a process lifetime is small.
func (g *Gateway) roomLock(room string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.roomLocks[room]
	if !ok {
		l = &sync.Mutex{}
		g.roomLocks[room] = l
	}
	return l
}

// sendError delivers a policy rejection or failure to the originating
// connection only. Peers never see another session's errors.
func (g *Gateway) sendError(connID string, e *errs.CustomError) {
	g.transport.ToConn(connID, EvtError, ErrorPayload{
		Code:    e.Code,
		Message: e.Message,
	})
}

// storeFailure logs an infrastructure error and reports it to the origin as a
// retryable condition without leaking internals.
func (g *Gateway) storeFailure(connID, op string, err error) {
	logx.Error(err, "store operation failed", "op", op)
	g.sendError(connID, errs.NewError(errs.ErrStoreUnavailable))
}

// Join admits a connection into a room under the identity profile it presents.
// Banned identities are rejected; when the ban list cannot be read the join is
// refused rather than admitted blind.
func (g *Gateway) Join(ctx context.Context, connID string, p JoinRoomPayload) {
	if p.Room == "" || p.Username == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}

	lock := g.roomLock(p.Room)
	lock.Lock()
	defer lock.Unlock()

	banned, err := g.moderation.CheckBanned(ctx, p.Room, p.Username)
	if err != nil {
		g.storeFailure(connID, "checkBanned", err)
		return
	}
	if banned {
		g.sendError(connID, errs.NewError(errs.ErrBannedFromRoom))
		return
	}

	g.admit(ctx, connID, p.Room, Session{
		ConnID:   connID,
		Username: p.Username,
		Gender:   p.Gender,
		Country:  p.Country,
		Avatar:   p.Avatar,
		Active:   true,
		Status:   store.StatusOnline,
	})

	g.sendHistory(ctx, connID, p.Room, p.Username)
	g.announceJoin(p.Room, p.Username, p.Avatar)
}

// admit registers the session with the transport, presence registry and the
// persisted user record. A persistence failure here is logged but does not
// undo the admission; presence is authoritative for who is in the room.
func (g *Gateway) admit(ctx context.Context, connID, room string, s Session) {
	g.transport.JoinRoom(connID, room)
	g.presence.Add(room, s)

	if _, err := g.users.SetStatus(ctx, s.Username, store.StatusOnline, g.now()); err != nil {
		logx.Warn("failed to persist online status", "username", s.Username, "error", err.Error())
	}
}

// sendHistory delivers recent history, pinned messages and the unread count to
// one freshly joined connection, oldest message first.
func (g *Gateway) sendHistory(ctx context.Context, connID, room, username string) {
	history, err := g.engine.List(ctx, room, messages.DefaultHistoryLimit, 0)
	if err != nil {
		g.storeFailure(connID, "listMessages", err)
		return
	}
	reverse(history)
	g.transport.ToConn(connID, EvtLoadMessages, history)

	pinned, err := g.engine.ListPinned(ctx, room)
	if err != nil {
		logx.Error(err, "failed to load pinned messages", "room", room)
		pinned = []store.Message{}
	}
	g.transport.ToConn(connID, EvtLoadPinnedMessages, pinned)

	unread, err := g.engine.UnreadCount(ctx, room, username)
	if err != nil {
		logx.Error(err, "failed to count unread messages", "room", room)
		unread = 0
	}
	g.transport.ToConn(connID, EvtUnreadCount, unread)
}

// announceJoin broadcasts the arrival and the refreshed occupant roster.
func (g *Gateway) announceJoin(room, username, avatar string) {
	g.transport.ToRoom(room, EvtUserEvent, UserEventPayload{
		Type:     "join",
		Username: username,
		Avatar:   avatar,
	})
	g.transport.ToRoom(room, EvtUpdateUsers, g.presence.List(room))
}

// announceLeave broadcasts the departure and the refreshed occupant roster.
func (g *Gateway) announceLeave(room, username string) {
	g.transport.ToRoom(room, EvtUserEvent, UserEventPayload{
		Type:     "leave",
		Username: username,
	})
	g.transport.ToRoom(room, EvtUpdateUsers, g.presence.List(room))
}

// Leave removes the identity from the room on its own request.
func (g *Gateway) Leave(ctx context.Context, connID string, p LeaveRoomPayload) {
	if p.Room == "" || p.Username == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}

	lock := g.roomLock(p.Room)
	lock.Lock()
	g.transport.LeaveRoom(connID, p.Room)
	g.presence.RemoveByName(p.Room, p.Username)
	lock.Unlock()

	if _, err := g.users.SetStatus(ctx, p.Username, store.StatusOffline, g.now()); err != nil {
		logx.Warn("failed to persist offline status", "username", p.Username, "error", err.Error())
	}

	g.announceLeave(p.Room, p.Username)
}

// Disconnect handles a transport-driven departure (socket closed). It is a
// no-op for connections that never joined a room.
func (g *Gateway) Disconnect(ctx context.Context, connID string) {
	room, session, ok := g.presence.FindByConn(connID)
	if !ok {
		return
	}

	lock := g.roomLock(room)
	lock.Lock()
	g.presence.RemoveConn(room, connID)
	g.transport.LeaveRoom(connID, room)
	lock.Unlock()

	if _, err := g.users.SetStatus(ctx, session.Username, store.StatusOffline, g.now()); err != nil {
		logx.Warn("failed to persist offline status", "username", session.Username, "error", err.Error())
	}

	g.announceLeave(room, session.Username)
}

// Typing relays a typing indicator to everyone in the room except its author.
// Nothing is persisted.
func (g *Gateway) Typing(connID string, p TypingPayload) {
	if p.Room == "" || p.Username == "" {
		return
	}
	g.transport.ToRoomExcept(p.Room, connID, EvtUserTyping, TypingEventPayload{
		Username: p.Username,
		IsTyping: p.IsTyping,
	})
}

// UpdateProfile applies a profile change and notifies every room the user is a
// member of, plus the originating connection.
func (g *Gateway) UpdateProfile(ctx context.Context, connID string, p UpdateProfilePayload) {
	if p.Username == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}

	updated, err := g.users.UpdateProfile(ctx, p.Username, p.Updates)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return
		}
		g.storeFailure(connID, "updateProfile", err)
		return
	}

	rooms, err := g.rooms.ListByMember(ctx, p.Username)
	if err != nil {
		logx.Error(err, "failed to list member rooms", "username", p.Username)
		rooms = nil
	}
	for _, r := range rooms {
		g.transport.ToRoom(r.Name, EvtUserProfileUpdated, ProfileUpdatedPayload{
			Username: p.Username,
			Updates:  p.Updates,
		})
	}

	g.transport.ToConn(connID, EvtProfileUpdated, updated)
}

// reverse flips a message slice in place (store listings are newest first,
// clients render oldest first).
func reverse(msgs []store.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
