package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"chatrelay/internal/app/messages"
	"chatrelay/internal/app/store"
	"chatrelay/internal/app/store/memory"
	"chatrelay/internal/pkg/errs"
)

// recorded is one delivery captured by the fake transport.
type recorded struct {
	Target  string // "conn:<id>", "room:<name>", "roomExcept:<name>/<conn>", "all"
	Event   EventName
	Payload any
}

// fakeTransport records deliveries instead of writing to sockets.
type fakeTransport struct {
	mu     sync.Mutex
	events []recorded
	joined map[string]map[string]bool // room -> connID
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{joined: make(map[string]map[string]bool)}
}

func (f *fakeTransport) record(target string, event EventName, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recorded{Target: target, Event: event, Payload: payload})
}

func (f *fakeTransport) ToConn(connID string, event EventName, payload any) {
	f.record("conn:"+connID, event, payload)
}

func (f *fakeTransport) ToRoom(room string, event EventName, payload any) {
	f.record("room:"+room, event, payload)
}

func (f *fakeTransport) ToRoomExcept(room, exceptConn string, event EventName, payload any) {
	f.record(fmt.Sprintf("roomExcept:%s/%s", room, exceptConn), event, payload)
}

func (f *fakeTransport) ToAll(event EventName, payload any) {
	f.record("all", event, payload)
}

func (f *fakeTransport) JoinRoom(connID, room string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joined[room] == nil {
		f.joined[room] = make(map[string]bool)
	}
	f.joined[room][connID] = true
}

func (f *fakeTransport) LeaveRoom(connID, room string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.joined[room], connID)
}

func (f *fakeTransport) CloseConn(connID, reason string) {
	f.record("close:"+connID, "", reason)
}

// eventsFor returns the events delivered to one target, in order.
func (f *fakeTransport) eventsFor(target string) []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []recorded
	for _, e := range f.events {
		if e.Target == target {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeTransport) countEvents(target string, event EventName) int {
	n := 0
	for _, e := range f.eventsFor(target) {
		if e.Event == event {
			n++
		}
	}
	return n
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

func newTestGateway(t *testing.T) (*Gateway, *fakeTransport, store.Store) {
	t.Helper()
	st := memory.New().Store()
	tr := newFakeTransport()
	return NewGateway(st, tr), tr, st
}

func lastErrorCode(t *testing.T, tr *fakeTransport, connID string) int {
	t.Helper()
	events := tr.eventsFor("conn:" + connID)
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Event == EvtError {
			return events[i].Payload.(ErrorPayload).Code
		}
	}
	t.Fatal("no error event delivered")
	return 0
}

func TestJoinDeliversHistoryThenAnnounces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g, tr, st := newTestGateway(t)

	seedTime := time.Unix(5000, 0)
	ids := 0
	eng := messages.NewEngine(st.Messages).WithClock(
		func() time.Time { seedTime = seedTime.Add(time.Second); return seedTime },
		func() string { ids++; return fmt.Sprintf("m%d", ids) },
	)
	older, _ := eng.Create(ctx, messages.CreateParams{Room: "lobby", Sender: "bob", Body: "first"})
	if _, err := eng.Create(ctx, messages.CreateParams{Room: "lobby", Sender: "bob", Body: "second"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	g.Join(ctx, "c1", JoinRoomPayload{Room: "lobby", Username: "alice"})

	got := tr.eventsFor("conn:c1")
	if len(got) != 3 {
		t.Fatalf("expected 3 unicast events, got %d: %+v", len(got), got)
	}
	if got[0].Event != EvtLoadMessages || got[1].Event != EvtLoadPinnedMessages || got[2].Event != EvtUnreadCount {
		t.Fatalf("unexpected unicast order: %s, %s, %s", got[0].Event, got[1].Event, got[2].Event)
	}

	history := got[0].Payload.([]store.Message)
	if len(history) != 2 || history[0].ID != older.ID {
		t.Fatalf("expected history oldest first, got %+v", history)
	}
	if unread := got[2].Payload.(int64); unread != 2 {
		t.Fatalf("expected unread count 2, got %d", unread)
	}

	roomEvents := tr.eventsFor("room:lobby")
	if len(roomEvents) != 2 || roomEvents[0].Event != EvtUserEvent || roomEvents[1].Event != EvtUpdateUsers {
		t.Fatalf("unexpected room events: %+v", roomEvents)
	}
	if ue := roomEvents[0].Payload.(UserEventPayload); ue.Type != "join" || ue.Username != "alice" {
		t.Fatalf("unexpected user event: %+v", ue)
	}

	if _, ok := g.Presence().ConnForUser("lobby", "alice"); !ok {
		t.Fatal("expected alice registered in presence")
	}
}

func TestJoinRejectsBanned(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g, tr, st := newTestGateway(t)
	seedRoom(t, st.Rooms, &store.Room{ID: "r1", Name: "lobby", CreatedBy: "owner", Banned: []string{"troll"}})

	g.Join(ctx, "c1", JoinRoomPayload{Room: "lobby", Username: "troll"})

	if code := lastErrorCode(t, tr, "c1"); code != errs.ErrBannedFromRoom {
		t.Fatalf("expected ban rejection code %d, got %d", errs.ErrBannedFromRoom, code)
	}
	if sessions := g.Presence().List("lobby"); len(sessions) != 0 {
		t.Fatalf("banned identity must not be admitted, got %+v", sessions)
	}
	if len(tr.eventsFor("room:lobby")) != 0 {
		t.Fatal("no room events expected for a refused join")
	}
}

func TestJoinFailsClosedWhenBanCheckErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := memory.New().Store()
	st.Rooms = failingRooms{Rooms: st.Rooms}
	tr := newFakeTransport()
	g := NewGateway(st, tr)

	g.Join(ctx, "c1", JoinRoomPayload{Room: "lobby", Username: "alice"})

	if code := lastErrorCode(t, tr, "c1"); code != errs.ErrStoreUnavailable {
		t.Fatalf("expected retryable store error %d, got %d", errs.ErrStoreUnavailable, code)
	}
	if sessions := g.Presence().List("lobby"); len(sessions) != 0 {
		t.Fatal("must not admit when the ban list is unreadable")
	}
}

func TestSendFanOutAndMentions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g, tr, _ := newTestGateway(t)
	g.Join(ctx, "c1", JoinRoomPayload{Room: "lobby", Username: "alice"})
	g.Join(ctx, "c2", JoinRoomPayload{Room: "lobby", Username: "bob"})
	tr.reset()

	g.Send(ctx, "c1", SendMessagePayload{
		Room:     "lobby",
		Username: "alice",
		Message:  "hey @bob",
		Mentions: []string{"bob", "carol"},
	})

	if n := tr.countEvents("room:lobby", EvtReceiveMessage); n != 1 {
		t.Fatalf("expected 1 broadcast message, got %d", n)
	}

	bobEvents := tr.eventsFor("conn:c2")
	if len(bobEvents) != 1 || bobEvents[0].Event != EvtMention {
		t.Fatalf("expected one mention for bob, got %+v", bobEvents)
	}
	if m := bobEvents[0].Payload.(MentionPayload); m.MentionedBy != "alice" {
		t.Fatalf("unexpected mention payload: %+v", m)
	}

	// carol is absent; alice mentioned nobody pointing at herself.
	if n := tr.countEvents("conn:c1", EvtMention); n != 0 {
		t.Fatalf("sender must not receive mention events, got %d", n)
	}
}

func TestSendRateLimited(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g, tr, _ := newTestGateway(t)
	g.Join(ctx, "c1", JoinRoomPayload{Room: "lobby", Username: "alice"})
	g.Join(ctx, "c2", JoinRoomPayload{Room: "lobby", Username: "bob"})
	tr.reset()

	for i := 0; i < RateLimitMax+1; i++ {
		g.Send(ctx, "c1", SendMessagePayload{Room: "lobby", Username: "alice", Message: "spam"})
	}

	if n := tr.countEvents("room:lobby", EvtReceiveMessage); n != RateLimitMax {
		t.Fatalf("expected %d delivered messages, got %d", RateLimitMax, n)
	}
	if code := lastErrorCode(t, tr, "c1"); code != errs.ErrMessageRateLimited {
		t.Fatalf("expected rate limit code %d, got %d", errs.ErrMessageRateLimited, code)
	}
	// The rejection goes to the sender only.
	if n := tr.countEvents("conn:c2", EvtError); n != 0 {
		t.Fatalf("peers must not see the sender's rejection, got %d error events", n)
	}
}

func TestEditMissingMessageIsSilent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g, tr, _ := newTestGateway(t)
	g.Edit(ctx, "c1", EditMessagePayload{Room: "lobby", MessageID: "ghost", NewMessage: "new"})

	if len(tr.eventsFor("room:lobby")) != 0 {
		t.Fatal("editing a missing message must not broadcast")
	}
	if n := tr.countEvents("conn:c1", EvtError); n != 0 {
		t.Fatal("editing a missing message must not error")
	}
}

func TestReactToggle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g, tr, st := newTestGateway(t)
	eng := messages.NewEngine(st.Messages)
	msg, err := eng.Create(ctx, messages.CreateParams{Room: "lobby", Sender: "alice", Body: "hello"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	g.React(ctx, "c1", ReactMessagePayload{Room: "lobby", MessageID: msg.ID, Emoji: "👍", Username: "bob", Action: "add"})
	g.React(ctx, "c1", ReactMessagePayload{Room: "lobby", MessageID: msg.ID, Emoji: "👍", Username: "bob", Action: "add"})

	events := tr.eventsFor("room:lobby")
	if len(events) != 2 {
		t.Fatalf("expected 2 reaction broadcasts, got %d", len(events))
	}
	last := events[1].Payload.(ReactionEventPayload)
	if len(last.Reactions) != 1 || len(last.Reactions[0].Users) != 1 {
		t.Fatalf("duplicate reaction must not grow the set: %+v", last.Reactions)
	}

	g.React(ctx, "c1", ReactMessagePayload{Room: "lobby", MessageID: msg.ID, Emoji: "👍", Username: "bob", Action: "remove"})
	events = tr.eventsFor("room:lobby")
	final := events[len(events)-1].Payload.(ReactionEventPayload)
	if len(final.Reactions) != 0 {
		t.Fatalf("expected empty reaction set after removal, got %+v", final.Reactions)
	}
}

func TestKickRequiresPrivilege(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g, tr, st := newTestGateway(t)
	seedRoom(t, st.Rooms, &store.Room{ID: "r1", Name: "lobby", CreatedBy: "owner"})
	g.Join(ctx, "c1", JoinRoomPayload{Room: "lobby", Username: "bob"})
	g.Join(ctx, "c2", JoinRoomPayload{Room: "lobby", Username: "mallory"})
	tr.reset()

	g.Kick(ctx, "c2", KickPayload{Room: "lobby", Username: "bob", By: "mallory"})

	if code := lastErrorCode(t, tr, "c2"); code != errs.ErrPermissionDenied {
		t.Fatalf("expected permission denial %d, got %d", errs.ErrPermissionDenied, code)
	}
	if _, ok := g.Presence().ConnForUser("lobby", "bob"); !ok {
		t.Fatal("bob must remain present after a refused kick")
	}
}

func TestKickByOwner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g, tr, st := newTestGateway(t)
	seedRoom(t, st.Rooms, &store.Room{ID: "r1", Name: "lobby", CreatedBy: "owner"})
	g.Join(ctx, "c1", JoinRoomPayload{Room: "lobby", Username: "owner"})
	g.Join(ctx, "c2", JoinRoomPayload{Room: "lobby", Username: "bob"})
	tr.reset()

	g.Kick(ctx, "c1", KickPayload{Room: "lobby", Username: "bob", By: "owner"})

	bobEvents := tr.eventsFor("conn:c2")
	if len(bobEvents) != 1 || bobEvents[0].Event != EvtKicked {
		t.Fatalf("expected targeted kicked event, got %+v", bobEvents)
	}
	if _, ok := g.Presence().ConnForUser("lobby", "bob"); ok {
		t.Fatal("bob must be removed from presence")
	}
	if n := tr.countEvents("room:lobby", EvtUserKicked); n != 1 {
		t.Fatalf("expected 1 userKicked broadcast, got %d", n)
	}
	if got := len(tr.eventsFor("close:c2")); got != 0 {
		t.Fatal("a kick must leave the target's socket open")
	}

	// Kicked, not banned: bob can rejoin.
	g.Join(ctx, "c2", JoinRoomPayload{Room: "lobby", Username: "bob"})
	if _, ok := g.Presence().ConnForUser("lobby", "bob"); !ok {
		t.Fatal("kicked identity must be able to rejoin")
	}
}

func TestBanThenRejoinRefused(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g, tr, st := newTestGateway(t)
	seedRoom(t, st.Rooms, &store.Room{ID: "r1", Name: "lobby", CreatedBy: "owner"})
	g.Join(ctx, "c1", JoinRoomPayload{Room: "lobby", Username: "owner"})
	g.Join(ctx, "c2", JoinRoomPayload{Room: "lobby", Username: "troll"})
	tr.reset()

	g.Ban(ctx, "c1", KickPayload{Room: "lobby", Username: "troll", By: "owner"})

	if _, ok := g.Presence().ConnForUser("lobby", "troll"); ok {
		t.Fatal("banned identity must be removed from presence")
	}
	trollEvents := tr.eventsFor("conn:c2")
	if len(trollEvents) != 1 || trollEvents[0].Event != EvtBanned {
		t.Fatalf("expected targeted banned event, got %+v", trollEvents)
	}
	if got := len(tr.eventsFor("close:c2")); got != 1 {
		t.Fatalf("expected the banned connection to be closed once, got %d closes", got)
	}

	g.Join(ctx, "c3", JoinRoomPayload{Room: "lobby", Username: "troll"})
	if code := lastErrorCode(t, tr, "c3"); code != errs.ErrBannedFromRoom {
		t.Fatalf("expected rejoin refusal %d, got %d", errs.ErrBannedFromRoom, code)
	}
}

func TestPromoteAdminIsOwnerOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g, tr, st := newTestGateway(t)
	seedRoom(t, st.Rooms, &store.Room{ID: "r1", Name: "lobby", CreatedBy: "owner", Moderators: []string{"mod"}})

	g.Promote(ctx, "c1", PromotePayload{Room: "lobby", Username: "bob", Role: store.RoleAdmin, By: "mod"})
	if code := lastErrorCode(t, tr, "c1"); code != errs.ErrPermissionDenied {
		t.Fatalf("expected denial %d, got %d", errs.ErrPermissionDenied, code)
	}

	tr.reset()
	g.Promote(ctx, "c2", PromotePayload{Room: "lobby", Username: "bob", Role: store.RoleAdmin, By: "owner"})
	if n := tr.countEvents("room:lobby", EvtUserPromoted); n != 1 {
		t.Fatalf("expected 1 promotion broadcast, got %d", n)
	}

	room, err := st.Rooms.GetByName(ctx, "lobby")
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if len(room.Admins) != 1 || room.Admins[0] != "bob" {
		t.Fatalf("expected bob in admins, got %+v", room.Admins)
	}
}

func TestCreateRoomDuplicateName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g, tr, _ := newTestGateway(t)
	g.CreateRoom(ctx, "c1", CreateRoomPayload{Name: "games", CreatedBy: "alice"})
	g.CreateRoom(ctx, "c2", CreateRoomPayload{Name: "games", CreatedBy: "bob"})

	if n := tr.countEvents("conn:c1", EvtRoomCreated); n != 1 {
		t.Fatalf("expected creation confirmation, got %d", n)
	}
	if code := lastErrorCode(t, tr, "c2"); code != errs.ErrRoomNameExists {
		t.Fatalf("expected duplicate name rejection %d, got %d", errs.ErrRoomNameExists, code)
	}
	if n := tr.countEvents("all", EvtRoomListUpdated); n != 1 {
		t.Fatalf("expected 1 room list broadcast, got %d", n)
	}
}

func TestDeleteRoomOwnerOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g, tr, st := newTestGateway(t)
	seedRoom(t, st.Rooms, &store.Room{ID: "r1", Name: "lobby", CreatedBy: "owner", Admins: []string{"admin"}})

	g.DeleteRoom(ctx, "c1", DeleteRoomPayload{RoomID: "r1", Username: "admin"})
	if code := lastErrorCode(t, tr, "c1"); code != errs.ErrOwnerOnly {
		t.Fatalf("expected owner-only refusal %d, got %d", errs.ErrOwnerOnly, code)
	}

	g.DeleteRoom(ctx, "c2", DeleteRoomPayload{RoomID: "r1", Username: "owner"})
	if n := tr.countEvents("room:lobby", EvtRoomDeleted); n != 1 {
		t.Fatalf("expected room deletion broadcast, got %d", n)
	}
	room, err := st.Rooms.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if room.Active {
		t.Fatal("deleted room must be inactive")
	}
}

func TestDisconnectAnnouncesLeave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g, tr, _ := newTestGateway(t)
	g.Join(ctx, "c1", JoinRoomPayload{Room: "lobby", Username: "alice"})
	tr.reset()

	g.Disconnect(ctx, "c1")

	roomEvents := tr.eventsFor("room:lobby")
	if len(roomEvents) != 2 || roomEvents[0].Event != EvtUserEvent || roomEvents[1].Event != EvtUpdateUsers {
		t.Fatalf("unexpected leave events: %+v", roomEvents)
	}
	if ue := roomEvents[0].Payload.(UserEventPayload); ue.Type != "leave" || ue.Username != "alice" {
		t.Fatalf("unexpected user event: %+v", ue)
	}

	// A second disconnect for the same connection is a no-op.
	tr.reset()
	g.Disconnect(ctx, "c1")
	if len(tr.events) != 0 {
		t.Fatalf("expected no events for unknown connection, got %+v", tr.events)
	}
}

func TestTypingExcludesAuthor(t *testing.T) {
	t.Parallel()

	g, tr, _ := newTestGateway(t)
	g.Typing("c1", TypingPayload{Room: "lobby", Username: "alice", IsTyping: true})

	events := tr.eventsFor("roomExcept:lobby/c1")
	if len(events) != 1 || events[0].Event != EvtUserTyping {
		t.Fatalf("expected typing relay excluding author, got %+v", events)
	}
}

func TestMarkRoomReadBroadcastsOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g, tr, st := newTestGateway(t)
	eng := messages.NewEngine(st.Messages)
	for i := 0; i < 3; i++ {
		if _, err := eng.Create(ctx, messages.CreateParams{Room: "lobby", Sender: "bob", Body: "msg"}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	g.MarkRoomRead(ctx, "c1", MarkRoomReadPayload{Room: "lobby", Username: "alice"})

	if n := tr.countEvents("room:lobby", EvtRoomMarkedAsRead); n != 1 {
		t.Fatalf("expected exactly one catch-up broadcast, got %d", n)
	}
	unread, err := st.Messages.UnreadCount(ctx, "lobby", "alice")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if unread != 0 {
		t.Fatalf("expected 0 unread after catch-up, got %d", unread)
	}
}

// failingMessages rejects inserts; the embedded collection serves the rest.
type failingMessages struct {
	store.Messages
}

func (failingMessages) Insert(context.Context, *store.Message) error { return errStoreDown }

func TestSendStoreFailureReportedToSender(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g, tr, st := newTestGateway(t)
	g.Join(ctx, "c1", JoinRoomPayload{Room: "lobby", Username: "alice"})
	g.engine = messages.NewEngine(failingMessages{st.Messages})
	tr.reset()

	g.Send(ctx, "c1", SendMessagePayload{Room: "lobby", Username: "alice", Message: "hi"})

	if code := lastErrorCode(t, tr, "c1"); code != errs.ErrSendFailed {
		t.Fatalf("expected send failure %d, got %d", errs.ErrSendFailed, code)
	}
	if n := tr.countEvents("room:lobby", EvtReceiveMessage); n != 0 {
		t.Fatal("a failed send must not reach the room")
	}
}

// purgeRecorder captures blob keys the gateway cleans up.
type purgeRecorder struct {
	mu   sync.Mutex
	keys []string
}

func (p *purgeRecorder) Delete(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func TestDeleteFileMessagePurgesBlob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g, tr, _ := newTestGateway(t)
	purger := &purgeRecorder{}
	g.WithBlobs(purger)
	g.Join(ctx, "c1", JoinRoomPayload{Room: "lobby", Username: "alice"})

	g.UploadFile(ctx, "c1", UploadFilePayload{
		Room:     "lobby",
		Username: "alice",
		FileData: store.FileRef{
			URL:          "https://files.example/uploads/abc.png",
			Filename:     "uploads/abc.png",
			OriginalName: "cat.png",
			MimeType:     "image/png",
			Size:         64,
		},
	})
	var fileID string
	for _, e := range tr.eventsFor("room:lobby") {
		if e.Event == EvtReceiveMessage {
			fileID = e.Payload.(*store.Message).ID
		}
	}
	if fileID == "" {
		t.Fatal("file message was not broadcast")
	}

	g.Delete(ctx, "c1", DeleteMessagePayload{Room: "lobby", MessageID: fileID})

	if len(purger.keys) != 1 || purger.keys[0] != "uploads/abc.png" {
		t.Fatalf("expected the blob key to be purged once, got %v", purger.keys)
	}

	// Deleting a plain text message touches no blob.
	tr.reset()
	g.Send(ctx, "c1", SendMessagePayload{Room: "lobby", Username: "alice", Message: "plain"})
	var textID string
	for _, e := range tr.eventsFor("room:lobby") {
		if e.Event == EvtReceiveMessage {
			textID = e.Payload.(*store.Message).ID
		}
	}
	g.Delete(ctx, "c1", DeleteMessagePayload{Room: "lobby", MessageID: textID})

	if len(purger.keys) != 1 {
		t.Fatalf("text message delete must not purge blobs, got %v", purger.keys)
	}
}
