package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"chatrelay/internal/app/store"
)

func seedMessages(t *testing.T, msgs store.Messages, room string, n int) []string {
	t.Helper()
	base := time.Unix(10000, 0)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("m%d", i+1)
		err := msgs.Insert(context.Background(), &store.Message{
			ID:        id,
			Room:      room,
			Sender:    "bob",
			Body:      fmt.Sprintf("message %d", i+1),
			Kind:      store.KindText,
			ReadBy:    []string{"bob"},
			Reactions: []store.Reaction{},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestMessagesListNewestFirstPaginated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := New().Store()
	seedMessages(t, st.Messages, "lobby", 5)

	page, err := st.Messages.List(ctx, "lobby", 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].ID != "m5" || page[1].ID != "m4" {
		t.Fatalf("expected newest first page [m5 m4], got %+v", page)
	}

	page, err = st.Messages.List(ctx, "lobby", 2, 4)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 1 || page[0].ID != "m1" {
		t.Fatalf("expected final page [m1], got %+v", page)
	}

	page, err = st.Messages.List(ctx, "lobby", 2, 10)
	if err != nil || len(page) != 0 {
		t.Fatalf("expected empty page past the end, got (%+v, %v)", page, err)
	}
}

func TestSoftDeleteHidesFromListings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := New().Store()
	seedMessages(t, st.Messages, "lobby", 2)

	if _, err := st.Messages.SetPinned(ctx, "m1", true); err != nil {
		t.Fatalf("pin: %v", err)
	}
	if _, err := st.Messages.SoftDelete(ctx, "m1"); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	page, err := st.Messages.List(ctx, "lobby", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 1 || page[0].ID != "m2" {
		t.Fatalf("deleted message must be hidden, got %+v", page)
	}

	// The pin does not survive deletion: the pinned listing and search both
	// skip the deleted message.
	pinned, err := st.Messages.ListPinned(ctx, "lobby")
	if err != nil {
		t.Fatalf("list pinned: %v", err)
	}
	if len(pinned) != 0 {
		t.Fatalf("deleted message must leave the pinned listing, got %+v", pinned)
	}
	hits, err := st.Messages.Search(ctx, "lobby", "message 1", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("deleted message must not be searchable, got %+v", hits)
	}

	// The record stays addressable.
	m, err := st.Messages.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !m.Deleted {
		t.Fatal("expected deleted flag set")
	}

	// A deleted message is not editable.
	if _, err := st.Messages.Edit(ctx, "m1", "rewrite", time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound editing deleted message, got %v", err)
	}
}

func TestReactionSetInvariants(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := New().Store()
	seedMessages(t, st.Messages, "lobby", 1)

	if _, err := st.Messages.AddReactor(ctx, "m1", "🔥", "alice"); err != nil {
		t.Fatalf("add: %v", err)
	}
	m, err := st.Messages.AddReactor(ctx, "m1", "🔥", "alice")
	if err != nil {
		t.Fatalf("add twice: %v", err)
	}
	if len(m.Reactions) != 1 || len(m.Reactions[0].Users) != 1 {
		t.Fatalf("duplicate reactor must not grow the set: %+v", m.Reactions)
	}

	m, err = st.Messages.AddReactor(ctx, "m1", "🔥", "carol")
	if err != nil {
		t.Fatalf("add second user: %v", err)
	}
	if len(m.Reactions[0].Users) != 2 {
		t.Fatalf("expected two reactors, got %+v", m.Reactions)
	}

	m, err = st.Messages.RemoveReactor(ctx, "m1", "🔥", "alice")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(m.Reactions) != 1 || len(m.Reactions[0].Users) != 1 || m.Reactions[0].Users[0] != "carol" {
		t.Fatalf("expected carol to remain, got %+v", m.Reactions)
	}

	// Removing the last reactor drops the emoji entry entirely.
	m, err = st.Messages.RemoveReactor(ctx, "m1", "🔥", "carol")
	if err != nil {
		t.Fatalf("remove last: %v", err)
	}
	if len(m.Reactions) != 0 {
		t.Fatalf("expected empty reaction set, got %+v", m.Reactions)
	}

	// Removing from a message with no such reaction is harmless.
	if _, err := st.Messages.RemoveReactor(ctx, "m1", "🎉", "alice"); err != nil {
		t.Fatalf("remove absent emoji: %v", err)
	}
}

func TestReadSetOnlyGrows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := New().Store()
	seedMessages(t, st.Messages, "lobby", 1)

	m, err := st.Messages.AddReader(ctx, "m1", "alice")
	if err != nil {
		t.Fatalf("add reader: %v", err)
	}
	if len(m.ReadBy) != 2 {
		t.Fatalf("expected [bob alice], got %+v", m.ReadBy)
	}

	m, err = st.Messages.AddReader(ctx, "m1", "alice")
	if err != nil {
		t.Fatalf("add reader twice: %v", err)
	}
	if len(m.ReadBy) != 2 {
		t.Fatalf("duplicate reader must not grow the set: %+v", m.ReadBy)
	}
}

func TestMarkRoomReadSkipsOwnAndAlreadyRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := New().Store()
	seedMessages(t, st.Messages, "lobby", 3)
	if err := st.Messages.Insert(ctx, &store.Message{
		ID: "own", Room: "lobby", Sender: "alice", Body: "mine",
		ReadBy: []string{"alice"}, CreatedAt: time.Unix(20000, 0),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := st.Messages.AddReader(ctx, "m1", "alice"); err != nil {
		t.Fatalf("pre-read: %v", err)
	}

	affected, err := st.Messages.MarkRoomRead(ctx, "lobby", "alice")
	if err != nil {
		t.Fatalf("mark room read: %v", err)
	}
	if affected != 2 {
		t.Fatalf("expected 2 affected (m2, m3), got %d", affected)
	}

	unread, err := st.Messages.UnreadCount(ctx, "lobby", "alice")
	if err != nil || unread != 0 {
		t.Fatalf("expected 0 unread, got (%d, %v)", unread, err)
	}
}

func TestSearchMatchesBodyAndSender(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := New().Store()
	base := time.Unix(30000, 0)
	rows := []store.Message{
		{ID: "s1", Room: "lobby", Sender: "alice", Body: "Deployment finished"},
		{ID: "s2", Room: "lobby", Sender: "bob", Body: "lunch?"},
		{ID: "s3", Room: "lobby", Sender: "deployer", Body: "nothing"},
		{ID: "s4", Room: "other", Sender: "alice", Body: "deploy here too"},
	}
	for i := range rows {
		rows[i].CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := st.Messages.Insert(ctx, &rows[i]); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if _, err := st.Messages.SoftDelete(ctx, "s2"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := st.Messages.Search(ctx, "lobby", "DEPLOY", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 || got[0].ID != "s3" || got[1].ID != "s1" {
		t.Fatalf("expected [s3 s1] newest first, got %+v", got)
	}
}

func TestRoomMembershipSets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := New().Store()
	err := st.Rooms.Insert(ctx, &store.Room{
		ID: "r1", Name: "lobby", CreatedBy: "owner",
		Members: []string{"owner"}, Active: true,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Name uniqueness.
	err = st.Rooms.Insert(ctx, &store.Room{ID: "r2", Name: "lobby", CreatedBy: "bob"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate name, got %v", err)
	}

	r, err := st.Rooms.AddMember(ctx, "lobby", "alice")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	r, err = st.Rooms.AddMember(ctx, "lobby", "alice")
	if err != nil {
		t.Fatalf("add member twice: %v", err)
	}
	if len(r.Members) != 2 {
		t.Fatalf("membership is a set, got %+v", r.Members)
	}

	r, err = st.Rooms.Promote(ctx, "lobby", "alice", store.RoleModerator)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if len(r.Moderators) != 1 || r.Moderators[0] != "alice" {
		t.Fatalf("expected alice as moderator, got %+v", r.Moderators)
	}

	if _, err := st.Rooms.AddMember(ctx, "ghost", "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown room, got %v", err)
	}

	r, err = st.Rooms.SetActive(ctx, "r1", false)
	if err != nil {
		t.Fatalf("set active: %v", err)
	}
	if r.Active {
		t.Fatal("expected room to be inactive")
	}
	active, err := st.Rooms.ListActive(ctx)
	if err != nil || len(active) != 0 {
		t.Fatalf("expected no active rooms, got (%+v, %v)", active, err)
	}
}

func TestUserProfileUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := New().Store()

	// SetStatus upserts identities that never registered a profile.
	u, err := st.Users.SetStatus(ctx, "alice", store.StatusOnline, time.Unix(40000, 0))
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if u.Status != store.StatusOnline {
		t.Fatalf("expected online, got %s", u.Status)
	}

	bio := "hello"
	u, err = st.Users.UpdateProfile(ctx, "alice", store.ProfileUpdate{Bio: &bio})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if u.Bio != "hello" || u.Status != store.StatusOnline {
		t.Fatalf("nil fields must be untouched, got %+v", u)
	}

	if _, err := st.Users.UpdateProfile(ctx, "ghost", store.ProfileUpdate{}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}
