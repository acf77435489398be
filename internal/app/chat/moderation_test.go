package chat

import (
	"context"
	"errors"
	"testing"

	"chatrelay/internal/app/store"
	"chatrelay/internal/app/store/memory"
)

func seedRoom(t *testing.T, rooms store.Rooms, r *store.Room) {
	t.Helper()
	if r.Members == nil {
		r.Members = []string{r.CreatedBy}
	}
	r.Active = true
	if err := rooms.Insert(context.Background(), r); err != nil {
		t.Fatalf("seed room: %v", err)
	}
}

func TestCanModerate(t *testing.T) {
	t.Parallel()

	room := &store.Room{
		Name:       "lobby",
		CreatedBy:  "owner",
		Admins:     []string{"admin"},
		Moderators: []string{"mod"},
	}

	tests := []struct {
		name   string
		actor  string
		action ModAction
		want   bool
	}{
		{"owner can kick", "owner", ActionKick, true},
		{"owner can delete room", "owner", ActionDeleteRoom, true},
		{"owner can promote admin", "owner", ActionPromoteAdmin, true},
		{"admin can ban", "admin", ActionBan, true},
		{"admin can promote moderator", "admin", ActionPromoteModerator, true},
		{"admin cannot delete room", "admin", ActionDeleteRoom, false},
		{"admin cannot promote admin", "admin", ActionPromoteAdmin, false},
		{"moderator can kick", "mod", ActionKick, true},
		{"moderator can ban", "mod", ActionBan, true},
		{"moderator can promote moderator", "mod", ActionPromoteModerator, true},
		{"moderator cannot promote admin", "mod", ActionPromoteAdmin, false},
		{"member cannot kick", "member", ActionKick, false},
		{"member cannot ban", "member", ActionBan, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanModerate(room, tt.actor, tt.action); got != tt.want {
				t.Fatalf("CanModerate(%s, %v) = %v, want %v", tt.actor, tt.action, got, tt.want)
			}
		})
	}
}

func TestModerationBanPersistsAndCaches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := memory.New().Store()
	seedRoom(t, st.Rooms, &store.Room{ID: "r1", Name: "lobby", CreatedBy: "owner"})

	m := NewModeration(st.Rooms)

	if err := m.Ban(ctx, "lobby", "troll"); err != nil {
		t.Fatalf("ban: %v", err)
	}

	banned, err := m.IsBanned(ctx, "lobby", "troll")
	if err != nil || !banned {
		t.Fatalf("IsBanned = (%v, %v), want (true, nil)", banned, err)
	}

	// A fresh Moderation with a cold cache still sees the persisted ban.
	cold := NewModeration(st.Rooms)
	banned, err = cold.IsBanned(ctx, "lobby", "troll")
	if err != nil || !banned {
		t.Fatalf("cold IsBanned = (%v, %v), want (true, nil)", banned, err)
	}

	if err := m.Unban(ctx, "lobby", "troll"); err != nil {
		t.Fatalf("unban: %v", err)
	}
	banned, err = m.IsBanned(ctx, "lobby", "troll")
	if err != nil || banned {
		t.Fatalf("IsBanned after unban = (%v, %v), want (false, nil)", banned, err)
	}
}

func TestModerationUnknownRoomCarriesNoBan(t *testing.T) {
	t.Parallel()

	m := NewModeration(memory.New().Store().Rooms)
	banned, err := m.CheckBanned(context.Background(), "ghost-room", "alice")
	if err != nil || banned {
		t.Fatalf("CheckBanned = (%v, %v), want (false, nil)", banned, err)
	}
}

// failingRooms simulates an unreachable store.
type failingRooms struct {
	store.Rooms
}

var errStoreDown = errors.New("store down")

func (failingRooms) GetByName(context.Context, string) (*store.Room, error) {
	return nil, errStoreDown
}

func TestModerationFailsClosedOnStoreError(t *testing.T) {
	t.Parallel()

	m := NewModeration(failingRooms{})
	_, err := m.CheckBanned(context.Background(), "lobby", "alice")
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
}

func TestModerationForget(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := memory.New().Store()
	seedRoom(t, st.Rooms, &store.Room{ID: "r1", Name: "lobby", CreatedBy: "owner"})

	m := NewModeration(st.Rooms)
	if err := m.Ban(ctx, "lobby", "troll"); err != nil {
		t.Fatalf("ban: %v", err)
	}
	m.Forget("lobby")

	// The persisted record still answers after the cache is dropped.
	banned, err := m.IsBanned(ctx, "lobby", "troll")
	if err != nil || !banned {
		t.Fatalf("IsBanned after Forget = (%v, %v), want (true, nil)", banned, err)
	}
}
