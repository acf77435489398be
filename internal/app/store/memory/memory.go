/*
Package memory provides an in-process implementation of the store interfaces.

It backs development mode and the test suite. All three collections live behind
one mutex; returned documents are deep copies so callers never observe later
mutations through a shared pointer.
*/
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"chatrelay/internal/app/store"
)

// DB holds the three in-memory collections.
type DB struct {
	mu       sync.Mutex
	messages map[string]*store.Message
	rooms    map[string]*store.Room // keyed by id
	users    map[string]*store.User // keyed by username
}

// New returns an empty in-memory store.
func New() *DB {
	return &DB{
		messages: make(map[string]*store.Message),
		rooms:    make(map[string]*store.Room),
		users:    make(map[string]*store.User),
	}
}

// Store exposes the DB as the three collection interfaces.
func (d *DB) Store() store.Store {
	return store.Store{
		Messages: (*messageColl)(d),
		Rooms:    (*roomColl)(d),
		Users:    (*userColl)(d),
	}
}

func cloneStrings(src []string) []string {
	if src == nil {
		return nil
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

func cloneMessage(m *store.Message) *store.Message {
	cp := *m
	cp.Mentions = cloneStrings(m.Mentions)
	cp.ReadBy = cloneStrings(m.ReadBy)
	cp.Reactions = make([]store.Reaction, len(m.Reactions))
	for i, r := range m.Reactions {
		cp.Reactions[i] = store.Reaction{Emoji: r.Emoji, Users: cloneStrings(r.Users)}
	}
	if m.File != nil {
		f := *m.File
		cp.File = &f
	}
	if m.Gif != nil {
		g := *m.Gif
		cp.Gif = &g
	}
	if m.EditedAt != nil {
		t := *m.EditedAt
		cp.EditedAt = &t
	}
	return &cp
}

func cloneRoom(r *store.Room) *store.Room {
	cp := *r
	cp.Members = cloneStrings(r.Members)
	cp.Moderators = cloneStrings(r.Moderators)
	cp.Admins = cloneStrings(r.Admins)
	cp.Banned = cloneStrings(r.Banned)
	return &cp
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func remove(set []string, v string) []string {
	out := set[:0]
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

// ---- messages ----

type messageColl DB

func (c *messageColl) Insert(_ context.Context, msg *store.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages[msg.ID] = cloneMessage(msg)
	return nil
}

func (c *messageColl) Get(_ context.Context, id string) (*store.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneMessage(m), nil
}

// update applies fn to the message under the lock and returns a copy.
// fn returning false means the document does not qualify (treated as not found).
func (c *messageColl) update(id string, fn func(*store.Message) bool) (*store.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.messages[id]
	if !ok || !fn(m) {
		return nil, store.ErrNotFound
	}
	return cloneMessage(m), nil
}

func (c *messageColl) Edit(_ context.Context, id, body string, editedAt time.Time) (*store.Message, error) {
	return c.update(id, func(m *store.Message) bool {
		if m.Deleted {
			return false
		}
		m.Body = body
		m.Edited = true
		t := editedAt
		m.EditedAt = &t
		return true
	})
}

func (c *messageColl) SoftDelete(_ context.Context, id string) (*store.Message, error) {
	return c.update(id, func(m *store.Message) bool {
		m.Deleted = true
		return true
	})
}

func (c *messageColl) AddReactor(_ context.Context, id, emoji, user string) (*store.Message, error) {
	return c.update(id, func(m *store.Message) bool {
		for i := range m.Reactions {
			if m.Reactions[i].Emoji == emoji {
				if !contains(m.Reactions[i].Users, user) {
					m.Reactions[i].Users = append(m.Reactions[i].Users, user)
				}
				return true
			}
		}
		m.Reactions = append(m.Reactions, store.Reaction{Emoji: emoji, Users: []string{user}})
		return true
	})
}

func (c *messageColl) RemoveReactor(_ context.Context, id, emoji, user string) (*store.Message, error) {
	return c.update(id, func(m *store.Message) bool {
		kept := m.Reactions[:0]
		for _, r := range m.Reactions {
			if r.Emoji == emoji {
				r.Users = remove(r.Users, user)
			}
			if len(r.Users) > 0 {
				kept = append(kept, r)
			}
		}
		m.Reactions = kept
		return true
	})
}

func (c *messageColl) AddReader(_ context.Context, id, user string) (*store.Message, error) {
	return c.update(id, func(m *store.Message) bool {
		if !contains(m.ReadBy, user) {
			m.ReadBy = append(m.ReadBy, user)
		}
		return true
	})
}

func (c *messageColl) MarkRoomRead(_ context.Context, room, user string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var affected int64
	for _, m := range c.messages {
		if m.Room == room && m.Sender != user && !contains(m.ReadBy, user) {
			m.ReadBy = append(m.ReadBy, user)
			affected++
		}
	}
	return affected, nil
}

func (c *messageColl) SetPinned(_ context.Context, id string, pinned bool) (*store.Message, error) {
	return c.update(id, func(m *store.Message) bool {
		m.Pinned = pinned
		return true
	})
}

func (c *messageColl) SetReported(_ context.Context, id string, reported bool) (*store.Message, error) {
	return c.update(id, func(m *store.Message) bool {
		m.Reported = reported
		return true
	})
}

// listWhere collects matches newest first.
func (c *messageColl) listWhere(pred func(*store.Message) bool) []store.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []store.Message
	for _, m := range c.messages {
		if pred(m) {
			out = append(out, *cloneMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (c *messageColl) List(_ context.Context, room string, limit, skip int) ([]store.Message, error) {
	all := c.listWhere(func(m *store.Message) bool {
		return m.Room == room && !m.Deleted
	})

	if skip >= len(all) {
		return []store.Message{}, nil
	}
	all = all[skip:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (c *messageColl) Search(_ context.Context, room, query string, limit int) ([]store.Message, error) {
	q := strings.ToLower(query)

	all := c.listWhere(func(m *store.Message) bool {
		if m.Room != room || m.Deleted {
			return false
		}
		return strings.Contains(strings.ToLower(m.Body), q) ||
			strings.Contains(strings.ToLower(m.Sender), q)
	})

	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (c *messageColl) ListPinned(_ context.Context, room string) ([]store.Message, error) {
	return c.listWhere(func(m *store.Message) bool {
		return m.Room == room && m.Pinned && !m.Deleted
	}), nil
}

func (c *messageColl) UnreadCount(_ context.Context, room, user string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	for _, m := range c.messages {
		if m.Room == room && !m.Deleted && m.Sender != user && !contains(m.ReadBy, user) {
			n++
		}
	}
	return n, nil
}

func (c *messageColl) Count(_ context.Context, room, sender string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	for _, m := range c.messages {
		if m.Room == room && !m.Deleted && (sender == "" || m.Sender == sender) {
			n++
		}
	}
	return n, nil
}

// ---- rooms ----

type roomColl DB

func (c *roomColl) Insert(_ context.Context, room *store.Room) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.rooms {
		if r.Name == room.Name {
			return store.ErrConflict
		}
	}
	c.rooms[room.ID] = cloneRoom(room)
	return nil
}

func (c *roomColl) GetByID(_ context.Context, id string) (*store.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.rooms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneRoom(r), nil
}

func (c *roomColl) GetByName(_ context.Context, name string) (*store.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r := c.byName(name); r != nil {
		return cloneRoom(r), nil
	}
	return nil, store.ErrNotFound
}

// byName is called with the lock held.
func (c *roomColl) byName(name string) *store.Room {
	for _, r := range c.rooms {
		if r.Name == name {
			return r
		}
	}
	return nil
}

func (c *roomColl) ListActive(_ context.Context) ([]store.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []store.Room
	for _, r := range c.rooms {
		if r.Active {
			out = append(out, *cloneRoom(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *roomColl) ListByMember(_ context.Context, user string) ([]store.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []store.Room
	for _, r := range c.rooms {
		if r.Active && contains(r.Members, user) {
			out = append(out, *cloneRoom(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *roomColl) updateByName(name string, fn func(*store.Room)) (*store.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.byName(name)
	if r == nil {
		return nil, store.ErrNotFound
	}
	fn(r)
	return cloneRoom(r), nil
}

func (c *roomColl) AddMember(_ context.Context, name, user string) (*store.Room, error) {
	return c.updateByName(name, func(r *store.Room) {
		if !contains(r.Members, user) {
			r.Members = append(r.Members, user)
		}
	})
}

func (c *roomColl) RemoveMember(_ context.Context, name, user string) (*store.Room, error) {
	return c.updateByName(name, func(r *store.Room) {
		r.Members = remove(r.Members, user)
	})
}

func (c *roomColl) AddBan(_ context.Context, name, user string) (*store.Room, error) {
	return c.updateByName(name, func(r *store.Room) {
		if !contains(r.Banned, user) {
			r.Banned = append(r.Banned, user)
		}
	})
}

func (c *roomColl) RemoveBan(_ context.Context, name, user string) (*store.Room, error) {
	return c.updateByName(name, func(r *store.Room) {
		r.Banned = remove(r.Banned, user)
	})
}

func (c *roomColl) Promote(_ context.Context, name, user string, role store.Role) (*store.Room, error) {
	return c.updateByName(name, func(r *store.Room) {
		switch role {
		case store.RoleAdmin:
			if !contains(r.Admins, user) {
				r.Admins = append(r.Admins, user)
			}
		case store.RoleModerator:
			if !contains(r.Moderators, user) {
				r.Moderators = append(r.Moderators, user)
			}
		}
	})
}

func (c *roomColl) SetActive(_ context.Context, id string, active bool) (*store.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.rooms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.Active = active
	return cloneRoom(r), nil
}

// ---- users ----

type userColl DB

func (c *userColl) Upsert(_ context.Context, user *store.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *user
	c.users[user.Username] = &cp
	return nil
}

func (c *userColl) Get(_ context.Context, username string) (*store.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (c *userColl) SetStatus(_ context.Context, username string, status store.PresenceStatus, lastSeen time.Time) (*store.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.users[username]
	if !ok {
		// Presence updates arrive for identities that never registered a
		// profile; create the record on the fly like a mongo upsert would.
		u = &store.User{Username: username}
		c.users[username] = u
	}
	u.Status = status
	u.LastSeen = lastSeen
	cp := *u
	return &cp, nil
}

func (c *userColl) UpdateProfile(_ context.Context, username string, update store.ProfileUpdate) (*store.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	if update.DisplayName != nil {
		u.DisplayName = *update.DisplayName
	}
	if update.Gender != nil {
		u.Gender = *update.Gender
	}
	if update.Country != nil {
		u.Country = *update.Country
	}
	if update.Avatar != nil {
		u.Avatar = *update.Avatar
	}
	if update.Bio != nil {
		u.Bio = *update.Bio
	}
	cp := *u
	return &cp, nil
}
