/*
Package store defines the persistence collaborator consumed by the chat core.

It declares the document types for the three collections (messages, users, rooms)
and the typed CRUD interfaces the core operates against. Implementations live in
the memory and postgres subpackages; the core never depends on a concrete one.
*/
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups and updates whose target document does not exist.
// Callers in the chat core treat it as a silently-ignorable outcome: no event is
// broadcast for a mutation that found nothing.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned by inserts that violate a uniqueness constraint,
// such as creating a room whose name is already taken.
var ErrConflict = errors.New("store: conflict")

// Role is a per-room privilege level.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

// Visibility controls who may join a room.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityDirect  Visibility = "direct"
)

// PresenceStatus is a user's persisted availability state.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusAway    PresenceStatus = "away"
	StatusBusy    PresenceStatus = "busy"
	StatusOffline PresenceStatus = "offline"
)

// MessageKind classifies the body of a message.
type MessageKind string

const (
	KindText    MessageKind = "text"
	KindFile    MessageKind = "file"
	KindImage   MessageKind = "image"
	KindVoice   MessageKind = "voice"
	KindGif     MessageKind = "gif"
	KindSticker MessageKind = "sticker"
)

// Reaction is one emoji entry on a message. Users holds the distinct identities
// that reacted with this emoji; it never contains duplicates.
type Reaction struct {
	Emoji string   `json:"emoji"`
	Users []string `json:"users"`
}

// FileRef is the stable reference returned by the upload collaborator for a blob.
type FileRef struct {
	URL          string `json:"url"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimetype"`
	Size         int64  `json:"size"`
}

// GifRef carries rendering metadata for gif-kind messages.
type GifRef struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Preview string `json:"preview"`
}

// Message is one unit of conversation content. The authoritative copy lives in
// the persistence collaborator; the core never caches it beyond one request.
type Message struct {
	ID        string      `json:"id"`
	Room      string      `json:"room"`
	Sender    string      `json:"sender"`
	Body      string      `json:"message"`
	Kind      MessageKind `json:"messageType"`
	ReplyTo   string      `json:"replyTo,omitempty"`
	Mentions  []string    `json:"mentions,omitempty"`
	Reactions []Reaction  `json:"reactions"`
	ReadBy    []string    `json:"readBy"`
	Edited    bool        `json:"isEdited"`
	EditedAt  *time.Time  `json:"editedAt,omitempty"`
	Pinned    bool        `json:"isPinned"`
	Reported  bool        `json:"isReported"`
	Deleted   bool        `json:"isDeleted"`
	File      *FileRef    `json:"fileData,omitempty"`
	Gif       *GifRef     `json:"gifData,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Room is a named conversation scope. Name is unique among rooms and doubles as
// the broadcast routing key. Deleted rooms are soft-flagged (Active=false).
type Room struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedBy   string     `json:"createdBy"`
	Members     []string   `json:"members"`
	Moderators  []string   `json:"moderators"`
	Admins      []string   `json:"admins"`
	Banned      []string   `json:"bannedUsers"`
	Visibility  Visibility `json:"type"`
	Active      bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// User is the persisted profile record behind a display name.
type User struct {
	Username    string         `json:"username"`
	DisplayName string         `json:"displayName,omitempty"`
	Gender      string         `json:"gender,omitempty"`
	Country     string         `json:"country,omitempty"`
	Avatar      string         `json:"avatar,omitempty"`
	Bio         string         `json:"bio,omitempty"`
	Status      PresenceStatus `json:"status"`
	LastSeen    time.Time      `json:"lastSeen"`
}

// ProfileUpdate is the closed set of profile fields a client may change.
// Nil fields are left untouched.
type ProfileUpdate struct {
	DisplayName *string `json:"displayName,omitempty"`
	Gender      *string `json:"gender,omitempty"`
	Country     *string `json:"country,omitempty"`
	Avatar      *string `json:"avatar,omitempty"`
	Bio         *string `json:"bio,omitempty"`
}

// Messages is the message-collection contract. Update-style methods return the
// updated document, or ErrNotFound when the target id does not exist. The
// AddReactor/RemoveReactor/AddReader primitives are atomic: implementations must
// not lose concurrent updates to the same message.
type Messages interface {
	Insert(ctx context.Context, msg *Message) error
	Get(ctx context.Context, id string) (*Message, error)

	// Edit sets the body and edit markers. A soft-deleted message is not editable
	// and is reported as ErrNotFound.
	Edit(ctx context.Context, id, body string, editedAt time.Time) (*Message, error)

	// SoftDelete marks the message deleted without removing it.
	SoftDelete(ctx context.Context, id string) (*Message, error)

	// AddReactor adds user to the emoji's reactor set, creating the entry if
	// absent. Idempotent per (emoji, user).
	AddReactor(ctx context.Context, id, emoji, user string) (*Message, error)

	// RemoveReactor removes user from the emoji's reactor set and drops the
	// entry entirely once its set is empty.
	RemoveReactor(ctx context.Context, id, emoji, user string) (*Message, error)

	// AddReader appends user to readBy if absent. readBy only grows.
	AddReader(ctx context.Context, id, user string) (*Message, error)

	// MarkRoomRead appends user to readBy on every message in room not sent by
	// user and not yet read by them. Returns the number of messages affected.
	MarkRoomRead(ctx context.Context, room, user string) (int64, error)

	SetPinned(ctx context.Context, id string, pinned bool) (*Message, error)
	SetReported(ctx context.Context, id string, reported bool) (*Message, error)

	// List returns non-deleted messages in room, newest first, paginated.
	List(ctx context.Context, room string, limit, skip int) ([]Message, error)

	// Search matches query case-insensitively against body or sender,
	// excluding deleted messages, newest first, capped at limit.
	Search(ctx context.Context, room, query string, limit int) ([]Message, error)

	// ListPinned returns pinned, non-deleted messages in room, newest first.
	ListPinned(ctx context.Context, room string) ([]Message, error)

	// UnreadCount counts non-deleted messages in room not sent by user and not
	// read by them.
	UnreadCount(ctx context.Context, room, user string) (int64, error)

	// Count counts non-deleted messages in room, optionally for one sender.
	Count(ctx context.Context, room, sender string) (int64, error)
}

// Rooms is the room-collection contract. Membership and ban mutations use
// add-to-set/pull semantics and return the updated room, or ErrNotFound.
type Rooms interface {
	Insert(ctx context.Context, room *Room) error
	GetByID(ctx context.Context, id string) (*Room, error)
	GetByName(ctx context.Context, name string) (*Room, error)
	ListActive(ctx context.Context) ([]Room, error)
	ListByMember(ctx context.Context, user string) ([]Room, error)

	AddMember(ctx context.Context, name, user string) (*Room, error)
	RemoveMember(ctx context.Context, name, user string) (*Room, error)
	AddBan(ctx context.Context, name, user string) (*Room, error)
	RemoveBan(ctx context.Context, name, user string) (*Room, error)

	// Promote adds user to the moderator or admin set of the room.
	Promote(ctx context.Context, name, user string, role Role) (*Room, error)

	// SetActive soft-deletes (false) or restores (true) a room by id.
	SetActive(ctx context.Context, id string, active bool) (*Room, error)
}

// Users is the user-collection contract.
type Users interface {
	Upsert(ctx context.Context, user *User) error
	Get(ctx context.Context, username string) (*User, error)
	SetStatus(ctx context.Context, username string, status PresenceStatus, lastSeen time.Time) (*User, error)
	UpdateProfile(ctx context.Context, username string, update ProfileUpdate) (*User, error)
}

// Store bundles the three collections an implementation provides.
type Store struct {
	Messages Messages
	Rooms    Rooms
	Users    Users
}
