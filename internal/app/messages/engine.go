/*
Package messages implements the message-mutation protocol against the
persistence collaborator.

Every mutation targeting a missing message id resolves to (nil, nil) rather
than an error: callers must not broadcast anything when the result is nil,
which keeps already-disconnected or raced mutations silent instead of emitting
stale state.
*/
package messages

import (
	"context"
	"errors"
	"time"

	"chatrelay/internal/app/store"
	"chatrelay/internal/pkg/randx"
)

const (
	// DefaultHistoryLimit is how many recent messages a joining client receives.
	DefaultHistoryLimit = 100

	// SearchResultLimit caps the number of results per search.
	SearchResultLimit = 50
)

// Engine is the mutation engine over the message collection.
type Engine struct {
	msgs store.Messages
	now  func() time.Time
	id   func() string
}

// NewEngine constructs an Engine over the given message collection.
func NewEngine(msgs store.Messages) *Engine {
	return &Engine{
		msgs: msgs,
		now:  time.Now,
		id:   randx.MessageID,
	}
}

// WithClock overrides the engine's clock and id source. Test hook.
func (e *Engine) WithClock(now func() time.Time, id func() string) *Engine {
	e.now = now
	e.id = id
	return e
}

// swallowNotFound converts the store's not-found outcome into (nil, nil).
func swallowNotFound(m *store.Message, err error) (*store.Message, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return m, err
}

// CreateParams carries the sender-supplied fields of a new message.
type CreateParams struct {
	Room     string
	Sender   string
	Body     string
	Kind     store.MessageKind
	ReplyTo  string
	Mentions []string
	File     *store.FileRef
	Gif      *store.GifRef
}

// Create inserts a new message. Kind defaults to text and the sender is
// recorded as having read their own message at creation time.
func (e *Engine) Create(ctx context.Context, p CreateParams) (*store.Message, error) {
	kind := p.Kind
	if kind == "" {
		kind = store.KindText
	}

	msg := &store.Message{
		ID:        e.id(),
		Room:      p.Room,
		Sender:    p.Sender,
		Body:      p.Body,
		Kind:      kind,
		ReplyTo:   p.ReplyTo,
		Mentions:  p.Mentions,
		Reactions: []store.Reaction{},
		ReadBy:    []string{p.Sender},
		File:      p.File,
		Gif:       p.Gif,
		CreatedAt: e.now(),
	}

	if err := e.msgs.Insert(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// CreateFile inserts a file-kind message for an uploaded blob, classifying the
// kind from the blob's MIME type (image/* and audio/* get their own kinds).
func (e *Engine) CreateFile(ctx context.Context, room, sender string, file store.FileRef) (*store.Message, error) {
	return e.Create(ctx, CreateParams{
		Room:   room,
		Sender: sender,
		Body:   file.OriginalName,
		Kind:   ClassifyKind(file.MimeType),
		File:   &file,
	})
}

// ClassifyKind maps an upload MIME type to a message kind.
func ClassifyKind(mimeType string) store.MessageKind {
	switch {
	case len(mimeType) >= 6 && mimeType[:6] == "image/":
		return store.KindImage
	case len(mimeType) >= 6 && mimeType[:6] == "audio/":
		return store.KindVoice
	default:
		return store.KindFile
	}
}

// Edit replaces the body of an existing, non-deleted message.
func (e *Engine) Edit(ctx context.Context, id, body string) (*store.Message, error) {
	return swallowNotFound(e.msgs.Edit(ctx, id, body, e.now()))
}

// Delete soft-deletes a message. The record stays addressable for notifications.
func (e *Engine) Delete(ctx context.Context, id string) (*store.Message, error) {
	return swallowNotFound(e.msgs.SoftDelete(ctx, id))
}

// AddReaction records user's reaction under emoji. Idempotent.
func (e *Engine) AddReaction(ctx context.Context, id, emoji, user string) (*store.Message, error) {
	return swallowNotFound(e.msgs.AddReactor(ctx, id, emoji, user))
}

// RemoveReaction withdraws user's reaction under emoji; an emptied emoji entry
// is dropped.
func (e *Engine) RemoveReaction(ctx context.Context, id, emoji, user string) (*store.Message, error) {
	return swallowNotFound(e.msgs.RemoveReactor(ctx, id, emoji, user))
}

// MarkRead records that user has read the message. Idempotent; readBy only grows.
func (e *Engine) MarkRead(ctx context.Context, id, user string) (*store.Message, error) {
	return swallowNotFound(e.msgs.AddReader(ctx, id, user))
}

// MarkRoomRead marks every foreign, unread message in room as read by user.
// Returns the number of messages affected.
func (e *Engine) MarkRoomRead(ctx context.Context, room, user string) (int64, error) {
	return e.msgs.MarkRoomRead(ctx, room, user)
}

// Pin flags a message as pinned.
func (e *Engine) Pin(ctx context.Context, id string) (*store.Message, error) {
	return swallowNotFound(e.msgs.SetPinned(ctx, id, true))
}

// Unpin clears a message's pinned flag.
func (e *Engine) Unpin(ctx context.Context, id string) (*store.Message, error) {
	return swallowNotFound(e.msgs.SetPinned(ctx, id, false))
}

// Report flags a message as reported for moderator review.
func (e *Engine) Report(ctx context.Context, id string) (*store.Message, error) {
	return swallowNotFound(e.msgs.SetReported(ctx, id, true))
}

// List returns non-deleted room history, newest first.
func (e *Engine) List(ctx context.Context, room string, limit, skip int) ([]store.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return e.msgs.List(ctx, room, limit, skip)
}

// Search performs a case-insensitive substring match on body or sender.
func (e *Engine) Search(ctx context.Context, room, query string) ([]store.Message, error) {
	return e.msgs.Search(ctx, room, query, SearchResultLimit)
}

// ListPinned returns the room's pinned, non-deleted messages, newest first.
func (e *Engine) ListPinned(ctx context.Context, room string) ([]store.Message, error) {
	return e.msgs.ListPinned(ctx, room)
}

// UnreadCount counts messages in room user has not read and did not send.
func (e *Engine) UnreadCount(ctx context.Context, room, user string) (int64, error) {
	return e.msgs.UnreadCount(ctx, room, user)
}

// Count counts non-deleted messages in room; sender narrows to one identity
// when non-empty.
func (e *Engine) Count(ctx context.Context, room, sender string) (int64, error) {
	return e.msgs.Count(ctx, room, sender)
}
