package chat

import (
	"context"

	"chatrelay/internal/app/messages"
	"chatrelay/internal/app/store"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/metrics"
)

// MaxMessageLength caps the body of a single message.
const MaxMessageLength = 2000

// Send persists a new message and fans it out. Senders over the sliding-window
// rate limit are rejected with an error event; the room sees nothing.
func (g *Gateway) Send(ctx context.Context, connID string, p SendMessagePayload) {
	if p.Room == "" || p.Username == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}
	if p.Message == "" && p.GifData == nil {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}
	if len(p.Message) > MaxMessageLength {
		g.sendError(connID, errs.NewError(errs.ErrMessageContentTooLong))
		return
	}

	if !g.limiter.Allow(p.Username) {
		metrics.SendRateLimited()
		g.sendError(connID, errs.NewError(errs.ErrMessageRateLimited))
		return
	}

	kind := p.MessageType
	if p.GifData != nil {
		kind = store.KindGif
	}

	msg, err := g.engine.Create(ctx, messages.CreateParams{
		Room:     p.Room,
		Sender:   p.Username,
		Body:     p.Message,
		Kind:     kind,
		ReplyTo:  p.ReplyTo,
		Mentions: p.Mentions,
		Gif:      p.GifData,
	})
	if err != nil {
		logx.Error(err, "message create failed", "room", p.Room)
		g.sendError(connID, errs.NewError(errs.ErrSendFailed))
		return
	}
	metrics.MessageCreated()

	g.transport.ToRoom(p.Room, EvtReceiveMessage, msg)
	g.notifyMentions(p.Room, msg)
}

// notifyMentions unicasts a mention event to each mentioned identity currently
// present in the room. Absent identities are skipped; delivery is exactly once
// per mentioned name, to its most recent connection.
func (g *Gateway) notifyMentions(room string, msg *store.Message) {
	for _, name := range msg.Mentions {
		conn, ok := g.presence.ConnForUser(room, name)
		if !ok {
			continue
		}
		g.transport.ToConn(conn, EvtMention, MentionPayload{
			MessageID:   msg.ID,
			MentionedBy: msg.Sender,
			Message:     msg.Body,
		})
	}
}

// Edit replaces the body of an existing message and broadcasts the updated
// document. Editing a missing or deleted message produces no event at all.
func (g *Gateway) Edit(ctx context.Context, connID string, p EditMessagePayload) {
	if p.Room == "" || p.MessageID == "" || p.NewMessage == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}
	if len(p.NewMessage) > MaxMessageLength {
		g.sendError(connID, errs.NewError(errs.ErrMessageContentTooLong))
		return
	}

	updated, err := g.engine.Edit(ctx, p.MessageID, p.NewMessage)
	if err != nil {
		g.storeFailure(connID, "editMessage", err)
		return
	}
	if updated == nil {
		return
	}
	g.transport.ToRoom(p.Room, EvtMessageEdited, updated)
}

// Delete soft-deletes a message and broadcasts the removal by id.
func (g *Gateway) Delete(ctx context.Context, connID string, p DeleteMessagePayload) {
	if p.Room == "" || p.MessageID == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}

	deleted, err := g.engine.Delete(ctx, p.MessageID)
	if err != nil {
		g.storeFailure(connID, "deleteMessage", err)
		return
	}
	if deleted == nil {
		return
	}
	if g.blobs != nil && deleted.File != nil && deleted.File.Filename != "" {
		if err := g.blobs.Delete(ctx, deleted.File.Filename); err != nil {
			logx.Warn("blob cleanup failed", "key", deleted.File.Filename, "error", err.Error())
		}
	}
	g.transport.ToRoom(p.Room, EvtMessageDeleted, MessageRefPayload{MessageID: p.MessageID})
}

// React toggles a reaction on a message and broadcasts the resulting reaction
// set. The add/remove primitives are atomic in the store, so concurrent
// reactions to the same message never lose each other.
func (g *Gateway) React(ctx context.Context, connID string, p ReactMessagePayload) {
	if p.Room == "" || p.MessageID == "" || p.Emoji == "" || p.Username == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}

	var (
		updated *store.Message
		err     error
	)
	switch p.Action {
	case "remove":
		updated, err = g.engine.RemoveReaction(ctx, p.MessageID, p.Emoji, p.Username)
	case "", "add":
		updated, err = g.engine.AddReaction(ctx, p.MessageID, p.Emoji, p.Username)
	default:
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}
	if err != nil {
		g.storeFailure(connID, "reactMessage", err)
		return
	}
	if updated == nil {
		return
	}

	g.transport.ToRoom(p.Room, EvtMessageReaction, ReactionEventPayload{
		MessageID: updated.ID,
		Reactions: updated.Reactions,
	})
}

// MarkRead records a read receipt on one message and broadcasts the grown
// reader set.
func (g *Gateway) MarkRead(ctx context.Context, connID string, p MarkReadPayload) {
	if p.Room == "" || p.MessageID == "" || p.Username == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}

	updated, err := g.engine.MarkRead(ctx, p.MessageID, p.Username)
	if err != nil {
		g.storeFailure(connID, "markAsRead", err)
		return
	}
	if updated == nil {
		return
	}
	g.transport.ToRoom(p.Room, EvtMessageRead, ReadEventPayload{
		MessageID: updated.ID,
		ReadBy:    updated.ReadBy,
	})
}

// MarkRoomRead marks every unread message in the room as read by the user and
// announces the catch-up once, regardless of how many messages it touched.
func (g *Gateway) MarkRoomRead(ctx context.Context, connID string, p MarkRoomReadPayload) {
	if p.Room == "" || p.Username == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}

	if _, err := g.engine.MarkRoomRead(ctx, p.Room, p.Username); err != nil {
		g.storeFailure(connID, "markRoomAsRead", err)
		return
	}
	g.transport.ToRoom(p.Room, EvtRoomMarkedAsRead, RoomReadPayload{Username: p.Username})
}

// Search runs a room-scoped content search and returns results to the asking
// connection only.
func (g *Gateway) Search(ctx context.Context, connID string, p SearchPayload) {
	if p.Room == "" || p.Query == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}

	results, err := g.engine.Search(ctx, p.Room, p.Query)
	if err != nil {
		g.storeFailure(connID, "searchMessages", err)
		return
	}
	g.transport.ToConn(connID, EvtSearchResults, results)
}

// Pin marks a message pinned and broadcasts the full updated message.
func (g *Gateway) Pin(ctx context.Context, connID string, p PinPayload) {
	if p.Room == "" || p.MessageID == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}

	updated, err := g.engine.Pin(ctx, p.MessageID)
	if err != nil {
		g.storeFailure(connID, "pinMessage", err)
		return
	}
	if updated == nil {
		return
	}
	g.transport.ToRoom(p.Room, EvtMessagePinned, updated)
}

// Unpin clears the pin flag and broadcasts the removal by id.
func (g *Gateway) Unpin(ctx context.Context, connID string, p PinPayload) {
	if p.Room == "" || p.MessageID == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}

	updated, err := g.engine.Unpin(ctx, p.MessageID)
	if err != nil {
		g.storeFailure(connID, "unpinMessage", err)
		return
	}
	if updated == nil {
		return
	}
	g.transport.ToRoom(p.Room, EvtMessageUnpinned, MessageRefPayload{MessageID: p.MessageID})
}

// Report flags a message, notifies the room and confirms to the reporter.
func (g *Gateway) Report(ctx context.Context, connID string, p ReportPayload) {
	if p.Room == "" || p.MessageID == "" || p.ReportedBy == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}

	updated, err := g.engine.Report(ctx, p.MessageID)
	if err != nil {
		g.storeFailure(connID, "reportMessage", err)
		return
	}
	if updated == nil {
		return
	}

	g.transport.ToRoom(p.Room, EvtMessageReported, ReportedPayload{
		MessageID:  updated.ID,
		ReportedBy: p.ReportedBy,
		Reason:     p.Reason,
	})
	g.transport.ToConn(connID, EvtReportSuccess, MessageRefPayload{MessageID: updated.ID})
}

// UploadFile records an already-stored blob as a file message and fans it out
// like any other message. The blob itself was uploaded over HTTP beforehand;
// this event only carries its reference.
func (g *Gateway) UploadFile(ctx context.Context, connID string, p UploadFilePayload) {
	if p.Room == "" || p.Username == "" || p.FileData.URL == "" {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return
	}

	msg, err := g.engine.CreateFile(ctx, p.Room, p.Username, p.FileData)
	if err != nil {
		logx.Error(err, "file message create failed", "room", p.Room)
		g.sendError(connID, errs.NewError(errs.ErrSendFailed))
		return
	}
	metrics.MessageCreated()

	g.transport.ToRoom(p.Room, EvtReceiveMessage, msg)
}
