package chat

import (
	"context"
	"encoding/json"

	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
)

// HandleEvent decodes one inbound event and routes it to its handler. Unknown
// event names and undecodable payloads are reported to the sender and dropped;
// they never reach a room.
func (g *Gateway) HandleEvent(ctx context.Context, connID string, event EventName, raw json.RawMessage) {
	switch event {
	case EvtJoinRoom:
		var p JoinRoomPayload
		if g.decode(connID, raw, &p) {
			g.Join(ctx, connID, p)
		}
	case EvtSendMessage:
		var p SendMessagePayload
		if g.decode(connID, raw, &p) {
			g.Send(ctx, connID, p)
		}
	case EvtEditMessage:
		var p EditMessagePayload
		if g.decode(connID, raw, &p) {
			g.Edit(ctx, connID, p)
		}
	case EvtDeleteMessage:
		var p DeleteMessagePayload
		if g.decode(connID, raw, &p) {
			g.Delete(ctx, connID, p)
		}
	case EvtReactMessage:
		var p ReactMessagePayload
		if g.decode(connID, raw, &p) {
			g.React(ctx, connID, p)
		}
	case EvtMarkAsRead:
		var p MarkReadPayload
		if g.decode(connID, raw, &p) {
			g.MarkRead(ctx, connID, p)
		}
	case EvtMarkRoomAsRead:
		var p MarkRoomReadPayload
		if g.decode(connID, raw, &p) {
			g.MarkRoomRead(ctx, connID, p)
		}
	case EvtSearchMessages:
		var p SearchPayload
		if g.decode(connID, raw, &p) {
			g.Search(ctx, connID, p)
		}
	case EvtPinMessage:
		var p PinPayload
		if g.decode(connID, raw, &p) {
			g.Pin(ctx, connID, p)
		}
	case EvtUnpinMessage:
		var p PinPayload
		if g.decode(connID, raw, &p) {
			g.Unpin(ctx, connID, p)
		}
	case EvtReportMessage:
		var p ReportPayload
		if g.decode(connID, raw, &p) {
			g.Report(ctx, connID, p)
		}
	case EvtUploadFile:
		var p UploadFilePayload
		if g.decode(connID, raw, &p) {
			g.UploadFile(ctx, connID, p)
		}
	case EvtTyping:
		var p TypingPayload
		if g.decode(connID, raw, &p) {
			g.Typing(connID, p)
		}
	case EvtUpdateProfile:
		var p UpdateProfilePayload
		if g.decode(connID, raw, &p) {
			g.UpdateProfile(ctx, connID, p)
		}
	case EvtCreateRoom:
		var p CreateRoomPayload
		if g.decode(connID, raw, &p) {
			g.CreateRoom(ctx, connID, p)
		}
	case EvtJoinRoomByID:
		var p JoinRoomByIDPayload
		if g.decode(connID, raw, &p) {
			g.JoinRoomByID(ctx, connID, p)
		}
	case EvtDeleteRoom:
		var p DeleteRoomPayload
		if g.decode(connID, raw, &p) {
			g.DeleteRoom(ctx, connID, p)
		}
	case EvtKickUser:
		var p KickPayload
		if g.decode(connID, raw, &p) {
			g.Kick(ctx, connID, p)
		}
	case EvtBanUser:
		var p KickPayload
		if g.decode(connID, raw, &p) {
			g.Ban(ctx, connID, p)
		}
	case EvtPromoteUser:
		var p PromotePayload
		if g.decode(connID, raw, &p) {
			g.Promote(ctx, connID, p)
		}
	case EvtLeaveRoom:
		var p LeaveRoomPayload
		if g.decode(connID, raw, &p) {
			g.Leave(ctx, connID, p)
		}
	default:
		logx.Warn("unknown event received", "event", string(event))
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
	}
}

func (g *Gateway) decode(connID string, raw json.RawMessage, dst any) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		g.sendError(connID, errs.NewError(errs.ErrMalformedEvent))
		return false
	}
	return true
}
