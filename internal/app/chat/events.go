/*
Package chat contains the core logic for room sessions.

This file defines the wire-level event catalogue: inbound event names and
payload structures, outbound event names and payload structures, and the
Transport interface through which the gateway delivers events. Keeping the
transport behind an interface keeps the state-mutation logic testable without
a live socket layer.
*/
package chat

import (
	"chatrelay/internal/app/store"
)

// EventName identifies an event on the client protocol.
type EventName string

// Inbound events.
const (
	EvtJoinRoom       EventName = "joinRoom"
	EvtSendMessage    EventName = "sendMessage"
	EvtEditMessage    EventName = "editMessage"
	EvtDeleteMessage  EventName = "deleteMessage"
	EvtReactMessage   EventName = "reactMessage"
	EvtMarkAsRead     EventName = "markAsRead"
	EvtMarkRoomAsRead EventName = "markRoomAsRead"
	EvtSearchMessages EventName = "searchMessages"
	EvtPinMessage     EventName = "pinMessage"
	EvtUnpinMessage   EventName = "unpinMessage"
	EvtReportMessage  EventName = "reportMessage"
	EvtUploadFile     EventName = "uploadFile"
	EvtTyping         EventName = "typing"
	EvtUpdateProfile  EventName = "updateProfile"
	EvtCreateRoom     EventName = "createRoom"
	EvtJoinRoomByID   EventName = "joinRoomById"
	EvtDeleteRoom     EventName = "deleteRoom"
	EvtKickUser       EventName = "kickUser"
	EvtBanUser        EventName = "banUser"
	EvtPromoteUser    EventName = "promoteUser"
	EvtLeaveRoom      EventName = "leaveRoom"
)

// Outbound events.
const (
	EvtLoadMessages       EventName = "loadMessages"
	EvtLoadPinnedMessages EventName = "loadPinnedMessages"
	EvtUnreadCount        EventName = "unreadCount"
	EvtReceiveMessage     EventName = "receiveMessage"
	EvtMessageEdited      EventName = "messageEdited"
	EvtMessageDeleted     EventName = "messageDeleted"
	EvtMessageReaction    EventName = "messageReaction"
	EvtMessageRead        EventName = "messageRead"
	EvtRoomMarkedAsRead   EventName = "roomMarkedAsRead"
	EvtMessagePinned      EventName = "messagePinned"
	EvtMessageUnpinned    EventName = "messageUnpinned"
	EvtSearchResults      EventName = "searchResults"
	EvtMention            EventName = "mention"
	EvtUserEvent          EventName = "userEvent"
	EvtUpdateUsers        EventName = "updateUsers"
	EvtUserTyping         EventName = "userTyping"
	EvtUserKicked         EventName = "userKicked"
	EvtUserBanned         EventName = "userBanned"
	EvtUserPromoted       EventName = "userPromoted"
	EvtUserProfileUpdated EventName = "userProfileUpdated"
	EvtProfileUpdated     EventName = "profileUpdateSuccess"
	EvtMessageReported    EventName = "messageReported"
	EvtReportSuccess      EventName = "reportSuccess"
	EvtKicked             EventName = "kicked"
	EvtBanned             EventName = "banned"
	EvtJoinedRoom         EventName = "joinedRoom"
	EvtRoomCreated        EventName = "roomCreated"
	EvtRoomDeleted        EventName = "roomDeleted"
	EvtRoomListUpdated    EventName = "roomListUpdated"
	EvtError              EventName = "error"
)

// Transport is the delivery boundary the gateway emits through. Broadcast
// delivery is fire-and-forget; a recipient that is gone is simply not reached.
type Transport interface {
	// ToConn delivers an event to exactly one connection.
	ToConn(connID string, event EventName, payload any)

	// ToRoom delivers an event to every connection joined to the room.
	ToRoom(room string, event EventName, payload any)

	// ToRoomExcept delivers to every room connection except one.
	ToRoomExcept(room, exceptConn string, event EventName, payload any)

	// ToAll delivers an event to every connection.
	ToAll(event EventName, payload any)

	// JoinRoom and LeaveRoom maintain the transport's room membership used by
	// ToRoom, keyed by the same room name as the data model.
	JoinRoom(connID, room string)
	LeaveRoom(connID, room string)

	// CloseConn forcibly closes a connection, e.g. after a kick.
	CloseConn(connID, reason string)
}

// --- inbound payloads ---

// JoinRoomPayload carries the identity profile joining a room by name.
type JoinRoomPayload struct {
	Room     string `json:"room"`
	Username string `json:"username"`
	Gender   string `json:"gender,omitempty"`
	Country  string `json:"country,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// SendMessagePayload carries one outgoing message.
type SendMessagePayload struct {
	Room        string            `json:"room"`
	Username    string            `json:"username"`
	Message     string            `json:"message"`
	MessageType store.MessageKind `json:"messageType,omitempty"`
	ReplyTo     string            `json:"replyTo,omitempty"`
	Mentions    []string          `json:"mentions,omitempty"`
	GifData     *store.GifRef     `json:"gifData,omitempty"`
}

type EditMessagePayload struct {
	Room       string `json:"room"`
	MessageID  string `json:"messageId"`
	NewMessage string `json:"newMessage"`
}

type DeleteMessagePayload struct {
	Room      string `json:"room"`
	MessageID string `json:"messageId"`
}

// ReactMessagePayload carries a reaction add/remove toggle.
type ReactMessagePayload struct {
	Room      string `json:"room"`
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	Username  string `json:"username"`
	Action    string `json:"action"` // "add" or "remove"
}

type MarkReadPayload struct {
	Room      string `json:"room"`
	MessageID string `json:"messageId"`
	Username  string `json:"username"`
}

type MarkRoomReadPayload struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

type SearchPayload struct {
	Room  string `json:"room"`
	Query string `json:"query"`
}

type PinPayload struct {
	Room      string `json:"room"`
	MessageID string `json:"messageId"`
}

type ReportPayload struct {
	Room       string `json:"room"`
	MessageID  string `json:"messageId"`
	ReportedBy string `json:"reportedBy"`
	Reason     string `json:"reason,omitempty"`
}

type UploadFilePayload struct {
	Room     string        `json:"room"`
	Username string        `json:"username"`
	FileData store.FileRef `json:"fileData"`
}

type TypingPayload struct {
	Room     string `json:"room"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type UpdateProfilePayload struct {
	Username string              `json:"username"`
	Updates  store.ProfileUpdate `json:"updates"`
}

type CreateRoomPayload struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Type        store.Visibility `json:"type,omitempty"`
	CreatedBy   string           `json:"createdBy"`
}

type JoinRoomByIDPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	Gender   string `json:"gender,omitempty"`
	Country  string `json:"country,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

type DeleteRoomPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

// KickPayload doubles for kickUser and banUser.
type KickPayload struct {
	Room     string `json:"room"`
	Username string `json:"username"`
	By       string `json:"by"`
}

type PromotePayload struct {
	Room     string     `json:"room"`
	Username string     `json:"username"`
	Role     store.Role `json:"role"`
	By       string     `json:"by"`
}

type LeaveRoomPayload struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// --- outbound payloads ---

// UserEventPayload announces a join or leave to a room.
type UserEventPayload struct {
	Type     string `json:"type"` // "join" or "leave"
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type TypingEventPayload struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// MentionPayload is unicast to each mentioned identity present in the room.
type MentionPayload struct {
	MessageID   string `json:"messageId"`
	MentionedBy string `json:"mentionedBy"`
	Message     string `json:"message"`
}

type ReactionEventPayload struct {
	MessageID string           `json:"messageId"`
	Reactions []store.Reaction `json:"reactions"`
}

type ReadEventPayload struct {
	MessageID string   `json:"messageId"`
	ReadBy    []string `json:"readBy"`
}

type RoomReadPayload struct {
	Username string `json:"username"`
}

type MessageRefPayload struct {
	MessageID string `json:"messageId"`
}

type KickedPayload struct {
	Room string `json:"room"`
	By   string `json:"by"`
}

// ModeratedPayload announces a kick or ban to the room.
type ModeratedPayload struct {
	Username string `json:"username"`
	By       string `json:"by"`
}

type PromotedPayload struct {
	Username string     `json:"username"`
	Role     store.Role `json:"role"`
	By       string     `json:"by"`
}

type ReportedPayload struct {
	MessageID  string `json:"messageId"`
	ReportedBy string `json:"reportedBy"`
	Reason     string `json:"reason,omitempty"`
}

type ProfileUpdatedPayload struct {
	Username string              `json:"username"`
	Updates  store.ProfileUpdate `json:"updates"`
}

type RoomDeletedPayload struct {
	RoomID string `json:"roomId"`
}

// ErrorPayload carries a policy rejection or infrastructure failure to the
// originating connection only.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
