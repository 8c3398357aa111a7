// Package protocol defines the wire surface of the room server: event names,
// inbound request shapes with their validation rules, and outbound payloads.
// Everything here is pure data; no registry state is touched.
package protocol

// Inbound events (connection -> server).
const (
	EvtCreateRoom      = "create-room"
	EvtJoinRoom        = "join-room"
	EvtSendMessage     = "send-message"
	EvtLeaveRoom       = "leave-room"
	EvtTypingStart     = "typing-start"
	EvtTypingStop      = "typing-stop"
	EvtListPublicRooms = "list-public-rooms"
	EvtGetRoomStats    = "get-room-stats"
)

// Outbound events (server -> connection, room, or everyone).
const (
	EvtRoomCreated        = "room-created"
	EvtRoomCreationFailed = "room-creation-failed"
	EvtJoinedRoom         = "joined-room"
	EvtJoinFailed         = "join-failed"
	EvtAlreadyInRoom      = "already-in-room"
	EvtNewMessage         = "new-message"
	EvtMessageFailed      = "message-failed"
	EvtUserJoined         = "user-joined"
	EvtUserLeft           = "user-left"
	EvtPublicRoomsList    = "public-rooms-list"
	EvtRoomStats          = "room-stats"
	EvtNewPublicRoom      = "new-public-room"
	EvtPublicRoomUpdated  = "public-room-updated"
	EvtPublicRoomDeleted  = "public-room-deleted"
	EvtUserTypingStart    = "user-typing-start"
	EvtUserTypingStop     = "user-typing-stop"
	EvtError              = "error"
)
