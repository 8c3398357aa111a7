package runtime

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"roomhub/contract"
	"roomhub/domain"
	"roomhub/errors"
	"roomhub/observability"
	"roomhub/protocol"
)

// EventRouter maps each inbound (connection, event, payload) to a validator
// call, a registry operation, and an emission plan. Validation failures are
// reported to the requesting connection only, with a kind-specific failure
// event; typing events are dropped silently when malformed.
type EventRouter struct {
	log      *slog.Logger
	registry *RoomRegistry
	emitter  contract.Emitter
	monitor  *observability.Monitor

	// postMu spans append-and-broadcast for messages. Every readPump
	// goroutine calls in here concurrently; new-message must reach a room
	// in history append order.
	postMu sync.Mutex
}

func NewEventRouter(log *slog.Logger, registry *RoomRegistry, emitter contract.Emitter, monitor *observability.Monitor) *EventRouter {
	return &EventRouter{log: log, registry: registry, emitter: emitter, monitor: monitor}
}

func (r *EventRouter) Handle(connectionID, event string, payload []byte) {
	switch event {
	case protocol.EvtCreateRoom:
		r.handleCreateRoom(connectionID, payload)
	case protocol.EvtJoinRoom:
		r.handleJoinRoom(connectionID, payload)
	case protocol.EvtSendMessage:
		r.handleSendMessage(connectionID, payload)
	case protocol.EvtLeaveRoom:
		r.handleLeaveRoom(connectionID, payload)
	case protocol.EvtTypingStart:
		r.handleTyping(connectionID, payload, protocol.EvtUserTypingStart)
	case protocol.EvtTypingStop:
		r.handleTyping(connectionID, payload, protocol.EvtUserTypingStop)
	case protocol.EvtListPublicRooms:
		r.handleListPublicRooms(connectionID)
	case protocol.EvtGetRoomStats:
		r.handleRoomStats(connectionID)
	default:
		r.log.Debug("Unknown inbound event", "event", event, "connection_id", connectionID)
		r.emitter.ToConnection(connectionID, protocol.EvtError, protocol.ErrorPayload{Message: "unknown event"})
	}
}

func (r *EventRouter) handleCreateRoom(connectionID string, payload []byte) {
	req, verr := protocol.DecodeCreateRoom(payload)
	if verr != nil {
		r.emitter.ToConnection(connectionID, protocol.EvtRoomCreationFailed, protocol.ErrorPayload{Message: verr.Reason})
		return
	}

	info, err := r.registry.CreateRoom(req.Name, req.Public())
	if err != nil {
		r.log.Error("Room code allocation failed", "error", err)
		r.emitter.ToConnection(connectionID, protocol.EvtRoomCreationFailed, protocol.ErrorPayload{Message: "unable to allocate room code"})
		return
	}
	r.monitor.IncrRoomsCreated()

	r.emitter.ToConnection(connectionID, protocol.EvtRoomCreated, protocol.RoomCreated{
		Code:       info.Code,
		Name:       info.Name,
		IsPublic:   info.Public,
		AutoJoined: req.AutoJoin(),
	})

	if info.Public {
		r.emitter.ToAll(protocol.EvtNewPublicRoom, protocol.PublicRoomSummary{
			Code:       info.Code,
			Name:       info.Name,
			UserCount:  0,
			LastActive: info.CreatedAt,
			CreatedAt:  info.CreatedAt,
		})
	}

	if req.AutoJoin() {
		r.join(connectionID, info.Code, req.UserID, req.UserName)
	}
}

func (r *EventRouter) handleJoinRoom(connectionID string, payload []byte) {
	req, verr := protocol.DecodeJoinRoom(payload)
	if verr != nil {
		r.emitter.ToConnection(connectionID, protocol.EvtJoinFailed, protocol.ErrorPayload{Message: verr.Reason})
		return
	}
	r.join(connectionID, req.RoomCode, req.UserID, req.Name)
}

// join runs the shared join flow for join-room and create-room auto-join.
func (r *EventRouter) join(connectionID, code, userID, displayName string) {
	result, err := r.registry.Join(code, domain.Member{
		ConnectionID: connectionID,
		UserID:       userID,
		DisplayName:  displayName,
	})
	switch err {
	case nil:
	case errors.ErrAlreadyMember:
		// Informational, not an error: duplicate join events are expected
		// from reconnecting clients.
		r.emitter.ToConnection(connectionID, protocol.EvtAlreadyInRoom, protocol.ErrorPayload{Message: err.Error()})
		return
	default:
		r.emitter.ToConnection(connectionID, protocol.EvtJoinFailed, protocol.ErrorPayload{Message: err.Error()})
		return
	}

	r.emitter.JoinGroup(connectionID, code)
	r.emitter.ToConnection(connectionID, protocol.EvtJoinedRoom, protocol.JoinedRoom{
		RoomCode: result.Code,
		RoomName: result.Name,
		Messages: protocol.ToMessagePayloads(result.History),
	})
	r.emitter.ToRoom(code, protocol.EvtUserJoined, protocol.UserJoined{
		UserCount: result.MemberCount,
		UserName:  displayName,
	})
	if result.Public {
		r.emitter.ToAll(protocol.EvtPublicRoomUpdated, protocol.PublicRoomUpdated{
			Code:       result.Code,
			UserCount:  result.MemberCount,
			LastActive: result.LastActiveAt,
		})
	}
}

func (r *EventRouter) handleSendMessage(connectionID string, payload []byte) {
	req, verr := protocol.DecodeSendMessage(payload)
	if verr != nil {
		r.emitter.ToConnection(connectionID, protocol.EvtMessageFailed, protocol.ErrorPayload{Message: verr.Reason})
		return
	}

	// One critical section from append to broadcast: a sender preempted
	// between the two would otherwise let a later append broadcast first.
	r.postMu.Lock()
	message, err := r.registry.PostMessage(req.RoomCode, connectionID, domain.Message{
		ID:         uuid.NewString(),
		Content:    req.Message,
		SenderID:   req.UserID,
		SenderName: req.Name,
	})
	if err != nil {
		r.postMu.Unlock()
		r.emitter.ToConnection(connectionID, protocol.EvtMessageFailed, protocol.ErrorPayload{Message: err.Error()})
		return
	}
	r.emitter.ToRoom(req.RoomCode, protocol.EvtNewMessage, protocol.ToMessagePayload(message))
	r.postMu.Unlock()

	r.monitor.IncrMessagesPosted()
}

func (r *EventRouter) handleLeaveRoom(connectionID string, payload []byte) {
	req, verr := protocol.DecodeLeaveRoom(payload)
	if verr != nil {
		r.emitter.ToConnection(connectionID, protocol.EvtError, protocol.ErrorPayload{Message: verr.Reason})
		return
	}

	result, ok := r.registry.Leave(req.RoomCode, connectionID)
	r.emitter.LeaveGroup(connectionID, req.RoomCode)
	if !ok {
		return
	}
	if result.DisplayName == "" {
		result.DisplayName = req.Name
	}
	r.announceLeave(result)
}

// Disconnect runs leave semantics for every room the connection was in. The
// transport may report the same disconnect twice; the registry treats the
// second pass as a no-op, so nothing is double-decremented.
func (r *EventRouter) Disconnect(connectionID string) {
	for _, result := range r.registry.RemoveConnection(connectionID) {
		r.emitter.LeaveGroup(connectionID, result.Code)
		r.announceLeave(result)
	}
}

// announceLeave fans a departure out: user-left to the remaining members,
// directory patches to everyone when the room is public. A deleted room gets
// no room-scoped emission, only the directory removal.
func (r *EventRouter) announceLeave(result LeaveResult) {
	if result.Deleted {
		r.monitor.IncrRoomsDeleted()
		if result.Public {
			r.emitter.ToAll(protocol.EvtPublicRoomDeleted, result.Code)
		}
		return
	}

	r.emitter.ToRoom(result.Code, protocol.EvtUserLeft, protocol.UserLeft{
		UserCount: result.MemberCount,
		UserName:  result.DisplayName,
	})
	if result.Public {
		r.emitter.ToAll(protocol.EvtPublicRoomUpdated, protocol.PublicRoomUpdated{
			Code:       result.Code,
			UserCount:  result.MemberCount,
			LastActive: result.LastActiveAt,
		})
	}
}

func (r *EventRouter) handleTyping(connectionID string, payload []byte, outbound string) {
	req, ok := protocol.DecodeTyping(payload)
	if !ok {
		return
	}
	// Typing is member-to-member traffic like messages are; an indicator
	// from a connection outside the room is dropped, not forwarded.
	if !r.registry.IsMember(req.RoomCode, connectionID) {
		return
	}
	// Never echo a typing indicator back to its sender.
	r.emitter.ToRoomExcept(req.RoomCode, connectionID, outbound, protocol.TypingPayload{
		UserName: req.UserName,
		UserID:   req.UserID,
	})
}

func (r *EventRouter) handleListPublicRooms(connectionID string) {
	summaries := protocol.ToPublicRoomSummaries(r.registry.ListPublicRooms())
	if summaries == nil {
		summaries = []protocol.PublicRoomSummary{}
	}
	r.emitter.ToConnection(connectionID, protocol.EvtPublicRoomsList, summaries)
}

func (r *EventRouter) handleRoomStats(connectionID string) {
	r.emitter.ToConnection(connectionID, protocol.EvtRoomStats, protocol.ToRoomStatsPayload(r.registry.Stats()))
}
