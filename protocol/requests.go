package protocol

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidationError rejects a malformed request before it touches registry
// state. It is data, not control flow: handlers report it to the requesting
// connection only.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalid(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

// Envelope is the frame every inbound websocket message carries.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type CreateRoomRequest struct {
	Name     string `json:"name" validate:"required,max=50"`
	IsPublic *bool  `json:"isPublic"`
	UserID   string `json:"userId" validate:"omitempty,uuid"`
	UserName string `json:"userName" validate:"omitempty,max=30"`
}

// Public reports the normalized visibility flag; rooms default to public.
func (r CreateRoomRequest) Public() bool {
	return r.IsPublic == nil || *r.IsPublic
}

// AutoJoin reports whether the creator supplied an identity and should be
// joined to the room as part of creation.
func (r CreateRoomRequest) AutoJoin() bool {
	return r.UserID != "" && r.UserName != ""
}

type JoinRoomRequest struct {
	RoomCode string `json:"roomCode" validate:"required,len=6,hexadecimal,uppercase"`
	UserID   string `json:"userId" validate:"required,uuid"`
	Name     string `json:"name" validate:"required,max=30"`
}

type SendMessageRequest struct {
	RoomCode string `json:"roomCode" validate:"required,len=6,hexadecimal,uppercase"`
	UserID   string `json:"userId" validate:"required,uuid"`
	Name     string `json:"name" validate:"required,max=30"`
	Message  string `json:"message" validate:"required,max=500"`
}

type LeaveRoomRequest struct {
	RoomCode string `json:"roomCode" validate:"required,len=6,hexadecimal,uppercase"`
	// Name is a deprecated fallback: the registry resolves the leaver's
	// display name from its own membership record.
	Name string `json:"name" validate:"omitempty,max=30"`
}

// TypingRequest is validated loosely: typing indicators are non-critical,
// so malformed payloads are dropped silently rather than surfaced as errors.
type TypingRequest struct {
	RoomCode string `json:"roomCode"`
	UserName string `json:"userName"`
	UserID   string `json:"userId"`
}

func DecodeCreateRoom(raw json.RawMessage) (CreateRoomRequest, *ValidationError) {
	var req CreateRoomRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, invalid("malformed create-room payload")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.UserName = strings.TrimSpace(req.UserName)
	if err := validate.Struct(req); err != nil {
		return req, invalid(createRoomReason(err))
	}
	return req, nil
}

// createRoomReason names the field that failed so the requester corrects
// the right one; the name bounds are the common case.
func createRoomReason(err error) string {
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		for _, fieldError := range fieldErrors {
			switch fieldError.Field() {
			case "UserID":
				return "userId must be a uuid"
			case "UserName":
				return "userName must be at most 30 characters"
			}
		}
	}
	return "room name must be 1-50 characters"
}

func DecodeJoinRoom(raw json.RawMessage) (JoinRoomRequest, *ValidationError) {
	var req JoinRoomRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, invalid("malformed join-room payload")
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return req, invalid("join-room requires a 6-character room code, a user id and a name of 1-30 characters")
	}
	return req, nil
}

func DecodeSendMessage(raw json.RawMessage) (SendMessageRequest, *ValidationError) {
	var req SendMessageRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, invalid("malformed send-message payload")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Message = strings.TrimSpace(req.Message)
	if err := validate.Struct(req); err != nil {
		return req, invalid("message must be 1-500 characters")
	}
	return req, nil
}

func DecodeLeaveRoom(raw json.RawMessage) (LeaveRoomRequest, *ValidationError) {
	var req LeaveRoomRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, invalid("malformed leave-room payload")
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return req, invalid("leave-room requires a 6-character room code")
	}
	return req, nil
}

// DecodeTyping returns false when the payload is unusable. No ValidationError
// is produced: the caller drops the event.
func DecodeTyping(raw json.RawMessage) (TypingRequest, bool) {
	var req TypingRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, false
	}
	if req.RoomCode == "" || req.UserName == "" {
		return req, false
	}
	return req, true
}
