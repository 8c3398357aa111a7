package protocol

import (
	"time"

	"github.com/samber/lo"

	"roomhub/domain"
)

// OutboundEnvelope frames every server -> client message.
type OutboundEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Outbound payload shapes. Field names follow the wire contract the browser
// client already speaks.

type RoomCreated struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	IsPublic   bool   `json:"isPublic"`
	AutoJoined bool   `json:"autoJoined"`
}

type JoinedRoom struct {
	RoomCode string           `json:"roomCode"`
	RoomName string           `json:"roomName"`
	Messages []MessagePayload `json:"messages"`
}

type MessagePayload struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	SenderID  string    `json:"senderId"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

type UserJoined struct {
	UserCount int    `json:"userCount"`
	UserName  string `json:"userName"`
}

type UserLeft struct {
	UserCount int    `json:"userCount"`
	UserName  string `json:"userName,omitempty"`
}

type PublicRoomSummary struct {
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	UserCount  int       `json:"userCount"`
	LastActive time.Time `json:"lastActive"`
	CreatedAt  time.Time `json:"createdAt"`
}

type PublicRoomUpdated struct {
	Code       string    `json:"code"`
	UserCount  int       `json:"userCount"`
	LastActive time.Time `json:"lastActive"`
}

type RoomStatsPayload struct {
	TotalRooms   int `json:"totalRooms"`
	PublicRooms  int `json:"publicRooms"`
	PrivateRooms int `json:"privateRooms"`
	TotalUsers   int `json:"totalUsers"`
}

type TypingPayload struct {
	UserName string `json:"userName"`
	UserID   string `json:"userId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func ToMessagePayload(m domain.Message) MessagePayload {
	return MessagePayload{
		ID:        m.ID,
		Content:   m.Content,
		SenderID:  m.SenderID,
		Sender:    m.SenderName,
		Timestamp: m.SentAt,
	}
}

func ToMessagePayloads(messages []domain.Message) []MessagePayload {
	return lo.Map(messages, func(item domain.Message, _ int) MessagePayload {
		return ToMessagePayload(item)
	})
}

func ToPublicRoomSummary(s domain.PublicRoomSummary) PublicRoomSummary {
	return PublicRoomSummary{
		Code:       s.Code,
		Name:       s.Name,
		UserCount:  s.UserCount,
		LastActive: s.LastActiveAt,
		CreatedAt:  s.CreatedAt,
	}
}

func ToPublicRoomSummaries(summaries []domain.PublicRoomSummary) []PublicRoomSummary {
	return lo.Map(summaries, func(item domain.PublicRoomSummary, _ int) PublicRoomSummary {
		return ToPublicRoomSummary(item)
	})
}

func ToRoomStatsPayload(s domain.RoomStats) RoomStatsPayload {
	return RoomStatsPayload{
		TotalRooms:   s.TotalRooms,
		PublicRooms:  s.PublicRooms,
		PrivateRooms: s.PrivateRooms,
		TotalUsers:   s.TotalUsers,
	}
}
