// Package domain contains core concepts of the room system.
// This file defines Room state and membership invariants.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"
)

// Member is the membership record kept per connection. The display name is a
// snapshot taken at join time so departure announcements never depend on
// client-supplied payloads.
type Member struct {
	ConnectionID string
	UserID       string
	DisplayName  string
}

// Room is a named, coded chat channel. Code and Public are immutable after
// creation. A Room with no members is transient: the registry deletes it on
// the last leave, or the reaper collects it if it was never joined.
type Room struct {
	Code         string
	Name         string
	Public       bool
	CreatedAt    time.Time
	LastActiveAt time.Time

	members map[string]Member
	history []Message
}

func NewRoom(code, name string, public bool, now time.Time) *Room {
	return &Room{
		Code:         code,
		Name:         name,
		Public:       public,
		CreatedAt:    now,
		LastActiveAt: now,
		members:      make(map[string]Member),
	}
}

// AddMember registers a connection in the room. Returns false when the
// connection is already a member, which callers treat as a duplicate join.
func (r *Room) AddMember(m Member) bool {
	if _, ok := r.members[m.ConnectionID]; ok {
		return false
	}
	r.members[m.ConnectionID] = m
	return true
}

// RemoveMember drops a connection from the room and returns the membership
// record that was held, so the caller can announce the departure.
func (r *Room) RemoveMember(connectionID string) (Member, bool) {
	m, ok := r.members[connectionID]
	if !ok {
		return Member{}, false
	}
	delete(r.members, connectionID)
	return m, true
}

func (r *Room) HasMember(connectionID string) bool {
	_, ok := r.members[connectionID]
	return ok
}

func (r *Room) MemberCount() int {
	return len(r.members)
}

func (r *Room) Append(message Message) {
	r.history = append(r.history, message)
}

// HistorySnapshot copies the full message history. Joining connections
// receive the copy, so later appends never race with a reader.
func (r *Room) HistorySnapshot() []Message {
	out := make([]Message, len(r.history))
	copy(out, r.history)
	return out
}

func (r *Room) Touch(now time.Time) {
	r.LastActiveAt = now
}
