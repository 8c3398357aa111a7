// Package runtime owns all room state and its propagation rules. The
// RoomRegistry is the single source of truth for membership, history, and
// the public-room directory; the EventRouter turns registry results into
// emission plans for the transport layer.
package runtime

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"roomhub/domain"
	"roomhub/errors"
)

// Clock is injected so tests control time.
type Clock func() time.Time

// RoomRegistry maps room codes to live Room state. Every operation is atomic
// behind one lock; no operation blocks on I/O, so readers never observe a
// partially updated Room.
type RoomRegistry struct {
	mu    sync.RWMutex
	log   *slog.Logger
	rooms map[string]*domain.Room
	clock Clock
	codes *CodeGenerator
}

func NewRoomRegistry(log *slog.Logger, clock Clock, codes *CodeGenerator) *RoomRegistry {
	return &RoomRegistry{
		log:   log,
		rooms: make(map[string]*domain.Room),
		clock: clock,
		codes: codes,
	}
}

// RoomInfo is the creation result handed back to the router.
type RoomInfo struct {
	Code      string
	Name      string
	Public    bool
	CreatedAt time.Time
}

// JoinResult carries the room snapshot for the joining connection plus the
// new member count for the room broadcast.
type JoinResult struct {
	Code         string
	Name         string
	Public       bool
	History      []domain.Message
	MemberCount  int
	LastActiveAt time.Time
}

// LeaveResult reports one departure. Deleted is true when the member count
// reached zero and the room was removed as part of the call.
type LeaveResult struct {
	Code         string
	Public       bool
	MemberCount  int
	Deleted      bool
	DisplayName  string
	LastActiveAt time.Time
}

// SweptRoom identifies a room removed by SweepInactive.
type SweptRoom struct {
	Code   string
	Public bool
}

// CreateRoom allocates a code, inserts a new empty room and returns its
// info. An empty name falls back to a code-derived one.
func (r *RoomRegistry) CreateRoom(name string, public bool) (RoomInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, err := r.codes.Generate(func(code string) bool {
		_, taken := r.rooms[code]
		return taken
	})
	if err != nil {
		return RoomInfo{}, err
	}

	if name == "" {
		name = fmt.Sprintf("Room %s", code)
	}

	now := r.clock()
	r.rooms[code] = domain.NewRoom(code, name, public, now)
	r.log.Info("Room created", "code", code, "public", public)
	return RoomInfo{Code: code, Name: name, Public: public, CreatedAt: now}, nil
}

// Join adds a connection to a room's member set. A second join by the same
// connection into the same room fails with ErrAlreadyMember; this is the
// idempotency guard against duplicate join events.
func (r *RoomRegistry) Join(code string, member domain.Member) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return JoinResult{}, errors.ErrRoomNotFound
	}
	if !room.AddMember(member) {
		return JoinResult{}, errors.ErrAlreadyMember
	}
	room.Touch(r.clock())

	return JoinResult{
		Code:         room.Code,
		Name:         room.Name,
		Public:       room.Public,
		History:      room.HistorySnapshot(),
		MemberCount:  room.MemberCount(),
		LastActiveAt: room.LastActiveAt,
	}, nil
}

// Leave removes a connection from a room. When the member set becomes empty
// the room is deleted synchronously as part of this call. The second return
// is false when the room is unknown or the connection was not a member;
// callers treat that as a no-op, which keeps disconnect handling idempotent.
func (r *RoomRegistry) Leave(code, connectionID string) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return LeaveResult{}, false
	}
	return r.removeLocked(room, connectionID)
}

// RemoveConnection applies leave semantics to every room the connection is
// in. Used on transport disconnect, since a dropped connection does not
// announce which rooms it was in; this is the one operation that iterates
// the full room set.
func (r *RoomRegistry) RemoveConnection(connectionID string) []LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var results []LeaveResult
	for _, room := range r.rooms {
		if result, ok := r.removeLocked(room, connectionID); ok {
			results = append(results, result)
		}
	}
	return results
}

func (r *RoomRegistry) removeLocked(room *domain.Room, connectionID string) (LeaveResult, bool) {
	member, ok := room.RemoveMember(connectionID)
	if !ok {
		return LeaveResult{}, false
	}
	room.Touch(r.clock())

	result := LeaveResult{
		Code:         room.Code,
		Public:       room.Public,
		MemberCount:  room.MemberCount(),
		DisplayName:  member.DisplayName,
		LastActiveAt: room.LastActiveAt,
	}
	if room.MemberCount() == 0 {
		delete(r.rooms, room.Code)
		result.Deleted = true
		r.log.Info("Deleting empty room", "code", room.Code)
	}
	return result, true
}

// PostMessage appends a message to a room's history. Messages from
// connections that are not current members are rejected with ErrNotMember,
// never silently dropped.
func (r *RoomRegistry) PostMessage(code, connectionID string, message domain.Message) (domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return domain.Message{}, errors.ErrRoomNotFound
	}
	if !room.HasMember(connectionID) {
		return domain.Message{}, errors.ErrNotMember
	}

	message.SentAt = r.clock()
	room.Append(message)
	room.Touch(message.SentAt)
	return message, nil
}

// ListPublicRooms projects every public room, most recently active first.
// Ties break by code so the ordering is deterministic.
func (r *RoomRegistry) ListPublicRooms() []domain.PublicRoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var summaries []domain.PublicRoomSummary
	for _, room := range r.rooms {
		if room.Public {
			summaries = append(summaries, room.Summary())
		}
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].LastActiveAt.Equal(summaries[j].LastActiveAt) {
			return summaries[i].LastActiveAt.After(summaries[j].LastActiveAt)
		}
		return summaries[i].Code < summaries[j].Code
	})
	return summaries
}

// Summary projects one room for directory patch broadcasts.
func (r *RoomRegistry) Summary(code string) (domain.PublicRoomSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[code]
	if !ok {
		return domain.PublicRoomSummary{}, false
	}
	return room.Summary(), true
}

// IsMember reports whether the connection currently belongs to the room.
// False for unknown codes as well as for non-members.
func (r *RoomRegistry) IsMember(code, connectionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[code]
	return ok && room.HasMember(connectionID)
}

// RoomExists reports whether a code is currently allocated.
func (r *RoomRegistry) RoomExists(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[code]
	return ok
}

// RoomCount returns the number of live rooms, public and private.
func (r *RoomRegistry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Stats aggregates registry-wide counts at a quiescent point.
func (r *RoomRegistry) Stats() domain.RoomStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := domain.RoomStats{TotalRooms: len(r.rooms)}
	for _, room := range r.rooms {
		if room.Public {
			stats.PublicRooms++
		} else {
			stats.PrivateRooms++
		}
		stats.TotalUsers += room.MemberCount()
	}
	return stats
}

// SweepInactive deletes every room that is both empty and inactive past the
// threshold. Emptiness and inactivity are both required: a room that is
// merely quiet but occupied is never touched. The deletion happens under the
// lock only for as long as the enumeration takes; fanning out the removals
// is the caller's concern.
func (r *RoomRegistry) SweepInactive(threshold time.Duration, now time.Time) []SweptRoom {
	r.mu.Lock()
	defer r.mu.Unlock()

	var swept []SweptRoom
	for code, room := range r.rooms {
		if room.MemberCount() == 0 && now.Sub(room.LastActiveAt) > threshold {
			delete(r.rooms, code)
			swept = append(swept, SweptRoom{Code: code, Public: room.Public})
			r.log.Info("Cleaning up inactive room", "code", code)
		}
	}
	return swept
}
