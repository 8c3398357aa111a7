package domain

import "time"

// PublicRoomSummary is the directory projection of a public room. It is
// computed on demand, never stored.
type PublicRoomSummary struct {
	Code         string
	Name         string
	UserCount    int
	LastActiveAt time.Time
	CreatedAt    time.Time
}

// RoomStats aggregates registry-wide counts. TotalUsers sums member counts
// across rooms, so a connection present in two rooms counts twice.
type RoomStats struct {
	TotalRooms   int
	PublicRooms  int
	PrivateRooms int
	TotalUsers   int
}

func (r *Room) Summary() PublicRoomSummary {
	return PublicRoomSummary{
		Code:         r.Code,
		Name:         r.Name,
		UserCount:    len(r.members),
		LastActiveAt: r.LastActiveAt,
		CreatedAt:    r.CreatedAt,
	}
}
