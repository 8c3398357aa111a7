// Package domain contains core concepts of the room system.
// This file defines Message values and related rules.
// Messages are immutable once appended to a Room's history.
package domain

import (
	"time"
)

// Message represents one posted chat line. Sender attribution is a snapshot
// taken at send time; renaming later does not rewrite history.
type Message struct {
	ID         string
	Content    string
	SenderID   string
	SenderName string
	SentAt     time.Time
}
