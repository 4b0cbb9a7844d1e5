package domain

import "time"

// PeerID is the small integer a room session assigns to each connected
// party. IDs are unique within one session and not stable across sessions.
type PeerID int32

const (
	// PeerUnassigned means the transport is connected but the room has not
	// confirmed membership yet.
	PeerUnassigned PeerID = -1

	// PeerHost is always the room host.
	PeerHost PeerID = 0
)

// Assigned reports whether the ID is a confirmed room identifier.
func (id PeerID) Assigned() bool {
	return id != PeerUnassigned
}

// Member is one party inside a room as tracked by the room directory.
type Member struct {
	ID          PeerID    `json:"id"`
	DisplayName string    `json:"display_name"`
	SessionID   string    `json:"session_id"`
	JoinedAt    time.Time `json:"joined_at"`
}
