package domain

import "time"

// Room is a named peer-to-peer session with one host and zero or more
// guests. The directory owns the authoritative membership set; clients
// only mirror it through transport events.
type Room struct {
	Name      string           `json:"name"`
	CreatedAt time.Time        `json:"created_at"`
	Members   map[PeerID]Member `json:"members"`

	// NextID is the next guest identifier to hand out. The host always
	// takes PeerHost, so allocation starts at 1.
	NextID PeerID `json:"next_id"`
}

// NewRoom creates a room with the host registered as member 0.
func NewRoom(name string, host Member) *Room {
	host.ID = PeerHost
	return &Room{
		Name:      name,
		CreatedAt: time.Now(),
		Members:   map[PeerID]Member{PeerHost: host},
		NextID:    PeerHost + 1,
	}
}

// Admit registers a guest and returns its assigned identifier.
func (r *Room) Admit(m Member) PeerID {
	id := r.NextID
	r.NextID++
	m.ID = id
	r.Members[id] = m
	return id
}

// Evict removes a member. Removing an unknown ID is a no-op.
func (r *Room) Evict(id PeerID) {
	delete(r.Members, id)
}

// MemberIDs returns the identifiers of all current members.
func (r *Room) MemberIDs() []PeerID {
	ids := make([]PeerID, 0, len(r.Members))
	for id := range r.Members {
		ids = append(ids, id)
	}
	return ids
}

// RoomInfo is the read-only directory listing of a room.
type RoomInfo struct {
	Name        string    `json:"name"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}
