package ports

import (
	"context"

	"parlor/internal/core/domain"
)

// RoomDirectory is the signaling side's view of the room registry: it
// creates rooms, admits guests and assigns their identifiers, and tears
// rooms down when hosts leave.
type RoomDirectory interface {
	// CreateRoom registers a room with the given host, who receives
	// domain.PeerHost as identifier.
	CreateRoom(ctx context.Context, name string, host domain.Member) (*domain.Room, error)
	// JoinRoom admits a guest and returns its assigned identifier plus
	// the identifiers of the members already present.
	JoinRoom(ctx context.Context, name string, guest domain.Member) (domain.PeerID, []domain.PeerID, error)
	// LeaveRoom removes one member. Removing the host closes the room.
	LeaveRoom(ctx context.Context, name string, id domain.PeerID) error
	// CloseRoom removes the room and all members.
	CloseRoom(ctx context.Context, name string) error

	GetRoom(ctx context.Context, name string) (*domain.Room, error)
	ListRooms(ctx context.Context) ([]domain.RoomInfo, error)
}
