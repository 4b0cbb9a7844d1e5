package ports

import (
	"context"

	"parlor/internal/core/domain"
)

// RoomRepository stores the room directory. Implementations must be safe
// for concurrent use; the websocket server mutates rooms from many
// connection goroutines.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	Get(ctx context.Context, name string) (*domain.Room, error)
	Update(ctx context.Context, room *domain.Room) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]*domain.Room, error)
}
