package memory

import (
	"context"
	"sync"

	"parlor/internal/core/domain"
	"parlor/internal/core/ports"
)

type MemoryRoomRepository struct {
	rooms map[string]*domain.Room
	mu    sync.RWMutex
}

func NewMemoryRoomRepository() ports.RoomRepository {
	return &MemoryRoomRepository{
		rooms: make(map[string]*domain.Room),
	}
}

func (r *MemoryRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[room.Name]; exists {
		return domain.ErrRoomExists
	}

	r.rooms[room.Name] = cloneRoom(room)
	return nil
}

func (r *MemoryRoomRepository) Get(ctx context.Context, name string) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[name]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	return cloneRoom(room), nil
}

func (r *MemoryRoomRepository) Update(ctx context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[room.Name]; !exists {
		return domain.ErrRoomNotFound
	}

	r.rooms[room.Name] = cloneRoom(room)
	return nil
}

func (r *MemoryRoomRepository) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[name]; !exists {
		return domain.ErrRoomNotFound
	}

	delete(r.rooms, name)
	return nil
}

func (r *MemoryRoomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, cloneRoom(room))
	}

	return rooms, nil
}

// cloneRoom keeps callers from mutating stored state through shared maps.
func cloneRoom(room *domain.Room) *domain.Room {
	clone := *room
	clone.Members = make(map[domain.PeerID]domain.Member, len(room.Members))
	for id, m := range room.Members {
		clone.Members[id] = m
	}
	return &clone
}
