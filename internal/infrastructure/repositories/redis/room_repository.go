package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"parlor/internal/core/domain"
	"parlor/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const roomIndexKey = "parlor:rooms"

type RedisRoomRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisRoomRepository(client *redis.Client) ports.RoomRepository {
	return &RedisRoomRepository{
		client: client,
		prefix: "parlor:room:",
	}
}

func (r *RedisRoomRepository) roomKey(name string) string {
	return r.prefix + name
}

func (r *RedisRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.roomKey(room.Name), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to set room in Redis: %w", err)
	}
	if !ok {
		return domain.ErrRoomExists
	}

	if err := r.client.SAdd(ctx, roomIndexKey, room.Name).Err(); err != nil {
		return fmt.Errorf("failed to index room: %w", err)
	}
	return nil
}

func (r *RedisRoomRepository) Get(ctx context.Context, name string) (*domain.Room, error) {
	data, err := r.client.Get(ctx, r.roomKey(name)).Result()
	if err == redis.Nil {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room from Redis: %w", err)
	}

	var room domain.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}
	return &room, nil
}

func (r *RedisRoomRepository) Update(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	set, err := r.client.SetXX(ctx, r.roomKey(room.Name), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to update room in Redis: %w", err)
	}
	if !set {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (r *RedisRoomRepository) Delete(ctx context.Context, name string) error {
	removed, err := r.client.Del(ctx, r.roomKey(name)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete room from Redis: %w", err)
	}
	if removed == 0 {
		return domain.ErrRoomNotFound
	}

	if err := r.client.SRem(ctx, roomIndexKey, name).Err(); err != nil {
		return fmt.Errorf("failed to unindex room: %w", err)
	}
	return nil
}

func (r *RedisRoomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	names, err := r.client.SMembers(ctx, roomIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	rooms := make([]*domain.Room, 0, len(names))
	for _, name := range names {
		room, err := r.Get(ctx, name)
		if err == domain.ErrRoomNotFound {
			// Index can lag a concurrent delete; skip the stale entry.
			continue
		}
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}
