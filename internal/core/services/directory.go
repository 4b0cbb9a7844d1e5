package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"parlor/internal/core/domain"
	"parlor/internal/core/ports"
	"parlor/pkg/logger"
	"parlor/pkg/tracing"
	"parlor/pkg/validation"

	"go.uber.org/zap"
)

type roomDirectory struct {
	repo       ports.RoomRepository
	maxMembers int
	logger     *zap.SugaredLogger

	// Serializes the read-modify-write cycles below. Without it two
	// concurrent joins read the same room snapshot, are handed the same
	// identifier, and the later update silently drops the earlier
	// member.
	mu sync.Mutex
}

// NewRoomDirectory creates the room registry service used by the
// signaling server. maxMembers caps a room's total membership including
// the host; zero or negative means unlimited.
func NewRoomDirectory(repo ports.RoomRepository, maxMembers int, logger *zap.SugaredLogger) ports.RoomDirectory {
	return &roomDirectory{repo: repo, maxMembers: maxMembers, logger: logger}
}

func (d *roomDirectory) CreateRoom(ctx context.Context, name string, host domain.Member) (*domain.Room, error) {
	ctx, span := tracing.TraceDirectoryOperation(ctx, "create", name)
	defer span.End()

	if err := validation.ValidateRoomName(name); err != nil {
		return nil, err
	}
	if err := validation.ValidateDisplayName(host.DisplayName); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	room := domain.NewRoom(name, host)
	if err := d.repo.Create(ctx, room); err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	logger.WithCtx(ctx, d.logger).Infow("room created")
	return room, nil
}

func (d *roomDirectory) JoinRoom(ctx context.Context, name string, guest domain.Member) (domain.PeerID, []domain.PeerID, error) {
	ctx, span := tracing.TraceDirectoryOperation(ctx, "join", name)
	defer span.End()

	if err := validation.ValidateDisplayName(guest.DisplayName); err != nil {
		return domain.PeerUnassigned, nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	room, err := d.repo.Get(ctx, name)
	if err != nil {
		tracing.RecordError(ctx, err)
		return domain.PeerUnassigned, nil, err
	}

	if d.maxMembers > 0 && len(room.Members) >= d.maxMembers {
		return domain.PeerUnassigned, nil, domain.ErrRoomFull
	}

	present := room.MemberIDs()
	sort.Slice(present, func(i, j int) bool { return present[i] < present[j] })

	id := room.Admit(guest)
	if err := d.repo.Update(ctx, room); err != nil {
		tracing.RecordError(ctx, err)
		return domain.PeerUnassigned, nil, fmt.Errorf("failed to persist join: %w", err)
	}

	logger.WithCtx(ctx, d.logger).Infow("guest joined", "peer", id)
	return id, present, nil
}

func (d *roomDirectory) LeaveRoom(ctx context.Context, name string, id domain.PeerID) error {
	ctx, span := tracing.TraceDirectoryOperation(ctx, "leave", name)
	defer span.End()

	d.mu.Lock()
	defer d.mu.Unlock()

	room, err := d.repo.Get(ctx, name)
	if err != nil {
		return err
	}
	if _, ok := room.Members[id]; !ok {
		return domain.ErrNotMember
	}

	// The host leaving takes the room with it.
	if id == domain.PeerHost {
		return d.closeLocked(ctx, name)
	}

	room.Evict(id)
	if err := d.repo.Update(ctx, room); err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("failed to persist leave: %w", err)
	}

	logger.WithCtx(ctx, d.logger).Infow("member left", "peer", id)
	return nil
}

func (d *roomDirectory) CloseRoom(ctx context.Context, name string) error {
	ctx, span := tracing.TraceDirectoryOperation(ctx, "close", name)
	defer span.End()

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeLocked(ctx, name)
}

// closeLocked deletes a room. Caller holds d.mu.
func (d *roomDirectory) closeLocked(ctx context.Context, name string) error {
	if err := d.repo.Delete(ctx, name); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return err
		}
		tracing.RecordError(ctx, err)
		return fmt.Errorf("failed to close room: %w", err)
	}

	logger.WithCtx(ctx, d.logger).Infow("room closed")
	return nil
}

func (d *roomDirectory) GetRoom(ctx context.Context, name string) (*domain.Room, error) {
	return d.repo.Get(ctx, name)
}

func (d *roomDirectory) ListRooms(ctx context.Context) ([]domain.RoomInfo, error) {
	rooms, err := d.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]domain.RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		infos = append(infos, domain.RoomInfo{
			Name:        room.Name,
			MemberCount: len(room.Members),
			CreatedAt:   room.CreatedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}
