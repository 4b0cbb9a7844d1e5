package memory

import (
	"context"
	"testing"

	"parlor/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoomRepositoryLifecycle(t *testing.T) {
	repo := NewMemoryRoomRepository()
	ctx := context.Background()

	room := domain.NewRoom("den", domain.Member{DisplayName: "host", SessionID: "s1"})
	require.NoError(t, repo.Create(ctx, room))

	assert.ErrorIs(t, repo.Create(ctx, room), domain.ErrRoomExists)

	got, err := repo.Get(ctx, "den")
	require.NoError(t, err)
	assert.Equal(t, "den", got.Name)
	assert.Len(t, got.Members, 1)

	got.Admit(domain.Member{DisplayName: "guest", SessionID: "s2"})
	require.NoError(t, repo.Update(ctx, got))

	again, err := repo.Get(ctx, "den")
	require.NoError(t, err)
	assert.Len(t, again.Members, 2)

	rooms, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)

	require.NoError(t, repo.Delete(ctx, "den"))
	assert.ErrorIs(t, repo.Delete(ctx, "den"), domain.ErrRoomNotFound)

	_, err = repo.Get(ctx, "den")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestMemoryRoomRepositoryReturnsCopies(t *testing.T) {
	repo := NewMemoryRoomRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, domain.NewRoom("den", domain.Member{DisplayName: "host"})))

	first, err := repo.Get(ctx, "den")
	require.NoError(t, err)
	first.Admit(domain.Member{DisplayName: "intruder"})

	// Mutating an unsaved copy must not leak into the stored room.
	second, err := repo.Get(ctx, "den")
	require.NoError(t, err)
	assert.Len(t, second.Members, 1)
}
