package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"parlor/internal/core/domain"
	"parlor/internal/core/ports"
	"parlor/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestDirectory(t *testing.T) (context.Context, ports.RoomDirectory) {
	t.Helper()
	return context.Background(), NewRoomDirectory(memory.NewMemoryRoomRepository(), 0, zaptest.NewLogger(t).Sugar())
}

func TestDirectoryHostTakesIdentifierZero(t *testing.T) {
	ctx, dir := newTestDirectory(t)

	room, err := dir.CreateRoom(ctx, "den", domain.Member{DisplayName: "alice", SessionID: "s1"})
	require.NoError(t, err)

	host, ok := room.Members[domain.PeerHost]
	require.True(t, ok)
	assert.Equal(t, domain.PeerHost, host.ID)
	assert.Equal(t, "alice", host.DisplayName)
}

func TestDirectoryRejectsDuplicateRooms(t *testing.T) {
	ctx, dir := newTestDirectory(t)

	_, err := dir.CreateRoom(ctx, "den", domain.Member{DisplayName: "alice"})
	require.NoError(t, err)

	_, err = dir.CreateRoom(ctx, "den", domain.Member{DisplayName: "mallory"})
	assert.ErrorIs(t, err, domain.ErrRoomExists)
}

func TestDirectoryRejectsInvalidNames(t *testing.T) {
	ctx, dir := newTestDirectory(t)

	_, err := dir.CreateRoom(ctx, "bad room!", domain.Member{DisplayName: "alice"})
	assert.Error(t, err)

	_, err = dir.CreateRoom(ctx, "den", domain.Member{DisplayName: ""})
	assert.Error(t, err)
}

func TestDirectoryAssignsSequentialGuestIDs(t *testing.T) {
	ctx, dir := newTestDirectory(t)

	_, err := dir.CreateRoom(ctx, "den", domain.Member{DisplayName: "alice"})
	require.NoError(t, err)

	id1, present1, err := dir.JoinRoom(ctx, "den", domain.Member{DisplayName: "bob"})
	require.NoError(t, err)
	assert.Equal(t, domain.PeerID(1), id1)
	assert.Equal(t, []domain.PeerID{domain.PeerHost}, present1)

	id2, present2, err := dir.JoinRoom(ctx, "den", domain.Member{DisplayName: "carol"})
	require.NoError(t, err)
	assert.Equal(t, domain.PeerID(2), id2)
	assert.Equal(t, []domain.PeerID{0, 1}, present2)
}

func TestDirectoryConcurrentJoinsGetUniqueIDs(t *testing.T) {
	ctx, dir := newTestDirectory(t)

	_, err := dir.CreateRoom(ctx, "den", domain.Member{DisplayName: "alice"})
	require.NoError(t, err)

	const joiners = 8
	ids := make(chan domain.PeerID, joiners)
	var wg sync.WaitGroup
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id, _, err := dir.JoinRoom(ctx, "den", domain.Member{
				DisplayName: fmt.Sprintf("guest%d", n),
			})
			if assert.NoError(t, err) {
				ids <- id
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[domain.PeerID]bool)
	for id := range ids {
		assert.False(t, seen[id], "peer ID %d assigned twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, joiners)

	room, err := dir.GetRoom(ctx, "den")
	require.NoError(t, err)
	assert.Len(t, room.Members, joiners+1)
}

func TestDirectoryEnforcesMemberCap(t *testing.T) {
	ctx := context.Background()
	dir := NewRoomDirectory(memory.NewMemoryRoomRepository(), 3, zaptest.NewLogger(t).Sugar())

	_, err := dir.CreateRoom(ctx, "den", domain.Member{DisplayName: "alice"})
	require.NoError(t, err)

	// Cap of 3 counts the host, so two guests fit.
	_, _, err = dir.JoinRoom(ctx, "den", domain.Member{DisplayName: "bob"})
	require.NoError(t, err)
	_, _, err = dir.JoinRoom(ctx, "den", domain.Member{DisplayName: "carol"})
	require.NoError(t, err)

	_, _, err = dir.JoinRoom(ctx, "den", domain.Member{DisplayName: "dave"})
	assert.ErrorIs(t, err, domain.ErrRoomFull)

	// Departures free capacity.
	require.NoError(t, dir.LeaveRoom(ctx, "den", domain.PeerID(1)))
	_, _, err = dir.JoinRoom(ctx, "den", domain.Member{DisplayName: "dave"})
	assert.NoError(t, err)
}

func TestDirectoryJoinUnknownRoom(t *testing.T) {
	ctx, dir := newTestDirectory(t)

	_, _, err := dir.JoinRoom(ctx, "nowhere", domain.Member{DisplayName: "bob"})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestDirectoryGuestLeaveKeepsRoom(t *testing.T) {
	ctx, dir := newTestDirectory(t)

	_, err := dir.CreateRoom(ctx, "den", domain.Member{DisplayName: "alice"})
	require.NoError(t, err)
	id, _, err := dir.JoinRoom(ctx, "den", domain.Member{DisplayName: "bob"})
	require.NoError(t, err)

	require.NoError(t, dir.LeaveRoom(ctx, "den", id))

	room, err := dir.GetRoom(ctx, "den")
	require.NoError(t, err)
	assert.Len(t, room.Members, 1)

	assert.ErrorIs(t, dir.LeaveRoom(ctx, "den", id), domain.ErrNotMember)
}

func TestDirectoryHostLeaveClosesRoom(t *testing.T) {
	ctx, dir := newTestDirectory(t)

	_, err := dir.CreateRoom(ctx, "den", domain.Member{DisplayName: "alice"})
	require.NoError(t, err)
	_, _, err = dir.JoinRoom(ctx, "den", domain.Member{DisplayName: "bob"})
	require.NoError(t, err)

	require.NoError(t, dir.LeaveRoom(ctx, "den", domain.PeerHost))

	_, err = dir.GetRoom(ctx, "den")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestDirectoryListRooms(t *testing.T) {
	ctx, dir := newTestDirectory(t)

	_, err := dir.CreateRoom(ctx, "beta", domain.Member{DisplayName: "a"})
	require.NoError(t, err)
	_, err = dir.CreateRoom(ctx, "alpha", domain.Member{DisplayName: "b"})
	require.NoError(t, err)

	infos, err := dir.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].Name)
	assert.Equal(t, "beta", infos[1].Name)
	assert.Equal(t, 1, infos[0].MemberCount)
}
