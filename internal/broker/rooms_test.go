package broker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/beamshare/internal/clock"
	"github.com/BioHazard786/beamshare/internal/signaling"
)

var epoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestRooms(clk clock.Clock) *RoomRegistry {
	return NewRoomRegistry(RoomOptions{Clock: clk})
}

func TestRoomCapacityAndRoles(t *testing.T) {
	rooms := newTestRooms(clock.NewFake(epoch))
	id, err := rooms.Create()
	require.NoError(t, err)

	role, size, err := rooms.Join(id, "a")
	require.NoError(t, err)
	assert.Equal(t, signaling.RoleSender, role)
	assert.Equal(t, 1, size)

	role, size, err = rooms.Join(id, "b")
	require.NoError(t, err)
	assert.Equal(t, signaling.RoleReceiver, role)
	assert.Equal(t, 2, size)

	for _, extra := range []string{"c", "d", "e"} {
		_, _, err = rooms.Join(id, extra)
		require.ErrorIs(t, err, ErrRoomFull)
		assert.Equal(t, "Room is full (maximum 2 users allowed)", Reply(err))
	}
	assert.Equal(t, []string{"a", "b"}, rooms.Members(id))
}

func TestRoomRejoinKeepsRole(t *testing.T) {
	rooms := newTestRooms(nil)
	id, err := rooms.Create()
	require.NoError(t, err)

	_, _, err = rooms.Join(id, "a")
	require.NoError(t, err)
	_, _, err = rooms.Join(id, "b")
	require.NoError(t, err)

	role, size, err := rooms.Join(id, "a")
	require.NoError(t, err)
	assert.Equal(t, signaling.RoleSender, role)
	assert.Equal(t, 2, size)
}

func TestRoomRolesAreNeverReassigned(t *testing.T) {
	rooms := newTestRooms(nil)
	id, err := rooms.Create()
	require.NoError(t, err)

	_, _, err = rooms.Join(id, "a")
	require.NoError(t, err)
	_, _, err = rooms.Join(id, "b")
	require.NoError(t, err)

	remaining, deleted := rooms.Leave(id, "a")
	assert.Equal(t, 1, remaining)
	assert.False(t, deleted)

	role, size, err := rooms.Join(id, "c")
	require.NoError(t, err)
	assert.Equal(t, signaling.RoleReceiver, role)
	assert.Equal(t, 2, size)
}

func TestRoomLeaveDeletesWhenEmpty(t *testing.T) {
	rooms := newTestRooms(nil)
	id, err := rooms.Create()
	require.NoError(t, err)
	_, _, err = rooms.Join(id, "a")
	require.NoError(t, err)

	remaining, deleted := rooms.Leave(id, "a")
	assert.Zero(t, remaining)
	assert.True(t, deleted)
	assert.Zero(t, rooms.Len())

	_, err = rooms.Info(id)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomJoinFaults(t *testing.T) {
	rooms := newTestRooms(nil)

	_, _, err := rooms.Join("", "a")
	require.ErrorIs(t, err, ErrRoomIDRequired)
	assert.Equal(t, "Room ID is required", Reply(err))

	_, _, err = rooms.Join("404404", "a")
	require.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, "Room not found. Please check the room ID.", Reply(err))
}

func TestRoomCheckAndInfo(t *testing.T) {
	clk := clock.NewFake(epoch)
	rooms := newTestRooms(clk)
	id, err := rooms.Create()
	require.NoError(t, err)

	clk.Advance(time.Minute)
	size, err := rooms.Check(id)
	require.NoError(t, err)
	assert.Zero(t, size)

	info, err := rooms.Info(id)
	require.NoError(t, err)
	assert.Equal(t, RoomInfo{
		RoomID:       id,
		MemberCount:  0,
		MaxMembers:   2,
		Available:    true,
		CreatedAt:    epoch.UnixMilli(),
		LastActivity: epoch.Add(time.Minute).UnixMilli(),
	}, info)

	_, _, err = rooms.Join(id, "a")
	require.NoError(t, err)
	_, _, err = rooms.Join(id, "b")
	require.NoError(t, err)

	size, err = rooms.Check(id)
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, 2, size)

	info, err = rooms.Info(id)
	require.NoError(t, err)
	assert.False(t, info.Available)
}

func TestRoomCreateGivesUpAfterCollisions(t *testing.T) {
	calls := 0
	rooms := NewRoomRegistry(RoomOptions{
		Generate: func() (string, error) {
			calls++
			return "111111", nil
		},
		MaxCodeAttempts: 5,
	})

	id, err := rooms.Create()
	require.NoError(t, err)
	assert.Equal(t, "111111", id)

	_, err = rooms.Create()
	require.ErrorIs(t, err, ErrCodeSpaceExhausted)
	assert.Equal(t, 6, calls)
}

func TestRoomCreateSurfacesGeneratorError(t *testing.T) {
	boom := errors.New("entropy unavailable")
	rooms := NewRoomRegistry(RoomOptions{
		Generate: func() (string, error) { return "", boom },
	})

	_, err := rooms.Create()
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
	assert.ErrorIs(t, err, boom)
}

func TestRoomReapIdleSkipsOccupiedRooms(t *testing.T) {
	clk := clock.NewFake(epoch)
	rooms := newTestRooms(clk)

	empty, err := rooms.Create()
	require.NoError(t, err)
	busy, err := rooms.Create()
	require.NoError(t, err)
	_, _, err = rooms.Join(busy, "a")
	require.NoError(t, err)

	assert.Empty(t, rooms.ReapIdle(clk.Now().Add(10*time.Minute), 30*time.Minute))

	reaped := rooms.ReapIdle(clk.Now().Add(31*time.Minute), 30*time.Minute)
	assert.Equal(t, []string{empty}, reaped)
	assert.Equal(t, 1, rooms.Len())
	assert.Equal(t, []string{"a"}, rooms.Members(busy))
}

func TestRoomSnapshot(t *testing.T) {
	codes := []string{"200000", "100000"}
	rooms := NewRoomRegistry(RoomOptions{
		Generate: func() (string, error) {
			c := codes[0]
			codes = codes[1:]
			return c, nil
		},
	})

	_, err := rooms.Create()
	require.NoError(t, err)
	_, err = rooms.Create()
	require.NoError(t, err)
	_, _, err = rooms.Join("200000", "a")
	require.NoError(t, err)

	assert.Equal(t, []RoomSnapshot{
		{RoomID: "100000", MemberCount: 0, Members: []string{}},
		{RoomID: "200000", MemberCount: 1, Members: []string{"a"}},
	}, rooms.Snapshot())
}

func TestRoomRolesArePositionalAtJoin(t *testing.T) {
	rooms := newTestRooms(clock.NewFake(epoch))
	id, err := rooms.Create()
	require.NoError(t, err)

	_, _, err = rooms.Join(id, "a")
	require.NoError(t, err)
	_, _, err = rooms.Join(id, "b")
	require.NoError(t, err)

	remaining, deleted := rooms.Leave(id, "a")
	assert.Equal(t, 1, remaining)
	assert.False(t, deleted)

	role, size, err := rooms.Join(id, "c")
	require.NoError(t, err)
	assert.Equal(t, signaling.RoleReceiver, role)
	assert.Equal(t, 2, size)
}
