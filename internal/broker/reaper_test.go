package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaperRemovesOnlyIdleEmptyRooms(t *testing.T) {
	b := newTestBroker(t)
	c := b.connect(t, 8)
	reaper := NewIdleRoomReaper(b.hub, b.clock, 5*time.Minute, 30*time.Minute)

	idle, err := b.hub.CreateRoom()
	require.NoError(t, err)
	occupied, err := b.hub.CreateRoom()
	require.NoError(t, err)
	require.NoError(t, b.hub.Join(c, occupied))

	b.clock.Advance(20 * time.Minute)
	assert.Empty(t, reaper.Sweep())

	b.clock.Advance(11 * time.Minute)
	assert.Equal(t, []string{idle}, reaper.Sweep())

	b.clock.Advance(24 * time.Hour)
	assert.Empty(t, reaper.Sweep())
	assert.Equal(t, []string{c.ID()}, b.hub.Rooms().Members(occupied))
}

func TestReaperDefaults(t *testing.T) {
	b := newTestBroker(t)
	reaper := NewIdleRoomReaper(b.hub, b.clock, 0, 0)

	assert.Equal(t, DefaultReapInterval, reaper.interval)
	assert.Equal(t, DefaultIdleThreshold, reaper.threshold)
}
