package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/beamshare/internal/clock"
	"github.com/BioHazard786/beamshare/internal/metrics"
	"github.com/BioHazard786/beamshare/internal/signaling"
)

type testBroker struct {
	clock *clock.Fake
	hub   *Hub
}

func newTestBroker(t *testing.T) *testBroker {
	t.Helper()
	clk := clock.NewFake(epoch)
	rooms := NewRoomRegistry(RoomOptions{Clock: clk})
	clients := NewClientRegistry(rooms, clk)
	hub := NewHub(rooms, clients, HubOptions{Clock: clk, Metrics: metrics.New()})
	return &testBroker{clock: clk, hub: hub}
}

// connect introduces a queue-backed client and consumes its connection
// message.
func (b *testBroker) connect(t *testing.T, queue int) *Client {
	t.Helper()
	c := NewClient(queue)
	id := b.hub.Introduce(c)

	msg := next(t, c)
	require.Equal(t, signaling.TypeConnection, msg.Type)
	require.Equal(t, id, msg.ClientID)
	require.Equal(t, epoch.UnixMilli(), msg.Timestamp)
	return c
}

func next(t *testing.T, c *Client) *signaling.Message {
	t.Helper()
	select {
	case msg := <-c.Outbox():
		return msg
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.ID())
		return nil
	}
}

func silent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Outbox():
		t.Fatalf("client %s received unexpected %q", c.ID(), msg.Type)
	default:
	}
}
