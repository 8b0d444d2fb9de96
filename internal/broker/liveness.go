package broker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BioHazard786/beamshare/internal/clock"
)

const DefaultPingInterval = 30 * time.Second

// LivenessMonitor probes every connection once per interval and evicts the
// ones that did not answer the previous probe.
type LivenessMonitor struct {
	hub      *Hub
	clock    clock.Clock
	interval time.Duration
	log      *zap.Logger
}

func NewLivenessMonitor(hub *Hub, clk clock.Clock, interval time.Duration) *LivenessMonitor {
	if clk == nil {
		clk = clock.Real()
	}
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	return &LivenessMonitor{
		hub:      hub,
		clock:    clk,
		interval: interval,
		log:      hub.log.Named("liveness"),
	}
}

func (m *LivenessMonitor) Run(ctx context.Context) {
	t := m.clock.NewTicker(m.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}

// Sweep runs one heartbeat pass and returns the ids it terminated.
func (m *LivenessMonitor) Sweep() []string {
	var dead []string
	m.hub.clients.Each(func(c *Client) {
		if !c.alive.Swap(false) {
			dead = append(dead, c.id)
			return
		}
		c.Probe()
	})

	for _, id := range dead {
		m.hub.Evict(id, "heartbeat")
	}
	if len(dead) > 0 {
		m.log.Info("terminated unresponsive clients", zap.Int("count", len(dead)))
	}
	return dead
}
