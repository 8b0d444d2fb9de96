package broker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BioHazard786/beamshare/internal/clock"
)

const (
	DefaultReapInterval  = 5 * time.Minute
	DefaultIdleThreshold = 30 * time.Minute
)

// IdleRoomReaper removes empty rooms that have been idle past a threshold.
type IdleRoomReaper struct {
	hub       *Hub
	clock     clock.Clock
	interval  time.Duration
	threshold time.Duration
	log       *zap.Logger
}

func NewIdleRoomReaper(hub *Hub, clk clock.Clock, interval, threshold time.Duration) *IdleRoomReaper {
	if clk == nil {
		clk = clock.Real()
	}
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	if threshold <= 0 {
		threshold = DefaultIdleThreshold
	}
	return &IdleRoomReaper{
		hub:       hub,
		clock:     clk,
		interval:  interval,
		threshold: threshold,
		log:       hub.log.Named("reaper"),
	}
}

func (r *IdleRoomReaper) Run(ctx context.Context) {
	t := r.clock.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}

func (r *IdleRoomReaper) Sweep() []string {
	reaped := r.hub.rooms.ReapIdle(r.clock.Now(), r.threshold)
	r.hub.metrics.RoomsReaped(len(reaped))
	for _, id := range reaped {
		r.log.Info("reaped idle room", zap.String("room_id", id))
	}
	return reaped
}
