package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BioHazard786/beamshare/internal/broker"
	"github.com/BioHazard786/beamshare/internal/clock"
	"github.com/BioHazard786/beamshare/internal/config"
	"github.com/BioHazard786/beamshare/internal/metrics"
)

// Server is the broker process: control plane, signaling plane and the
// background sweepers.
type Server struct {
	cfg      *config.Server
	log      *zap.Logger
	clock    clock.Clock
	metrics  *metrics.Collector
	hub      *broker.Hub
	liveness *broker.LivenessMonitor
	reaper   *broker.IdleRoomReaper
	engine   *gin.Engine
	started  time.Time
}

type Option func(*Server)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clk clock.Clock) Option {
	return func(s *Server) { s.clock = clk }
}

func New(cfg *config.Server, log *zap.Logger, opts ...Option) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{cfg: cfg, log: log, clock: clock.Real()}
	for _, opt := range opts {
		opt(s)
	}

	generate, err := broker.NewCodeGenerator(broker.CodeStyle(cfg.Rooms.CodeStyle))
	if err != nil {
		return nil, err
	}
	if cfg.Metrics.Enabled {
		s.metrics = metrics.New()
	}

	rooms := broker.NewRoomRegistry(broker.RoomOptions{
		Clock:           s.clock,
		Generate:        generate,
		MaxCodeAttempts: cfg.Rooms.MaxCodeAttempts,
	})
	clients := broker.NewClientRegistry(rooms, s.clock)
	s.hub = broker.NewHub(rooms, clients, broker.HubOptions{
		Clock:   s.clock,
		Logger:  log.Named("hub"),
		Metrics: s.metrics,
	})
	s.liveness = broker.NewLivenessMonitor(s.hub, s.clock, cfg.Signaling.PingInterval)
	s.reaper = broker.NewIdleRoomReaper(s.hub, s.clock, cfg.Rooms.ReapInterval, cfg.Rooms.IdleThreshold)
	s.started = s.clock.Now()
	s.engine = s.routes()
	return s, nil
}

func (s *Server) Hub() *broker.Hub { return s.hub }

func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then notifies every client and shuts
// the HTTP server down within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Address,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	sweepCtx, stopSweeps := context.WithCancel(ctx)
	defer stopSweeps()
	go s.liveness.Run(sweepCtx)
	go s.reaper.Run(sweepCtx)

	serverErr := make(chan error, 1)
	go func() {
		s.log.Info("broker listening", zap.String("address", s.cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down broker")
	s.hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error("graceful shutdown failed", zap.Error(err))
		return srv.Close()
	}
	s.log.Info("broker stopped")
	return nil
}
