package server

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/BioHazard786/beamshare/internal/broker"
)

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog(s.log.Named("http"), s.metrics))

	api := r.Group("/")
	api.Use(rateLimit(s.cfg.HTTP.RequestsPerSecond, s.cfg.HTTP.Burst))
	{
		api.POST("/create-room", s.createRoom)
		api.POST("/join-room", s.joinRoom)
		api.GET("/room/:roomId", s.roomInfo)
	}

	r.GET("/health", s.health)
	r.GET("/stats", s.stats)
	r.GET("/ws", s.serveWs)
	if s.metrics != nil {
		r.GET(s.cfg.Metrics.Path, gin.WrapH(s.metrics.Handler()))
	}
	return r
}

func (s *Server) createRoom(c *gin.Context) {
	id, err := s.hub.CreateRoom()
	if err != nil {
		s.log.Error("create room failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to create room")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"roomId":  id,
		"message": "Room created successfully",
	})
}

func (s *Server) joinRoom(c *gin.Context) {
	var req struct {
		RoomID string `json:"roomId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RoomID == "" {
		fail(c, http.StatusBadRequest, "Room ID is required")
		return
	}

	size, err := s.hub.Rooms().Check(req.RoomID)
	switch {
	case errors.Is(err, broker.ErrRoomNotFound):
		fail(c, http.StatusNotFound, "Room not found")
	case errors.Is(err, broker.ErrRoomFull):
		fail(c, http.StatusForbidden, "Room is full (maximum 2 users allowed)")
	case err != nil:
		fail(c, statusFor(err), "Failed to join room")
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"message":     "Room is available",
			"memberCount": size,
		})
	}
}

func (s *Server) roomInfo(c *gin.Context) {
	info, err := s.hub.Rooms().Info(c.Param("roomId"))
	if err != nil {
		if errors.Is(err, broker.ErrRoomNotFound) {
			fail(c, http.StatusNotFound, "Room not found")
			return
		}
		fail(c, statusFor(err), "Failed to get room information")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"roomId":       info.RoomID,
		"memberCount":  info.MemberCount,
		"maxMembers":   info.MaxMembers,
		"available":    info.Available,
		"createdAt":    info.CreatedAt,
		"lastActivity": info.LastActivity,
	})
}

func (s *Server) health(c *gin.Context) {
	now := s.clock.Now()
	c.JSON(http.StatusOK, gin.H{
		"status":           "OK",
		"timestamp":        now.UTC().Format("2006-01-02T15:04:05.000Z"),
		"activeRooms":      s.hub.Rooms().Len(),
		"connectedClients": s.hub.Clients().Len(),
		"uptime":           now.Sub(s.started).Seconds(),
	})
}

func (s *Server) stats(c *gin.Context) {
	rooms := s.hub.Rooms().Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"totalRooms":   len(rooms),
		"totalClients": s.hub.Clients().Len(),
		"rooms":        rooms,
	})
}

func (s *Server) serveWs(c *gin.Context) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	s.hub.Attach(conn, broker.ConnOptions{
		WriteWait:         s.cfg.Server.WriteTimeout,
		ReadWait:          s.cfg.ReadWait(),
		MaxMessageSize:    s.cfg.Signaling.MaxMessageSize,
		SendQueue:         s.cfg.Signaling.SendQueue,
		MessagesPerSecond: s.cfg.Signaling.MessagesPerSecond,
		Burst:             s.cfg.Signaling.Burst,
	})
}

// checkOrigin allows requests without an Origin header, such as the CLI.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range s.cfg.Signaling.AllowedOrigins {
		if allowed == "*" || allowed == origin || allowed == u.Host {
			return true
		}
	}
	return false
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, broker.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, broker.ErrRoomFull):
		return http.StatusForbidden
	case errors.Is(err, broker.ErrRoomIDRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
