package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearServerEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "BEAMSHARE_ADDRESS", "BEAMSHARE_LOG_LEVEL", "BEAMSHARE_LOG_FORMAT",
		"BEAMSHARE_ROOM_CODE_STYLE", "BEAMSHARE_PING_INTERVAL", "BEAMSHARE_METRICS_ENABLED",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultServerValidates(t *testing.T) {
	cfg := DefaultServer()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Signaling.PingInterval)
	assert.Equal(t, 5*time.Minute, cfg.Rooms.ReapInterval)
	assert.Equal(t, 30*time.Minute, cfg.Rooms.IdleThreshold)
	assert.Equal(t, 75*time.Second, cfg.ReadWait())
}

func TestServerValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Server){
		"ping interval": func(c *Server) { c.Signaling.PingInterval = 0 },
		"reap interval": func(c *Server) { c.Rooms.ReapInterval = -time.Second },
		"code style":    func(c *Server) { c.Rooms.CodeStyle = "emoji" },
		"send queue":    func(c *Server) { c.Signaling.SendQueue = 0 },
		"log format":    func(c *Server) { c.Logging.Format = "xml" },
		"metrics path":  func(c *Server) { c.Metrics.Path = "" },
		"address":       func(c *Server) { c.Server.Address = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultServer()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadServerMissingFileUsesDefaults(t *testing.T) {
	clearServerEnv(t)
	cfg, err := LoadServer(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultServer().Server.Address, cfg.Server.Address)
}

func TestLoadServerReadsYAML(t *testing.T) {
	clearServerEnv(t)
	path := filepath.Join(t.TempDir(), "beamshare.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9000"
signaling:
  ping_interval: 10s
rooms:
  code_style: words
logging:
  format: console
`), 0o600))

	cfg, err := LoadServer(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, 10*time.Second, cfg.Signaling.PingInterval)
	assert.Equal(t, "words", cfg.Rooms.CodeStyle)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 256, cfg.Signaling.SendQueue)
}

func TestLoadServerRejectsInvalidFile(t *testing.T) {
	clearServerEnv(t)
	path := filepath.Join(t.TempDir(), "beamshare.yaml")
	require.NoError(t, os.WriteFile(path, []byte("signaling:\n  ping_interval: 0s\n"), 0o600))

	_, err := LoadServer(path)
	assert.ErrorContains(t, err, "ping_interval")
}

func TestServerEnvOverrides(t *testing.T) {
	clearServerEnv(t)
	t.Setenv("PORT", "3001")
	t.Setenv("BEAMSHARE_LOG_LEVEL", "debug")
	t.Setenv("BEAMSHARE_PING_INTERVAL", "5s")
	t.Setenv("BEAMSHARE_METRICS_ENABLED", "false")

	cfg, err := LoadServer("")
	require.NoError(t, err)
	assert.Equal(t, ":3001", cfg.Server.Address)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 5*time.Second, cfg.Signaling.PingInterval)
	assert.False(t, cfg.Metrics.Enabled)

	t.Setenv("BEAMSHARE_ADDRESS", "127.0.0.1:4000")
	cfg, err = LoadServer("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:4000", cfg.Server.Address)
}

func TestServerEnvOverrideParseError(t *testing.T) {
	clearServerEnv(t)
	t.Setenv("BEAMSHARE_PING_INTERVAL", "soon")

	_, err := LoadServer("")
	assert.ErrorContains(t, err, "BEAMSHARE_PING_INTERVAL")
}
