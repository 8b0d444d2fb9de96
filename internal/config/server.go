package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Server is the broker configuration.
type Server struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Signaling struct {
		PingInterval      time.Duration `yaml:"ping_interval"`
		MaxMessageSize    int64         `yaml:"max_message_size"`
		SendQueue         int           `yaml:"send_queue"`
		MessagesPerSecond float64       `yaml:"messages_per_second"`
		Burst             int           `yaml:"burst"`
		AllowedOrigins    []string      `yaml:"allowed_origins"`
	} `yaml:"signaling"`

	Rooms struct {
		CodeStyle       string        `yaml:"code_style"`
		MaxCodeAttempts int           `yaml:"max_code_attempts"`
		ReapInterval    time.Duration `yaml:"reap_interval"`
		IdleThreshold   time.Duration `yaml:"idle_threshold"`
	} `yaml:"rooms"`

	HTTP struct {
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"http"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// DefaultServer returns the broker defaults.
func DefaultServer() *Server {
	cfg := &Server{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second
	cfg.Server.ShutdownTimeout = 10 * time.Second

	cfg.Signaling.PingInterval = 30 * time.Second
	cfg.Signaling.MaxMessageSize = 64 * 1024
	cfg.Signaling.SendQueue = 256
	cfg.Signaling.MessagesPerSecond = 50
	cfg.Signaling.Burst = 100
	cfg.Signaling.AllowedOrigins = []string{"*"}

	cfg.Rooms.CodeStyle = "digits"
	cfg.Rooms.MaxCodeAttempts = 64
	cfg.Rooms.ReapInterval = 5 * time.Minute
	cfg.Rooms.IdleThreshold = 30 * time.Minute

	cfg.HTTP.RequestsPerSecond = 20
	cfg.HTTP.Burst = 40

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"

	return cfg
}

// LoadServer reads path over the defaults and applies environment
// overrides. A missing file is not an error.
func LoadServer(path string) (*Server, error) {
	cfg := DefaultServer()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Server) applyEnvOverrides() error {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Address = ":" + port
	}
	if addr := os.Getenv("BEAMSHARE_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("BEAMSHARE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("BEAMSHARE_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	if style := os.Getenv("BEAMSHARE_ROOM_CODE_STYLE"); style != "" {
		c.Rooms.CodeStyle = style
	}
	if v := os.Getenv("BEAMSHARE_PING_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid BEAMSHARE_PING_INTERVAL %q: %w", v, err)
		}
		c.Signaling.PingInterval = d
	}
	if v := os.Getenv("BEAMSHARE_METRICS_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid BEAMSHARE_METRICS_ENABLED %q: %w", v, err)
		}
		c.Metrics.Enabled = enabled
	}
	return nil
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Server) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.Signaling.PingInterval <= 0 {
		return fmt.Errorf("signaling.ping_interval must be > 0")
	}
	if c.Signaling.MaxMessageSize <= 0 {
		return fmt.Errorf("signaling.max_message_size must be > 0")
	}
	if c.Signaling.SendQueue <= 0 {
		return fmt.Errorf("signaling.send_queue must be > 0")
	}
	if c.Signaling.MessagesPerSecond <= 0 {
		return fmt.Errorf("signaling.messages_per_second must be > 0")
	}
	if c.Signaling.Burst <= 0 {
		return fmt.Errorf("signaling.burst must be > 0")
	}

	switch c.Rooms.CodeStyle {
	case "digits", "words":
	default:
		return fmt.Errorf("rooms.code_style must be digits or words, got %q", c.Rooms.CodeStyle)
	}
	if c.Rooms.MaxCodeAttempts <= 0 {
		return fmt.Errorf("rooms.max_code_attempts must be > 0")
	}
	if c.Rooms.ReapInterval <= 0 {
		return fmt.Errorf("rooms.reap_interval must be > 0")
	}
	if c.Rooms.IdleThreshold <= 0 {
		return fmt.Errorf("rooms.idle_threshold must be > 0")
	}

	if c.HTTP.RequestsPerSecond <= 0 {
		return fmt.Errorf("http.requests_per_second must be > 0")
	}
	if c.HTTP.Burst <= 0 {
		return fmt.Errorf("http.burst must be > 0")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return fmt.Errorf("metrics.path must not be empty when metrics.enabled=true")
	}
	return nil
}

// ReadWait is how long a signaling connection may stay silent before its
// read times out. It spans two heartbeats.
func (c *Server) ReadWait() time.Duration {
	return 2*c.Signaling.PingInterval + c.Server.WriteTimeout
}
