package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Defaults for the command-line peer.
const (
	DefaultDomain   = "beamshare.app"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = "turn:beamshare.app"
	DefaultTURNUser = "beamshare"
	DefaultTURNPass = "beamshare-secret"
)

// Client holds the resolved configuration of the command-line peer.
type Client struct {
	Domain string

	// Insecure selects ws:// and http:// for a broker without TLS, such as a
	// local development server.
	Insecure bool

	// ForceRelay restricts ICE to TURN candidates.
	ForceRelay bool

	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Options carries CLI flag values. Empty fields fall through to the
// environment and then to the defaults.
type Options struct {
	Domain     string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	Insecure   bool
	ForceRelay bool
}

// LoadClient resolves each setting from the flag, then the environment, then
// the default.
func LoadClient(opts Options) (*Client, error) {
	insecure := opts.Insecure
	if !insecure {
		if v := os.Getenv("INSECURE"); v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("invalid INSECURE value %q: %w", v, err)
			}
			insecure = parsed
		}
	}

	cfg := &Client{
		Domain:     resolve(opts.Domain, "DOMAIN", DefaultDomain),
		Insecure:   insecure,
		ForceRelay: opts.ForceRelay,
		STUNServer: resolve(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer: resolve(opts.TURNServer, "TURN_SERVER", DefaultTURN),
		TURNUser:   resolve(opts.TURNUser, "TURN_USERNAME", DefaultTURNUser),
		TURNPass:   resolve(opts.TURNPass, "TURN_PASSWORD", DefaultTURNPass),
	}
	if strings.Contains(cfg.Domain, "/") {
		return nil, fmt.Errorf("domain %q must be a host name, not a URL", cfg.Domain)
	}
	return cfg, nil
}

func resolve(flag, env, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return def
}

func (c *Client) WebSocketURL() string {
	scheme := "wss"
	if c.Insecure {
		scheme = "ws"
	}
	return fmt.Sprintf("%s://%s/ws", scheme, c.Domain)
}

// BaseURL is the control plane and web app origin.
func (c *Client) BaseURL() string {
	scheme := "https"
	if c.Insecure {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, c.Domain)
}

// RoomLink returns the web app URL that joins roomID.
func (c *Client) RoomLink(roomID string) string {
	return fmt.Sprintf("%s/r/%s", c.BaseURL(), roomID)
}

func (c *Client) STUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// TURNServers expands the configured TURN host into UDP, TCP and TLS URLs.
func (c *Client) TURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turns:"), "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

func (c *Client) TURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
