package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for identityctl.
//
// Fields:
//   - ServerEndpointAddr: host:port of the identity gRPC endpoint.
//   - SessionFile: SQLite file keeping the tokens of the last login.
//   - RequestTimeout: deadline applied to every RPC.
type Config struct {
	ServerEndpointAddr string
	SessionFile        string
	RequestTimeout     time.Duration
}

// LoadDefaults populates c with sensible defaults. The session file lives in
// the user's home directory, or the working directory when it is unknown.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.SessionFile = ".identityctl.db"
	if home, err := os.UserHomeDir(); err == nil {
		c.SessionFile = filepath.Join(home, ".identityctl.db")
	}
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
