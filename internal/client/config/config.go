// Package config loads runtime configuration for the Stepwise CLI.
//
// Sources and precedence:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the client.
type Config struct {
	// ServerEndpointAddr is the base URL of the backend sync API.
	ServerEndpointAddr string

	// DatabasePath is the SQLite file holding local records and the queue.
	DatabasePath string

	// KeystoreDir is where per-user key derivation salts live.
	KeystoreDir string

	// SyncInterval is the period between background drains.
	SyncInterval time.Duration

	// OnlineCheckInterval is how often the client probes server reachability.
	OnlineCheckInterval time.Duration

	// RequestTimeout bounds a single remote call during sync.
	RequestTimeout time.Duration

	// SyncBatchSize limits how many queue items one dequeue pulls.
	SyncBatchSize int
}

// LoadDefaults populates c with sensible defaults. Data lives under the
// user's home directory so the app works with no configuration at all.
func (c *Config) LoadDefaults() {
	dataDir := "."
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".stepwise")
	}
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.DatabasePath = filepath.Join(dataDir, "stepwise.db")
	c.KeystoreDir = filepath.Join(dataDir, "keystore")
	c.SyncInterval = 30 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.SyncBatchSize = 50
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
