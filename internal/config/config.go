// Package config loads and validates bridge configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all settings for the bridge.
type Config struct {
	// Account is the Signal account the bridge acts as, in E.164 form.
	Account string `toml:"account"`

	Daemon  DaemonConfig  `toml:"daemon"`
	Queue   QueueConfig   `toml:"queue"`
	Logging LoggingConfig `toml:"logging"`
	Paths   PathsConfig   `toml:"paths"`
}

// DaemonConfig locates the signal-cli daemon's JSON-RPC TCP socket.
type DaemonConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// QueueConfig bounds the incoming message queue.
type QueueConfig struct {
	Limit int `toml:"limit"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// PathsConfig locates on-disk state.
type PathsConfig struct {
	DataDir string `toml:"data_dir"`
}

// Default returns a configuration with sensible defaults. The account is
// intentionally left empty; it must come from the config file or a flag.
func Default() *Config {
	dataDir := filepath.Join(".", "signal-mcp")
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".local", "share", "signal-mcp")
	}

	return &Config{
		Daemon: DaemonConfig{
			Host: "localhost",
			Port: 7583,
		},
		Queue: QueueConfig{
			Limit: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
		Paths: PathsConfig{
			DataDir: dataDir,
		},
	}
}

// Load reads a TOML config file into the defaults. A missing file is not an
// error; the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks for settings that cannot possibly work.
func (c *Config) Validate() error {
	if c.Daemon.Host == "" {
		return fmt.Errorf("daemon host must not be empty")
	}

	if c.Daemon.Port < 1 || c.Daemon.Port > 65535 {
		return fmt.Errorf("daemon port %d out of range", c.Daemon.Port)
	}

	if c.Queue.Limit < 0 {
		return fmt.Errorf("queue limit must not be negative")
	}

	return nil
}

// Addr returns the daemon's host:port address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Daemon.Host, strconv.Itoa(c.Daemon.Port))
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "sigmcp.lock")
}

// CachePath returns the name cache database location.
func (c *Config) CachePath() string {
	return filepath.Join(c.Paths.DataDir, "names.db")
}

// EnsureDirectories creates the data directory if needed.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	return nil
}
