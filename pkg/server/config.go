package server

import (
	"fmt"
	"os"
	"time"

	"github.com/NicolasHaas/linechat/pkg/protocol"
	"gopkg.in/yaml.v3"
)

// Config holds server configuration.
type Config struct {
	ListenAddr    string        // TCP bind address (e.g. ":4000")
	WSAddr        string        // HTTP bind address for the /ws WebSocket endpoint (empty = disabled)
	MetricsAddr   string        // HTTP bind address for /metrics endpoint (empty = disabled)
	IdleTimeout   time.Duration // close sessions silent this long
	ShutdownGrace time.Duration // how long Shutdown waits for handlers to finish
	MaxLineBytes  int           // single-line size bound
}

// configYAML is the on-disk representation. Durations are Go duration
// strings ("60s", "2m30s").
type configYAML struct {
	ListenAddr    string `yaml:"listen_addr,omitempty"`
	WSAddr        string `yaml:"ws_addr,omitempty"`
	MetricsAddr   string `yaml:"metrics_addr,omitempty"`
	IdleTimeout   string `yaml:"idle_timeout,omitempty"`
	ShutdownGrace string `yaml:"shutdown_grace,omitempty"`
	MaxLineBytes  int    `yaml:"max_line_bytes,omitempty"`
}

// DefaultConfig returns a config with sensible defaults. The PORT
// environment variable, when set, overrides the default TCP port.
func DefaultConfig() Config {
	cfg := Config{
		ListenAddr:    ":4000",
		IdleTimeout:   60 * time.Second,
		ShutdownGrace: 5 * time.Second,
		MaxLineBytes:  protocol.MaxLineBytes,
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.ListenAddr = ":" + port
	}
	return cfg
}

// LoadConfig reads a YAML config file over the defaults. Fields absent
// from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	var file configYAML
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if file.ListenAddr != "" {
		cfg.ListenAddr = file.ListenAddr
	}
	if file.WSAddr != "" {
		cfg.WSAddr = file.WSAddr
	}
	if file.MetricsAddr != "" {
		cfg.MetricsAddr = file.MetricsAddr
	}
	if file.IdleTimeout != "" {
		d, err := time.ParseDuration(file.IdleTimeout)
		if err != nil {
			return cfg, fmt.Errorf("parse config: idle_timeout: %w", err)
		}
		cfg.IdleTimeout = d
	}
	if file.ShutdownGrace != "" {
		d, err := time.ParseDuration(file.ShutdownGrace)
		if err != nil {
			return cfg, fmt.Errorf("parse config: shutdown_grace: %w", err)
		}
		cfg.ShutdownGrace = d
	}
	if file.MaxLineBytes != 0 {
		cfg.MaxLineBytes = file.MaxLineBytes
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr must not be empty")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("config: idle_timeout must be positive")
	}
	if c.MaxLineBytes <= 0 {
		return fmt.Errorf("config: max_line_bytes must be positive")
	}
	return nil
}
