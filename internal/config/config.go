package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/LithiumDevs/lithium/pkg/storage/pebblestore"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DataDir         string `json:"dataDir" yaml:"dataDir"`
	KeyPrefix       string `json:"keyPrefix" yaml:"keyPrefix"`
	Fsync           string `json:"fsync" yaml:"fsync"`
	FsyncIntervalMs int    `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`
	MaxChannels     int    `json:"maxChannels" yaml:"maxChannels"`
	LogLevel        string `json:"logLevel" yaml:"logLevel"`
	LogFormat       string `json:"logFormat" yaml:"logFormat"`
}

// Default returns built-in defaults. DataDir is left empty so callers can
// fall back to DefaultDataDir() after every overlay has been applied.
func Default() Config {
	return Config{
		KeyPrefix:       "lithium:",
		Fsync:           "interval",
		FsyncIntervalMs: 5,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path
// is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// FsyncMode maps the textual fsync setting to the store's mode.
func (c Config) FsyncMode() (pebblestore.FsyncMode, error) {
	switch c.Fsync {
	case "always":
		return pebblestore.FsyncModeAlways, nil
	case "interval", "":
		return pebblestore.FsyncModeInterval, nil
	case "never":
		return pebblestore.FsyncModeNever, nil
	default:
		return pebblestore.FsyncModeUnspecified, fmt.Errorf("invalid fsync %q; use always|interval|never", c.Fsync)
	}
}
