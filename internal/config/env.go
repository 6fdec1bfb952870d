package config

import (
	"os"
	"strconv"
)

// FromEnv overlays LITHIUM_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("LITHIUM_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LITHIUM_KEY_PREFIX"); v != "" {
		cfg.KeyPrefix = v
	}
	if v := os.Getenv("LITHIUM_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("LITHIUM_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FsyncIntervalMs = n
		}
	}
	if v := os.Getenv("LITHIUM_MAX_CHANNELS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxChannels = n
		}
	}
	if v := os.Getenv("LITHIUM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LITHIUM_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}
