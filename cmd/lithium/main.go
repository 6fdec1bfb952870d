package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	storecmd "github.com/LithiumDevs/lithium/internal/cmd/store"
	cfgpkg "github.com/LithiumDevs/lithium/internal/config"
	logpkg "github.com/LithiumDevs/lithium/pkg/log"
)

// Build metadata, overridden via -ldflags at release time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// initialize logger for CLI
	// Respect LITHIUM_LOG_LEVEL for CLI output
	level := os.Getenv("LITHIUM_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	// Redirect standard library logs (used by Pebble) to our logger
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "lithium",
		Short: "Lithium broker CLI",
		Long:  "Lithium is an embeddable reactive event broker. This CLI inspects and manages the state it persists between runs.",
	}
	rootCmd.PersistentFlags().String("config", "", "Config file (JSON or YAML)")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	rootCmd.PersistentFlags().String("key-prefix", "", "Storage key prefix override")
	rootCmd.PersistentFlags().String("fsync", "", "Fsync mode: always|interval|never")
	rootCmd.PersistentFlags().Int("fsync-interval-ms", 0, "When fsync=interval, group-commit window in ms (default 5)")
	rootCmd.PersistentFlags().String("log-level", os.Getenv("LITHIUM_LOG_LEVEL"), "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().String("log-format", os.Getenv("LITHIUM_LOG_FORMAT"), "Log format: text|json (default text)")

	// Resolution order: defaults <- file <- env <- flags.
	resolve := func() (cfgpkg.Config, error) {
		flags := rootCmd.PersistentFlags()
		path, _ := flags.GetString("config")
		cfg, err := cfgpkg.Load(path)
		if err != nil {
			return cfgpkg.Config{}, err
		}
		cfgpkg.FromEnv(&cfg)
		if v, _ := flags.GetString("data-dir"); v != "" {
			cfg.DataDir = v
		}
		if v, _ := flags.GetString("key-prefix"); v != "" {
			cfg.KeyPrefix = v
		}
		if v, _ := flags.GetString("fsync"); v != "" {
			cfg.Fsync = v
		}
		if v, _ := flags.GetInt("fsync-interval-ms"); v > 0 {
			cfg.FsyncIntervalMs = v
		}
		if v, _ := flags.GetString("log-level"); v != "" {
			cfg.LogLevel = v
		}
		if v, _ := flags.GetString("log-format"); v != "" {
			cfg.LogFormat = v
		}
		return cfg, nil
	}

	rootCmd.AddCommand(storecmd.New(resolve))

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lithium %s (%s)\n", version, commit)
		},
	}
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
