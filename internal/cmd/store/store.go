package store

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/LithiumDevs/lithium/internal/config"
	"github.com/LithiumDevs/lithium/pkg/storage/pebblestore"
)

// ConfigFunc resolves the effective configuration for a command invocation.
// The binary that embeds the commands supplies it after merging defaults,
// config file, environment, and flags.
type ConfigFunc func() (config.Config, error)

// New constructs the `store` command group and subcommands.
func New(resolve ConfigFunc) *cobra.Command {
	storeCmd := &cobra.Command{Use: "store", Short: "Inspect persisted channel state"}

	storeCmd.AddCommand(
		newLsCommand(resolve),
		newGetCommand(resolve),
		newRmCommand(resolve),
		newClearCommand(resolve),
	)

	return storeCmd
}

// openStore opens the durable store the broker writes to, under the same
// <data-dir>/store layout the embedding application uses.
func openStore(cfg config.Config) (*pebblestore.Store, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	mode, err := cfg.FsyncMode()
	if err != nil {
		return nil, err
	}
	return pebblestore.Open(pebblestore.Options{
		DataDir:       filepath.Join(dataDir, "store"),
		Fsync:         mode,
		FsyncInterval: time.Duration(cfg.FsyncIntervalMs) * time.Millisecond,
	})
}

// newLsCommand constructs the `store ls` subcommand.
func newLsCommand(resolve ConfigFunc) *cobra.Command {
	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List persisted channel entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filterExpr, _ := cmd.Flags().GetString("filter")

			cfg, err := resolve()
			if err != nil {
				return err
			}
			f, err := newEntryFilter(filterExpr)
			if err != nil {
				return fmt.Errorf("invalid --filter: %w", err)
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			enc := json.NewEncoder(cmd.OutOrStdout())
			return st.Scan(cfg.KeyPrefix, func(key string, value []byte) error {
				if !f.Eval(key, value) {
					return nil
				}
				return enc.Encode(decodedEntry(cfg.KeyPrefix, key, value))
			})
		},
	}
	lsCmd.Flags().String("filter", "", "CEL filter over key|text|size|json|now_ms")
	return lsCmd
}

// newGetCommand constructs the `store get` subcommand.
func newGetCommand(resolve ConfigFunc) *cobra.Command {
	getCmd := &cobra.Command{
		Use:   "get <channel>",
		Short: "Print one persisted channel entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolve()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			key := cfg.KeyPrefix + args[0]
			value, ok, err := st.Get(key)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no persisted entry for channel %q", args[0])
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(decodedEntry(cfg.KeyPrefix, key, value))
		},
	}
	return getCmd
}

// newRmCommand constructs the `store rm` subcommand.
func newRmCommand(resolve ConfigFunc) *cobra.Command {
	rmCmd := &cobra.Command{
		Use:   "rm <channel>",
		Short: "Remove one persisted channel entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolve()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			key := cfg.KeyPrefix + args[0]
			if err := st.Delete(key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", key)
			return nil
		},
	}
	return rmCmd
}

// newClearCommand constructs the `store clear` subcommand.
func newClearCommand(resolve ConfigFunc) *cobra.Command {
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every persisted entry under the key prefix",
		RunE: func(cmd *cobra.Command, _ []string) error {
			confirm, _ := cmd.Flags().GetBool("confirm")

			cfg, err := resolve()
			if err != nil {
				return err
			}
			if !confirm {
				return fmt.Errorf("use --confirm to remove every entry under prefix %q", cfg.KeyPrefix)
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			var keys []string
			if err := st.Scan(cfg.KeyPrefix, func(key string, _ []byte) error {
				keys = append(keys, key)
				return nil
			}); err != nil {
				return err
			}
			for _, key := range keys {
				if err := st.Delete(key); err != nil {
					return err
				}
			}

			var data struct {
				Prefix       string `json:"prefix"`
				DeletedCount int    `json:"deleted_count"`
			}
			data.Prefix = cfg.KeyPrefix
			data.DeletedCount = len(keys)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(data)
		},
	}
	clearCmd.Flags().Bool("confirm", false, "Confirm the clear operation")
	return clearCmd
}

// decodedEntry returns a map with channel, key, size, and one of value_json,
// value_text, or value_b64. Values written by the broker are JSON from the
// storage codec, so value_json is the common case.
func decodedEntry(prefix, key string, value []byte) map[string]any {
	out := map[string]any{
		"channel": strings.TrimPrefix(key, prefix),
		"key":     key,
		"size":    len(value),
	}
	var v any
	if json.Unmarshal(value, &v) == nil {
		out["value_json"] = v
		return out
	}
	// Then UTF-8 text if valid
	if utf8.Valid(value) {
		out["value_text"] = string(value)
		return out
	}
	// Fallback to base64
	out["value_b64"] = base64.StdEncoding.EncodeToString(value)
	return out
}
