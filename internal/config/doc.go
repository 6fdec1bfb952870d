// Package config provides loading and environment overlay for Lithium
// configuration. It exposes a Default() baseline, file loading (JSON or
// YAML by extension), and a LITHIUM_* env overlay.
//
// Example:
//
//	cfg := config.Default()
//	// Optionally load from file and overlay env vars
//	if fileCfg, err := config.Load("/etc/lithium.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	mode, _ := cfg.FsyncMode()
//	st, _ := pebblestore.Open(pebblestore.Options{DataDir: cfg.DataDir, Fsync: mode})
//	defer st.Close()
package config
