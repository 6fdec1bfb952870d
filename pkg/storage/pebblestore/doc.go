// Package pebblestore provides a thin wrapper around Pebble with fsync
// policy, prefix scans, and minimal metrics hooks. It backs the durable
// persistence tier.
//
// Usage:
//
//	store, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer store.Close()
//
//	// Point ops
//	_ = store.Set("lithium:settings", []byte(`{"theme":"dark"}`))
//	v, ok, _ := store.Get("lithium:settings")
//
//	// Walk everything under a key prefix
//	_ = store.Scan("lithium:", func(key string, value []byte) error {
//	    fmt.Println(key, len(value))
//	    return nil
//	})
package pebblestore
