// Package storage defines the persistence tiers behind durable channels and
// the key-value surfaces that back them.
//
// A channel's Tier decides what happens to its value between publishes:
// TierNone keeps it in memory only, TierSession keeps it for the process
// lifetime, and TierDurable writes it to disk. The Tiered adapter routes
// reads and writes to one KV per persistent tier; the in-memory value always
// stays authoritative, so a failing store degrades persistence without
// affecting live delivery.
//
// Values cross the store boundary as JSON text via EncodeValue and
// DecodeValue.
//
// Usage:
//
//	adapter := storage.NewTiered(storage.NewMemory(), durableKV)
//	data, _ := storage.EncodeValue(cfg)
//	_ = adapter.Write("lithium:settings", storage.TierDurable, data)
//	raw, ok, _ := adapter.Read("lithium:settings", storage.TierDurable)
//	if ok {
//	    _ = storage.DecodeValue(raw, &cfg)
//	}
package storage
