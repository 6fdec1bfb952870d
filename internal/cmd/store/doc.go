// Package store provides the `lithium store` command group.
//
// The commands open the durable store directly (the same <data-dir>/store
// Pebble database the embedding application writes through the broker) and
// are intended for developers and operators inspecting persisted channel
// state between runs.
//
// Usage
//
//	lithium store ls
//	lithium store ls --filter 'key.startsWith("lithium:user.")'
//	lithium store ls --filter 'json.plan == "pro" && size < 4096'
//
//	lithium store get user.theme
//	lithium store rm user.theme
//
//	# Remove every entry under the configured key prefix (requires --confirm)
//	lithium store clear --confirm
//
// Notes
//
//   - ls prints one JSON object per entry: channel, key, size, and the
//     decoded value (value_json when the stored bytes parse as JSON, then
//     value_text, then value_b64).
//   - The --filter expression is CEL with key, text, size, json, and now_ms
//     in scope; entries evaluating to anything but true are skipped.
//   - Do not run destructive commands against a data directory an
//     application is actively using; Pebble locks the directory.
package store
