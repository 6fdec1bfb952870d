// Package id provides 128-bit, lexicographically sortable registration
// tokens. The broker hands one out per channel subscriber and per topic
// listener: keeping them as map keys gives O(1) removal on unsubscribe,
// and sorting a snapshot of the keys restores registration order for
// delivery.
//
// # Format
//
// A Token is 16 bytes big-endian: [8 bytes ms_timestamp][8 bytes sequence].
// This guarantees that byte-wise comparison preserves chronological order,
// and that tokens issued within the same millisecond remain strictly
// increasing by sequence.
//
// # Monotonicity
//
// The Generator ensures per-process monotonicity:
//   - If the system clock regresses, it pins to the last seen millisecond and
//     increments the sequence to avoid going backwards.
//   - If the sequence would overflow within a millisecond, it waits for the
//     next millisecond before emitting the next token.
//
// Usage
//
//	g := id.NewGenerator()
//	tok := g.Next()
//	b := tok.Bytes()   // 16-byte representation
//	s := tok.String()  // hex string
package id
