package storage

import (
	"fmt"

	"github.com/goccy/go-json"
)

// EncodeValue renders a channel value as JSON text. Values must round-trip:
// anything the encoder rejects (channels, funcs, cycles) cannot be persisted.
func EncodeValue(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("storage: encode value: %w", err)
	}
	return data, nil
}

// DecodeValue parses JSON text produced by EncodeValue into out, which must
// be a non-nil pointer.
func DecodeValue(data []byte, out interface{}) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("storage: decode value: %w", err)
	}
	return nil
}
