package broker

import "errors"

var (
	// ErrClosed is returned by operations invoked after Shutdown.
	ErrClosed = errors.New("broker: closed")
	// ErrNameRequired is returned when a channel name is empty.
	ErrNameRequired = errors.New("broker: name required")
	// ErrTypeMismatch is returned when a typed operation addresses a channel
	// created with a different value type.
	ErrTypeMismatch = errors.New("broker: channel type mismatch")
	// ErrTooManyChannels is returned when creating a channel would exceed
	// Options.MaxChannels.
	ErrTooManyChannels = errors.New("broker: channel limit reached")
)
