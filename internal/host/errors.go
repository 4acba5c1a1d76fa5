package host

import "errors"

// Errors returned by the host and its entity store.
var (
	// ErrEntityNotFound is returned when a key has never been registered.
	ErrEntityNotFound = errors.New("host: entity not found")

	// ErrInvalidCommand is returned for command payloads that cannot be decoded.
	ErrInvalidCommand = errors.New("host: invalid command")

	// ErrNotStarted is returned when commands arrive before Start.
	ErrNotStarted = errors.New("host: not started")
)
