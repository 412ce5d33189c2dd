package bridge

import "errors"

// Sentinel errors for the bridge package.
var (
	// ErrUnknownDisplay is returned for a command addressed to an entry
	// the bridge does not manage.
	ErrUnknownDisplay = errors.New("bridge: unknown display")

	// ErrInvalidCommand is returned for a malformed or empty command payload.
	ErrInvalidCommand = errors.New("bridge: invalid command")

	// ErrNotRunning is returned when the bridge has not been started.
	ErrNotRunning = errors.New("bridge: not running")
)
