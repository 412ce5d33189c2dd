package coordinator

import "errors"

// Sentinel errors for coordinator operations. Check with errors.Is.
var (
	// ErrNotConnected is returned when the display socket is not open.
	ErrNotConnected = errors.New("coordinator: not connected")

	// ErrNoState is returned when connected but the display has not yet
	// reported its state.
	ErrNoState = errors.New("coordinator: no state received")

	// ErrClosed is returned after Shutdown.
	ErrClosed = errors.New("coordinator: closed")

	// ErrInvalidBrightness is returned for brightness outside 0-255.
	ErrInvalidBrightness = errors.New("coordinator: brightness must be 0-255")

	// ErrInvalidPlugin is returned for a negative plugin id.
	ErrInvalidPlugin = errors.New("coordinator: invalid plugin id")
)
