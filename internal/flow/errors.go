package flow

import "errors"

// Sentinel errors for the flow package.
var (
	// ErrCannotConnect means the display could not be reached or answered
	// with unusable data. The underlying cause is wrapped for logs only.
	ErrCannotConnect = errors.New("flow: cannot connect")

	// ErrUnknownStep is returned by Handler.Step for any step other than "user".
	ErrUnknownStep = errors.New("flow: unknown step")

	// ErrFlowNotFound is returned by the Manager for an unknown or finished flow id.
	ErrFlowNotFound = errors.New("flow: not found")
)

// Form error codes rendered by the UI.
const (
	// ErrorKeyBase attaches an error to the whole form rather than a field.
	ErrorKeyBase = "base"

	ErrorCannotConnect = "cannot_connect"
	ErrorInvalidHost   = "invalid_host"
	ErrorUnknown       = "unknown"
)

// Abort reasons.
const (
	AbortAlreadyConfigured = "already_configured"
)
