// Package flow implements the interactive pairing flow for IKEA OBEGRÄNSAD
// LED displays.
//
// A flow has a single step, "user". Called without input it returns the
// form to render (one required "host" field). Called with input it probes
// the display once and then either:
//
//   - re-shows the form with {"base": "cannot_connect"} when the probe fails,
//   - aborts with "already_configured" when the host is already paired, or
//   - creates the config entry "IKEA OBEGRÄNSAD LED (<host>)".
//
// The Handler never returns a raw error; every outcome is a Result. The
// Manager holds in-progress flows between the two round trips.
package flow
