// Package bridge relays paired OBEGRÄNSAD displays onto the Gray Logic
// MQTT bus.
//
// The bridge keeps one coordinator per config entry. State pushed by a
// display, and state read on each poll, is published retained to
//
//	graylogic/state/obegraensad/<entry-id>
//
// Commands arrive on graylogic/command/obegraensad/<entry-id>:
//
//	{"brightness":128}
//	{"plugin":4}
//	{"persist":true}
//
// Fields may be combined; they are applied in the order above. Brightness
// and plugin samples are also written to InfluxDB when telemetry is on.
package bridge
