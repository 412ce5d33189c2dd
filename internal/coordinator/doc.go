// Package coordinator maintains the WebSocket connection to an IKEA
// OBEGRÄNSAD LED display running the open-source matrix firmware.
//
// The firmware serves ws://<host>/ws and pushes an "info" frame whenever
// its state changes:
//
//	{"event":"info","brightness":255,"plugin":3,"plugins":[{"id":1,"name":"Draw"}],"rotation":0,"status":"NONE","scheduleActive":false}
//
// Commands are JSON frames with an event discriminator:
//
//	{"event":"brightness","brightness":128}
//	{"event":"plugin","plugin":4}
//	{"event":"persist-plugin"}
//
// A Coordinator redials on failure with exponential backoff (1s to 60s
// with jitter). The pairing probe uses a transient coordinator; the bridge
// keeps one per paired display.
package coordinator
