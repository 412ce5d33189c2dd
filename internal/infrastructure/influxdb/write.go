package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementDisplay = "obegraensad_display"
	measurementProbe   = "obegraensad_probe"
)

// WriteDisplayState records one polled state sample for a paired display.
//
// Parameters:
//   - entryID: Config entry the display belongs to
//   - host: Display host, kept as a tag for ad-hoc queries
//   - brightness: Reported brightness (0-255)
//   - plugin: Active plugin id reported by the firmware
func (c *Client) WriteDisplayState(entryID, host string, brightness, plugin int) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		measurementDisplay,
		map[string]string{
			"entry_id": entryID,
			"host":     host,
		},
		map[string]interface{}{
			"brightness": brightness,
			"plugin":     plugin,
		},
		time.Now(),
	))
}

// WriteProbeResult records the outcome and duration of a connectivity probe.
func (c *Client) WriteProbeResult(host string, ok bool, elapsed time.Duration) {
	if !c.IsConnected() {
		return
	}

	result := "success"
	if !ok {
		result = "cannot_connect"
	}

	c.writeAPI.WritePoint(write.NewPoint(
		measurementProbe,
		map[string]string{
			"host":   host,
			"result": result,
		},
		map[string]interface{}{
			"duration_ms": elapsed.Milliseconds(),
		},
		time.Now(),
	))
}
