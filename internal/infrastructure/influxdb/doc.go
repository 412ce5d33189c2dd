// Package influxdb writes OBEGRÄNSAD display telemetry to InfluxDB v2.
//
// The bridge records brightness and active plugin per paired display on
// every poll, and probe outcomes are recorded with their duration. Writes
// use the client's non-blocking API; points are batched and flushed on an
// interval or on Close.
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteDisplayState(entryID, host, 128, 3)
package influxdb
