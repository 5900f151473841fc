// Package influxdb writes shadow synchronisation telemetry to InfluxDB.
//
// Two measurements are produced, both tagged with the thing name:
//
//   - shadow_reported: one point per field included in a published update
//     (tag field, value)
//   - shadow_publish: one point per acknowledgement outcome
//     (tag status, latency_ms, fields)
//
// Telemetry is optional. When influxdb.enabled is false Connect returns
// ErrDisabled and the sync loop runs without it.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, identity.ThingName)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	loop.SetTelemetry(client)
//
// Writes are batched according to batch_size and flush_interval and never
// block the caller.
package influxdb
