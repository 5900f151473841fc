package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/shadowsync/internal/cloud"
	"github.com/nerrad567/shadowsync/internal/shadow"
)

// Measurement names.
const (
	MeasurementReported = "shadow_reported"
	MeasurementPublish  = "shadow_publish"
)

// WriteReported writes one shadow_reported point per field of update,
// tagged with the field name, at time at.
func (c *Client) WriteReported(update shadow.PendingUpdate, at time.Time) {
	if !c.IsConnected() {
		return
	}

	for _, e := range update {
		c.writer.WritePoint(write.NewPoint(
			MeasurementReported,
			map[string]string{
				"thing": c.thing,
				"field": string(e.Field),
			},
			map[string]any{
				"value": int64(e.Value),
			},
			at,
		))
	}
}

// WritePublishOutcome writes a shadow_publish point for ack, tagged with its
// status and stamped at the time the outcome was known.
func (c *Client) WritePublishOutcome(ack cloud.Ack) {
	if !c.IsConnected() {
		return
	}

	c.writer.WritePoint(write.NewPoint(
		MeasurementPublish,
		map[string]string{
			"thing":  c.thing,
			"status": string(ack.Status),
		},
		map[string]any{
			"latency_ms": ack.Latency.Milliseconds(),
			"fields":     int64(len(ack.Fields)),
		},
		ack.SentAt.Add(ack.Latency),
	))
}
