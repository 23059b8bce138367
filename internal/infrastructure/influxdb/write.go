package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementAuthEvents holds one point per authentication outcome.
const MeasurementAuthEvents = "auth_events"

// RecordAuthEvent writes one authentication outcome.
//
// Tags stay low-cardinality (action, role, outcome); the count field lets
// dashboards sum() per window. Emails are never written to the time series.
//
// Example:
//
//	client.RecordAuthEvent("login", "customer", "success", time.Now())
func (c *Client) RecordAuthEvent(action, role, outcome string, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(newAuthEventPoint(action, role, outcome, at))
}

func newAuthEventPoint(action, role, outcome string, at time.Time) *write.Point {
	if at.IsZero() {
		at = time.Now()
	}
	return write.NewPoint(
		MeasurementAuthEvents,
		map[string]string{
			"action":  action,
			"role":    role,
			"outcome": outcome,
		},
		map[string]any{
			"count": 1,
		},
		at,
	)
}

// WritePoint writes a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
