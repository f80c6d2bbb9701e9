package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Measurement names.
const (
	MeasurementSessionEvent    = "mqtt_session_event"
	MeasurementSessionCounters = "mqtt_session_counters"
)

// WritePoint writes a point tagged with the node name. ts zero means now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	c.points.WritePoint(nodePoint(c.node, measurement, tags, fields, ts))
}

// WriteSessionEvent records a session state change or watchdog reboot.
func (c *Client) WriteSessionEvent(e session.Event) {
	if !c.IsConnected() {
		return
	}
	c.points.WritePoint(sessionEventPoint(c.node, e))
}

// WriteSessionCounters records the running session totals from a snapshot.
func (c *Client) WriteSessionCounters(s session.Status, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.points.WritePoint(sessionCountersPoint(c.node, s, ts))
}

func nodePoint(node, measurement string, tags map[string]string, fields map[string]any, ts time.Time) *write.Point {
	all := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		all[k] = v
	}
	all["node"] = node
	return write.NewPoint(measurement, all, fields, ts)
}

func sessionEventPoint(node string, e session.Event) *write.Point {
	return nodePoint(node, MeasurementSessionEvent,
		map[string]string{"kind": string(e.Kind)},
		map[string]any{
			"from":      e.From.String(),
			"to":        e.To.String(),
			"reason":    e.Reason.String(),
			"connected": e.To == session.StateConnected,
		},
		e.Time,
	)
}

func sessionCountersPoint(node string, s session.Status, ts time.Time) *write.Point {
	return nodePoint(node, MeasurementSessionCounters,
		map[string]string{"state": s.State},
		map[string]any{
			"connects":          counter(s.Counters.Connects),
			"disconnects":       counter(s.Counters.Disconnects),
			"births_sent":       counter(s.Counters.BirthsSent),
			"published":         counter(s.Counters.Published),
			"publish_failed":    counter(s.Counters.PublishFailed),
			"messages_received": counter(s.Counters.MessagesReceived),
			"subscriptions":     len(s.Subscriptions),
			"components":        s.Components,
		},
		ts,
	)
}

// counter converts a running total to the signed integer influx stores.
func counter(v uint64) int64 {
	return int64(v) //nolint:gosec // totals stay far below 2^63
}
