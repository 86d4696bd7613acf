package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementReceiver is the measurement of receiver statistics points.
const MeasurementReceiver = "dmx_receiver"

// WriteReceiverMetric writes one receiver statistics sample.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - device: Serial device path, stored as the "device" tag
//   - fields: Counter and gauge values of the sample
//
// Example:
//
//	client.WriteReceiverMetric("/dev/ttyUSB0", map[string]any{
//	    "frames": int64(1200), "framing_errors": int64(0),
//	})
func (c *Client) WriteReceiverMetric(device string, fields map[string]any) {
	c.WritePoint(MeasurementReceiver, map[string]string{"device": device}, fields)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
