// Package influxdb provides the InfluxDB writer for receiver telemetry.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched metric writing, and health monitoring.
//
// # Usage
//
//	client, err := influxdb.Connect(config.InfluxDBSettings(store))
//	if err != nil {
//	    // degraded: run without InfluxDB
//	}
//	defer client.Close()
//
//	client.WriteReceiverMetric("/dev/ttyUSB0", map[string]any{"frames": int64(1200)})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking; batch errors are delivered through the
// SetOnError callback. Connection and health check errors are returned
// directly.
package influxdb
