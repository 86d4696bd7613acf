// Package telemetry publishes receiver statistics to the optional MQTT and
// InfluxDB sinks.
//
// A Publisher does no scheduling of its own: the owner calls Publish from
// its run loop on a fixed interval. Sink failures are logged and never
// stop publication to the other sink.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/dmx2c2ip/internal/dmx"
	"github.com/nerrad567/dmx2c2ip/internal/infrastructure/logging"
	"github.com/nerrad567/dmx2c2ip/internal/infrastructure/mqtt"
	"github.com/nerrad567/dmx2c2ip/internal/valuetree"
)

// StatsSource provides receiver statistics. *dmx.Receiver satisfies it.
type StatsSource interface {
	Stats() dmx.Stats
}

// MQTTSink is the subset of *mqtt.Client used for publishing.
type MQTTSink interface {
	PublishRetained(topic string, payload []byte) error
	Topics() mqtt.Topics
	HealthCheck(ctx context.Context) error
	Close() error
}

// MetricSink is the subset of *influxdb.Client used for publishing.
type MetricSink interface {
	WriteReceiverMetric(device string, fields map[string]any)
	HealthCheck(ctx context.Context) error
	Close() error
}

// Publisher fans receiver statistics out to the attached sinks.
//
// Thread Safety: not safe for concurrent use; call it from one goroutine.
type Publisher struct {
	source StatsSource
	logger *logging.Logger
	mqtt   MQTTSink
	influx MetricSink

	// unhealthy records sinks whose last health check failed, by name.
	unhealthy map[string]bool
}

// New creates a publisher with no sinks attached.
func New(source StatsSource, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		source:    source,
		logger:    logger.With("component", "telemetry"),
		unhealthy: make(map[string]bool),
	}
}

// AttachMQTT adds the MQTT sink. The publisher takes ownership and closes
// it in Close.
func (p *Publisher) AttachMQTT(sink MQTTSink) {
	p.mqtt = sink
}

// AttachInflux adds the InfluxDB sink. The publisher takes ownership and
// closes it in Close.
func (p *Publisher) AttachInflux(sink MetricSink) {
	p.influx = sink
}

// Active reports whether any sink is attached.
func (p *Publisher) Active() bool {
	return p.mqtt != nil || p.influx != nil
}

// Publish sends one statistics sample to every attached sink.
func (p *Publisher) Publish() {
	if p.source == nil || !p.Active() {
		return
	}
	stats := p.source.Stats()

	if p.mqtt != nil {
		payload, err := json.Marshal(stats)
		if err == nil {
			err = p.mqtt.PublishRetained(p.mqtt.Topics().Receiver(), payload)
		}
		if err != nil {
			p.logger.Warn("mqtt publish failed", "error", err)
		}
	}

	if p.influx != nil {
		p.influx.WriteReceiverMetric(stats.Device, Fields(stats))
	}
}

// CheckHealth checks every attached sink. A sink turning unhealthy is
// logged once as a warning and its recovery as info.
//
// Returns:
//   - error: nil when every attached sink is healthy, otherwise the
//     joined failures prefixed with the sink name
func (p *Publisher) CheckHealth(ctx context.Context) error {
	var errs []error
	if p.mqtt != nil {
		errs = append(errs, p.checkSink(ctx, "mqtt", p.mqtt.HealthCheck))
	}
	if p.influx != nil {
		errs = append(errs, p.checkSink(ctx, "influxdb", p.influx.HealthCheck))
	}
	return errors.Join(errs...)
}

func (p *Publisher) checkSink(ctx context.Context, name string, check func(context.Context) error) error {
	err := check(ctx)
	was := p.unhealthy[name]
	p.unhealthy[name] = err != nil

	switch {
	case err != nil && !was:
		p.logger.Warn("telemetry sink unhealthy", "sink", name, "error", err)
	case err == nil && was:
		p.logger.Info("telemetry sink recovered", "sink", name)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// PublishValues publishes the served value tree once, retained, so MQTT
// consumers see the same state as HTTP clients.
func (p *Publisher) PublishValues(tree valuetree.Node) {
	if p.mqtt == nil {
		return
	}
	payload, err := json.Marshal(tree)
	if err == nil {
		err = p.mqtt.PublishRetained(p.mqtt.Topics().Values(), payload)
	}
	if err != nil {
		p.logger.Warn("mqtt value tree publish failed", "error", err)
	}
}

// Close releases the sinks, InfluxDB first so its final flush is not
// reported as lost after MQTT announces the bridge offline. It is safe to
// call more than once.
func (p *Publisher) Close() error {
	var errs []error
	if p.influx != nil {
		if err := p.influx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing influxdb: %w", err))
		}
		p.influx = nil
	}
	if p.mqtt != nil {
		if err := p.mqtt.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing mqtt: %w", err))
		}
		p.mqtt = nil
	}
	return errors.Join(errs...)
}

// Fields converts statistics into InfluxDB field values.
//
// #nosec G115 -- counters stay far below 2^63
func Fields(s dmx.Stats) map[string]any {
	return map[string]any{
		"connected":       s.Connected,
		"frames":          int64(s.Frames),
		"breaks":          int64(s.Breaks),
		"framing_errors":  int64(s.FramingErrors),
		"discarded_bytes": int64(s.Discarded),
		"bytes_rx":        int64(s.BytesRx),
		"last_slots":      int64(s.LastSlots),
	}
}
