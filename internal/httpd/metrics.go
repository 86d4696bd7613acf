package httpd

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the Prometheus registry of one server. Each server owns a
// private registry so several servers (and tests) can coexist in a process.
type metrics struct {
	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	authFailures prometheus.Counter
}

func newMetrics(stats StatsSource) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dmx2c2ip_http_requests_total",
				Help: "Total HTTP requests by method and status code",
			},
			[]string{"method", "code"},
		),
		authFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dmx2c2ip_http_auth_failures_total",
				Help: "Total HTTP requests rejected for missing or wrong credentials",
			},
		),
	}

	m.registry.MustRegister(
		m.requests,
		m.authFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if stats != nil {
		m.registry.MustRegister(&receiverCollector{source: stats})
	}
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

var (
	descConnected = prometheus.NewDesc(
		"dmx2c2ip_receiver_connected",
		"Whether the DMX receiver is reading from its device (1) or stopped (0)",
		[]string{"device"}, nil,
	)
	descFrames = prometheus.NewDesc(
		"dmx2c2ip_receiver_frames_total",
		"Complete DMX frames received",
		[]string{"device"}, nil,
	)
	descBreaks = prometheus.NewDesc(
		"dmx2c2ip_receiver_breaks_total",
		"Line breaks detected",
		[]string{"device"}, nil,
	)
	descFramingErrors = prometheus.NewDesc(
		"dmx2c2ip_receiver_framing_errors_total",
		"Bytes received with framing or parity errors",
		[]string{"device"}, nil,
	)
	descDiscarded = prometheus.NewDesc(
		"dmx2c2ip_receiver_discarded_bytes_total",
		"Data bytes received outside a frame",
		[]string{"device"}, nil,
	)
	descBytes = prometheus.NewDesc(
		"dmx2c2ip_receiver_bytes_total",
		"Raw bytes read from the serial device",
		[]string{"device"}, nil,
	)
	descLastSlots = prometheus.NewDesc(
		"dmx2c2ip_receiver_last_frame_slots",
		"Slot count of the most recent frame",
		[]string{"device"}, nil,
	)
)

// receiverCollector exports receiver counters at scrape time.
type receiverCollector struct {
	source StatsSource
}

func (c *receiverCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descConnected
	ch <- descFrames
	ch <- descBreaks
	ch <- descFramingErrors
	ch <- descDiscarded
	ch <- descBytes
	ch <- descLastSlots
}

func (c *receiverCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()

	connected := 0.0
	if s.Connected {
		connected = 1
	}
	ch <- prometheus.MustNewConstMetric(descConnected, prometheus.GaugeValue, connected, s.Device)
	ch <- prometheus.MustNewConstMetric(descFrames, prometheus.CounterValue, float64(s.Frames), s.Device)
	ch <- prometheus.MustNewConstMetric(descBreaks, prometheus.CounterValue, float64(s.Breaks), s.Device)
	ch <- prometheus.MustNewConstMetric(descFramingErrors, prometheus.CounterValue, float64(s.FramingErrors), s.Device)
	ch <- prometheus.MustNewConstMetric(descDiscarded, prometheus.CounterValue, float64(s.Discarded), s.Device)
	ch <- prometheus.MustNewConstMetric(descBytes, prometheus.CounterValue, float64(s.BytesRx), s.Device)
	ch <- prometheus.MustNewConstMetric(descLastSlots, prometheus.GaugeValue, float64(s.LastSlots), s.Device)
}
