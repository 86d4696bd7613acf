package lifecycle

import (
	"context"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/nerrad567/dmx2c2ip/internal/dmx"
	"github.com/nerrad567/dmx2c2ip/internal/httpd"
	"github.com/nerrad567/dmx2c2ip/internal/infrastructure/config"
	"github.com/nerrad567/dmx2c2ip/internal/infrastructure/influxdb"
	"github.com/nerrad567/dmx2c2ip/internal/infrastructure/logging"
	"github.com/nerrad567/dmx2c2ip/internal/infrastructure/mqtt"
	"github.com/nerrad567/dmx2c2ip/internal/telemetry"
)

// Receiver is the DMX receiver handle owned by the service.
// *dmx.Receiver satisfies it.
type Receiver interface {
	Stats() dmx.Stats
	LastFrame() (dmx.Frame, time.Time, bool)
	Done() <-chan struct{}
	Err() error
	Close() error
}

// Server is the HTTP server handle owned by the service.
// *httpd.Server satisfies it.
type Server interface {
	Start(ctx context.Context) error
	Close() error
}

// Deps are the collaborators the service acquires and releases. Every
// function field must be set; DefaultDeps wires the real implementations.
type Deps struct {
	// OpenReceiver acquires the DMX device.
	OpenReceiver func(ctx context.Context, cfg dmx.PortConfig, log *logging.Logger) (Receiver, error)

	// NewServer creates the HTTP server. It must not fail.
	NewServer func(opts httpd.Options, deps httpd.Deps) Server

	// ConnectMQTT and ConnectInflux connect the optional telemetry sinks.
	ConnectMQTT   func(cfg config.MQTTConfig, log *logging.Logger) (telemetry.MQTTSink, error)
	ConnectInflux func(cfg config.InfluxDBConfig, log *logging.Logger) (telemetry.MetricSink, error)

	// Signals stop the run loop. Default: SIGINT and SIGTERM.
	Signals []os.Signal

	// Stdout receives --help and --version output.
	Stdout io.Writer

	// Logger overrides the logger built from the Logging group.
	Logger *logging.Logger

	Version string

	// OnRunning, when set, is called from Run after the signal handlers
	// are installed and before the loop starts dispatching.
	OnRunning func(s *Service)
}

// DefaultDeps returns the production collaborators.
func DefaultDeps(version string) Deps {
	return Deps{
		OpenReceiver: openReceiver,
		NewServer: func(opts httpd.Options, deps httpd.Deps) Server {
			return httpd.New(opts, deps)
		},
		ConnectMQTT:   connectMQTT,
		ConnectInflux: connectInflux,
		Signals:       []os.Signal{os.Interrupt, syscall.SIGTERM},
		Stdout:        os.Stdout,
		Version:       version,
	}
}

func openReceiver(ctx context.Context, cfg dmx.PortConfig, log *logging.Logger) (Receiver, error) {
	r, err := dmx.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	r.SetLogger(log.With("component", "dmx"))
	return r, nil
}

func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) (telemetry.MQTTSink, error) {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, err
	}
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	return client, nil
}

func connectInflux(cfg config.InfluxDBConfig, log *logging.Logger) (telemetry.MetricSink, error) {
	client, err := influxdb.Connect(cfg)
	if err != nil {
		return nil, err
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	return client, nil
}
