package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/dmx2c2ip/internal/dmx"
	"github.com/nerrad567/dmx2c2ip/internal/httpd"
	"github.com/nerrad567/dmx2c2ip/internal/infrastructure/config"
	"github.com/nerrad567/dmx2c2ip/internal/infrastructure/logging"
	"github.com/nerrad567/dmx2c2ip/internal/runloop"
	"github.com/nerrad567/dmx2c2ip/internal/telemetry"
	"github.com/nerrad567/dmx2c2ip/internal/valuetree"
)

// Configuration groups and keys read by the service.
const (
	groupDMXPort = "DMXPort"
	groupHTTP    = "HTTP"
)

// Telemetry sinks are checked on this interval while running. A check
// blocks the run loop for at most sinkHealthTimeout.
const (
	sinkHealthInterval = 30 * time.Second
	sinkHealthTimeout  = 2 * time.Second
)

// Service owns every long-lived handle of the bridge.
//
// Fields are populated in startup order and released in reverse order by
// Teardown. A nil handle is one that is not held.
//
// Thread Safety: a Service is driven by the goroutine calling Run. Only
// Shutdown may be called from other goroutines.
type Service struct {
	ConfigPath  string
	Config      *config.Store
	DeviceName  string
	DeviceSpeed int
	Receiver    Receiver
	Server      Server
	Telemetry   *telemetry.Publisher

	deps   Deps
	logger *logging.Logger
	loop   *runloop.Loop
	values valuetree.Node
	state  State
}

// New creates an empty service in StateInit.
func New(deps Deps) *Service {
	if deps.Stdout == nil {
		deps.Stdout = io.Discard
	}
	if len(deps.Signals) == 0 {
		deps.Signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		deps:   deps,
		logger: logger,
		loop:   runloop.New(),
		state:  StateInit,
	}
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	return s.state
}

// Run executes the whole lifecycle: startup, the run loop, and teardown.
//
// Parameters:
//   - ctx: Cancelling ctx stops the run loop like an interrupt
//   - args: Command line arguments without the program name
//
// Returns:
//   - error: nil after a clean shutdown or --help/--version, a *StartupError
//     when a required step fails, or an error wrapping ErrReceiverLost
func (s *Service) Run(ctx context.Context, args []string) error {
	defer s.Teardown()

	exit, err := s.parseOptions(args)
	if err != nil {
		return s.fail(StateOptionsParsed, err)
	}
	if exit {
		return nil
	}
	s.enter(StateOptionsParsed)

	if err := s.loadConfig(); err != nil {
		return s.fail(StateConfigLoaded, err)
	}
	s.enter(StateConfigLoaded)

	if err := s.acquireDevice(ctx); err != nil {
		return s.fail(StateDeviceAcquired, err)
	}
	s.enter(StateDeviceAcquired)

	s.configureServer()
	s.enter(StateServerConfigured)

	s.enter(s.startServer(ctx))
	s.startTelemetry()

	return s.run(ctx)
}

// parseOptions handles the command line. exit is true when the process
// should stop successfully without starting (help, version).
func (s *Service) parseOptions(args []string) (exit bool, err error) {
	fs := pflag.NewFlagSet("dmx2c2ip", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false

	fs.StringVarP(&s.ConfigPath, "config-file", "c", "", "path to the configuration `FILE`")
	showVersion := fs.BoolP("version", "V", false, "print version and exit")
	showHelp := fs.BoolP("help", "h", false, "show this help and exit")

	if err := fs.Parse(args); err != nil {
		return false, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return false, fmt.Errorf("%w: unexpected argument %q", ErrUsage, fs.Arg(0))
	}

	switch {
	case *showHelp:
		fmt.Fprint(s.deps.Stdout, "Usage: dmx2c2ip [OPTION...]\n\nBridge DMX512 from a serial device to HTTP.\n\nOptions:\n")
		fs.SetOutput(s.deps.Stdout)
		fs.PrintDefaults()
		return true, nil
	case *showVersion:
		fmt.Fprintf(s.deps.Stdout, "dmx2c2ip %s\n", s.deps.Version)
		return true, nil
	}
	return false, nil
}

// loadConfig loads the configuration file when one was named and rebuilds
// the logger from its Logging group.
func (s *Service) loadConfig() error {
	if s.ConfigPath != "" {
		store, err := config.Load(s.ConfigPath)
		if err != nil {
			return err
		}
		s.Config = store
	}

	if s.deps.Logger == nil {
		s.logger = logging.New(config.LoggingSettings(s.Config), s.deps.Version)
	}
	s.logger.Info("configuration loaded",
		"path", s.ConfigPath,
		"groups", s.Config.Groups(),
	)
	return nil
}

// acquireDevice reads the DMXPort group and opens the receiver. No
// acquisition is attempted without a device name.
func (s *Service) acquireDevice(ctx context.Context) error {
	if !config.InjectString(s.Config, &s.DeviceName, groupDMXPort, "Device") || s.DeviceName == "" {
		return ErrNoDevice
	}

	s.DeviceSpeed = dmx.DefaultSpeed
	if !config.Inject(&s.DeviceSpeed, positiveInt(s.Config), groupDMXPort, "Speed") {
		if _, present := s.Config.String(groupDMXPort, "Speed"); present {
			s.logger.Warn("ignoring invalid DMX speed, using default", "default", dmx.DefaultSpeed)
		}
	}

	receiver, err := s.deps.OpenReceiver(ctx, dmx.PortConfig{
		Device: s.DeviceName,
		Speed:  s.DeviceSpeed,
	}, s.logger)
	if err != nil {
		return err
	}
	s.Receiver = receiver
	s.logger.Info("DMX receiver started", "device", s.DeviceName, "speed", s.DeviceSpeed)
	return nil
}

// positiveInt treats non-positive integers as absent.
func positiveInt(store *config.Store) config.Lookup[int] {
	return func(group, key string) (int, bool) {
		v, ok := store.Int(group, key)
		return v, ok && v > 0
	}
}

// configureServer creates the HTTP server from the built-in defaults
// overlaid with the HTTP group.
func (s *Service) configureServer() {
	opts := httpd.DefaultOptions()
	config.InjectString(s.Config, &opts.Host, groupHTTP, "Host")
	config.InjectInt(s.Config, &opts.Port, groupHTTP, "Port")
	config.InjectString(s.Config, &opts.User, groupHTTP, "User")
	config.InjectString(s.Config, &opts.Password, groupHTTP, "Password")
	config.InjectString(s.Config, &opts.Root, groupHTTP, "Root")
	if opts.User == "" && opts.Password != "" {
		s.logger.Warn("HTTP.Password is set without HTTP.User, authentication disabled")
	}

	s.values = StatusTree(s.deps.Version, s.DeviceName, s.DeviceSpeed)
	opts.ValueRoot = s.values

	s.Server = s.deps.NewServer(opts, httpd.Deps{
		Logger:  s.logger,
		Stats:   s.Receiver,
		Frames:  s.Receiver,
		Version: s.deps.Version,
	})
}

// startServer starts the HTTP server. A failure releases the server and
// degrades the service to DMX reception only.
func (s *Service) startServer(ctx context.Context) State {
	if err := s.Server.Start(ctx); err != nil {
		s.logger.Warn("HTTP server failed to start, continuing without it", "error", err)
		s.releaseServer()
		return StateServerDegraded
	}
	return StateServerStarted
}

// startTelemetry connects the optional telemetry sinks. Failures are
// logged and the sink is skipped.
func (s *Service) startTelemetry() {
	s.Telemetry = telemetry.New(s.Receiver, s.logger)

	if cfg := config.MQTTSettings(s.Config); cfg.Enabled() {
		sink, err := s.deps.ConnectMQTT(cfg, s.logger)
		if err != nil {
			s.logger.Warn("MQTT unavailable, continuing without it", "broker", cfg.Broker, "error", err)
		} else {
			s.Telemetry.AttachMQTT(sink)
			s.Telemetry.PublishValues(s.values)
			s.logger.Info("MQTT connected", "broker", cfg.Broker, "client_id", cfg.ClientID)
		}
	}

	if cfg := config.InfluxDBSettings(s.Config); cfg.Enabled() {
		sink, err := s.deps.ConnectInflux(cfg, s.logger)
		if err != nil {
			s.logger.Warn("InfluxDB unavailable, continuing without it", "url", cfg.URL, "error", err)
		} else {
			s.Telemetry.AttachInflux(sink)
			s.logger.Info("InfluxDB connected", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
		}
	}
}

// run enters the run loop and blocks until an interrupt, ctx cancellation
// or expiry, or loss of the receiver. A Shutdown requested during startup
// makes the loop return as soon as it starts.
func (s *Service) run(ctx context.Context) error {
	s.loop.SetLogger(s.logger)
	s.loop.Notify(s.deps.Signals...)

	if s.Telemetry.Active() {
		interval := time.Duration(config.TelemetrySettings(s.Config).Interval) * time.Second
		s.loop.Every(interval, s.Telemetry.Publish)
		s.loop.Every(sinkHealthInterval, s.checkSinks)
	}

	go watchReceiver(s.loop, s.Receiver)

	s.enter(StateRunning)
	if s.deps.OnRunning != nil {
		s.deps.OnRunning(s)
	}

	err := s.loop.Run(ctx)
	s.enter(StateShuttingDown)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// checkSinks runs one telemetry health check on the loop goroutine.
func (s *Service) checkSinks() {
	ctx, cancel := context.WithTimeout(context.Background(), sinkHealthTimeout)
	defer cancel()
	// Failures are logged by the publisher.
	_ = s.Telemetry.CheckHealth(ctx)
}

// watchReceiver stops the loop when the receiver ends on its own.
func watchReceiver(loop *runloop.Loop, r Receiver) {
	select {
	case <-r.Done():
		err := r.Err()
		if err == nil {
			err = errors.New("receiver stopped")
		}
		loop.Stop(fmt.Errorf("%w: %w", ErrReceiverLost, err))
	case <-loop.Stopped():
	}
}

// Shutdown requests a clean stop of the run loop, as an interrupt does.
// It is safe to call from any goroutine at any time. A request made during
// startup takes effect once the service is running.
func (s *Service) Shutdown() {
	s.loop.Quit()
}

// Teardown releases every held handle in reverse acquisition order:
// telemetry, server, receiver, configuration, and finally the signal
// handlers. It is idempotent and valid from any state.
func (s *Service) Teardown() {
	if s.Telemetry != nil {
		if err := s.Telemetry.Close(); err != nil {
			s.logger.Error("error closing telemetry", "error", err)
		}
		s.Telemetry = nil
	}

	s.releaseServer()

	if s.Receiver != nil {
		s.logger.Info("closing DMX receiver")
		if err := s.Receiver.Close(); err != nil {
			s.logger.Error("error closing DMX receiver", "error", err)
		}
		s.Receiver = nil
	}

	s.Config = nil

	s.loop.Close()

	if s.state != StateTerminated {
		s.enter(StateTerminated)
	}
}

func (s *Service) releaseServer() {
	if s.Server == nil {
		return
	}
	s.logger.Info("stopping HTTP server")
	if err := s.Server.Close(); err != nil {
		s.logger.Error("error stopping HTTP server", "error", err)
	}
	s.Server = nil
}

func (s *Service) enter(state State) {
	s.state = state
	s.logger.Info("lifecycle", "state", state.String())
}

// fail reports a fatal failure on the way to step.
func (s *Service) fail(step State, err error) error {
	s.logger.Debug("startup step failed", "step", step.String(), "error", err)
	return &StartupError{Step: step, Err: err}
}
