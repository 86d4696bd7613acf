package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/dmx2c2ip/internal/dmx"
	"github.com/nerrad567/dmx2c2ip/internal/httpd"
	"github.com/nerrad567/dmx2c2ip/internal/infrastructure/config"
	"github.com/nerrad567/dmx2c2ip/internal/infrastructure/logging"
	"github.com/nerrad567/dmx2c2ip/internal/infrastructure/mqtt"
	"github.com/nerrad567/dmx2c2ip/internal/telemetry"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeReceiver struct {
	cfg   dmx.PortConfig
	calls *[]string

	mu     sync.Mutex
	done   chan struct{}
	err    error
	closes int
}

func (r *fakeReceiver) Stats() dmx.Stats {
	return dmx.Stats{Device: r.cfg.Device, Speed: r.cfg.Speed, Connected: true}
}

func (r *fakeReceiver) LastFrame() (dmx.Frame, time.Time, bool) {
	return dmx.Frame{}, time.Time{}, false
}

func (r *fakeReceiver) Done() <-chan struct{} { return r.done }

func (r *fakeReceiver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *fakeReceiver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
	*r.calls = append(*r.calls, "receiver")
	if r.closes == 1 {
		close(r.done)
	}
	return nil
}

// lose simulates the device disappearing.
func (r *fakeReceiver) lose(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	r.closes = 1
	close(r.done)
}

type fakeServer struct {
	opts     httpd.Options
	startErr error
	calls    *[]string
	starts   int
	closes   int
}

func (s *fakeServer) Start(context.Context) error {
	s.starts++
	return s.startErr
}

func (s *fakeServer) Close() error {
	s.closes++
	*s.calls = append(*s.calls, "server")
	return nil
}

type fakeMQTT struct {
	calls     *[]string
	published map[string][]byte
	checks    int
}

func (m *fakeMQTT) PublishRetained(topic string, payload []byte) error {
	if m.published == nil {
		m.published = make(map[string][]byte)
	}
	m.published[topic] = payload
	return nil
}

func (m *fakeMQTT) Topics() mqtt.Topics { return mqtt.NewTopics("dmx2c2ip/status") }

func (m *fakeMQTT) HealthCheck(context.Context) error {
	m.checks++
	return nil
}

func (m *fakeMQTT) Close() error {
	*m.calls = append(*m.calls, "mqtt")
	return nil
}

// harness builds a service on fakes and records what it did.
type harness struct {
	t *testing.T

	openErr   error
	startErr  error
	mqttErr   error
	onRunning func(s *Service)

	calls    []string
	opened   []dmx.PortConfig
	receiver *fakeReceiver
	server   *fakeServer
	mqtt     *fakeMQTT
	stdout   bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	return &harness{t: t}
}

func (h *harness) deps() Deps {
	return Deps{
		OpenReceiver: func(_ context.Context, cfg dmx.PortConfig, _ *logging.Logger) (Receiver, error) {
			h.opened = append(h.opened, cfg)
			if h.openErr != nil {
				return nil, h.openErr
			}
			h.receiver = &fakeReceiver{cfg: cfg, calls: &h.calls, done: make(chan struct{})}
			return h.receiver, nil
		},
		NewServer: func(opts httpd.Options, _ httpd.Deps) Server {
			h.server = &fakeServer{opts: opts, startErr: h.startErr, calls: &h.calls}
			return h.server
		},
		ConnectMQTT: func(config.MQTTConfig, *logging.Logger) (telemetry.MQTTSink, error) {
			if h.mqttErr != nil {
				return nil, h.mqttErr
			}
			h.mqtt = &fakeMQTT{calls: &h.calls}
			return h.mqtt, nil
		},
		ConnectInflux: func(config.InfluxDBConfig, *logging.Logger) (telemetry.MetricSink, error) {
			return nil, errors.New("influxdb not available in tests")
		},
		Stdout:    &h.stdout,
		Logger:    logging.NewWithWriter(config.LoggingConfig{Level: "debug"}, "test", io.Discard),
		Version:   "1.2.3",
		OnRunning: h.onRunning,
	}
}

// run executes a service that shuts down as soon as it is running, unless
// onRunning was set.
func (h *harness) run(args ...string) (*Service, error) {
	h.t.Helper()
	if h.onRunning == nil {
		h.onRunning = func(s *Service) { s.Shutdown() }
	}
	svc := New(h.deps())
	err := svc.Run(context.Background(), args)
	return svc, err
}

// writeConfig writes a key file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dmx2c2ip.conf")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

// =============================================================================
// Device configuration
// =============================================================================

func TestRun_DefaultSpeed(t *testing.T) {
	h := newHarness(t)
	path := writeConfig(t, "[DMXPort]\nDevice=/dev/ttyUSB0\n")

	svc, err := h.run("-c", path)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(h.opened) != 1 {
		t.Fatalf("receiver opened %d times, want 1", len(h.opened))
	}
	if h.opened[0].Speed != dmx.DefaultSpeed {
		t.Errorf("speed = %d, want %d", h.opened[0].Speed, dmx.DefaultSpeed)
	}
	if svc.DeviceSpeed != 250000 {
		t.Errorf("DeviceSpeed = %d, want 250000", svc.DeviceSpeed)
	}
}

func TestRun_SpeedFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name  string
		speed string
		want  int
	}{
		{"not a number", "fast", 250000},
		{"empty", "", 250000},
		{"negative", "-9600", 250000},
		{"zero", "0", 250000},
		{"valid override", "115200", 115200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			path := writeConfig(t, "[DMXPort]\nDevice=/dev/ttyUSB0\nSpeed="+tt.speed+"\n")

			if _, err := h.run("--config-file", path); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got := h.opened[0].Speed; got != tt.want {
				t.Errorf("speed = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRun_MissingDevice(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{"no DMXPort group", "[HTTP]\nPort=8080\n"},
		{"empty device", "[DMXPort]\nDevice=\n"},
		{"speed only", "[DMXPort]\nSpeed=250000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			svc, err := h.run("-c", writeConfig(t, tt.config))

			var startupErr *StartupError
			if !errors.As(err, &startupErr) {
				t.Fatalf("Run() error = %v, want *StartupError", err)
			}
			if startupErr.Step != StateDeviceAcquired {
				t.Errorf("Step = %v, want %v", startupErr.Step, StateDeviceAcquired)
			}
			if !errors.Is(err, ErrNoDevice) {
				t.Errorf("Run() error = %v, want ErrNoDevice", err)
			}
			if len(h.opened) != 0 {
				t.Errorf("receiver acquisition attempted %d times, want 0", len(h.opened))
			}
			if h.server != nil {
				t.Error("server created without a device")
			}
			if svc.Receiver != nil || svc.Server != nil || svc.Config != nil {
				t.Error("handles still held after fatal startup failure")
			}
			if svc.State() != StateTerminated {
				t.Errorf("State() = %v, want %v", svc.State(), StateTerminated)
			}
		})
	}
}

func TestRun_NoConfigFile(t *testing.T) {
	h := newHarness(t)

	_, err := h.run()

	if !errors.Is(err, ErrNoDevice) {
		t.Fatalf("Run() error = %v, want ErrNoDevice", err)
	}
	if len(h.opened) != 0 {
		t.Error("receiver acquisition attempted without configuration")
	}
}

func TestRun_DeviceAcquisitionFails(t *testing.T) {
	h := newHarness(t)
	h.openErr = dmx.ErrOpen

	svc, err := h.run("-c", writeConfig(t, "[DMXPort]\nDevice=/dev/missing\n"))

	var startupErr *StartupError
	if !errors.As(err, &startupErr) || startupErr.Step != StateDeviceAcquired {
		t.Fatalf("Run() error = %v, want StartupError at %v", err, StateDeviceAcquired)
	}
	if !errors.Is(err, dmx.ErrOpen) {
		t.Errorf("Run() error = %v, want dmx.ErrOpen", err)
	}
	if h.server != nil {
		t.Error("server created after acquisition failure")
	}
	if svc.Receiver != nil {
		t.Error("receiver handle held after acquisition failure")
	}
}

// =============================================================================
// Options and configuration loading
// =============================================================================

func TestRun_InvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--bogus"}},
		{"missing value", []string{"-c"}},
		{"positional", []string{"extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			svc, err := h.run(tt.args...)

			var startupErr *StartupError
			if !errors.As(err, &startupErr) || startupErr.Step != StateOptionsParsed {
				t.Fatalf("Run() error = %v, want StartupError at %v", err, StateOptionsParsed)
			}
			if !errors.Is(err, ErrUsage) {
				t.Errorf("Run() error = %v, want ErrUsage", err)
			}
			if svc.State() != StateTerminated {
				t.Errorf("State() = %v, want %v", svc.State(), StateTerminated)
			}
		})
	}
}

func TestRun_HelpAndVersion(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--help"}, "--config-file"},
		{[]string{"-h"}, "Usage: dmx2c2ip"},
		{[]string{"--version"}, "dmx2c2ip 1.2.3"},
		{[]string{"-V"}, "dmx2c2ip 1.2.3"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			h := newHarness(t)
			if _, err := h.run(tt.args...); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if !strings.Contains(h.stdout.String(), tt.want) {
				t.Errorf("output %q does not contain %q", h.stdout.String(), tt.want)
			}
			if len(h.opened) != 0 {
				t.Error("receiver acquired for help/version")
			}
		})
	}
}

func TestRun_UnreadableConfig(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("-c", filepath.Join(t.TempDir(), "missing.conf"))

	var startupErr *StartupError
	if !errors.As(err, &startupErr) || startupErr.Step != StateConfigLoaded {
		t.Fatalf("Run() error = %v, want StartupError at %v", err, StateConfigLoaded)
	}
	if !errors.Is(err, config.ErrLoad) {
		t.Errorf("Run() error = %v, want config.ErrLoad", err)
	}
	if !strings.HasPrefix(err.Error(), "loading configuration: ") {
		t.Errorf("Error() = %q, want step prefix", err.Error())
	}
}

// =============================================================================
// HTTP server configuration and degrade policy
// =============================================================================

func TestRun_ServerDefaults(t *testing.T) {
	h := newHarness(t)

	if _, err := h.run("-c", writeConfig(t, "[DMXPort]\nDevice=/dev/ttyUSB0\n")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	opts := h.server.opts
	defaults := httpd.DefaultOptions()
	if opts.Port != defaults.Port || opts.Root != defaults.Root || opts.Host != defaults.Host {
		t.Errorf("options = %+v, want built-in defaults", opts)
	}
	if opts.User != "" || opts.Password != "" {
		t.Errorf("credentials = %q/%q, want none", opts.User, opts.Password)
	}
}

func TestRun_ServerOptionsInjected(t *testing.T) {
	h := newHarness(t)
	path := writeConfig(t, `[DMXPort]
Device=/dev/ttyUSB0

[HTTP]
Host=127.0.0.1
Port=9090
User=admin
Password=secret
Root=/srv/www
`)

	if _, err := h.run("-c", path); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	opts := h.server.opts
	if opts.Host != "127.0.0.1" || opts.Port != 9090 || opts.User != "admin" ||
		opts.Password != "secret" || opts.Root != "/srv/www" {
		t.Errorf("options = %+v, want values from configuration", opts)
	}
	device, ok := opts.ValueRoot.Lookup("dmx", "device")
	if v, _ := device.StringValue(); !ok || v != "/dev/ttyUSB0" {
		t.Errorf("value tree dmx.device = %q, want /dev/ttyUSB0", v)
	}
}

func TestRun_PasswordWithoutUserWarns(t *testing.T) {
	h := newHarness(t)
	h.onRunning = func(s *Service) { s.Shutdown() }
	path := writeConfig(t, "[DMXPort]\nDevice=/dev/ttyUSB0\n\n[HTTP]\nPassword=secret\n")

	var logs bytes.Buffer
	deps := h.deps()
	deps.Logger = logging.NewWithWriter(config.LoggingConfig{Level: "info"}, "test", &logs)

	if err := New(deps).Run(context.Background(), []string{"-c", path}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if h.server.opts.User != "" || h.server.opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want empty user and the configured password",
			h.server.opts.User, h.server.opts.Password)
	}
	if !strings.Contains(logs.String(), "HTTP.Password is set without HTTP.User") {
		t.Errorf("no warning logged:\n%s", logs.String())
	}
}

func TestRun_ServerStartFailureDegrades(t *testing.T) {
	h := newHarness(t)
	h.startErr = httpd.ErrListen

	var reached []State
	h.onRunning = func(s *Service) {
		reached = append(reached, s.State())
		if s.Server != nil {
			t.Error("server handle held in degraded mode")
		}
		s.Shutdown()
	}

	svc, err := h.run("-c", writeConfig(t, "[DMXPort]\nDevice=/dev/ttyUSB0\n"))
	if err != nil {
		t.Fatalf("Run() error = %v, want clean shutdown", err)
	}
	if len(reached) != 1 || reached[0] != StateRunning {
		t.Errorf("states at run = %v, want [running]", reached)
	}
	if h.server.closes != 1 {
		t.Errorf("server closed %d times, want 1", h.server.closes)
	}
	if h.receiver.closes != 1 {
		t.Errorf("receiver closed %d times, want 1", h.receiver.closes)
	}
	if svc.State() != StateTerminated {
		t.Errorf("State() = %v, want %v", svc.State(), StateTerminated)
	}
}

// =============================================================================
// Run loop and teardown
// =============================================================================

func TestRun_ContextCancelIsCleanShutdown(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.onRunning = func(*Service) { cancel() }

	svc := New(h.deps())
	if err := svc.Run(ctx, []string{"-c", writeConfig(t, "[DMXPort]\nDevice=/dev/ttyUSB0\n")}); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
}

func TestRun_ContextDeadlineIsCleanShutdown(t *testing.T) {
	h := newHarness(t)
	h.onRunning = func(*Service) {}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	svc := New(h.deps())
	if err := svc.Run(ctx, []string{"-c", writeConfig(t, "[DMXPort]\nDevice=/dev/ttyUSB0\n")}); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
	if svc.State() != StateTerminated {
		t.Errorf("State() = %v, want %v", svc.State(), StateTerminated)
	}
}

func TestShutdown_BeforeRunning(t *testing.T) {
	h := newHarness(t)
	var reached []State
	h.onRunning = func(s *Service) { reached = append(reached, s.State()) }

	svc := New(h.deps())
	svc.Shutdown()

	if err := svc.Run(context.Background(), []string{"-c", writeConfig(t, "[DMXPort]\nDevice=/dev/ttyUSB0\n")}); err != nil {
		t.Fatalf("Run() error = %v, want clean shutdown", err)
	}
	if len(reached) != 1 || reached[0] != StateRunning {
		t.Errorf("states at run = %v, want [running]", reached)
	}
	if h.receiver.closes != 1 {
		t.Errorf("receiver closed %d times, want 1", h.receiver.closes)
	}
}

// TestShutdown_ConcurrentWithStartup requests shutdown from another
// goroutine while Run is still starting; run with -race.
func TestShutdown_ConcurrentWithStartup(t *testing.T) {
	h := newHarness(t)
	h.onRunning = func(*Service) {}
	path := writeConfig(t, "[DMXPort]\nDevice=/dev/ttyUSB0\n")

	svc := New(h.deps())

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			svc.Shutdown()
			select {
			case <-stop:
				return
			case <-time.After(time.Millisecond):
			}
		}
	}()

	err := svc.Run(context.Background(), []string{"-c", path})
	close(stop)
	wg.Wait()

	if err != nil {
		t.Fatalf("Run() error = %v, want clean shutdown", err)
	}
	if svc.State() != StateTerminated {
		t.Errorf("State() = %v, want %v", svc.State(), StateTerminated)
	}
}

func TestRun_ReceiverLost(t *testing.T) {
	h := newHarness(t)
	h.onRunning = func(*Service) {
		h.receiver.lose(dmx.ErrDeviceLost)
	}

	svc, err := h.run("-c", writeConfig(t, "[DMXPort]\nDevice=/dev/ttyUSB0\n"))

	if !errors.Is(err, ErrReceiverLost) || !errors.Is(err, dmx.ErrDeviceLost) {
		t.Fatalf("Run() error = %v, want ErrReceiverLost wrapping dmx.ErrDeviceLost", err)
	}
	var startupErr *StartupError
	if errors.As(err, &startupErr) {
		t.Error("receiver loss reported as a startup failure")
	}
	if svc.Receiver != nil || svc.Server != nil {
		t.Error("handles still held after receiver loss")
	}
}

func TestTeardown_Idempotent(t *testing.T) {
	h := newHarness(t)

	svc, err := h.run("-c", writeConfig(t, "[DMXPort]\nDevice=/dev/ttyUSB0\n"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	svc.Teardown()
	svc.Teardown()

	if h.receiver.closes != 1 {
		t.Errorf("receiver closed %d times, want 1", h.receiver.closes)
	}
	if h.server.closes != 1 {
		t.Errorf("server closed %d times, want 1", h.server.closes)
	}
	if svc.State() != StateTerminated {
		t.Errorf("State() = %v, want %v", svc.State(), StateTerminated)
	}
}

func TestTeardown_BeforeStartup(t *testing.T) {
	svc := New(newHarness(t).deps())
	svc.Teardown()
	svc.Teardown()
	if svc.State() != StateTerminated {
		t.Errorf("State() = %v, want %v", svc.State(), StateTerminated)
	}
	svc.Shutdown()
}

func TestTeardown_ReverseOrder(t *testing.T) {
	h := newHarness(t)
	path := writeConfig(t, "[DMXPort]\nDevice=/dev/ttyUSB0\n\n[MQTT]\nBroker=tcp://127.0.0.1:1883\n")

	if _, err := h.run("-c", path); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := "mqtt,server,receiver"
	if got := strings.Join(h.calls, ","); got != want {
		t.Errorf("release order = %s, want %s", got, want)
	}
}

// =============================================================================
// Telemetry
// =============================================================================

func TestRun_TelemetryPublishesValueTree(t *testing.T) {
	h := newHarness(t)
	path := writeConfig(t, "[DMXPort]\nDevice=/dev/ttyUSB0\n\n[MQTT]\nBroker=tcp://127.0.0.1:1883\n")

	if _, err := h.run("-c", path); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	payload := string(h.mqtt.published["dmx2c2ip/status/values"])
	if !strings.Contains(payload, `"device":"/dev/ttyUSB0"`) {
		t.Errorf("values payload = %q", payload)
	}
}

func TestRun_TelemetrySinkHealthChecked(t *testing.T) {
	h := newHarness(t)
	h.onRunning = func(s *Service) {
		s.checkSinks()
		s.Shutdown()
	}
	path := writeConfig(t, "[DMXPort]\nDevice=/dev/ttyUSB0\n\n[MQTT]\nBroker=tcp://127.0.0.1:1883\n")

	if _, err := h.run("-c", path); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if h.mqtt.checks != 1 {
		t.Errorf("MQTT health checks = %d, want 1", h.mqtt.checks)
	}
}

func TestRun_TelemetryFailureDegrades(t *testing.T) {
	h := newHarness(t)
	h.mqttErr = mqtt.ErrConnectionFailed
	path := writeConfig(t, `[DMXPort]
Device=/dev/ttyUSB0

[MQTT]
Broker=tcp://127.0.0.1:1

[InfluxDB]
URL=http://127.0.0.1:1
`)

	running := false
	h.onRunning = func(s *Service) {
		running = true
		if s.Telemetry.Active() {
			t.Error("telemetry active after both sinks failed")
		}
		s.Shutdown()
	}

	if _, err := h.run("-c", path); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !running {
		t.Error("service did not reach running")
	}
}

// =============================================================================
// Value tree and states
// =============================================================================

func TestStatusTree(t *testing.T) {
	tree := StatusTree("1.2.3", "/dev/ttyUSB0", 250000)

	data, err := tree.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	want := `{"service":"dmx2c2ip","version":"1.2.3","dmx":{"device":"/dev/ttyUSB0","speed":250000,"universe_size":512},"c2ip":{"enabled":false}}`
	if string(data) != want {
		t.Errorf("StatusTree() = %s\nwant %s", data, want)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateInit, "init"},
		{StateServerDegraded, "server_degraded"},
		{StateTerminated, "terminated"},
		{State(99), "State(99)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

func TestStartupError_Message(t *testing.T) {
	err := &StartupError{Step: StateDeviceAcquired, Err: ErrNoDevice}
	want := "acquiring device: no DMX device configured (DMXPort.Device)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
