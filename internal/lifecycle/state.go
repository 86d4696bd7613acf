package lifecycle

import (
	"errors"
	"strconv"
)

// State is a step of the service lifecycle.
//
// States advance strictly in declaration order, except that ServerStarted
// and ServerDegraded are alternatives and a fatal failure jumps straight to
// Terminated.
type State int

// Lifecycle states.
const (
	StateInit State = iota
	StateOptionsParsed
	StateConfigLoaded
	StateDeviceAcquired
	StateServerConfigured
	StateServerStarted
	StateServerDegraded
	StateRunning
	StateShuttingDown
	StateTerminated
)

var stateNames = [...]string{
	StateInit:             "init",
	StateOptionsParsed:    "options_parsed",
	StateConfigLoaded:     "config_loaded",
	StateDeviceAcquired:   "device_acquired",
	StateServerConfigured: "server_configured",
	StateServerStarted:    "server_started",
	StateServerDegraded:   "server_degraded",
	StateRunning:          "running",
	StateShuttingDown:     "shutting_down",
	StateTerminated:       "terminated",
}

// String returns the snake_case name used in logs.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
	return stateNames[s]
}

// stepNames describe the work done to reach a state, for diagnostics.
var stepNames = map[State]string{
	StateOptionsParsed:  "parsing options",
	StateConfigLoaded:   "loading configuration",
	StateDeviceAcquired: "acquiring device",
}

// Sentinel errors for lifecycle failures.
var (
	// ErrNoDevice indicates DMXPort.Device is absent or empty.
	ErrNoDevice = errors.New("no DMX device configured (DMXPort.Device)")

	// ErrUsage indicates invalid command line arguments.
	ErrUsage = errors.New("invalid arguments")

	// ErrReceiverLost indicates the DMX receiver stopped while running.
	ErrReceiverLost = errors.New("DMX receiver lost")
)

// StartupError is a fatal failure of one startup step.
//
// Step is the state the service was trying to reach.
type StartupError struct {
	Step State
	Err  error
}

// Error returns "<step>: <cause>".
func (e *StartupError) Error() string {
	step, ok := stepNames[e.Step]
	if !ok {
		step = e.Step.String()
	}
	return step + ": " + e.Err.Error()
}

// Unwrap returns the cause.
func (e *StartupError) Unwrap() error {
	return e.Err
}
