// Package lifecycle sequences startup and shutdown of the bridge.
//
// A Service walks the states
//
//	init → options_parsed → config_loaded → device_acquired →
//	server_configured → server_started | server_degraded → running →
//	shutting_down → terminated
//
// Parsing options, loading an explicitly named configuration file and
// acquiring the DMX device are required: a failure there returns a
// *StartupError and nothing else is started. The HTTP server and the
// telemetry sinks are optional: a failure is logged and the service runs
// without them.
//
// Teardown releases handles in reverse acquisition order and may be called
// any number of times from any state.
//
// # Usage
//
//	svc := lifecycle.New(lifecycle.DefaultDeps(version))
//	if err := svc.Run(ctx, os.Args[1:]); err != nil {
//	    fmt.Fprintf(os.Stderr, "dmx2c2ip: %v\n", err)
//	    os.Exit(1)
//	}
package lifecycle
