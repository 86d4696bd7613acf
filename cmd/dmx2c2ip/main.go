// dmx2c2ip - DMX512 to HTTP bridge
//
// This is the main entry point of the bridge. It receives DMX512 from a
// serial device and publishes the bridge state over HTTP as a JSON value
// tree, optionally mirrored to MQTT and InfluxDB. It is the receiving half
// of a DMX-to-C2IP translator.
//
// The process runs until interrupted (SIGINT, SIGTERM) and exits non-zero
// on any fatal startup failure or loss of the DMX device, leaving restarts
// to the supervisor.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/nerrad567/dmx2c2ip/internal/lifecycle"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr))
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Cancelling ctx shuts the bridge down like an interrupt
//   - args: Command line arguments without the program name
//   - stderr: Destination of the one-line failure diagnostic
//
// Returns:
//   - int: Process exit status, 0 on clean shutdown
func run(ctx context.Context, args []string, stderr io.Writer) int {
	svc := lifecycle.New(lifecycle.DefaultDeps(versionString()))
	if err := svc.Run(ctx, args); err != nil {
		fmt.Fprintf(stderr, "dmx2c2ip: %v\n", err)
		return 1
	}
	return 0
}

func versionString() string {
	return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
}
