// Package httpd implements the HTTP surface of the bridge.
//
// This package provides:
//   - JSON endpoints for the served value tree and receiver statistics
//   - WebSocket stream of receiver statistics snapshots
//   - Prometheus metrics for the receiver and the HTTP layer
//   - Static file serving from a configurable root
//   - Optional HTTP Basic authentication
//   - Middleware stack (request ID, logging, recovery, metrics)
//
// # Lifecycle
//
//	srv := httpd.New(opts, deps)
//	if err := srv.Start(ctx); err != nil {
//	    // degraded: run without the HTTP surface
//	}
//	defer srv.Close()
//
// Start binds the listener synchronously, so a port conflict or bad address
// is reported to the caller as ErrListen instead of surfacing later from a
// background goroutine.
//
// # Routes
//
//	GET /api/v1/health         liveness, never authenticated
//	GET /api/v1/values         value tree
//	GET /api/v1/values/*       sub-tree by member name / array index path
//	GET /api/v1/receiver       receiver statistics
//	GET /api/v1/receiver/frame most recent DMX frame
//	GET /api/v1/ws             receiver statistics stream
//	GET /metrics               Prometheus exposition
//	GET /*                     static files from Options.Root
//
// # Security
//
// When Options.User is set every route except health requires matching
// Basic credentials. Credentials are compared in constant time. There is no
// session management; put the bridge behind a TLS-terminating proxy when it
// is reachable from untrusted networks.
package httpd
