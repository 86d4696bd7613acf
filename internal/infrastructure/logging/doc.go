// Package logging provides structured logging for dmx2c2ip.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - Text output by default (human-readable, journald friendly)
//   - JSON output for log shippers (machine-parsable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the Logging group of the configuration file:
//
//	[Logging]
//	Level=info     # debug, info, warn, error
//	Format=text    # text, json
//	Output=stderr  # stderr, stdout
//
// # Usage
//
//	logger := logging.New(config.LoggingSettings(store), "1.0.0")
//	logger.Info("receiver started", "device", "/dev/ttyUSB0")
//	logger.Error("failed to open port", "error", err)
//
// # Security
//
// Never log secrets, tokens, passwords, or API keys.
// Use field redaction for sensitive data:
//
//	logger.Info("basic auth enabled", "user", user) // never the password
package logging
