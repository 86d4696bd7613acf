// Package dmx receives DMX512 frames from a serial port.
//
// The port is put in raw 8N2 mode at the configured rate (250000 baud by
// default) with the kernel marking line breaks in the byte stream (PARMRK).
// A Decoder splits that stream into frames: each DMX packet starts after a
// break with a start code followed by up to 512 slot values.
//
//	┌──────────┐  RS-485   ┌────────────┐  PARMRK bytes  ┌─────────┐  Frame
//	│ DMX desk │──────────►│ serial tty │───────────────►│ Decoder │────────► Receiver
//	└──────────┘           └────────────┘                └─────────┘
//
// The Receiver owns the port and a single read goroutine. It keeps counters
// and the most recent frame for concurrent readers; it does not interpret
// slot values.
//
// # Thread Safety
//
// Receiver methods are safe for concurrent use. A Decoder is not.
package dmx
