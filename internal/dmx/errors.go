package dmx

import "errors"

// Domain errors for the dmx package.
var (
	// ErrOpen is returned when the serial device cannot be opened or
	// configured for DMX reception.
	ErrOpen = errors.New("dmx: cannot open serial device")

	// ErrInvalidConfig is returned when the port configuration is unusable.
	ErrInvalidConfig = errors.New("dmx: invalid port configuration")

	// ErrDeviceLost is reported by Err when reading stops for any reason
	// other than Close (device unplugged, I/O error).
	ErrDeviceLost = errors.New("dmx: serial device lost")

	// ErrUnsupported is returned on platforms without custom baud rate support.
	ErrUnsupported = errors.New("dmx: serial reception not supported on this platform")
)
