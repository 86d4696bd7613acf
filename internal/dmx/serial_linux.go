//go:build linux && (386 || amd64 || arm || arm64 || riscv64)

package dmx

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// openPort opens device in raw 8N2 mode at an arbitrary baud rate using the
// termios2 interface (BOTHER), which the fixed Bxxx rates cannot express
// for 250000 baud.
//
// The descriptor stays non-blocking so the runtime poller owns it and a
// concurrent Close unblocks a pending Read.
func openPort(device string, speed int) (*os.File, error) {
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}

	if err := configurePort(fd, speed); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("configure %s: %w", device, err)
	}

	// Discard whatever was buffered before we took over the line.
	//nolint:errcheck // best effort; a stale byte only costs one frame
	unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH)

	return os.NewFile(uintptr(fd), device), nil
}

func configurePort(fd, speed int) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS2)
	if err != nil {
		return fmt.Errorf("get attributes: %w", err)
	}

	// Raw input, breaks and framing errors marked in-band, no flow control.
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.IGNPAR | unix.INPCK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY
	t.Iflag |= unix.PARMRK
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN

	// 8 data bits, 2 stop bits, no parity, custom rate. Clearing CIBAUD
	// makes the input rate follow the output rate.
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CRTSCTS | unix.CBAUD | unix.CIBAUD
	t.Cflag |= unix.CS8 | unix.CSTOPB | unix.CLOCAL | unix.CREAD | unix.BOTHER
	t.Ispeed = uint32(speed)
	t.Ospeed = uint32(speed)

	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS2, t); err != nil {
		return fmt.Errorf("set attributes: %w", err)
	}
	return nil
}
