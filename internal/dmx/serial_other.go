//go:build !linux || !(386 || amd64 || arm || arm64 || riscv64)

package dmx

import (
	"fmt"
	"os"
)

func openPort(device string, _ int) (*os.File, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, device)
}
