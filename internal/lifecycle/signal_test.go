//go:build unix

package lifecycle

import (
	"syscall"
	"testing"
)

// TestRun_InterruptEndToEnd drives the whole lifecycle with a real SIGINT.
func TestRun_InterruptEndToEnd(t *testing.T) {
	h := newHarness(t)
	path := writeConfig(t, "[DMXPort]\nDevice=/dev/ttyUSB0\n\n[HTTP]\nPort=8080\n")

	h.onRunning = func(s *Service) {
		if s.State() != StateRunning {
			t.Errorf("State() = %v, want %v", s.State(), StateRunning)
		}
		// The loop already captures SIGINT, so this cannot kill the test.
		if err := syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
			t.Errorf("sending SIGINT: %v", err)
			s.Shutdown()
		}
	}

	svc, err := h.run("-c", path)
	if err != nil {
		t.Fatalf("Run() error = %v, want clean shutdown", err)
	}

	if h.opened[0].Device != "/dev/ttyUSB0" || h.opened[0].Speed != 250000 {
		t.Errorf("receiver opened with %+v", h.opened[0])
	}
	if h.server.opts.Port != 8080 || h.server.starts != 1 {
		t.Errorf("server port=%d starts=%d, want 8080 and 1", h.server.opts.Port, h.server.starts)
	}
	if h.receiver.closes != 1 || h.server.closes != 1 {
		t.Errorf("closes receiver=%d server=%d, want 1 each", h.receiver.closes, h.server.closes)
	}
	if svc.State() != StateTerminated {
		t.Errorf("State() = %v, want %v", svc.State(), StateTerminated)
	}
}
