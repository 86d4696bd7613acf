package dmx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSpeed is the DMX512 line rate in baud.
const DefaultSpeed = 250000

// readBufferSize is the size of a single read from the port.
const readBufferSize = 1024

// PortConfig identifies the serial device to receive from.
type PortConfig struct {
	// Device is the tty path, e.g. "/dev/ttyUSB0". Required.
	Device string

	// Speed is the line rate in baud. Default: 250000.
	Speed int
}

// Stats is a snapshot of receiver activity.
type Stats struct {
	Device        string    `json:"device"`
	Speed         int       `json:"speed"`
	Connected     bool      `json:"connected"`
	Frames        uint64    `json:"frames"`
	Breaks        uint64    `json:"breaks"`
	FramingErrors uint64    `json:"framing_errors"`
	Discarded     uint64    `json:"discarded_bytes"`
	BytesRx       uint64    `json:"bytes_rx"`
	LastStartCode int       `json:"last_start_code"`
	LastSlots     int       `json:"last_slots"`
	LastFrame     time.Time `json:"last_frame"`
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Receiver reads DMX frames from a serial port in a background goroutine.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Receiver struct {
	cfg  PortConfig
	port io.ReadCloser

	// Decoder state is only touched by the read goroutine; the counters
	// are mirrored into atomics for readers.
	dec *Decoder

	frames        atomic.Uint64
	breaks        atomic.Uint64
	framingErrors atomic.Uint64
	discarded     atomic.Uint64
	bytesRx       atomic.Uint64

	frameMu   sync.RWMutex
	last      Frame
	lastAt    time.Time
	haveFrame bool

	logger   Logger
	loggerMu sync.RWMutex

	closing   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	errMu     sync.Mutex
	err       error
}

// Open opens and configures the serial device and starts receiving.
//
// Parameters:
//   - ctx: Checked before the device is opened
//   - cfg: Device path and line rate (0 selects DefaultSpeed)
//
// Returns:
//   - *Receiver: Running receiver; release it with Close
//   - error: Wraps ErrInvalidConfig or ErrOpen
func Open(ctx context.Context, cfg PortConfig) (*Receiver, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	if cfg.Device == "" {
		return nil, fmt.Errorf("%w: device is required", ErrInvalidConfig)
	}
	if cfg.Speed == 0 {
		cfg.Speed = DefaultSpeed
	}
	if cfg.Speed < 0 {
		return nil, fmt.Errorf("%w: speed %d", ErrInvalidConfig, cfg.Speed)
	}

	port, err := openPort(cfg.Device, cfg.Speed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}

	return newReceiver(cfg, port), nil
}

// newReceiver starts reception on an already opened port.
func newReceiver(cfg PortConfig, port io.ReadCloser) *Receiver {
	r := &Receiver{
		cfg:  cfg,
		port: port,
		done: make(chan struct{}),
	}
	r.dec = NewDecoder(r.handleFrame)

	go r.readLoop()
	return r
}

// SetLogger sets an optional logger.
func (r *Receiver) SetLogger(logger Logger) {
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

func (r *Receiver) getLogger() Logger {
	r.loggerMu.RLock()
	defer r.loggerMu.RUnlock()
	return r.logger
}

func (r *Receiver) readLoop() {
	defer close(r.done)

	buf := make([]byte, readBufferSize)
	for {
		n, err := r.port.Read(buf)
		if n > 0 {
			r.bytesRx.Add(uint64(n))
			//nolint:errcheck // Decoder.Write never fails
			r.dec.Write(buf[:n])
			r.syncStats()
		}
		if err != nil {
			if r.closing.Load() {
				return
			}
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			r.setErr(fmt.Errorf("%w: %s: %w", ErrDeviceLost, r.cfg.Device, err))
			if logger := r.getLogger(); logger != nil {
				logger.Warn("dmx read stopped", "device", r.cfg.Device, "error", err)
			}
			return
		}
	}
}

func (r *Receiver) syncStats() {
	s := r.dec.Stats()
	r.frames.Store(s.Frames)
	r.breaks.Store(s.Breaks)
	r.framingErrors.Store(s.FramingErrors)
	r.discarded.Store(s.Discarded)
}

func (r *Receiver) handleFrame(f Frame) {
	kept := f.Clone()

	r.frameMu.Lock()
	r.last = kept
	r.lastAt = time.Now()
	r.haveFrame = true
	r.frameMu.Unlock()
}

func (r *Receiver) setErr(err error) {
	r.errMu.Lock()
	r.err = err
	r.errMu.Unlock()
}

// LastFrame returns a copy of the most recent frame.
func (r *Receiver) LastFrame() (Frame, time.Time, bool) {
	r.frameMu.RLock()
	defer r.frameMu.RUnlock()
	if !r.haveFrame {
		return Frame{}, time.Time{}, false
	}
	return r.last.Clone(), r.lastAt, true
}

// Stats returns a snapshot of the receiver counters.
func (r *Receiver) Stats() Stats {
	s := Stats{
		Device:        r.cfg.Device,
		Speed:         r.cfg.Speed,
		Connected:     r.Connected(),
		Frames:        r.frames.Load(),
		Breaks:        r.breaks.Load(),
		FramingErrors: r.framingErrors.Load(),
		Discarded:     r.discarded.Load(),
		BytesRx:       r.bytesRx.Load(),
		LastStartCode: -1,
	}
	r.frameMu.RLock()
	if r.haveFrame {
		s.LastStartCode = int(r.last.StartCode)
		s.LastSlots = len(r.last.Slots)
		s.LastFrame = r.lastAt
	}
	r.frameMu.RUnlock()
	return s
}

// Connected reports whether the read goroutine is still running.
func (r *Receiver) Connected() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Done returns a channel closed when reception stops, either through Close
// or because the device was lost.
func (r *Receiver) Done() <-chan struct{} {
	return r.done
}

// Err returns the reason reception stopped. It is nil while running and
// after a Close; otherwise it wraps ErrDeviceLost.
func (r *Receiver) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

// Close stops reception and releases the port. It is safe to call more
// than once; only the first call closes the port.
func (r *Receiver) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.closing.Store(true)
		err = r.port.Close()
		<-r.done
		if logger := r.getLogger(); logger != nil {
			logger.Debug("dmx receiver closed", "device", r.cfg.Device)
		}
	})
	if err != nil {
		return fmt.Errorf("closing %s: %w", r.cfg.Device, err)
	}
	return nil
}
