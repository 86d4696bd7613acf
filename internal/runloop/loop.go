// Package runloop provides the single-threaded event loop that the bridge
// runs on after startup.
//
// All callbacks registered with a Loop run on the goroutine that called Run,
// one at a time, so they may touch state owned by that goroutine without
// locking. Other goroutines interact with the loop only by posting events or
// requesting a stop.
//
// Thread Safety: Post, Stop, Quit and Close are safe for concurrent use.
// SetLogger, Notify and Every must be called before Run.
package runloop

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"time"
)

// ErrStopped is returned by Post after the loop has stopped.
var ErrStopped = errors.New("runloop: stopped")

// eventQueueSize bounds the number of posted callbacks waiting for dispatch.
const eventQueueSize = 64

// Logger is the subset of logging.Logger used by the loop.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type ticker struct {
	interval time.Duration
	fn       func()
}

// Loop is a cooperative event dispatcher.
type Loop struct {
	events  chan func()
	signals chan os.Signal
	stop    chan struct{}
	closed  chan struct{}

	closeOnce sync.Once
	stopOnce  sync.Once
	stopErr   error
	stopMu    sync.Mutex

	tickers  []ticker
	notified []os.Signal
	logger   Logger
}

// New creates a loop that is ready to Run.
func New() *Loop {
	return &Loop{
		events:  make(chan func(), eventQueueSize),
		signals: make(chan os.Signal, 1),
		stop:    make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

// SetLogger sets an optional logger for signal and shutdown messages.
func (l *Loop) SetLogger(logger Logger) {
	l.logger = logger
}

// Notify captures the given OS signals from now on; once Run is
// dispatching, a delivery requests a clean stop. Only the first delivery
// stops the loop; later ones are logged and ignored until Close.
func (l *Loop) Notify(sig ...os.Signal) {
	l.notified = append(l.notified, sig...)
	signal.Notify(l.signals, sig...)
}

// Every registers fn to run on the loop goroutine every interval.
func (l *Loop) Every(interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	l.tickers = append(l.tickers, ticker{interval: interval, fn: fn})
}

// Post queues fn for execution on the loop goroutine. It never blocks:
// when the queue is full or the loop has stopped, fn is dropped and an
// error is returned.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.stop:
		return ErrStopped
	default:
	}
	select {
	case l.events <- fn:
		return nil
	default:
		return errors.New("runloop: event queue full")
	}
}

// Stop requests the loop to return err from Run. Only the first request
// is recorded; later ones are ignored.
func (l *Loop) Stop(err error) {
	l.stopOnce.Do(func() {
		l.stopMu.Lock()
		l.stopErr = err
		l.stopMu.Unlock()
		close(l.stop)
	})
}

// Quit requests a clean stop.
func (l *Loop) Quit() {
	l.Stop(nil)
}

// Stopped returns a channel closed once a stop has been requested.
func (l *Loop) Stopped() <-chan struct{} {
	return l.stop
}

// Run dispatches events until a stop is requested or ctx is done. It returns
// the error given to Stop, nil after an interrupt or Quit, or the context
// error if ctx ended the loop.
func (l *Loop) Run(ctx context.Context) error {
	if len(l.notified) > 0 {
		// Signals stay captured after Run returns so a repeated interrupt
		// cannot kill the process half way through teardown.
		defer func() { go l.drainSignals() }()
	}

	// Tickers are fanned into the event queue by their own goroutines so
	// the dispatcher keeps a single select. The callbacks still run here.
	tickCtx, cancelTicks := context.WithCancel(ctx)
	defer cancelTicks()
	tickCh := make(chan func())
	for _, t := range l.tickers {
		go forwardTicks(tickCtx, t, tickCh)
	}

	for {
		select {
		case <-ctx.Done():
			l.Stop(ctx.Err())
		case <-l.stop:
			l.stopMu.Lock()
			err := l.stopErr
			l.stopMu.Unlock()
			return err
		case sig := <-l.signals:
			l.handleSignal(sig)
		case fn := <-l.events:
			fn()
		case fn := <-tickCh:
			fn()
		}
	}
}

// handleSignal is the only reaction to an OS signal: request a clean stop.
func (l *Loop) handleSignal(sig os.Signal) {
	if l.logger != nil {
		l.logger.Info("signal received, stopping", "signal", sig.String())
	}
	l.Quit()
}

// drainSignals logs and discards signals that arrive after Run returned,
// until Close releases them.
func (l *Loop) drainSignals() {
	for {
		select {
		case sig := <-l.signals:
			if l.logger != nil {
				l.logger.Warn("signal ignored during shutdown", "signal", sig.String())
			}
		case <-l.closed:
			return
		}
	}
}

// Close releases the captured signals, restoring their default action.
// It is safe to call more than once and without a prior Run.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		signal.Stop(l.signals)
		close(l.closed)
	})
}

func forwardTicks(ctx context.Context, t ticker, out chan<- func()) {
	tk := time.NewTicker(t.interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			select {
			case out <- t.fn:
			case <-ctx.Done():
				return
			}
		}
	}
}
