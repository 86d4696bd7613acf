package httpd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/dmx2c2ip/internal/dmx"
	"github.com/nerrad567/dmx2c2ip/internal/infrastructure/logging"
	"github.com/nerrad567/dmx2c2ip/internal/valuetree"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 5 * time.Second

// Built-in defaults used when the configuration does not override them.
const (
	DefaultHost          = "0.0.0.0"
	DefaultPort          = 8080
	DefaultRoot          = "/usr/share/dmx2c2ip/www"
	DefaultStatsInterval = time.Second
	defaultTimeout       = 10 * time.Second
	defaultIdleTimeout   = 60 * time.Second
	authRealm            = "dmx2c2ip"
)

// Options enumerates every recognised server setting.
type Options struct {
	// Host is the listen address. Default: 0.0.0.0.
	Host string

	// Port overrides the listen port. Default: 8080. Zero picks a free port.
	Port int

	// User and Password enable Basic authentication when User is non-empty.
	User     string
	Password string

	// Root overrides the static file root.
	Root string

	// ValueRoot is the JSON tree served under /api/v1/values.
	ValueRoot valuetree.Node

	// StatsInterval is the period of the WebSocket statistics stream.
	StatsInterval time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultOptions returns the server's built-in defaults.
func DefaultOptions() Options {
	return Options{
		Host:          DefaultHost,
		Port:          DefaultPort,
		Root:          DefaultRoot,
		ValueRoot:     valuetree.Null(),
		StatsInterval: DefaultStatsInterval,
		ReadTimeout:   defaultTimeout,
		WriteTimeout:  defaultTimeout,
		IdleTimeout:   defaultIdleTimeout,
	}
}

// StatsSource provides receiver statistics. *dmx.Receiver satisfies it.
type StatsSource interface {
	Stats() dmx.Stats
}

// FrameSource provides the most recent DMX frame. *dmx.Receiver satisfies it.
type FrameSource interface {
	LastFrame() (dmx.Frame, time.Time, bool)
}

// Deps holds the collaborators of the server. All fields are optional.
type Deps struct {
	Logger  *logging.Logger
	Stats   StatsSource // nil when no receiver statistics are available
	Frames  FrameSource // nil when no frames are available
	Version string
}

// Server is the HTTP server of the bridge.
//
// It is created with New, started with Start and released with Close.
// The served value tree is fixed at creation time.
//
// Thread Safety: All methods are safe for concurrent use.
type Server struct {
	opts    Options
	logger  *logging.Logger
	stats   StatsSource
	frames  FrameSource
	version string
	metrics *metrics
	hub     *Hub

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc // stops the statistics stream
	closed   bool
}

// New creates a server from explicit options. Creation does not touch the
// network; nothing is bound until Start.
//
// Parameters:
//   - opts: Server settings, normally DefaultOptions with overrides applied
//   - deps: Logger, statistics and frame sources, version string
//
// Returns:
//   - *Server: Configured server ready to start
func New(opts Options, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = DefaultStatsInterval
	}

	s := &Server{
		opts:    opts,
		logger:  logger.With("component", "httpd"),
		stats:   deps.Stats,
		frames:  deps.Frames,
		version: deps.Version,
	}
	s.metrics = newMetrics(deps.Stats)
	s.hub = NewHub(s.logger)
	return s
}

// Options returns the settings the server was created with.
func (s *Server) Options() Options {
	return s.opts
}

// Start binds the listener and begins serving in the background.
//
// Parameters:
//   - ctx: Bounds the bind; the server keeps running after ctx ends
//
// Returns:
//   - error: Wraps ErrListen if the address cannot be bound or the server
//     was already started or closed
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: server closed", ErrListen)
	}
	if s.server != nil {
		return fmt.Errorf("%w: already started", ErrListen)
	}
	if s.opts.Port < 0 || s.opts.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", ErrListen, s.opts.Port)
	}

	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrListen, addr, err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.opts.ReadTimeout,
		ReadHeaderTimeout: s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
		IdleTimeout:       s.opts.IdleTimeout,
	}

	go s.hub.Run(streamCtx, s.opts.StatsInterval, s.statsSnapshot)

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	s.logger.Info("http server listening",
		"address", ln.Addr().String(),
		"root", s.opts.Root,
		"auth", s.opts.User != "",
	)
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close gracefully shuts down the server.
//
// It waits up to 5 seconds for in-flight requests to complete, then
// forcefully closes remaining connections. Calling Close on a server that
// was never started, or more than once, is a no-op.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.server == nil {
		return nil
	}

	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		//nolint:errcheck // forced close after a failed graceful shutdown
		s.server.Close()
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// statsSnapshot returns current receiver statistics, or false when the
// server has no statistics source.
func (s *Server) statsSnapshot() (dmx.Stats, bool) {
	if s.stats == nil {
		return dmx.Stats{}, false
	}
	return s.stats.Stats(), true
}
