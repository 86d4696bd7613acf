package httpd

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.metricsMiddleware)

	// Health check (no auth required)
	r.Get("/api/v1/health", s.handleHealth)

	// Everything else is protected when credentials are configured
	r.Group(func(r chi.Router) {
		r.Use(s.basicAuthMiddleware)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/values", s.handleValues)
			r.Get("/values/*", s.handleValues)
			r.Get("/receiver", s.handleReceiver)
			r.Get("/receiver/frame", s.handleFrame)
			r.Get("/ws", s.handleWebSocket)
		})

		r.Handle("/metrics", s.metrics.handler())

		r.Handle("/*", http.FileServer(http.Dir(s.opts.Root)))
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleValues serves the value tree or the sub-tree addressed by the
// wildcard path, e.g. /api/v1/values/dmx/speed.
func (s *Server) handleValues(w http.ResponseWriter, r *http.Request) {
	path := splitPath(chi.URLParam(r, "*"))

	node, ok := s.opts.ValueRoot.Lookup(path...)
	if !ok {
		writeNotFound(w, "no value at "+strings.Join(path, "/"))
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// handleReceiver returns receiver statistics.
func (s *Server) handleReceiver(w http.ResponseWriter, _ *http.Request) {
	stats, ok := s.statsSnapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "no receiver attached")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// frameResponse is the JSON form of the last received frame. Slots are
// listed as numbers rather than base64.
type frameResponse struct {
	StartCode  int       `json:"start_code"`
	Slots      []int     `json:"slots"`
	ReceivedAt time.Time `json:"received_at"`
}

// handleFrame returns the most recent complete DMX frame.
func (s *Server) handleFrame(w http.ResponseWriter, _ *http.Request) {
	if s.frames == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "no receiver attached")
		return
	}
	frame, at, ok := s.frames.LastFrame()
	if !ok {
		writeNotFound(w, "no frame received yet")
		return
	}

	slots := make([]int, len(frame.Slots))
	for i, v := range frame.Slots {
		slots[i] = int(v)
	}
	writeJSON(w, http.StatusOK, frameResponse{
		StartCode:  int(frame.StartCode),
		Slots:      slots,
		ReceivedAt: at,
	})
}

// splitPath splits a slash-separated path, dropping empty segments.
func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
