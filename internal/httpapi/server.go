// Package httpapi exposes the curriculum service over JSON HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/session"
)

const (
	maxJSONBody  = 10 << 20
	maxSheetBody = 20 << 20
	checkTimeout = 2 * time.Second
)

// Check is a named readiness probe, such as a database ping.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Config holds dependencies for the HTTP API.
type Config struct {
	Service  *curriculum.Service
	Sessions session.Store // optional; enables bearer identities
	Events   http.Handler  // optional; websocket event stream
	Checks   []Check
	// Development adds the underlying error text to 500 responses.
	Development bool
}

// Server routes HTTP requests to the curriculum service.
type Server struct {
	svc      *curriculum.Service
	sessions session.Store
	events   http.Handler
	checks   []Check
	dev      bool
}

func New(cfg Config) *Server {
	return &Server{
		svc:      cfg.Service,
		sessions: cfg.Sessions,
		events:   cfg.Events,
		checks:   cfg.Checks,
		dev:      cfg.Development,
	}
}

// Handler returns the routed handler with identity resolution applied.
func (s *Server) Handler() http.Handler {
	return s.withIdentity(s.newMux())
}

func (s *Server) newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("GET /api/subjects", s.handleSubjects)
	mux.HandleFunc("GET /api/content", s.handleContent)
	mux.HandleFunc("GET /api/curriculum/{name}", s.handleCurriculum)
	mux.HandleFunc("POST /api/curriculum", s.handlePostCurriculum)
	mux.HandleFunc("POST /api/curriculum/import", s.handleImport)
	mux.HandleFunc("POST /api/videos", s.handleAddVideo)
	mux.HandleFunc("GET /api/cache/stats", s.handleCacheStats)
	if s.events != nil {
		mux.Handle("GET /api/events", s.events)
	}
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	failed := map[string]string{}
	for _, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Fn(ctx)
		cancel()
		if err != nil {
			failed[c.Name] = err.Error()
		}
	}

	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not ready",
			"checks": failed,
		})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
