package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lazypower/reactions/internal/engine"
)

// Server is the reactions HTTP API server.
type Server struct {
	engine  *engine.Engine
	metrics http.Handler
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over eng. metrics, when non-nil, is mounted at
// /metrics.
func New(eng *engine.Engine, metrics http.Handler, version string) *Server {
	s := &Server{
		engine:  eng,
		metrics: metrics,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Post("/cleanup", s.handleCleanup)

		r.Route("/messages/{messageID}/reactions", func(r chi.Router) {
			r.Get("/", s.handleGetReactions)
			r.Post("/toggle", s.handleToggle)
		})
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"healthy": s.engine.IsHealthy(),
		"message": s.engine.StatusMessage(),
		"breaker": s.engine.Breaker.Stats(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
