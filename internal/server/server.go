// Package server exposes the lifecycle and recovery engines over a small
// JSON admin API.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mnemos-io/mnemos/internal/graph"
	"github.com/mnemos-io/mnemos/internal/lifecycle"
	"github.com/mnemos-io/mnemos/internal/recovery"
)

// Pinger checks store connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the mnemos HTTP admin server.
type Server struct {
	lifecycle *lifecycle.Service
	recovery  *recovery.Service
	retry     *graph.Retrier
	pinger    Pinger
	router    chi.Router
	version   string
	started   time.Time
}

// New creates a Server over the given services.
func New(lc *lifecycle.Service, rc *recovery.Service, retry *graph.Retrier, pinger Pinger, version string) *Server {
	s := &Server{
		lifecycle: lc,
		recovery:  rc,
		retry:     retry,
		pinger:    pinger,
		version:   version,
		started:   time.Now(),
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

		r.Route("/lifecycle", func(r chi.Router) {
			r.Get("/status", s.handleLifecycleStatus)
			r.Put("/config", s.handleLifecycleConfig)
			r.Post("/start", s.handleLifecycleStart)
			r.Post("/stop", s.handleLifecycleStop)
			r.Post("/maintenance", s.handleMaintenance)
			r.Post("/decay", s.handleDecay)
			r.Post("/cleanup", s.handleCleanup)
			r.Post("/consolidate", s.handleConsolidate)
			r.Get("/duplicates", s.handleDuplicates)
		})

		r.Route("/recovery", func(r chi.Router) {
			r.Get("/status", s.handleRecoveryStatus)
			r.Get("/operations", s.handleOperations)
			r.Post("/validate", s.handleValidate)
			r.Post("/repair", s.handleRepair)
			r.Post("/backups", s.handleCreateBackup)
			r.Post("/restore", s.handleRestore)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storeOK := true
	if err := s.pinger.Ping(r.Context()); err != nil {
		storeOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"store":   storeOK,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
