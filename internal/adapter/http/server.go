// Package http exposes the current snapshot, derived scene and map clusters
// to presentation clients, plus health, readiness and metrics for operators.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
)

// Service is the coordinator surface the server drives.
type Service interface {
	sharedobs.ReadinessChecker
	Snapshot() *domain.Snapshot
	FetchIfNeeded() bool
	OnBecameActive()
	OnBackground()
	OnLanguageChanged(code string) domain.Locale
	Locale() domain.Locale
}

// Server exposes the v1 API alongside /healthz, /readyz and /metrics.
type Server struct {
	httpServer *http.Server
	svc        Service
	clock      clockwork.Clock
	location   *time.Location
	logger     *slog.Logger
}

// NewServer creates an HTTP server. Day/night for /v1/scene is evaluated in loc.
func NewServer(addr string, svc Service, clock clockwork.Clock, loc *time.Location, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	if loc == nil {
		loc = time.UTC
	}
	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		svc:      svc,
		clock:    clock,
		location: loc,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(svc))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /v1/scene", s.handleScene)
	mux.HandleFunc("GET /v1/clusters", s.handleClusters)
	mux.HandleFunc("POST /v1/reload", s.handleReload)
	mux.HandleFunc("POST /v1/lifecycle/active", s.handleActive)
	mux.HandleFunc("POST /v1/lifecycle/background", s.handleBackground)
	mux.HandleFunc("PUT /v1/locale", s.handleLocale)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
