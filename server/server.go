// Package server exposes the orchestrator over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kadirpekel/maestro/config"
	"github.com/kadirpekel/maestro/orchestrator"
)

// ============================================================================
// HTTP SERVER
// ============================================================================

// Processor runs one task to a structured result.
type Processor interface {
	Process(ctx context.Context, task, userID string) *orchestrator.Result
}

// processRequest is the POST /process payload.
type processRequest struct {
	Task   string `json:"task"`
	UserID string `json:"user_id"`
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

// Server serves the orchestrator API: run entry, health, and Prometheus
// metrics.
type Server struct {
	cfg       config.ServerConfig
	processor Processor
	registry  *prometheus.Registry
	log       *slog.Logger

	httpServer *http.Server
}

// New creates a server. registry may be nil to disable the metrics endpoint.
func New(cfg config.ServerConfig, processor Processor, registry *prometheus.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		processor: processor,
		registry:  registry,
		log:       log,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the router; exposed for tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/process", s.handleProcess)
	r.Get("/healthz", s.handleHealthz)
	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	return r
}

// ListenAndServe blocks serving the API until Shutdown or failure.
func (s *Server) ListenAndServe() error {
	s.log.Info("http server listening", "addr", s.cfg.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.Task == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "task is required"})
		return
	}

	start := time.Now()
	result := s.processor.Process(r.Context(), req.Task, req.UserID)
	s.log.Info("process request served",
		"run_id", result.RunID, "success", result.Success,
		"iterations", result.Iterations, "duration", time.Since(start))

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
