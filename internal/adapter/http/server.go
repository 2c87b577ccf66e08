// Package http exposes the service's HTTP surface: health, readiness and
// metrics endpoints plus a synchronous conversion endpoint mirroring the
// OGC-process "sync-execute" mode.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/metno/netcdf-ondemand/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// RequestProcessor handles one conversion request synchronously.
type RequestProcessor interface {
	ProcessRequest(ctx context.Context, req domain.ConversionRequest) domain.Report
}

// Server exposes health, readiness, metrics, and synchronous conversion
// HTTP endpoints.
type Server struct {
	httpServer *http.Server
	processor  RequestProcessor
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// /v1/convert routes.
func NewServer(addr string, ready ReadinessChecker, processor RequestProcessor, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// Synchronous conversions download and convert before replying.
			WriteTimeout: 60 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		processor: processor,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/convert", s.handleConvert)

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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// convertRequest is the JSON body accepted by POST /v1/convert.
type convertRequest struct {
	RequestID  string   `json:"request_id,omitempty"`
	Products   []string `json:"products"`
	Recipients []string `json:"recipients,omitempty"`
}

// handleConvert processes a request synchronously and returns its report.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var body convertRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if len(body.Products) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "products is required"})
		return
	}

	id := body.RequestID
	if id == "" {
		id = uuid.NewString()
	}

	rep := s.processor.ProcessRequest(r.Context(), domain.ConversionRequest{
		ID:         id,
		Products:   body.Products,
		Recipients: body.Recipients,
		ReceivedAt: domain.Now(),
	})
	writeJSON(w, http.StatusOK, rep)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
