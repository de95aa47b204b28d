package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NVIDIA/nvme-exporter/pkg/metrics"
)

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Default handler
	mux.HandleFunc("/", s.handleDefault)

	// System endpoints (no rate limiting)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)

	// Exposition endpoint with middleware
	mux.HandleFunc("/metrics", s.withMiddleware(s.handleMetrics))

	return mux
}

func (s *Server) handleDefault(w http.ResponseWriter, r *http.Request) {
	slog.Debug("handling default route",
		"path", r.URL.Path,
		"method", r.Method,
		"remote_addr", r.RemoteAddr,
		"user_agent", r.UserAgent(),
	)

	resp := struct {
		Name      string   `json:"name"`
		Version   string   `json:"version"`
		Ready     bool     `json:"ready"`
		Timestamp string   `json:"timestamp"`
		Routes    []string `json:"routes"`
	}{
		Name:      s.config.Name,
		Version:   s.config.Version,
		Ready:     s.isReady(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Routes: []string{
			"GET /metrics",
			"GET /health",
			"GET /ready",
		},
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleMetrics runs one collection pass and serves the resulting snapshot
// in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, r, http.StatusMethodNotAllowed, errCodeMethodNotAllowed,
			"Method not allowed", nil)
		return
	}

	// The exporter's own instrumentation (collector and HTTP metrics) lives
	// in the default registry and rides along with the device snapshot.
	snap := s.scraper.Scrape(r.Context())
	body, err := metrics.Render(snap, prometheus.DefaultGatherer)
	if err != nil {
		slog.Error("failed to render metric snapshot", "error", err)
		respondError(w, r, http.StatusInternalServerError, errCodeScrapeFailed,
			"Failed to render metrics", nil)
		return
	}

	w.Header().Set("Content-Type", metrics.ContentType)
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("failed to write metrics response", "error", err)
	}
}
