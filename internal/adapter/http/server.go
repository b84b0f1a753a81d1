package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
	"github.com/couchcryptid/crop-advisor-service/internal/observability"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the crop, place and recommendation API alongside health,
// readiness and metrics endpoints.
type Server struct {
	httpServer *http.Server
	crops      domain.CropRepository
	places     domain.PlaceRepository
	advisor    Advisor
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates an HTTP server and registers every route.
func NewServer(
	addr string,
	ready ReadinessChecker,
	crops domain.CropRepository,
	places domain.PlaceRepository,
	advisor Advisor,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		crops:   crops,
		places:  places,
		advisor: advisor,
		metrics: metrics,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	s.route(mux, "GET /crops", s.handleListCrops)
	s.route(mux, "POST /crops", s.handleCreateCrop)
	s.route(mux, "GET /crops/{id}", s.handleGetCrop)
	s.route(mux, "PUT /crops/{id}", s.handleUpdateCrop)
	s.route(mux, "DELETE /crops/{id}", s.handleDeleteCrop)
	s.route(mux, "GET /places", s.handleListPlaces)
	s.route(mux, "POST /places", s.handleCreatePlace)
	s.route(mux, "GET /places/{country}/{postal}", s.handleGetPlace)
	s.route(mux, "PUT /places/{country}/{postal}", s.handleUpdatePlace)
	s.route(mux, "DELETE /places/{country}/{postal}", s.handleDeletePlace)
	s.route(mux, "POST /recommendations", s.handleRecommend)
	s.route(mux, "GET /places/{country}/{postal}/recommendations", s.handlePlaceRecommendations)

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

// route registers an API handler and counts its responses by pattern and status.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.metrics.HTTPRequests.WithLabelValues(pattern, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
