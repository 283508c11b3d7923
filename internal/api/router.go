package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"accessibility-eta-service/internal/api/handlers"
	"accessibility-eta-service/internal/platform/metrics"
)

// NewRouter wires the ops endpoints of a running analysis.
func NewRouter(logger *zap.Logger, progress handlers.ProgressSource, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(loggingMiddleware(logger))

	statusHandler := &handlers.StatusHandler{Progress: progress}

	r.Get("/health", handlers.Health)
	r.Get("/status", statusHandler.Status)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))

	return r
}
