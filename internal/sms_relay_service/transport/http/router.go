package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultRequestTimeout bounds a whole inbound request.
const DefaultRequestTimeout = 60 * time.Second

// NewRouter wires the middleware stack, the send handler and the operational routes.
func NewRouter(h *SendHandler, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(CORS)
	r.Use(Recoverer(logger))
	r.Use(PrometheusMetricsMiddleware)
	r.Use(chimiddleware.Timeout(DefaultRequestTimeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusNotFound, GenericErrorResponse{Error: errNotFound})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusMethodNotAllowed, GenericErrorResponse{Error: errMethodNotAllow})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "SMS relay is healthy"})
	})
	r.Handle("/metrics", promhttp.Handler())

	h.RegisterRoutes(r)
	return r
}
