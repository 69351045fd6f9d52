package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"energy-report/internal/auth"
)

// NewRouter mounts the report API. authMW may be nil to serve without authentication.
func NewRouter(h *Handler, authMW *auth.Middleware, logger zerolog.Logger) http.Handler {
	router := chi.NewRouter()
	router.Use(RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(authMW.Wrap)

	router.Get("/healthz", Health)
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/api/v1/jobs", func(r chi.Router) {
		r.Get("/", h.ListJobs)
		r.Get("/{name}/runs", h.ListRuns)
		r.Post("/{name}/run", h.TriggerRun)
	})
	return router
}

// RequestLogger attaches a request-scoped logger to the context and logs completion.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			reqLogger := logger.With().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("remote_ip", req.RemoteAddr).
				Logger()
			req = req.WithContext(reqLogger.WithContext(req.Context()))

			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, req)
			reqLogger.Debug().
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("request served")
		})
	}
}
