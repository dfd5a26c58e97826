package bqathena

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// NewServer returns the HTTP entry point. GET / runs the pipeline once and
// answers with a status message; /metrics serves Prometheus metrics.
func NewServer(p Pipeline, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("handled request")
	}))
	r.Use(middleware.Recoverer)

	r.Get("/", runHandler(p))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func runHandler(p Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := p.Run(r.Context())
		if res == nil {
			res = &Result{Error: err}
		}

		status := http.StatusOK
		if err != nil {
			status = http.StatusInternalServerError
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(res.Message()))
	}
}
