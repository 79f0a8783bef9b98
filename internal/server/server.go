// Package server wires the HTTP surface: cluster and risk endpoints, map
// view state, health and metrics.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwq-lab/denguewatch/internal/core/config"
	"github.com/cwq-lab/denguewatch/internal/core/model"
	"github.com/cwq-lab/denguewatch/internal/health"
	"github.com/cwq-lab/denguewatch/internal/mapview"
	"github.com/cwq-lab/denguewatch/internal/state"
)

// NewRouter assembles the full route table.
func NewRouter(log *slog.Logger, latest *state.Latest, view model.MapView) http.Handler {
	r := chi.NewRouter()
	r.Use(Recover())
	r.Use(Logging(log))
	r.Use(CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(latest))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/api/dengue/latest", HandleLatestClusters(log, latest))
	r.Get("/api/risk/latest", HandleLatestRisk(log, latest))
	r.Get("/api/map/view", mapview.Handler(view))

	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config, log *slog.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
