package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/parzivail/sgp4/internal/api"
	"github.com/parzivail/sgp4/internal/catalog"
	"github.com/parzivail/sgp4/internal/fleet"
	"github.com/parzivail/sgp4/internal/metrics"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve positions and passes over HTTP",
		Long: `Serve positions and passes over HTTP.

Configuration is read from the environment:
  SGP4_HTTP_ADDR          listen address (:8080)
  SGP4_CATALOG_FILE       element sets loaded at startup, TLE text or OMM JSON
  SGP4_ENABLE_FETCH       download element sets (true)
  SGP4_SOURCE_URL         primary download URL (CelesTrak stations)
  SGP4_EXTRA_URLS         comma separated additional URLs
  SGP4_REFRESH_INTERVAL   seconds between downloads (21600)
  SGP4_FETCH_RPM          upstream requests per minute (60)
  SGP4_FETCH_TIMEOUT      seconds per download (30)
  SGP4_WORKERS            propagation workers (number of CPUs)
  SGP4_MAX_SEARCH_WINDOW  longest pass search in seconds (604800)
  SGP4_CORS_ORIGINS       comma separated allowed origins (*)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	logger := newLogger()
	cfg := loadServeConfig(logger)

	store := catalog.NewStore()
	if cfg.CatalogFile != "" {
		ds, err := catalog.LoadFile(cfg.CatalogFile, logger)
		if err != nil {
			logger.Warn("failed to load catalog file", "path", cfg.CatalogFile, "error", err)
		} else {
			store.Set(ds)
			metrics.SetCatalogSize(ds.Len())
			logger.Info("loaded catalog file", "path", cfg.CatalogFile, "count", ds.Len())
		}
	}

	var fetcher *catalog.Fetcher
	if cfg.EnableFetch {
		fetcher = catalog.NewFetcher(cfg.Fetcher, logger)
	}
	tracker := fleet.NewTracker(store, cfg.Workers, logger)
	srv := api.NewServer(cfg.API, store, fetcher, tracker, logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if fetcher != nil {
		go refreshLoop(ctx, store, fetcher, cfg.RefreshInterval, logger)
	}
	go ageLoop(ctx, store)

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.API.Addr, "fetch_enabled", cfg.EnableFetch)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func refreshLoop(ctx context.Context, store *catalog.Store, fetcher *catalog.Fetcher, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if _, err := catalog.Refresh(ctx, store, fetcher, logger); err != nil && ctx.Err() == nil {
			logger.Error("catalog refresh failed", "error", err)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func ageLoop(ctx context.Context, store *catalog.Store) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if age := store.AgeSeconds(); age >= 0 {
				metrics.SetCatalogAge(age)
			}
		case <-ctx.Done():
			return
		}
	}
}
