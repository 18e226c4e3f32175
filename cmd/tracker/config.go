package main

import (
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/parzivail/sgp4/internal/api"
	"github.com/parzivail/sgp4/internal/catalog"
)

type serveConfig struct {
	API             api.Config
	CatalogFile     string
	EnableFetch     bool
	Fetcher         catalog.FetcherConfig
	RefreshInterval time.Duration
	Workers         int
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envList(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// envSeconds reads a positive number of seconds, falling back to def.
func envSeconds(logger *slog.Logger, key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default_seconds", def.Seconds())
		return def
	}
	return time.Duration(n) * time.Second
}

func loadServeConfig(logger *slog.Logger) serveConfig {
	cfg := serveConfig{
		API: api.Config{
			Addr:            envOr("SGP4_HTTP_ADDR", ":8080"),
			AllowedOrigins:  envList("SGP4_CORS_ORIGINS"),
			MaxSearchWindow: envSeconds(logger, "SGP4_MAX_SEARCH_WINDOW", 7*24*time.Hour),
		},
		CatalogFile: os.Getenv("SGP4_CATALOG_FILE"),
		EnableFetch: true,
		Fetcher: catalog.FetcherConfig{
			SourceURL:       os.Getenv("SGP4_SOURCE_URL"),
			ExtraSourceURLs: envList("SGP4_EXTRA_URLS"),
			Timeout:         envSeconds(logger, "SGP4_FETCH_TIMEOUT", 30*time.Second),
		},
		RefreshInterval: envSeconds(logger, "SGP4_REFRESH_INTERVAL", 6*time.Hour),
		Workers:         runtime.NumCPU(),
	}

	if v := os.Getenv("SGP4_ENABLE_FETCH"); v != "" {
		if enabled, err := strconv.ParseBool(v); err != nil {
			logger.Warn("invalid SGP4_ENABLE_FETCH value, using default", "value", v, "default", cfg.EnableFetch)
		} else {
			cfg.EnableFetch = enabled
		}
	}

	if v := os.Getenv("SGP4_FETCH_RPM"); v != "" {
		rpm, err := strconv.ParseFloat(v, 64)
		if err != nil || rpm <= 0 {
			logger.Warn("invalid SGP4_FETCH_RPM value, using default", "value", v)
		} else {
			cfg.Fetcher.RequestsPerMinute = rpm
		}
	}

	if v := os.Getenv("SGP4_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SGP4_WORKERS value, using default", "value", v, "default", cfg.Workers)
		} else {
			cfg.Workers = n
		}
	}

	logger.Info("serve config",
		"addr", cfg.API.Addr,
		"catalog_file", cfg.CatalogFile,
		"fetch_enabled", cfg.EnableFetch,
		"source_url", cfg.Fetcher.SourceURL,
		"extra_urls", cfg.Fetcher.ExtraSourceURLs,
		"refresh_interval_seconds", cfg.RefreshInterval.Seconds(),
		"workers", cfg.Workers,
	)
	return cfg
}
