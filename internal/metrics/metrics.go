// Package metrics exposes Prometheus instrumentation for the tracker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgp4_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"route", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sgp4_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	propagationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgp4_propagations_total",
			Help: "Propagation calls by model and outcome.",
		},
		[]string{"model", "outcome"},
	)

	searchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sgp4_visibility_search_duration_seconds",
			Help:    "Duration of one satellite visibility search.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)

	passesFoundTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sgp4_visibility_periods_total",
			Help: "Visibility periods found by all searches.",
		},
	)

	catalogSatellites = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sgp4_catalog_satellites",
			Help: "Number of satellites in the loaded catalog.",
		},
	)

	catalogAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sgp4_catalog_age_seconds",
			Help: "Seconds since the catalog was loaded.",
		},
	)

	catalogFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgp4_catalog_fetches_total",
			Help: "Catalog downloads by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		propagationsTotal,
		searchDurationSeconds,
		passesFoundTotal,
		catalogSatellites,
		catalogAgeSeconds,
		catalogFetchesTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPropagation counts one propagation. outcome is "nominal", "decayed"
// or "error".
func RecordPropagation(model, outcome string) {
	propagationsTotal.WithLabelValues(model, outcome).Inc()
}

// RecordSearch records the duration and result size of a visibility search.
func RecordSearch(d time.Duration, periods int) {
	searchDurationSeconds.Observe(d.Seconds())
	passesFoundTotal.Add(float64(periods))
}

// SetCatalogSize sets the satellite count gauge.
func SetCatalogSize(n int) {
	catalogSatellites.Set(float64(n))
}

// SetCatalogAge sets the catalog age gauge.
func SetCatalogAge(seconds float64) {
	catalogAgeSeconds.Set(seconds)
}

// RecordFetch counts a catalog download attempt.
func RecordFetch(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	catalogFetchesTotal.WithLabelValues(result).Inc()
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeLabel returns the matched chi route pattern so that parameterized
// paths share one label. Unmatched paths collapse to "other".
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "other"
}

// Middleware records request count and duration. It must be installed on a
// chi router so the route pattern is known once the handler returns.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := routeLabel(r)
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		httpDurationSeconds.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
