// Package api serves propagation and visibility searches over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/parzivail/sgp4"
	"github.com/parzivail/sgp4/internal/catalog"
	"github.com/parzivail/sgp4/internal/fleet"
	"github.com/parzivail/sgp4/internal/metrics"
)

// Config holds the HTTP server settings.
type Config struct {
	Addr           string
	AllowedOrigins []string
	// MaxSearchWindow bounds end - start of a visibility search request.
	MaxSearchWindow time.Duration
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	store      *catalog.Store
	fetcher    *catalog.Fetcher // nil disables refresh
	tracker    *fleet.Tracker
	cfg        Config
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. fetcher may be nil.
func NewServer(cfg Config, store *catalog.Store, fetcher *catalog.Fetcher, tracker *fleet.Tracker, logger *slog.Logger) *Server {
	if cfg.MaxSearchWindow <= 0 {
		cfg.MaxSearchWindow = 7 * 24 * time.Hour
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	s := &Server{
		store:   store,
		fetcher: fetcher,
		tracker: tracker,
		cfg:     cfg,
		logger:  logger,
	}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/catalog", s.handleCatalog)
		r.Post("/catalog/refresh", s.handleRefresh)
		r.Get("/satellites", s.handleSatellites)
		r.Get("/positions", s.handlePositions)
		r.Get("/passes", s.handlePasses)
		r.Route("/satellites/{catnr}", func(r chi.Router) {
			r.Get("/position", s.handlePosition)
			r.Get("/passes", s.handleSatellitePasses)
			r.Get("/passes/{index}/plot.svg", s.handlePassPlot)
		})
	})
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer returns the underlying *http.Server for shutdown.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func healthPath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if healthPath(r.URL.Path) {
				level = slog.LevelDebug
			}
			logger.Log(r.Context(), level, "request",
				"component", "api",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeTrackerError maps tracker and model errors onto HTTP statuses.
func writeTrackerError(w http.ResponseWriter, err error) {
	var (
		argErr   *sgp4.InvalidArgumentError
		propErr  *sgp4.PropagationError
		orbitErr *sgp4.InvalidOrbitError
		decayErr *sgp4.DecayedError
	)
	switch {
	case errors.Is(err, fleet.ErrNoCatalog):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, fleet.ErrUnknownSatellite):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &argErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &propErr), errors.As(err, &orbitErr), errors.As(err, &decayErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.store.Get() == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no catalog"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type catalogResponse struct {
	Source     string    `json:"source"`
	FetchedAt  time.Time `json:"fetched_at"`
	AgeSeconds float64   `json:"age_seconds"`
	Count      int       `json:"count"`
	EpochMin   time.Time `json:"epoch_min"`
	EpochMax   time.Time `json:"epoch_max"`
}

func newCatalogResponse(ds *catalog.Dataset) catalogResponse {
	return catalogResponse{
		Source:     ds.Source,
		FetchedAt:  ds.FetchedAt,
		AgeSeconds: time.Since(ds.FetchedAt).Seconds(),
		Count:      ds.Len(),
		EpochMin:   ds.EpochRange.Min,
		EpochMax:   ds.EpochRange.Max,
	}
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	ds := s.store.Get()
	if ds == nil {
		writeTrackerError(w, fleet.ErrNoCatalog)
		return
	}
	writeJSON(w, http.StatusOK, newCatalogResponse(ds))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.fetcher == nil {
		writeError(w, http.StatusForbidden, "catalog fetching is disabled")
		return
	}
	ds, err := catalog.Refresh(r.Context(), s.store, s.fetcher, s.logger)
	if err != nil {
		s.logger.Error("catalog refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newCatalogResponse(ds))
}

func (s *Server) handleSatellites(w http.ResponseWriter, r *http.Request) {
	sats, err := s.tracker.Satellites()
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sats)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	catnr, err := catalogNumber(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	at, err := timeParam(r, "time", time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pos, err := s.tracker.Position(catnr, at)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

type positionsResponse struct {
	Time      time.Time        `json:"time"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Positions []fleet.Position `json:"positions"`
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	at, err := timeParam(r, "time", time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	positions, ok, failed, err := s.tracker.Positions(r.Context(), at)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positionsResponse{Time: at, Succeeded: ok, Failed: failed, Positions: positions})
}

func (s *Server) handlePasses(w http.ResponseWriter, r *http.Request) {
	req, err := s.passRequest(r)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	if v := r.URL.Query().Get("catnr"); v != "" {
		if req.CatalogNumbers, err = intList(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	results, err := s.tracker.Passes(r.Context(), req)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleSatellitePasses(w http.ResponseWriter, r *http.Request) {
	result, _, err := s.satellitePasses(r)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePassPlot(w http.ResponseWriter, r *http.Request) {
	result, req, err := s.satellitePasses(r)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 || index >= len(result.Passes) {
		writeError(w, http.StatusNotFound, "no such pass")
		return
	}
	points, err := s.tracker.Track(r.Context(), result.CatalogNumber, req.Site, result.Passes[index], 10*time.Second)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write([]byte(sgp4.PolarSVG(result.Passes[index].Period(), points)))
}

// satellitePasses runs the search of a single-satellite pass route.
func (s *Server) satellitePasses(r *http.Request) (fleet.SatellitePasses, fleet.PassRequest, error) {
	catnr, err := catalogNumber(r)
	if err != nil {
		return fleet.SatellitePasses{}, fleet.PassRequest{}, err
	}
	req, err := s.passRequest(r)
	if err != nil {
		return fleet.SatellitePasses{}, req, err
	}
	req.CatalogNumbers = []int{catnr}
	results, err := s.tracker.Passes(r.Context(), req)
	if err != nil {
		return fleet.SatellitePasses{}, req, err
	}
	if err := results[0].Err; err != nil {
		return fleet.SatellitePasses{}, req, err
	}
	return results[0], req, nil
}
