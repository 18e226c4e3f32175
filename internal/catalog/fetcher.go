package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/parzivail/sgp4"
	"github.com/parzivail/sgp4/internal/metrics"
)

const (
	// DefaultSourceURL serves the stations group in text form.
	DefaultSourceURL = "https://celestrak.org/NORAD/elements/gp.php?GROUP=stations&FORMAT=tle"

	maxBodyBytes = 50 << 20
)

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	SourceURL       string
	ExtraSourceURLs []string
	Timeout         time.Duration
	// RequestsPerMinute bounds how often the upstream is hit across all
	// URLs. Zero means one request per second.
	RequestsPerMinute float64
}

// Fetcher retrieves raw element sets from remote sources.
type Fetcher struct {
	sourceURL  string
	extraURLs  []string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher. Requests to all URLs share one rate limiter.
func NewFetcher(cfg FetcherConfig, logger *slog.Logger) *Fetcher {
	if cfg.SourceURL == "" {
		cfg.SourceURL = DefaultSourceURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Limit(1)
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(cfg.RequestsPerMinute / 60)
	}
	return &Fetcher{
		sourceURL:  cfg.SourceURL,
		extraURLs:  cfg.ExtraSourceURLs,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

// SourceURL returns the primary source URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// Source is the body downloaded from one URL.
type Source struct {
	URL  string
	Body []byte
}

// Fetch downloads the primary source followed by every extra source that
// succeeds. Only a primary failure is an error.
func (f *Fetcher) Fetch(ctx context.Context) ([]Source, error) {
	body, err := f.get(ctx, f.sourceURL)
	if err != nil {
		return nil, err
	}
	sources := []Source{{URL: f.sourceURL, Body: body}}
	for _, u := range f.extraURLs {
		extra, err := f.get(ctx, u)
		if err != nil {
			f.logger.Warn("extra catalog source failed", "url", u, "error", err)
			continue
		}
		sources = append(sources, Source{URL: u, Body: extra})
	}
	return sources, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching element sets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response from %s exceeds %d byte limit", url, maxBodyBytes)
	}
	return body, nil
}

// Refresh downloads, parses and installs a new dataset. Each source is
// parsed in its own format; an extra source that does not parse is logged and
// left out, and an extra source's entry replaces a primary entry with the same
// catalog number. Concurrent refreshes of the same store are serialized.
func Refresh(ctx context.Context, s *Store, f *Fetcher, logger *slog.Logger) (*Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sources, err := f.Fetch(ctx)
	metrics.RecordFetch(err)
	if err != nil {
		return nil, err
	}

	var entries []sgp4.ElementSet
	for i, src := range sources {
		parsed, err := Parse(src.Body, logger)
		if err != nil {
			if i == 0 {
				return nil, fmt.Errorf("parsing %s: %w", src.URL, err)
			}
			logger.Warn("skipping extra catalog source", "url", src.URL, "error", err)
			continue
		}
		entries = append(entries, parsed...)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no element sets in response from %s", f.SourceURL())
	}

	ds := NewDataset(f.SourceURL(), time.Now().UTC(), entries)
	s.Set(ds)
	metrics.SetCatalogSize(ds.Len())
	metrics.SetCatalogAge(0)
	logger.Info("catalog refreshed",
		"source", ds.Source,
		"count", ds.Len(),
		"epoch_min", ds.EpochRange.Min.Format(time.RFC3339),
		"epoch_max", ds.EpochRange.Max.Format(time.RFC3339),
	)
	return ds, nil
}
