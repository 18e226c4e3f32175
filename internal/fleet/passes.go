package fleet

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/parzivail/sgp4"
	"github.com/parzivail/sgp4/internal/metrics"
)

// PassRequest holds the parameters of a visibility search.
type PassRequest struct {
	Site           sgp4.Geodetic
	Start          time.Time
	End            time.Time
	Options        sgp4.ObserveOptions
	CatalogNumbers []int // empty means every tracked satellite
}

// Pass is one visibility period with angles in degrees.
type Pass struct {
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	DurationSeconds  float64   `json:"duration_seconds"`
	MaxElevation     float64   `json:"max_elevation"`
	MaxElevationTime time.Time `json:"max_elevation_time"`
	StartAzimuth     float64   `json:"start_azimuth"`
	EndAzimuth       float64   `json:"end_azimuth"`

	period sgp4.VisibilityPeriod
}

// Period returns the underlying visibility period.
func (p Pass) Period() sgp4.VisibilityPeriod { return p.period }

func newPass(vp sgp4.VisibilityPeriod) Pass {
	return Pass{
		Start:            vp.Start,
		End:              vp.End,
		DurationSeconds:  vp.Duration().Seconds(),
		MaxElevation:     vp.MaxElevation * 180 / math.Pi,
		MaxElevationTime: vp.MaxElevationTime,
		StartAzimuth:     vp.StartAzimuth * 180 / math.Pi,
		EndAzimuth:       vp.EndAzimuth * 180 / math.Pi,
		period:           vp,
	}
}

// SatellitePasses holds the passes of one satellite.
type SatellitePasses struct {
	CatalogNumber int    `json:"catalog_number"`
	Name          string `json:"name"`
	Passes        []Pass `json:"passes"`
	Error         string `json:"error,omitempty"`

	// Err is the failure behind Error, for errors.Is and errors.As.
	Err error `json:"-"`
}

func (sp *SatellitePasses) fail(err error) {
	sp.Err = err
	sp.Error = err.Error()
}

// predictor adapts a satellite to sgp4.Predictor. Every call takes the
// satellite lock, and the search stops once ctx is done.
type predictor struct {
	ctx context.Context
	sat *satellite
}

func (p predictor) PropagateAt(t time.Time) (sgp4.Prediction, error) {
	if err := p.ctx.Err(); err != nil {
		return sgp4.Prediction{}, err
	}
	return p.sat.propagateAt(t)
}

func (p predictor) Name() string       { return p.sat.prop.Name() }
func (p predictor) CatalogNumber() int { return p.sat.prop.CatalogNumber() }

// Passes runs one visibility search per requested satellite, at most
// t.workers at a time. Results keep the request order; per-satellite
// failures are reported in SatellitePasses.Error.
func (t *Tracker) Passes(ctx context.Context, req PassRequest) ([]SatellitePasses, error) {
	f, err := t.current()
	if err != nil {
		return nil, err
	}
	if err := req.Site.Validate(); err != nil {
		return nil, err
	}
	if err := req.Options.Validate(req.Start, req.End); err != nil {
		return nil, err
	}
	numbers := req.CatalogNumbers
	if len(numbers) == 0 {
		numbers = f.order
	}

	results := make([]SatellitePasses, len(numbers))
	sem := make(chan struct{}, t.workers)
	var wg sync.WaitGroup

	for i, n := range numbers {
		sat, ok := f.sats[n]
		if !ok {
			results[i] = SatellitePasses{CatalogNumber: n}
			results[i].fail(ErrUnknownSatellite)
			continue
		}
		wg.Add(1)
		go func(idx int, sat *satellite) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = SatellitePasses{CatalogNumber: sat.prop.CatalogNumber(), Name: sat.prop.Name()}
				results[idx].fail(ctx.Err())
				return
			}
			results[idx] = t.observe(ctx, sat, req)
		}(i, sat)
	}

	wg.Wait()
	return results, ctx.Err()
}

func (t *Tracker) observe(ctx context.Context, sat *satellite, req PassRequest) SatellitePasses {
	out := SatellitePasses{CatalogNumber: sat.prop.CatalogNumber(), Name: sat.prop.Name()}

	start := time.Now()
	periods, err := sgp4.Observe(predictor{ctx: ctx, sat: sat}, req.Site, req.Start, req.End, req.Options)
	metrics.RecordSearch(time.Since(start), len(periods))
	if err != nil {
		t.logger.Warn("visibility search failed", "norad_id", out.CatalogNumber, "error", err)
		out.fail(err)
		return out
	}

	out.Passes = make([]Pass, 0, len(periods))
	for _, vp := range periods {
		out.Passes = append(out.Passes, newPass(vp))
	}
	t.logger.Debug("visibility search done",
		"norad_id", out.CatalogNumber,
		"passes", len(out.Passes),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out
}

// Track samples the look angles of one pass of a satellite every step.
func (t *Tracker) Track(ctx context.Context, catalogNumber int, site sgp4.Geodetic, pass Pass, step time.Duration) ([]sgp4.TrackPoint, error) {
	f, err := t.current()
	if err != nil {
		return nil, err
	}
	sat, ok := f.sats[catalogNumber]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSatellite, catalogNumber)
	}
	return sgp4.Track(predictor{ctx: ctx, sat: sat}, site, pass.period, step)
}
