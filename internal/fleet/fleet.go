// Package fleet runs propagation and visibility searches over a whole
// catalog. Each satellite owns one propagator guarded by its own mutex, so
// different satellites run fully in parallel while calls on the same
// satellite are serialized.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/parzivail/sgp4"
	"github.com/parzivail/sgp4/internal/catalog"
	"github.com/parzivail/sgp4/internal/metrics"
)

// ErrUnknownSatellite is returned for catalog numbers not in the dataset.
var ErrUnknownSatellite = errors.New("unknown satellite")

// ErrNoCatalog is returned before any dataset has been loaded.
var ErrNoCatalog = errors.New("no catalog loaded")

type satellite struct {
	mu   sync.Mutex
	prop *sgp4.Propagator
}

func (s *satellite) propagateAt(t time.Time) (sgp4.Prediction, error) {
	s.mu.Lock()
	pred, err := s.prop.PropagateAt(t)
	s.mu.Unlock()

	outcome := "error"
	if err == nil {
		outcome = pred.Outcome.String()
	}
	metrics.RecordPropagation(s.prop.Model().String(), outcome)
	return pred, err
}

// fleet is the set of propagators built from one dataset.
type fleet struct {
	dataset *catalog.Dataset
	sats    map[int]*satellite
	order   []int
}

func newFleet(ds *catalog.Dataset, logger *slog.Logger) *fleet {
	f := &fleet{dataset: ds, sats: make(map[int]*satellite, ds.Len())}
	for _, es := range ds.Satellites {
		p, err := sgp4.NewPropagator(es)
		if err != nil {
			logger.Warn("skipping satellite", "norad_id", es.CatalogNumber, "name", es.Name, "error", err)
			continue
		}
		f.sats[es.CatalogNumber] = &satellite{prop: p}
		f.order = append(f.order, es.CatalogNumber)
	}
	return f
}

// Tracker serves positions and passes for the dataset currently held by a
// catalog store. Propagators are rebuilt when the store's dataset changes.
type Tracker struct {
	store   *catalog.Store
	workers int
	logger  *slog.Logger

	mu    sync.Mutex
	fleet *fleet
}

// NewTracker creates a Tracker. workers bounds the goroutines used by batch
// operations; zero means runtime.NumCPU().
func NewTracker(store *catalog.Store, workers int, logger *slog.Logger) *Tracker {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Tracker{store: store, workers: workers, logger: logger}
}

func (t *Tracker) current() (*fleet, error) {
	ds := t.store.Get()
	if ds == nil {
		return nil, ErrNoCatalog
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fleet == nil || t.fleet.dataset != ds {
		start := time.Now()
		t.fleet = newFleet(ds, t.logger)
		t.logger.Info("propagators rebuilt",
			"source", ds.Source,
			"count", len(t.fleet.order),
			"skipped", ds.Len()-len(t.fleet.order),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return t.fleet, nil
}

// Satellite describes one tracked propagator.
type Satellite struct {
	CatalogNumber int       `json:"catalog_number"`
	Name          string    `json:"name"`
	Epoch         time.Time `json:"epoch"`
	Model         string    `json:"model"`
	Resonance     string    `json:"resonance"`
	PeriodMinutes float64   `json:"period_minutes"`
	PerigeeKm     float64   `json:"perigee_km"`
	ApogeeKm      float64   `json:"apogee_km"`
	Geostationary bool      `json:"geostationary"`
}

// Satellites describes every tracked satellite in ascending catalog order.
// Element sets the model rejects are not tracked.
func (t *Tracker) Satellites() ([]Satellite, error) {
	f, err := t.current()
	if err != nil {
		return nil, err
	}
	out := make([]Satellite, 0, len(f.order))
	for _, n := range f.order {
		p := f.sats[n].prop
		rec := p.Recovered()
		out = append(out, Satellite{
			CatalogNumber: n,
			Name:          p.Name(),
			Epoch:         p.Epoch(),
			Model:         p.Model().String(),
			Resonance:     p.Resonance().String(),
			PeriodMinutes: rec.Period,
			PerigeeKm:     rec.Perigee,
			ApogeeKm:      rec.Apogee,
			Geostationary: p.Elements().IsGeostationary(),
		})
	}
	return out, nil
}

// Dataset returns the dataset the current propagators were built from.
func (t *Tracker) Dataset() (*catalog.Dataset, error) {
	f, err := t.current()
	if err != nil {
		return nil, err
	}
	return f.dataset, nil
}

// Position is the state of one satellite at one instant.
type Position struct {
	CatalogNumber int        `json:"catalog_number"`
	Name          string     `json:"name"`
	Time          time.Time  `json:"time"`
	Model         string     `json:"model"`
	PositionECI   [3]float64 `json:"position_eci_km"`
	VelocityECI   [3]float64 `json:"velocity_eci_km_s"`
	Latitude      float64    `json:"latitude"`  // degrees
	Longitude     float64    `json:"longitude"` // degrees
	Altitude      float64    `json:"altitude"`  // km
	Decayed       bool       `json:"decayed"`
}

func newPosition(p *sgp4.Propagator, pred sgp4.Prediction) Position {
	geo := pred.State.ToGeodetic()
	lat, lon := geo.Degrees()
	r, v := pred.State.Position, pred.State.Velocity
	return Position{
		CatalogNumber: p.CatalogNumber(),
		Name:          p.Name(),
		Time:          pred.State.Time,
		Model:         p.Model().String(),
		PositionECI:   [3]float64{r.X, r.Y, r.Z},
		VelocityECI:   [3]float64{v.X, v.Y, v.Z},
		Latitude:      lat,
		Longitude:     lon,
		Altitude:      geo.Altitude,
		Decayed:       pred.Decayed(),
	}
}

// Position propagates one satellite. A decayed prediction is returned with
// Decayed set rather than as an error.
func (t *Tracker) Position(catalogNumber int, at time.Time) (Position, error) {
	f, err := t.current()
	if err != nil {
		return Position{}, err
	}
	sat, ok := f.sats[catalogNumber]
	if !ok {
		return Position{}, fmt.Errorf("%w: %d", ErrUnknownSatellite, catalogNumber)
	}
	pred, err := sat.propagateAt(at)
	if err != nil {
		return Position{}, err
	}
	return newPosition(sat.prop, pred), nil
}

// Positions propagates every satellite to at using the worker pool. Failed
// satellites are logged and left out; the counts report both sides.
func (t *Tracker) Positions(ctx context.Context, at time.Time) ([]Position, int, int, error) {
	f, err := t.current()
	if err != nil {
		return nil, 0, 0, err
	}

	type result struct {
		pos     Position
		err     error
		catalog int
	}
	jobs := make(chan *satellite, t.workers*2)
	results := make(chan result, t.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < t.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sat := range jobs {
				pred, err := sat.propagateAt(at)
				r := result{err: err, catalog: sat.prop.CatalogNumber()}
				if err == nil {
					r.pos = newPosition(sat.prop, pred)
				}
				select {
				case results <- r:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, n := range f.order {
			select {
			case jobs <- f.sats[n]:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	positions := make([]Position, 0, len(f.order))
	var ok, failed int
	for r := range results {
		if r.err != nil {
			failed++
			t.logger.Warn("propagation failed", "norad_id", r.catalog, "error", r.err)
			continue
		}
		ok++
		positions = append(positions, r.pos)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].CatalogNumber < positions[j].CatalogNumber
	})
	if err := ctx.Err(); err != nil {
		return positions, ok, failed, err
	}
	return positions, ok, failed, nil
}
