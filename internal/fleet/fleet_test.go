package fleet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/parzivail/sgp4"
	"github.com/parzivail/sgp4/internal/catalog"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

var (
	equatorial = sgp4.ElementSet{
		Name:          "EQUATORIAL",
		CatalogNumber: 99002,
		Epoch:         epoch,
		MeanMotion:    15.0,
		Eccentricity:  0.0001,
	}
	geostationary = sgp4.ElementSet{
		Name:           "GEO",
		CatalogNumber:  99003,
		Epoch:          epoch,
		MeanMotion:     1.00273791,
		Eccentricity:   0.0001,
		Inclination:    0.05,
		RightAscension: 100,
	}
	decaying = sgp4.ElementSet{
		Name:          "DECAYING",
		CatalogNumber: 99004,
		Epoch:         epoch,
		MeanMotion:    17.5,
		Eccentricity:  0.001,
		Inclination:   51.6,
		Bstar:         0.01,
	}
	hyperbolic = sgp4.ElementSet{
		Name:          "INVALID",
		CatalogNumber: 99005,
		Epoch:         epoch,
		MeanMotion:    15,
		Eccentricity:  1.2,
	}
)

func newTestTracker(t *testing.T, entries ...sgp4.ElementSet) (*Tracker, *catalog.Store) {
	t.Helper()
	store := catalog.NewStore()
	store.Set(catalog.NewDataset("test", epoch, entries))
	return NewTracker(store, 4, testLogger), store
}

func TestNoCatalog(t *testing.T) {
	tr := NewTracker(catalog.NewStore(), 0, testLogger)
	if _, err := tr.Position(1, epoch); !errors.Is(err, ErrNoCatalog) {
		t.Errorf("Position() error = %v, want ErrNoCatalog", err)
	}
	if _, _, _, err := tr.Positions(context.Background(), epoch); !errors.Is(err, ErrNoCatalog) {
		t.Errorf("Positions() error = %v, want ErrNoCatalog", err)
	}
	if _, err := tr.Passes(context.Background(), PassRequest{}); !errors.Is(err, ErrNoCatalog) {
		t.Errorf("Passes() error = %v, want ErrNoCatalog", err)
	}
}

func TestSatellitesSkipsInvalidOrbits(t *testing.T) {
	tr, _ := newTestTracker(t, geostationary, hyperbolic, equatorial)
	got, err := tr.Satellites()
	if err != nil {
		t.Fatalf("Satellites: %v", err)
	}
	if len(got) != 2 || got[0].CatalogNumber != 99002 || got[1].CatalogNumber != 99003 {
		t.Fatalf("Satellites() = %+v, want 99002 and 99003", got)
	}
	if got[0].Model != "near-earth" || got[1].Model != "deep-space" || got[1].Resonance != "synchronous" {
		t.Errorf("Satellites() models = (%s, %s/%s)", got[0].Model, got[1].Model, got[1].Resonance)
	}
	if got[0].Geostationary || !got[1].Geostationary {
		t.Errorf("Satellites() geostationary = (%v, %v), want (false, true)", got[0].Geostationary, got[1].Geostationary)
	}
	if got[0].PeriodMinutes < 95 || got[0].PeriodMinutes > 97 || !got[0].Epoch.Equal(epoch) {
		t.Errorf("Satellites()[0] = %+v", got[0])
	}
}

func TestPosition(t *testing.T) {
	tr, _ := newTestTracker(t, equatorial, geostationary, decaying)
	at := epoch.Add(90 * time.Minute)

	p, err := sgp4.NewPropagator(geostationary)
	if err != nil {
		t.Fatal(err)
	}
	want, err := p.PropagateAt(at)
	if err != nil {
		t.Fatal(err)
	}

	got, err := tr.Position(99003, at)
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if got.PositionECI != [3]float64{want.State.Position.X, want.State.Position.Y, want.State.Position.Z} {
		t.Errorf("PositionECI = %v, want %+v", got.PositionECI, want.State.Position)
	}
	if got.Model != "deep-space" || got.Name != "GEO" || got.Decayed || !got.Time.Equal(at) {
		t.Errorf("Position() = %+v", got)
	}
	if math.Abs(got.Latitude) > 0.1 || math.Abs(got.Altitude-35786) > 50 {
		t.Errorf("GEO sub-satellite point = (%.3f, %.1f km)", got.Latitude, got.Altitude)
	}

	dec, err := tr.Position(99004, epoch)
	if err != nil {
		t.Fatalf("Position(decaying): %v", err)
	}
	if !dec.Decayed {
		t.Error("Position(decaying).Decayed = false, want true")
	}

	if _, err := tr.Position(12345, at); !errors.Is(err, ErrUnknownSatellite) {
		t.Errorf("Position(unknown) error = %v, want ErrUnknownSatellite", err)
	}
}

func TestPositions(t *testing.T) {
	tr, _ := newTestTracker(t, decaying, geostationary, equatorial)

	positions, ok, failed, err := tr.Positions(context.Background(), epoch.Add(20000*time.Minute))
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if ok != 2 || failed != 1 {
		t.Errorf("Positions() counts = (%d, %d), want (2, 1)", ok, failed)
	}
	if len(positions) != 2 || positions[0].CatalogNumber != 99002 || positions[1].CatalogNumber != 99003 {
		t.Errorf("Positions() = %+v, want 99002 and 99003 in order", positions)
	}
}

func TestPositionsCancelled(t *testing.T) {
	tr, _ := newTestTracker(t, equatorial, geostationary)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, _, err := tr.Positions(ctx, epoch); !errors.Is(err, context.Canceled) {
		t.Errorf("Positions() error = %v, want context.Canceled", err)
	}
}

func TestTrackerFollowsStore(t *testing.T) {
	tr, store := newTestTracker(t, equatorial)
	if _, err := tr.Position(99003, epoch); !errors.Is(err, ErrUnknownSatellite) {
		t.Fatalf("Position() error = %v, want ErrUnknownSatellite", err)
	}
	store.Set(catalog.NewDataset("update", epoch, []sgp4.ElementSet{equatorial, geostationary}))
	if _, err := tr.Position(99003, epoch); err != nil {
		t.Errorf("Position() after store update: %v", err)
	}
}

func TestPasses(t *testing.T) {
	tr, _ := newTestTracker(t, equatorial, geostationary, decaying)
	req := PassRequest{
		Site:           sgp4.GeodeticDegrees(0, 0, 0),
		Start:          epoch,
		End:            epoch.Add(24 * time.Hour),
		Options:        sgp4.DefaultObserveOptions(),
		CatalogNumbers: []int{99002, 42, 99004},
	}

	results, err := tr.Passes(context.Background(), req)
	if err != nil {
		t.Fatalf("Passes: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}

	eq := results[0]
	if eq.CatalogNumber != 99002 || eq.Error != "" || len(eq.Passes) != 14 {
		t.Fatalf("results[0] = (%d, %q, %d passes), want (99002, \"\", 14)", eq.CatalogNumber, eq.Error, len(eq.Passes))
	}
	for i, p := range eq.Passes {
		if math.Abs(p.MaxElevation-90) > 0.01 {
			t.Errorf("pass %d: MaxElevation = %.4f, want 90", i, p.MaxElevation)
		}
		if p.Period().MaxElevation*180/math.Pi != p.MaxElevation {
			t.Errorf("pass %d: Period() does not match", i)
		}
		if p.DurationSeconds < 13*60 || p.DurationSeconds > 14*60 {
			t.Errorf("pass %d: DurationSeconds = %v", i, p.DurationSeconds)
		}
	}

	if results[1].CatalogNumber != 42 || !errors.Is(results[1].Err, ErrUnknownSatellite) {
		t.Errorf("results[1] = %+v, want unknown satellite", results[1])
	}
	var de *sgp4.DecayedError
	if !errors.As(results[2].Err, &de) || !strings.Contains(results[2].Error, "decayed") {
		t.Errorf("results[2] = (%v, %q), want *sgp4.DecayedError", results[2].Err, results[2].Error)
	}
}

func TestPassesInvalidRequest(t *testing.T) {
	tr, _ := newTestTracker(t, equatorial)
	opts := sgp4.DefaultObserveOptions()
	opts.ResolutionDigits = 8

	_, err := tr.Passes(context.Background(), PassRequest{
		Site:    sgp4.GeodeticDegrees(0, 0, 0),
		Start:   epoch,
		End:     epoch.Add(time.Hour),
		Options: opts,
	})
	var ae *sgp4.InvalidArgumentError
	if !errors.As(err, &ae) {
		t.Errorf("Passes() error = %v, want *sgp4.InvalidArgumentError", err)
	}
}

func TestPassesCancelled(t *testing.T) {
	tr, _ := newTestTracker(t, equatorial, geostationary)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := tr.Passes(ctx, PassRequest{
		Site:    sgp4.GeodeticDegrees(0, 0, 0),
		Start:   epoch,
		End:     epoch.Add(24 * time.Hour),
		Options: sgp4.DefaultObserveOptions(),
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Passes() error = %v, want context.Canceled", err)
	}
	for _, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("satellite %d: Err = %v, want context.Canceled", r.CatalogNumber, r.Err)
		}
	}
}

// Concurrent searches on the same satellite share one propagator; the
// per-satellite lock must keep the results identical.
func TestConcurrentSameSatellite(t *testing.T) {
	tr, _ := newTestTracker(t, geostationary)
	req := PassRequest{
		Site:    sgp4.GeodeticDegrees(0, 100, 0),
		Start:   epoch,
		End:     epoch.Add(48 * time.Hour),
		Options: sgp4.DefaultObserveOptions(),
	}

	const n = 8
	results := make([][]SatellitePasses, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := tr.Passes(context.Background(), req)
			if err != nil {
				t.Errorf("Passes: %v", err)
			}
			results[i] = r
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if len(results[i]) != 1 || len(results[i][0].Passes) != len(results[0][0].Passes) {
			t.Fatalf("run %d differs from run 0", i)
		}
		for j := range results[i][0].Passes {
			if !results[i][0].Passes[j].Start.Equal(results[0][0].Passes[j].Start) {
				t.Errorf("run %d pass %d start = %v, want %v", i, j, results[i][0].Passes[j].Start, results[0][0].Passes[j].Start)
			}
		}
	}
}

func TestTrack(t *testing.T) {
	tr, _ := newTestTracker(t, equatorial)
	site := sgp4.GeodeticDegrees(0, 0, 0)
	results, err := tr.Passes(context.Background(), PassRequest{
		Site:    site,
		Start:   epoch,
		End:     epoch.Add(3 * time.Hour),
		Options: sgp4.DefaultObserveOptions(),
	})
	if err != nil || len(results) != 1 || len(results[0].Passes) == 0 {
		t.Fatalf("Passes() = %+v, %v", results, err)
	}
	pass := results[0].Passes[0]

	points, err := tr.Track(context.Background(), 99002, site, pass, 30*time.Second)
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if len(points) < 20 || !points[0].Time.Equal(pass.Start) || !points[len(points)-1].Time.Equal(pass.End) {
		t.Errorf("Track() returned %d points from %v to %v", len(points), points[0].Time, points[len(points)-1].Time)
	}

	if _, err := tr.Track(context.Background(), 1, site, pass, time.Second); !errors.Is(err, ErrUnknownSatellite) {
		t.Errorf("Track(unknown) error = %v, want ErrUnknownSatellite", err)
	}
}
