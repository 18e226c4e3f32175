package sgp4

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

// equatorialLEO crosses the zenith of every observer on the equator.
var equatorialLEO = ElementSet{
	Name:          "EQUATORIAL",
	CatalogNumber: 99002,
	Epoch:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	MeanMotion:    15.0,
	Eccentricity:  0.0001,
}

func TestObserveOverheadPasses(t *testing.T) {
	p := mustPropagator(t, equatorialLEO)
	site := GeodeticDegrees(0, 0, 0)
	start := equatorialLEO.Epoch
	end := start.Add(24 * time.Hour)

	periods, err := Observe(p, site, start, end, DefaultObserveOptions())
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if len(periods) != 14 {
		t.Fatalf("len(periods) = %d, want 14", len(periods))
	}

	for i, vp := range periods {
		checkPeriod(t, p, site, vp, i, 0)

		if el := vp.MaxElevation * rad2deg; math.Abs(el-90) > 0.01 {
			t.Errorf("Period %d: MaxElevation = %.5f, want 90 (±0.01)", i, el)
		}
		if d := vp.Duration(); d < 13*time.Minute || d > 14*time.Minute {
			t.Errorf("Period %d: Duration = %v, want 13-14 min", i, d)
		}
		if vp.Satellite != "EQUATORIAL" || vp.CatalogNumber != 99002 {
			t.Errorf("Period %d: satellite = (%q, %d)", i, vp.Satellite, vp.CatalogNumber)
		}
		if i > 0 && !periods[i-1].End.Before(vp.Start) {
			t.Errorf("Period %d starts at %v before the previous end %v", i, vp.Start, periods[i-1].End)
		}
		if vp.Start.Before(start) || vp.End.After(end) {
			t.Errorf("Period %d [%v, %v] outside the search window", i, vp.Start, vp.End)
		}
	}
}

// checkPeriod verifies that rise and set sit on the threshold and the peak
// lies within the period.
func checkPeriod(t *testing.T, p Predictor, site Geodetic, vp VisibilityPeriod, index int, minEl float64) {
	t.Helper()

	if !vp.Start.Before(vp.MaxElevationTime) || !vp.MaxElevationTime.Before(vp.End) {
		t.Errorf("Period %d: peak %v not inside [%v, %v]", index, vp.MaxElevationTime, vp.Start, vp.End)
	}
	if vp.MaxElevation < minEl || vp.MaxElevation > math.Pi/2 {
		t.Errorf("Period %d: MaxElevation = %.4f rad", index, vp.MaxElevation)
	}

	for _, edge := range []struct {
		name string
		at   time.Time
		az   float64
	}{{"rise", vp.Start, vp.StartAzimuth}, {"set", vp.End, vp.EndAzimuth}} {
		pred, err := p.PropagateAt(edge.at)
		if err != nil {
			t.Fatalf("Period %d: PropagateAt(%s): %v", index, edge.name, err)
		}
		la := site.LookAngle(pred.State)
		if la.Elevation < minEl || la.Elevation-minEl > 0.01*deg2rad {
			t.Errorf("Period %d: %s elevation = %.6f°, want %.6f° (+0.01)", index, edge.name, la.Elevation*rad2deg, minEl*rad2deg)
		}
		if math.Abs(la.Azimuth-edge.az) > 1e-9 {
			t.Errorf("Period %d: %s azimuth = %v, want %v", index, edge.name, edge.az, la.Azimuth)
		}
	}
}

func TestObserveMinElevation(t *testing.T) {
	p := mustPropagator(t, equatorialLEO)
	site := GeodeticDegrees(0, 0, 0)
	start := equatorialLEO.Epoch

	opts := DefaultObserveOptions()
	opts.MinElevation = 30 * deg2rad
	opts.ResolutionDigits = 2

	periods, err := Observe(p, site, start, start.Add(6*time.Hour), opts)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if len(periods) == 0 {
		t.Fatal("no periods above 30°")
	}
	for i, vp := range periods {
		checkPeriod(t, p, site, vp, i, opts.MinElevation)
		if d := vp.Duration(); d > 8*time.Minute {
			t.Errorf("Period %d: Duration = %v, want less than the horizon to horizon pass", i, d)
		}
	}
}

func TestObserveClipping(t *testing.T) {
	p := mustPropagator(t, equatorialLEO)
	site := GeodeticDegrees(0, 0, 0)
	dayStart := equatorialLEO.Epoch

	full, err := Observe(p, site, dayStart, dayStart.Add(3*time.Hour), DefaultObserveOptions())
	if err != nil || len(full) == 0 {
		t.Fatalf("Observe = %v, %v", full, err)
	}
	first := full[0]
	mid := first.Start.Add(5 * time.Minute)
	const slack = 5 * time.Millisecond

	near := func(a, b time.Time) bool {
		d := a.Sub(b)
		return d > -slack && d < slack
	}

	t.Run("Start walks back without clipping", func(t *testing.T) {
		got, err := Observe(p, site, mid, dayStart.Add(3*time.Hour), DefaultObserveOptions())
		if err != nil {
			t.Fatalf("Observe: %v", err)
		}
		if len(got) != len(full) {
			t.Fatalf("len = %d, want %d", len(got), len(full))
		}
		if !near(got[0].Start, first.Start) || !near(got[0].End, first.End) {
			t.Errorf("first period = [%v, %v], want [%v, %v]", got[0].Start, got[0].End, first.Start, first.End)
		}
	})

	t.Run("ClipStart", func(t *testing.T) {
		opts := DefaultObserveOptions()
		opts.ClipStart = true
		got, err := Observe(p, site, mid, dayStart.Add(3*time.Hour), opts)
		if err != nil {
			t.Fatalf("Observe: %v", err)
		}
		if !got[0].Start.Equal(mid) {
			t.Errorf("Start = %v, want %v", got[0].Start, mid)
		}
		if !near(got[0].End, first.End) {
			t.Errorf("End = %v, want %v", got[0].End, first.End)
		}
	})

	t.Run("End overruns without clipping", func(t *testing.T) {
		got, err := Observe(p, site, dayStart, mid, DefaultObserveOptions())
		if err != nil {
			t.Fatalf("Observe: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("len = %d, want 1", len(got))
		}
		if !near(got[0].End, first.End) {
			t.Errorf("End = %v, want %v", got[0].End, first.End)
		}
	})

	t.Run("ClipEnd", func(t *testing.T) {
		opts := DefaultObserveOptions()
		opts.ClipEnd = true
		got, err := Observe(p, site, dayStart, mid, opts)
		if err != nil {
			t.Fatalf("Observe: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("len = %d, want 1", len(got))
		}
		if !got[0].End.Equal(mid) {
			t.Errorf("End = %v, want %v", got[0].End, mid)
		}
		if got[0].MaxElevationTime.After(mid) {
			t.Errorf("MaxElevationTime %v after the clipped end %v", got[0].MaxElevationTime, mid)
		}
	})
}

func TestObserveAlwaysVisible(t *testing.T) {
	p := mustPropagator(t, geostationary)
	start := geostationary.Epoch
	end := start.Add(6 * time.Hour)

	pred, err := p.PropagateAt(start)
	if err != nil {
		t.Fatalf("PropagateAt: %v", err)
	}
	sub := pred.State.ToGeodetic()
	site := Geodetic{Latitude: sub.Latitude, Longitude: sub.Longitude}

	opts := DefaultObserveOptions()
	opts.Step = 10 * time.Minute

	periods, err := Observe(p, site, start, end, opts)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if len(periods) != 1 {
		t.Fatalf("len(periods) = %d, want 1", len(periods))
	}
	if want := start.Add(-24 * time.Hour); !periods[0].Start.Equal(want) {
		t.Errorf("Start = %v, want %v", periods[0].Start, want)
	}
	if want := end.Add(24 * time.Hour); !periods[0].End.Equal(want) {
		t.Errorf("End = %v, want %v", periods[0].End, want)
	}

	opts.ClipStart, opts.ClipEnd = true, true
	periods, err = Observe(p, site, start, end, opts)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if len(periods) != 1 || !periods[0].Start.Equal(start) || !periods[0].End.Equal(end) {
		t.Errorf("clipped periods = %+v, want one period [%v, %v]", periods, start, end)
	}
	if periods[0].MaxElevation < 80*deg2rad {
		t.Errorf("MaxElevation = %.2f°, want near zenith", periods[0].MaxElevation*rad2deg)
	}
}

func TestObserveNeverVisible(t *testing.T) {
	p := mustPropagator(t, equatorialLEO)
	site := GeodeticDegrees(70, 20, 0)
	start := equatorialLEO.Epoch

	periods, err := Observe(p, site, start, start.Add(12*time.Hour), DefaultObserveOptions())
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if len(periods) != 0 {
		t.Errorf("len(periods) = %d, want 0", len(periods))
	}
}

func TestObserveInvalidArguments(t *testing.T) {
	p := mustPropagator(t, equatorialLEO)
	site := GeodeticDegrees(0, 0, 0)
	start := equatorialLEO.Epoch
	end := start.Add(time.Hour)

	tests := []struct {
		name       string
		site       Geodetic
		start, end time.Time
		modify     func(*ObserveOptions)
		argument   string
	}{
		{"start equals end", site, start, start, nil, "start"},
		{"start after end", site, end, start, nil, "start"},
		{"zero step", site, start, end, func(o *ObserveOptions) { o.Step = 0 }, "step"},
		{"negative step", site, start, end, func(o *ObserveOptions) { o.Step = -time.Minute }, "step"},
		{"too many digits", site, start, end, func(o *ObserveOptions) { o.ResolutionDigits = MaxResolutionDigits + 1 }, "resolution digits"},
		{"negative digits", site, start, end, func(o *ObserveOptions) { o.ResolutionDigits = -1 }, "resolution digits"},
		{"min elevation above zenith", site, start, end, func(o *ObserveOptions) { o.MinElevation = 91 * deg2rad }, "min elevation"},
		{"NaN min elevation", site, start, end, func(o *ObserveOptions) { o.MinElevation = math.NaN() }, "min elevation"},
		{"latitude out of range", GeodeticDegrees(95, 0, 0), start, end, nil, "latitude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultObserveOptions()
			if tt.modify != nil {
				tt.modify(&opts)
			}
			_, err := Observe(p, tt.site, tt.start, tt.end, opts)
			var ae *InvalidArgumentError
			if !errors.As(err, &ae) {
				t.Fatalf("Observe() error = %v, want *InvalidArgumentError", err)
			}
			if ae.Name != tt.argument {
				t.Errorf("Name = %q, want %q", ae.Name, tt.argument)
			}
		})
	}
}

func TestObserveDecayed(t *testing.T) {
	p := mustPropagator(t, ElementSet{
		Name:         "decaying",
		Epoch:        equatorialLEO.Epoch,
		MeanMotion:   17.5,
		Eccentricity: 0.001,
		Inclination:  51.6,
		Bstar:        0.01,
	})
	_, err := Observe(p, GeodeticDegrees(0, 0, 0), equatorialLEO.Epoch, equatorialLEO.Epoch.Add(time.Hour), DefaultObserveOptions())
	var de *DecayedError
	if !errors.As(err, &de) {
		t.Fatalf("Observe() error = %v, want *DecayedError", err)
	}
}

func TestObserveResolution(t *testing.T) {
	tests := []struct {
		digits int
		want   time.Duration
	}{
		{0, time.Second},
		{3, time.Millisecond},
		{6, time.Microsecond},
		{MaxResolutionDigits, 100 * time.Nanosecond},
	}
	for _, tt := range tests {
		if got := (ObserveOptions{ResolutionDigits: tt.digits}).Resolution(); got != tt.want {
			t.Errorf("Resolution(%d) = %v, want %v", tt.digits, got, tt.want)
		}
	}
}

func TestObserveCoarseResolution(t *testing.T) {
	p := mustPropagator(t, equatorialLEO)
	site := GeodeticDegrees(0, 0, 0)
	start := equatorialLEO.Epoch

	opts := DefaultObserveOptions()
	opts.ResolutionDigits = 0
	periods, err := Observe(p, site, start, start.Add(2*time.Hour), opts)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	fine, err := Observe(p, site, start, start.Add(2*time.Hour), DefaultObserveOptions())
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if len(periods) != len(fine) {
		t.Fatalf("len = %d, want %d", len(periods), len(fine))
	}
	for i := range periods {
		if d := periods[i].Start.Sub(fine[i].Start); d < -time.Second || d > time.Second {
			t.Errorf("Period %d: Start = %v, want within 1s of %v", i, periods[i].Start, fine[i].Start)
		}
	}
}

func TestTrack(t *testing.T) {
	p := mustPropagator(t, equatorialLEO)
	site := GeodeticDegrees(0, 0, 0)
	start := equatorialLEO.Epoch

	periods, err := Observe(p, site, start, start.Add(2*time.Hour), DefaultObserveOptions())
	if err != nil || len(periods) == 0 {
		t.Fatalf("Observe = %v, %v", periods, err)
	}
	vp := periods[0]

	track, err := Track(p, site, vp, 30*time.Second)
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if n := len(track); n < int(vp.Duration()/(30*time.Second)) {
		t.Fatalf("len(track) = %d, too few samples for %v", n, vp.Duration())
	}
	if !track[0].Time.Equal(vp.Start) || !track[len(track)-1].Time.Equal(vp.End) {
		t.Errorf("track spans [%v, %v], want [%v, %v]", track[0].Time, track[len(track)-1].Time, vp.Start, vp.End)
	}

	sawPeak := false
	for i, tp := range track {
		if i > 0 && !tp.Time.After(track[i-1].Time) {
			t.Errorf("track[%d] at %v not after %v", i, tp.Time, track[i-1].Time)
		}
		if tp.Time.Equal(vp.MaxElevationTime) {
			sawPeak = true
			if math.Abs(tp.Angle.Elevation-vp.MaxElevation) > 1e-12 {
				t.Errorf("peak sample elevation = %v, want %v", tp.Angle.Elevation, vp.MaxElevation)
			}
		}
	}
	if !sawPeak {
		t.Errorf("track does not include the peak at %v", vp.MaxElevationTime)
	}

	if _, err := Track(p, site, vp, 0); err == nil {
		t.Error("Track(step=0) error = nil, want error")
	}

	svg := PolarSVG(vp, track)
	for _, want := range []string{"<svg", "</svg>", "AOS", "LOS", ">90°</text>", ">N</text>", ">W</text>"} {
		if !strings.Contains(svg, want) {
			t.Errorf("PolarSVG output does not contain %q", want)
		}
	}
	if got := strings.Count(svg, `stroke-width="3"`); got != len(track)-1 {
		t.Errorf("PolarSVG drew %d path segments, want %d", got, len(track)-1)
	}
	if svg != PolarSVG(vp, track) {
		t.Error("PolarSVG output is not deterministic")
	}

	if empty := PolarSVG(vp, track[:1]); !strings.Contains(empty, "Not enough data points") {
		t.Errorf("PolarSVG with one point = %q", empty)
	}
}
