package sgp4

import (
	"errors"
	"math"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

func TestToGeodetic(t *testing.T) {
	// ISS TLE
	issTLE := `1 25544U 98067A   25138.37048074  .00007749  00000+0  14567-3 0  9994
2 25544  51.6369  94.7823 0002558 120.7586  15.7840 15.49587957510533`

	/*
	   Epoch:  2025-05-18 08:53:29.535936 UTC
	   Lat:   32.740, Lon: -125.293, Alt:    418.256
	*/
	tle, err := ParseTLE(issTLE)
	if err != nil {
		t.Fatalf("Failed to parse TLE: %v", err)
	}
	p, err := tle.NewPropagator()
	if err != nil {
		t.Fatalf("Failed to build propagator: %v", err)
	}
	pred, err := p.Propagate(0)
	if err != nil {
		t.Fatalf("Failed to get position: %v", err)
	}

	geo := pred.State.ToGeodetic()
	lat, lng := geo.Degrees()

	const tolerance = 0.005
	tests := []struct {
		name      string
		got, want float64
	}{
		{"Latitude", lat, 32.740},
		{"Longitude", lng, -125.293},
		{"Altitude", geo.Altitude, 418.256},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.got-tt.want) > tolerance {
				t.Errorf("%s = %.3f, want %.3f (±%.3f)", tt.name, tt.got, tt.want, tolerance)
			}
		})
	}
}

func TestGeodeticRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		name          string
		lat, lon, alt float64
	}{
		{"Null island", 0, 0, 0},
		{"Pacific northwest", 45, -120, 1.5},
		{"Cape Town", -33.9, 18.4, 0.1},
		{"LEO altitude", 60, 170, 400},
		{"GEO altitude", -75, -179, 35786},
		{"Near pole", 89, 10, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := GeodeticDegrees(tt.lat, tt.lon, tt.alt)
			out := in.ToECI(at).ToGeodetic()

			if math.Abs(out.Latitude-in.Latitude) > 1e-9 {
				t.Errorf("Latitude = %v, want %v (±1e-9)", out.Latitude, in.Latitude)
			}
			if math.Abs(wrapNegPosPi(out.Longitude-in.Longitude)) > 1e-9 {
				t.Errorf("Longitude = %v, want %v (±1e-9)", out.Longitude, in.Longitude)
			}
			if math.Abs(out.Altitude-in.Altitude) > 1e-6 {
				t.Errorf("Altitude = %v, want %v (±1e-6)", out.Altitude, in.Altitude)
			}
		})
	}
}

func TestGroundStationVelocity(t *testing.T) {
	at := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)
	sv := GeodeticDegrees(0, 0, 0).ToECI(at)

	// 2π R / sidereal day
	want := 0.4651
	if got := sv.Velocity.Magnitude(); math.Abs(got-want) > 1e-3 {
		t.Errorf("|v| = %v km/s, want %v (±1e-3)", got, want)
	}
	if sv.Velocity.Z != 0 || math.Abs(sv.Position.Dot(sv.Velocity)) > 1e-9 {
		t.Errorf("velocity %+v is not perpendicular to the rotation axis and position", sv.Velocity)
	}
	if !sv.Time.Equal(at) {
		t.Errorf("Time = %v, want %v", sv.Time, at)
	}
}

func TestGreenwichSiderealTime(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want float64 // degrees
	}{
		// Meeus, Astronomical Algorithms, examples 12.a and 12.b.
		{"1987-04-10 00:00", time.Date(1987, 4, 10, 0, 0, 0, 0, time.UTC), (13 + 10.0/60 + 46.3668/3600) * 15},
		{"1987-04-10 19:21", time.Date(1987, 4, 10, 19, 21, 0, 0, time.UTC), (8 + 34.0/60 + 57.0896/3600) * 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GreenwichSiderealTime(tt.at)
			if diff := wrapNegPosPi(got - tt.want*deg2rad); math.Abs(diff) > 1e-7 {
				t.Errorf("GreenwichSiderealTime = %v rad, want %v (±1e-7)", got, tt.want*deg2rad)
			}
		})
	}
}

func TestGreenwichSiderealTimeAgainstGoSatellite(t *testing.T) {
	start := time.Date(1999, 12, 31, 23, 0, 0, 0, time.UTC)
	for i := 0; i < 50; i++ {
		at := start.Add(time.Duration(i) * 173 * time.Hour).Add(time.Duration(i*37) * time.Second)
		want := satellite.GSTimeFromDate(at.Year(), int(at.Month()), at.Day(), at.Hour(), at.Minute(), at.Second())
		got := GreenwichSiderealTime(at)
		if got < 0 || got >= 2*math.Pi {
			t.Fatalf("GreenwichSiderealTime(%v) = %v, want [0, 2π)", at, got)
		}
		if diff := wrapNegPosPi(got - want); math.Abs(diff) > 1e-7 {
			t.Errorf("GreenwichSiderealTime(%v) = %v, want %v (±1e-7)", at, got, want)
		}
	}
}

func TestLocalSiderealTime(t *testing.T) {
	at := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	gmst := GreenwichSiderealTime(at)
	lst := LocalSiderealTime(at, -90*deg2rad)
	if diff := wrapNegPosPi(lst - (gmst - math.Pi/2)); math.Abs(diff) > 1e-12 {
		t.Errorf("LocalSiderealTime = %v, want %v", lst, wrapTwoPi(gmst-math.Pi/2))
	}
	if lst < 0 || lst >= 2*math.Pi {
		t.Errorf("LocalSiderealTime = %v, want [0, 2π)", lst)
	}
}

func TestWrapTwoPi(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{-1e-17, 0},
		{-math.SmallestNonzeroFloat64, 0},
		{2 * math.Pi, 0},
		{-math.Pi / 2, 3 * math.Pi / 2},
		{5 * math.Pi, math.Pi},
	}
	for _, tt := range tests {
		got := wrapTwoPi(tt.in)
		if got < 0 || got >= 2*math.Pi {
			t.Errorf("wrapTwoPi(%v) = %v, want [0, 2π)", tt.in, got)
		}
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("wrapTwoPi(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := wrapNegPosPi(-math.Pi - 1e-17); got < -math.Pi || got >= math.Pi {
		t.Errorf("wrapNegPosPi(-π-ε) = %v, want [-π, π)", got)
	}
}

// offsetTarget places a target at the observer position plus a vector given
// in the observer's north/east/up frame.
func offsetTarget(site Geodetic, at time.Time, north, east, up float64) StateVector {
	obs := site.ToECI(at)
	theta := LocalSiderealTime(at, site.Longitude)
	sinlat, coslat := math.Sincos(site.Latitude)
	sintheta, costheta := math.Sincos(theta)

	n := Vector{X: -sinlat * costheta, Y: -sinlat * sintheta, Z: coslat}
	e := Vector{X: -sintheta, Y: costheta}
	u := Vector{X: coslat * costheta, Y: coslat * sintheta, Z: sinlat}

	obs.Position = Vector{
		X: obs.Position.X + north*n.X + east*e.X + up*u.X,
		Y: obs.Position.Y + north*n.Y + east*e.Y + up*u.Y,
		Z: obs.Position.Z + north*n.Z + east*e.Z + up*u.Z,
	}
	return obs
}

func TestLookAngleDirections(t *testing.T) {
	at := time.Date(2024, 9, 1, 3, 4, 5, 0, time.UTC)
	site := GeodeticDegrees(30.6715, -104.0227, 2.07)

	tests := []struct {
		name            string
		north, east, up float64
		az, el          float64 // degrees
		rng             float64
	}{
		{"Zenith", 0, 0, 500, -1, 90, 500},
		{"North horizon", 1000, 0, 0, 0, 0, 1000},
		{"East horizon", 0, 1000, 0, 90, 0, 1000},
		{"South horizon", -1000, 0, 0, 180, 0, 1000},
		{"West horizon", 0, -1000, 0, 270, 0, 1000},
		{"North-east at 45", 500, 500, math.Sqrt(500000), 45, 45, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			la := site.LookAngle(offsetTarget(site, at, tt.north, tt.east, tt.up))
			az, el := la.Degrees()

			// asin loses precision next to the zenith.
			if math.Abs(el-tt.el) > 1e-4 {
				t.Errorf("Elevation = %.8f, want %.8f (±1e-4)", el, tt.el)
			}
			if tt.az >= 0 && math.Abs(wrapNegPosPi((az-tt.az)*deg2rad)) > 1e-6 {
				t.Errorf("Azimuth = %.8f, want %.8f (±1e-6)", az, tt.az)
			}
			if math.Abs(la.Range-tt.rng) > 1e-6 {
				t.Errorf("Range = %.8f, want %.8f (±1e-6)", la.Range, tt.rng)
			}
			if la.Azimuth < 0 || la.Azimuth >= 2*math.Pi {
				t.Errorf("Azimuth = %v, want [0, 2π)", la.Azimuth)
			}
		})
	}
}

func TestLookAngleRangeRate(t *testing.T) {
	at := time.Date(2024, 9, 1, 3, 4, 5, 0, time.UTC)
	site := GeodeticDegrees(-12, 40, 0)

	// A point fixed above the site co-rotates with it.
	fixed := GeodeticDegrees(-12, 40, 800).ToECI(at)
	if la := site.LookAngle(fixed); math.Abs(la.RangeRate) > 1e-9 {
		t.Errorf("RangeRate = %v, want 0", la.RangeRate)
	}

	receding := fixed
	receding.Velocity = Vector{
		X: fixed.Velocity.X + fixed.Position.X/fixed.Position.Magnitude(),
		Y: fixed.Velocity.Y + fixed.Position.Y/fixed.Position.Magnitude(),
		Z: fixed.Velocity.Z + fixed.Position.Z/fixed.Position.Magnitude(),
	}
	if la := site.LookAngle(receding); la.RangeRate <= 0 {
		t.Errorf("RangeRate = %v, want > 0 for a receding target", la.RangeRate)
	}
}

func TestLookAngleStates(t *testing.T) {
	at := time.Date(2024, 9, 1, 3, 4, 5, 0, time.UTC)
	site := GeodeticDegrees(51.5, -0.1, 0.05)
	target := offsetTarget(site, at, 300, -200, 400)

	got, err := LookAngle(site.ToECI(at), target)
	if err != nil {
		t.Fatalf("LookAngle: %v", err)
	}
	want := site.LookAngle(target)
	if math.Abs(got.Elevation-want.Elevation) > 1e-8 || math.Abs(got.Azimuth-want.Azimuth) > 1e-8 {
		t.Errorf("LookAngle(states) = %+v, want %+v", got, want)
	}

	_, err = LookAngle(site.ToECI(at), site.ToECI(at.Add(time.Second)))
	var ae *InvalidArgumentError
	if !errors.As(err, &ae) {
		t.Errorf("LookAngle with mismatched times error = %v, want *InvalidArgumentError", err)
	}
}

func TestGeodeticValidate(t *testing.T) {
	tests := []struct {
		name    string
		g       Geodetic
		wantErr bool
	}{
		{"Equator", GeodeticDegrees(0, 0, 0), false},
		{"North pole", Geodetic{Latitude: math.Pi / 2}, false},
		{"Past the pole", GeodeticDegrees(91, 0, 0), true},
		{"NaN", Geodetic{Latitude: math.NaN()}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.g.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGeodeticDegrees(t *testing.T) {
	g := GeodeticDegrees(30.6715, -104.0227, 2.07)
	lat, lon := g.Degrees()
	if math.Abs(lat-30.6715) > 1e-12 || math.Abs(lon+104.0227) > 1e-12 || g.Altitude != 2.07 {
		t.Errorf("Degrees() = (%v, %v), want (30.6715, -104.0227)", lat, lon)
	}
}
