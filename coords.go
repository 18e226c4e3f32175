package sgp4

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// j2000 is the Julian Date of the J2000.0 epoch.
const j2000 = 2451545.0

// Vector is a cartesian 3-vector.
type Vector struct {
	X, Y, Z float64
}

func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

func (v Vector) Dot(o Vector) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Magnitude returns the euclidean norm.
func (v Vector) Magnitude() float64 {
	return math.Sqrt(v.Dot(v))
}

// StateVector is a position (km) and velocity (km/s) in the true equator mean
// equinox inertial frame at an instant.
type StateVector struct {
	Time     time.Time
	Position Vector
	Velocity Vector
}

// julianDate converts a time to a Julian Date.
func julianDate(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// GreenwichSiderealTime returns the Greenwich mean sidereal time in radians
// using the IAU-82 model.
func GreenwichSiderealTime(t time.Time) float64 {
	ut := (julianDate(t) - j2000) / 36525.0

	// Seconds of time; 876600h = 3155760000 s.
	sec := 67310.54841 +
		(876600.0*3600.0+8640184.812866)*ut +
		0.093104*ut*ut -
		6.2e-6*ut*ut*ut

	// 240 seconds of time per degree.
	return wrapTwoPi(sec / 240.0 * deg2rad)
}

// LocalSiderealTime returns the mean sidereal time at an east longitude in
// radians.
func LocalSiderealTime(t time.Time, lon float64) float64 {
	return wrapTwoPi(GreenwichSiderealTime(t) + lon)
}

// wrapTwoPi wraps an angle into [0, 2π).
func wrapTwoPi(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	// A tiny negative input rounds up to exactly 2π.
	if a >= twoPi {
		a = 0
	}
	return a
}

// wrapNegPosPi wraps an angle into [-π, π).
func wrapNegPosPi(a float64) float64 {
	return wrapTwoPi(a+math.Pi) - math.Pi
}
