package sgp4

import (
	"math"
	"time"
)

const (
	geodeticMaxIterations = 10
	geodeticTolerance     = 1.0e-10
)

// Geodetic is a position on the oblate Earth of the propagation model.
type Geodetic struct {
	Latitude  float64 // radians, north positive
	Longitude float64 // radians, east positive
	Altitude  float64 // km above the ellipsoid
}

// GeodeticDegrees builds a Geodetic from degrees and an altitude in km.
func GeodeticDegrees(lat, lon, alt float64) Geodetic {
	return Geodetic{Latitude: lat * deg2rad, Longitude: lon * deg2rad, Altitude: alt}
}

// Degrees returns latitude and longitude in degrees.
func (g Geodetic) Degrees() (lat, lon float64) {
	return g.Latitude * rad2deg, g.Longitude * rad2deg
}

// Validate rejects latitudes outside [-π/2, π/2].
func (g Geodetic) Validate() error {
	if math.IsNaN(g.Latitude) || math.Abs(g.Latitude) > math.Pi/2 {
		return &InvalidArgumentError{Name: "latitude", Message: "must be within [-90, 90] degrees"}
	}
	return nil
}

// ToGeodetic converts an inertial position to latitude, longitude and
// altitude. Latitude is refined iteratively for the Earth's oblateness.
func (sv StateVector) ToGeodetic() Geodetic {
	p := sv.Position
	theta := math.Atan2(p.Y, p.X)
	lon := wrapNegPosPi(theta - GreenwichSiderealTime(sv.Time))

	r := math.Sqrt(p.X*p.X + p.Y*p.Y)
	e2 := flattening * (2.0 - flattening)

	lat := math.Atan2(p.Z, r)
	var phi, c float64
	for i := 0; i < geodeticMaxIterations; i++ {
		phi = lat
		sinphi := math.Sin(phi)
		c = 1.0 / math.Sqrt(1.0-e2*sinphi*sinphi)
		lat = math.Atan2(p.Z+xkmper*c*e2*sinphi, r)
		if math.Abs(lat-phi) < geodeticTolerance {
			break
		}
	}

	return Geodetic{
		Latitude:  lat,
		Longitude: lon,
		Altitude:  r/math.Cos(lat) - xkmper*c,
	}
}

// ToECI returns the inertial state of a point fixed to the rotating Earth.
func (g Geodetic) ToECI(t time.Time) StateVector {
	theta := LocalSiderealTime(t, g.Longitude)
	sinlat, coslat := math.Sincos(g.Latitude)
	c := 1.0 / math.Sqrt(1.0+flattening*(flattening-2.0)*sinlat*sinlat)
	sq := c * (1.0 - flattening) * (1.0 - flattening)
	achcp := (xkmper*c + g.Altitude) * coslat

	sintheta, costheta := math.Sincos(theta)
	pos := Vector{
		X: achcp * costheta,
		Y: achcp * sintheta,
		Z: (xkmper*sq + g.Altitude) * sinlat,
	}
	return StateVector{
		Time:     t,
		Position: pos,
		Velocity: Vector{X: -earthRotation * pos.Y, Y: earthRotation * pos.X},
	}
}

// TopocentricLookAngle is the position of a target relative to an observer in
// the local horizon frame.
type TopocentricLookAngle struct {
	Azimuth   float64 // radians clockwise from north, [0, 2π)
	Elevation float64 // radians above the horizon
	Range     float64 // km
	RangeRate float64 // km/s, positive when receding
}

// Degrees returns azimuth and elevation in degrees.
func (la TopocentricLookAngle) Degrees() (az, el float64) {
	return la.Azimuth * rad2deg, la.Elevation * rad2deg
}

// LookAngle computes the look angle from an observer state to a target state.
// Both states must share the same time.
func LookAngle(observer, target StateVector) (TopocentricLookAngle, error) {
	if !observer.Time.Equal(target.Time) {
		return TopocentricLookAngle{}, &InvalidArgumentError{
			Name:    "target",
			Message: "observer and target states must share the same time",
		}
	}
	return lookAngle(observer.ToGeodetic(), observer, target), nil
}

// LookAngle computes the look angle from this ground location to a target.
func (g Geodetic) LookAngle(target StateVector) TopocentricLookAngle {
	return lookAngle(g, g.ToECI(target.Time), target)
}

// lookAngle rotates the observer to target range vector into the
// south/east/zenith frame.
func lookAngle(geo Geodetic, observer, target StateVector) TopocentricLookAngle {
	rng := target.Position.Sub(observer.Position)
	rate := target.Velocity.Sub(observer.Velocity)
	dist := rng.Magnitude()

	theta := LocalSiderealTime(target.Time, geo.Longitude)
	sinlat, coslat := math.Sincos(geo.Latitude)
	sintheta, costheta := math.Sincos(theta)

	topS := sinlat*costheta*rng.X + sinlat*sintheta*rng.Y - coslat*rng.Z
	topE := -sintheta*rng.X + costheta*rng.Y
	topZ := coslat*costheta*rng.X + coslat*sintheta*rng.Y + sinlat*rng.Z

	la := TopocentricLookAngle{
		Azimuth: wrapTwoPi(math.Atan2(topE, -topS)),
		Range:   dist,
	}
	if dist > 0 {
		la.Elevation = math.Asin(math.Max(-1, math.Min(1, topZ/dist)))
		la.RangeRate = rng.Dot(rate) / dist
	}
	return la
}
