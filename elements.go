package sgp4

import (
	"math"
	"time"
)

// ElementSet is the numeric content of a two-line element set or OMM record:
// Brouwer mean elements at epoch plus the B* drag term. It is read-only input
// to NewPropagator and is never mutated by the propagator.
type ElementSet struct {
	Name          string
	CatalogNumber int

	Epoch          time.Time // UTC
	MeanMotion     float64   // revolutions per day
	Eccentricity   float64
	Inclination    float64 // degrees
	RightAscension float64 // degrees
	ArgOfPerigee   float64 // degrees
	MeanAnomaly    float64 // degrees
	Bstar          float64 // 1/earth radii
}

// MeanMotionRadPerMin returns the mean motion in radians per minute.
func (es ElementSet) MeanMotionRadPerMin() float64 {
	return es.MeanMotion * twoPi / minutesPerDay
}

// IsGeostationary reports whether the elements describe a near circular,
// near equatorial orbit with a one sidereal day period.
func (es ElementSet) IsGeostationary() bool {
	const (
		meanMotionTol   = 0.05 // rev/day
		maxInclination  = 5.0  // degrees
		maxEccentricity = 0.05
	)
	return math.Abs(es.MeanMotion-omegaE) <= meanMotionTol &&
		es.Inclination <= maxInclination &&
		es.Eccentricity <= maxEccentricity
}

// meanElements are the epoch elements in propagator units.
type meanElements struct {
	epoch time.Time
	n     float64 // Kozai mean motion (rad/min)
	ecc   float64
	incl  float64 // rad
	raan  float64 // rad
	omega float64 // rad
	m     float64 // rad
	bstar float64
}

func (es ElementSet) mean() meanElements {
	return meanElements{
		epoch: es.Epoch.UTC(),
		n:     es.MeanMotionRadPerMin(),
		ecc:   es.Eccentricity,
		incl:  es.Inclination * deg2rad,
		raan:  es.RightAscension * deg2rad,
		omega: es.ArgOfPerigee * deg2rad,
		m:     es.MeanAnomaly * deg2rad,
		bstar: es.Bstar,
	}
}

// validate enforces the bounds the model is defined for.
func (me meanElements) validate() error {
	if me.ecc < 0 || me.ecc > 0.999 {
		return &InvalidOrbitError{Field: "eccentricity", Value: me.ecc, Limit: "[0, 0.999]"}
	}
	if me.incl < 0 || me.incl > math.Pi {
		return &InvalidOrbitError{Field: "inclination", Value: me.incl * rad2deg, Limit: "[0, 180] degrees"}
	}
	if !(me.n > 0) {
		return &InvalidOrbitError{Field: "mean motion", Value: me.n, Limit: "(0, inf) rad/min"}
	}
	return nil
}
