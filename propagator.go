package sgp4

import (
	"fmt"
	"math"
	"time"
)

// Model identifies which perturbation branch a propagator was built with.
type Model int

const (
	ModelNearEarth       Model = iota // SGP4, period < 225 minutes
	ModelNearEarthSimple              // SGP4 without the higher order drag terms, perigee < 220 km
	ModelDeepSpace                    // SDP4, period >= 225 minutes
)

func (m Model) String() string {
	switch m {
	case ModelNearEarth:
		return "near-earth"
	case ModelNearEarthSimple:
		return "near-earth-simple"
	case ModelDeepSpace:
		return "deep-space"
	}
	return fmt.Sprintf("Model(%d)", int(m))
}

// Outcome classifies a successful prediction.
type Outcome int

const (
	OutcomeNominal Outcome = iota
	// OutcomeDecayed means the computed radius is below one earth radius. It is
	// an expected end state for low orbits, not a failure of the model.
	OutcomeDecayed
)

func (o Outcome) String() string {
	if o == OutcomeDecayed {
		return "decayed"
	}
	return "nominal"
}

// Prediction is the result of a single propagation call.
type Prediction struct {
	Tsince  float64 // minutes since epoch
	State   StateVector
	Radius  float64 // earth radii
	Outcome Outcome
}

// Decayed reports whether the satellite was below the Earth's surface.
func (p Prediction) Decayed() bool {
	return p.Outcome == OutcomeDecayed
}

// Err returns a *DecayedError for decayed predictions and nil otherwise.
func (p Prediction) Err() error {
	if p.Outcome == OutcomeDecayed {
		return &DecayedError{Tsince: p.Tsince, Radius: p.Radius, State: p.State}
	}
	return nil
}

// perturbationModel is implemented by the near-earth and deep-space branches.
// Exactly one is selected at construction and kept for the propagator's lifetime.
type perturbationModel interface {
	update(p *Propagator, tsince float64) (perturbedOrbit, inclinationTerms, error)
}

// Propagator predicts the state of one satellite from its element set.
//
// A Propagator is not safe for concurrent use: deep-space resonant orbits keep
// a numerical integrator anchor that is advanced by every call. Use one
// propagator per goroutine or serialize access.
type Propagator struct {
	name      string
	catalog   int
	elements  ElementSet
	mean      meanElements
	recovered RecoveredElements
	common    commonConstants
	model     perturbationModel
}

// NewPropagator validates an element set, recovers the original mean motion and
// semi-major axis and precomputes the constants of the selected branch.
func NewPropagator(es ElementSet) (*Propagator, error) {
	me := es.mean()
	if err := me.validate(); err != nil {
		return nil, err
	}

	rec := recoverElements(me)
	p := &Propagator{
		name:      es.Name,
		catalog:   es.CatalogNumber,
		elements:  es,
		mean:      me,
		recovered: rec,
	}
	p.common = newCommonConstants(me, rec)

	if rec.DeepSpace() {
		p.model = newDeepSpace(me, rec, &p.common)
	} else {
		p.model = newNearEarth(me, rec, &p.common)
	}
	return p, nil
}

// Name returns the satellite name from the element set, if any.
func (p *Propagator) Name() string { return p.name }

// CatalogNumber returns the catalog number from the element set.
func (p *Propagator) CatalogNumber() int { return p.catalog }

// Elements returns the element set the propagator was built from.
func (p *Propagator) Elements() ElementSet { return p.elements }

// Epoch returns the element set epoch in UTC.
func (p *Propagator) Epoch() time.Time { return p.mean.epoch }

// Recovered returns the elements derived at construction.
func (p *Propagator) Recovered() RecoveredElements { return p.recovered }

// Model returns the branch selected at construction.
func (p *Propagator) Model() Model {
	switch m := p.model.(type) {
	case *deepSpace:
		return ModelDeepSpace
	case *nearEarth:
		if m.simple {
			return ModelNearEarthSimple
		}
	}
	return ModelNearEarth
}

// Resonance returns the deep-space resonance class, or ResonanceNone for
// near-earth orbits.
func (p *Propagator) Resonance() Resonance {
	if ds, ok := p.model.(*deepSpace); ok && ds.res != nil {
		return ds.res.kind
	}
	return ResonanceNone
}

// Propagate predicts the state tsince minutes after epoch.
func (p *Propagator) Propagate(tsince float64) (Prediction, error) {
	orbit, it, err := p.model.update(p, tsince)
	if err != nil {
		return Prediction{}, err
	}
	return p.finalState(tsince, orbit, it)
}

// PropagateAt predicts the state at an absolute time.
func (p *Propagator) PropagateAt(t time.Time) (Prediction, error) {
	return p.Propagate(p.minutesSinceEpoch(t))
}

func (p *Propagator) minutesSinceEpoch(t time.Time) float64 {
	return float64(t.Sub(p.mean.epoch)) / float64(time.Minute)
}

func (p *Propagator) epochPlus(tsince float64) time.Time {
	return p.mean.epoch.Add(time.Duration(math.Round(tsince * float64(time.Minute))))
}
