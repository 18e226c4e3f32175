package sgp4

import (
	"math"
)

const (
	keplerMaxIterations = 10
	keplerTolerance     = 1.0e-12
)

// keplerSolution is the eccentric longitude solved from the modified Kepler
// equation capu = E - (axn sinE - ayn cosE), together with the trig terms
// computed at the last evaluation.
type keplerSolution struct {
	epw            float64
	sinepw, cosepw float64
	ecose, esine   float64
	f              float64 // residual at the last evaluation
	iterations     int
}

func (k keplerSolution) converged() bool {
	return math.Abs(k.f) < keplerTolerance
}

// solveKepler runs at most keplerMaxIterations Newton-Raphson steps. The first
// step is clamped to 1.25|e|; later steps use a second-order correction.
func solveKepler(capu, axn, ayn float64) keplerSolution {
	maxStep := 1.25 * math.Abs(math.Sqrt(axn*axn+ayn*ayn))

	k := keplerSolution{epw: capu}
	for k.iterations < keplerMaxIterations {
		k.sinepw, k.cosepw = math.Sincos(k.epw)
		k.ecose = axn*k.cosepw + ayn*k.sinepw
		k.esine = axn*k.sinepw - ayn*k.cosepw
		k.f = capu - k.epw + k.esine
		if math.Abs(k.f) < keplerTolerance {
			break
		}

		fdot := 1.0 - k.ecose
		delta := k.f / fdot
		if k.iterations == 0 {
			if delta > maxStep {
				delta = maxStep
			} else if delta < -maxStep {
				delta = -maxStep
			}
		} else {
			delta = k.f / (fdot + 0.5*k.esine*delta)
		}
		k.epw += delta
		k.iterations++
	}
	return k
}

// perturbedOrbit is the output of either branch's secular/periodic update:
// the mean elements at the requested time, ready for final assembly.
type perturbedOrbit struct {
	a     float64 // semi-major axis, earth radii
	e     float64
	omega float64 // argument of perigee
	xl    float64 // mean longitude
	xnode float64 // right ascension of ascending node
	xincl float64
}

// inclinationTerms are the inclination dependent factors used by the short
// period corrections. The near-earth branch uses the epoch inclination, the
// deep-space branch recomputes them from the perturbed inclination.
type inclinationTerms struct {
	cosio, sinio   float64
	x3thm1, x1mth2 float64
	x7thm1         float64
	xlcof, aycof   float64
}

func newInclinationTerms(xincl float64) inclinationTerms {
	sinio, cosio := math.Sincos(xincl)
	theta2 := cosio * cosio
	xlcof, aycof := longPeriodCoefficients(sinio, cosio)
	return inclinationTerms{
		cosio:  cosio,
		sinio:  sinio,
		x3thm1: 3.0*theta2 - 1.0,
		x1mth2: 1.0 - theta2,
		x7thm1: 7.0*theta2 - 1.0,
		xlcof:  xlcof,
		aycof:  aycof,
	}
}

// clampEccentricity keeps the eccentricity inside the range the final
// assembly is defined for.
func clampEccentricity(tsince, e float64) (float64, error) {
	switch {
	case e <= -0.001:
		return 0, &PropagationError{Tsince: tsince, Reason: ReasonEccentricityOutOfRange, Value: e}
	case e < 1.0e-6:
		return 1.0e-6, nil
	case e > 1.0-1.0e-6:
		return 1.0 - 1.0e-6, nil
	}
	return e, nil
}

// finalState applies the long-period terms, solves Kepler's equation, adds the
// J2 short-period corrections and rotates the result into the inertial frame.
func (p *Propagator) finalState(tsince float64, o perturbedOrbit, it inclinationTerms) (Prediction, error) {
	beta2 := 1.0 - o.e*o.e
	xn := xke / math.Pow(o.a, 1.5)

	// Long period periodics.
	axn := o.e * math.Cos(o.omega)
	temp11 := 1.0 / (o.a * beta2)
	xll := temp11 * it.xlcof * axn
	aynl := temp11 * it.aycof
	xlt := o.xl + xll
	ayn := o.e*math.Sin(o.omega) + aynl

	elsq := axn*axn + ayn*ayn
	if elsq >= 1.0 {
		return Prediction{}, &PropagationError{Tsince: tsince, Reason: ReasonPerturbedEccSqTooHigh, Value: elsq}
	}

	k := solveKepler(math.Mod(xlt-o.xnode, twoPi), axn, ayn)

	// Short period preliminary quantities.
	temp21 := math.Max(1.0-elsq, 0.0)
	pl := o.a * temp21
	if pl < 0.0 {
		return Prediction{}, &PropagationError{Tsince: tsince, Reason: ReasonSemiLatusRectumNegative, Value: pl}
	}

	r := o.a * (1.0 - k.ecose)
	temp31 := 1.0 / r
	rdot := xke * math.Sqrt(o.a) * k.esine * temp31
	rfdot := xke * math.Sqrt(pl) * temp31
	temp32 := o.a * temp31
	betal := math.Sqrt(temp21)
	temp33 := 1.0 / (1.0 + betal)
	cosu := temp32 * (k.cosepw - axn + ayn*k.esine*temp33)
	sinu := temp32 * (k.sinepw - ayn - axn*k.esine*temp33)
	u := math.Atan2(sinu, cosu)
	sin2u := 2.0 * sinu * cosu
	cos2u := 2.0*cosu*cosu - 1.0

	// Short period perturbations.
	temp41 := 1.0 / pl
	temp42 := ck2 * temp41
	temp43 := temp42 * temp41

	rk := r*(1.0-1.5*temp43*betal*it.x3thm1) + 0.5*temp42*it.x1mth2*cos2u
	uk := u - 0.25*temp43*it.x7thm1*sin2u
	xnodek := o.xnode + 1.5*temp43*it.cosio*sin2u
	xinck := o.xincl + 1.5*temp43*it.cosio*it.sinio*cos2u
	rdotk := rdot - xn*temp42*it.x1mth2*sin2u
	rfdotk := rfdot + xn*temp42*(it.x1mth2*cos2u+1.5*it.x3thm1)

	// Orientation vectors.
	sinuk, cosuk := math.Sincos(uk)
	sinik, cosik := math.Sincos(xinck)
	sinnok, cosnok := math.Sincos(xnodek)
	xmx := -sinnok * cosik
	xmy := cosnok * cosik
	ux := xmx*sinuk + cosnok*cosuk
	uy := xmy*sinuk + sinnok*cosuk
	uz := sinik * sinuk
	vx := xmx*cosuk - cosnok*sinuk
	vy := xmy*cosuk - sinnok*sinuk
	vz := sinik * cosuk

	// Earth radii and earth radii per minute to km and km/s.
	vFactor := xkmper / 60.0
	state := StateVector{
		Time:     p.epochPlus(tsince),
		Position: Vector{X: rk * ux * xkmper, Y: rk * uy * xkmper, Z: rk * uz * xkmper},
		Velocity: Vector{
			X: (rdotk*ux + rfdotk*vx) * vFactor,
			Y: (rdotk*uy + rfdotk*vy) * vFactor,
			Z: (rdotk*uz + rfdotk*vz) * vFactor,
		},
	}

	pred := Prediction{Tsince: tsince, State: state, Radius: rk}
	if rk < 1.0 {
		pred.Outcome = OutcomeDecayed
	}
	return pred, nil
}
