package sgp4

import (
	"fmt"
	"math"
)

// Resonance classifies deep-space orbits whose period is close to a harmonic of
// the Earth's rotation. Resonant orbits are advanced by a numerical integrator.
type Resonance int

const (
	ResonanceNone        Resonance = iota
	ResonanceSynchronous           // ~24h, geosynchronous
	ResonanceHalfDay               // ~12h with e >= 0.5, Molniya class
)

func (r Resonance) String() string {
	switch r {
	case ResonanceNone:
		return "none"
	case ResonanceSynchronous:
		return "synchronous"
	case ResonanceHalfDay:
		return "half-day"
	}
	return fmt.Sprintf("Resonance(%d)", int(r))
}

// classifyResonance uses the recovered mean motion in rad/min.
func classifyResonance(n, e float64) Resonance {
	switch {
	case n > 0.0034906585 && n < 0.0052359877:
		return ResonanceSynchronous
	case n >= 8.26e-3 && n <= 9.24e-3 && e >= 0.5:
		return ResonanceHalfDay
	}
	return ResonanceNone
}

// eccPoly is a cubic in eccentricity, c0 + c1 e + c2 e² + c3 e³.
type eccPoly [4]float64

func (p eccPoly) eval(e float64) float64 {
	eosq := e * e
	return p[0] + p[1]*e + p[2]*eosq + p[3]*e*eosq
}

// eccBand selects a polynomial by the upper bound of its eccentricity range.
type eccBand struct {
	upTo float64 // inclusive unless open is set
	open bool
	poly eccPoly
}

// eccTable is an ordered list of bands; the last band catches everything.
type eccTable []eccBand

func (t eccTable) eval(e float64) float64 {
	for _, b := range t[:len(t)-1] {
		if e < b.upTo || (!b.open && e == b.upTo) {
			return b.poly.eval(e)
		}
	}
	return t[len(t)-1].poly.eval(e)
}

// Geopotential resonance coefficient tables for 12h orbits, in the notation of
// Spacetrack Report #3 (Gxyz with the degree, order and eccentricity power).
var (
	g211Table = eccTable{
		{upTo: 0.65, poly: eccPoly{3.616, -13.247, 16.290}},
		{poly: eccPoly{-72.099, 331.819, -508.738, 266.724}},
	}
	g310Table = eccTable{
		{upTo: 0.65, poly: eccPoly{-19.302, 117.390, -228.419, 156.591}},
		{poly: eccPoly{-346.844, 1582.851, -2415.925, 1246.113}},
	}
	g322Table = eccTable{
		{upTo: 0.65, poly: eccPoly{-18.9068, 109.7927, -214.6334, 146.5816}},
		{poly: eccPoly{-342.585, 1554.908, -2366.899, 1215.972}},
	}
	g410Table = eccTable{
		{upTo: 0.65, poly: eccPoly{-41.122, 242.694, -471.094, 313.953}},
		{poly: eccPoly{-1052.797, 4758.686, -7193.992, 3651.957}},
	}
	g422Table = eccTable{
		{upTo: 0.65, poly: eccPoly{-146.407, 841.880, -1629.014, 1083.435}},
		{poly: eccPoly{-3581.69, 16178.11, -24462.77, 12422.52}},
	}
	g520Table = eccTable{
		{upTo: 0.65, poly: eccPoly{-532.114, 3017.977, -5740.032, 3708.276}},
		{upTo: 0.715, poly: eccPoly{1464.74, -4664.75, 3763.64}},
		{poly: eccPoly{-5149.66, 29936.92, -54087.36, 31324.56}},
	}
	g533Table = eccTable{
		{upTo: 0.7, open: true, poly: eccPoly{-919.2277, 4988.61, -9064.77, 5542.21}},
		{poly: eccPoly{-37995.78, 161616.52, -229838.2, 109377.94}},
	}
	g521Table = eccTable{
		{upTo: 0.7, open: true, poly: eccPoly{-822.71072, 4568.6173, -8491.4146, 5337.524}},
		{poly: eccPoly{-51752.104, 218913.95, -309468.16, 146349.42}},
	}
	g532Table = eccTable{
		{upTo: 0.7, open: true, poly: eccPoly{-853.666, 4690.25, -8624.77, 5341.4}},
		{poly: eccPoly{-40023.88, 170470.89, -242699.48, 115605.82}},
	}
)

func g201(e float64) float64 { return -0.306 - (e-0.64)*0.440 }
func g211(e float64) float64 { return g211Table.eval(e) }
func g310(e float64) float64 { return g310Table.eval(e) }
func g322(e float64) float64 { return g322Table.eval(e) }
func g410(e float64) float64 { return g410Table.eval(e) }
func g422(e float64) float64 { return g422Table.eval(e) }
func g520(e float64) float64 { return g520Table.eval(e) }
func g533(e float64) float64 { return g533Table.eval(e) }
func g521(e float64) float64 { return g521Table.eval(e) }
func g532(e float64) float64 { return g532Table.eval(e) }

// Synchronous eccentricity functions.
func g200(eosq float64) float64 { return 1.0 + eosq*(-2.5+0.8125*eosq) }
func g300(eosq float64) float64 { return 1.0 + eosq*(-6.0+6.60937*eosq) }
func g310Sync(eosq float64) float64 {
	return 1.0 + 2.0*eosq
}

// resonanceTerms are the immutable constants of the resonance integrator.
type resonanceTerms struct {
	kind Resonance

	// Synchronous.
	del1, del2, del3 float64

	// Half-day.
	d2201, d2211 float64
	d3210, d3222 float64
	d4410, d4422 float64
	d5220, d5232 float64
	d5421, d5433 float64

	xlamo  float64 // mean longitude at epoch
	xfact  float64
	n0     float64 // recovered mean motion at epoch
	omega0 float64
	omgdot float64
	gsto   float64
}

// lunarSolarSecular are the secular rates from the lunar/solar init that the
// resonance setup needs.
type lunarSolarSecular struct {
	ssl, ssg, ssh float64
}

func newResonanceTerms(kind Resonance, me meanElements, rec RecoveredElements, cc *commonConstants, gsto float64, sec lunarSolarSecular) *resonanceTerms {
	r := &resonanceTerms{
		kind:   kind,
		n0:     rec.MeanMotion,
		omega0: me.omega,
		omgdot: cc.omgdot,
		gsto:   gsto,
	}

	xnq := rec.MeanMotion
	aqnv := 1.0 / rec.SemiMajorAxis
	var bfact float64

	switch kind {
	case ResonanceSynchronous:
		cosio1 := 1.0 + cc.cosio
		f220 := 0.75 * cosio1 * cosio1
		f311 := 0.9375*cc.sinio*cc.sinio*(1.0+3.0*cc.cosio) - 0.75*cosio1
		f330 := 1.875 * cosio1 * cosio1 * cosio1

		del1 := 3.0 * xnq * xnq * aqnv * aqnv
		r.del2 = 2.0 * del1 * f220 * g200(cc.eosq) * q22
		r.del3 = 3.0 * del1 * f330 * g300(cc.eosq) * q33 * aqnv
		r.del1 = del1 * f311 * g310Sync(cc.eosq) * q31 * aqnv

		r.xlamo = wrapTwoPi(me.m + me.raan + me.omega - gsto)
		bfact = cc.xmdot + (cc.omgdot + cc.xnodot) - thdt + sec.ssl + sec.ssg + sec.ssh

	case ResonanceHalfDay:
		e := me.ecc
		sini2 := cc.sinio * cc.sinio
		theta2 := cc.theta2

		f220 := 0.75 * (1.0 + 2.0*cc.cosio + theta2)
		f221 := 1.5 * sini2
		f321 := 1.875 * cc.sinio * (1.0 - 2.0*cc.cosio - 3.0*theta2)
		f322 := -1.875 * cc.sinio * (1.0 + 2.0*cc.cosio - 3.0*theta2)
		f441 := 35.0 * sini2 * f220
		f442 := 39.3750 * sini2 * sini2
		f522 := 9.84375 * cc.sinio * (sini2*(1.0-2.0*cc.cosio-5.0*theta2) +
			0.33333333*(-2.0+4.0*cc.cosio+6.0*theta2))
		f523 := cc.sinio * (4.92187512*sini2*(-2.0-4.0*cc.cosio+10.0*theta2) +
			6.56250012*(1.0+2.0*cc.cosio-3.0*theta2))
		f542 := 29.53125 * cc.sinio * (2.0 - 8.0*cc.cosio +
			theta2*(-12.0+8.0*cc.cosio+10.0*theta2))
		f543 := 29.53125 * cc.sinio * (-2.0 - 8.0*cc.cosio +
			theta2*(12.0+8.0*cc.cosio-10.0*theta2))

		temp1 := 3.0 * xnq * xnq * aqnv * aqnv
		temp := temp1 * root22
		r.d2201 = temp * f220 * g201(e)
		r.d2211 = temp * f221 * g211(e)
		temp1 *= aqnv
		temp = temp1 * root32
		r.d3210 = temp * f321 * g310(e)
		r.d3222 = temp * f322 * g322(e)
		temp1 *= aqnv
		temp = 2.0 * temp1 * root44
		r.d4410 = temp * f441 * g410(e)
		r.d4422 = temp * f442 * g422(e)
		temp1 *= aqnv
		temp = temp1 * root52
		r.d5220 = temp * f522 * g520(e)
		r.d5232 = temp * f523 * g532(e)
		temp = 2.0 * temp1 * root54
		r.d5421 = temp * f542 * g521(e)
		r.d5433 = temp * f543 * g533(e)

		r.xlamo = wrapTwoPi(me.m + me.raan + me.raan - gsto - gsto)
		bfact = cc.xmdot + cc.xnodot + cc.xnodot - thdt - thdt + sec.ssl + sec.ssh + sec.ssh
	}

	r.xfact = bfact - xnq
	return r
}

// dotTerms evaluates the first and second derivatives of the mean motion and
// the derivative of the mean longitude at an integrator state.
func (r *resonanceTerms) dotTerms(atime, xni, xli float64) (xndot, xnddt, xldot float64) {
	if r.kind == ResonanceSynchronous {
		xndot = r.del1*math.Sin(xli-fasx2) +
			r.del2*math.Sin(2.0*(xli-fasx4)) +
			r.del3*math.Sin(3.0*(xli-fasx6))
		xnddt = r.del1*math.Cos(xli-fasx2) +
			2.0*r.del2*math.Cos(2.0*(xli-fasx4)) +
			3.0*r.del3*math.Cos(3.0*(xli-fasx6))
	} else {
		xomi := r.omega0 + r.omgdot*atime
		x2omi := xomi + xomi
		x2li := xli + xli
		xndot = r.d2201*math.Sin(x2omi+xli-g22) + r.d2211*math.Sin(xli-g22) +
			r.d3210*math.Sin(xomi+xli-g32) + r.d3222*math.Sin(-xomi+xli-g32) +
			r.d4410*math.Sin(x2omi+x2li-g44) + r.d4422*math.Sin(x2li-g44) +
			r.d5220*math.Sin(xomi+xli-g52) + r.d5232*math.Sin(-xomi+xli-g52) +
			r.d5421*math.Sin(xomi+x2li-g54) + r.d5433*math.Sin(-xomi+x2li-g54)
		xnddt = r.d2201*math.Cos(x2omi+xli-g22) + r.d2211*math.Cos(xli-g22) +
			r.d3210*math.Cos(xomi+xli-g32) + r.d3222*math.Cos(-xomi+xli-g32) +
			r.d5220*math.Cos(xomi+xli-g52) + r.d5232*math.Cos(-xomi+xli-g52) +
			2.0*(r.d4410*math.Cos(x2omi+x2li-g44)+r.d4422*math.Cos(x2li-g44)+
				r.d5421*math.Cos(xomi+x2li-g54)+r.d5433*math.Cos(-xomi+x2li-g54))
	}
	xldot = xni + r.xfact
	xnddt *= xldot
	return xndot, xnddt, xldot
}

const (
	integratorStep  = 720.0                                 // minutes
	integratorStep2 = integratorStep * integratorStep / 2.0 // 259200
)

// anchor is the running state of the resonance integrator: the last time the
// integrator was advanced to and the mean motion and mean longitude there.
//
// It is the only mutable state of a propagator. It is not safe for concurrent
// use.
type anchor struct {
	atime float64 // minutes since epoch
	xni   float64
	xli   float64
}

func (a *anchor) reset(r *resonanceTerms) {
	a.atime = 0
	a.xni = r.n0
	a.xli = r.xlamo
}

// needsRestart reports whether a request at t must be integrated from epoch
// rather than from the current anchor: near epoch, on the other side of epoch,
// or closer to epoch than the anchor has already advanced.
func (a *anchor) needsRestart(t float64) bool {
	return math.Abs(t) < integratorStep ||
		t*a.atime <= 0.0 ||
		math.Abs(t) < math.Abs(a.atime)
}

// advanceTo moves the anchor in fixed steps until it is within one step of t,
// then applies a second order Taylor step for the remainder. It returns the
// mean motion and mean longitude at t. Only the fixed steps are stored.
func (a *anchor) advanceTo(r *resonanceTerms, t float64) (xn, xl float64) {
	if a.needsRestart(t) {
		a.reset(r)
	}

	delt := integratorStep
	if t < 0 {
		delt = -integratorStep
	}

	ft := t - a.atime
	for math.Abs(ft) >= integratorStep {
		xndot, xnddt, xldot := r.dotTerms(a.atime, a.xni, a.xli)
		a.xli += xldot*delt + xndot*integratorStep2
		a.xni += xndot*delt + xnddt*integratorStep2
		a.atime += delt
		ft = t - a.atime
	}

	xndot, xnddt, xldot := r.dotTerms(a.atime, a.xni, a.xli)
	xn = a.xni + xndot*ft + xnddt*ft*ft*0.5
	xl = a.xli + xldot*ft + xndot*ft*ft*0.5
	return xn, xl
}
