package sgp4

import (
	"math"
)

// lyddaneInclination is the inclination below which the lunar/solar periodics
// are applied to sin/cos of the node rather than the node itself.
const lyddaneInclination = 0.2

// shdqInclination disables the node periodic for near equatorial orbits.
const shdqInclination = 5.2359877e-2

// periodicCoefficients are the long-period lunar or solar periodic amplitudes.
type periodicCoefficients struct {
	e2, e3        float64
	i2, i3        float64
	l2, l3, l4    float64
	gh2, gh3, gh4 float64
	h2, h3        float64

	// Mean anomaly at epoch, mean motion and eccentricity of the perturbing body.
	zmo, zn, ze float64
}

// thirdBodyTerms is the output of one solar or lunar initialization pass.
type thirdBodyTerms struct {
	se, si, sl, sgh, shdq float64
	periodic              periodicCoefficients
}

// thirdBodyGeometry is the orientation of the perturbing body's orbit.
type thirdBodyGeometry struct {
	zcosg, zsing float64
	zcosi, zsini float64
	zcosh, zsinh float64
	cc, zn, ze   float64
}

// deepSpace holds the constants of the SDP4 branch, used for periods of 225
// minutes or more.
type deepSpace struct {
	gsto float64

	// Lunar/solar secular rates per minute.
	sse, ssi, ssl, ssg, ssh float64

	solar, lunar periodicCoefficients

	res    *resonanceTerms // nil unless resonant
	anchor anchor
}

func newDeepSpace(me meanElements, rec RecoveredElements, cc *commonConstants) *deepSpace {
	ds := &deepSpace{gsto: GreenwichSiderealTime(me.epoch)}

	sinq, cosq := math.Sincos(me.raan)

	// Lunar and solar orbit geometry at epoch, days since 1900 Jan 0.5.
	jday := julianDate(me.epoch) - 2415020.0
	xnodce := wrapTwoPi(4.5236020 - 9.2422029e-4*jday)
	stem, ctem := math.Sincos(xnodce)
	zcosil := 0.91375164 - 0.03568096*ctem
	zsinil := math.Sqrt(1.0 - zcosil*zcosil)
	zsinhl := 0.089683511 * stem / zsinil
	zcoshl := math.Sqrt(1.0 - zsinhl*zsinhl)
	c := 4.7199672 + 0.22997150*jday
	gam := 5.8351514 + 0.0019443680*jday
	zmol := wrapTwoPi(c - gam)
	zx := 0.39785416 * stem / zsinil
	zy := zcoshl*ctem + 0.91744867*zsinhl*stem
	zx = gam + math.Atan2(zx, zy) - xnodce
	zsingl, zcosgl := math.Sincos(zx)
	zmos := wrapTwoPi(6.2565837 + 0.017201977*jday)

	solar := thirdBodyGeometry{
		zcosg: zcosgs, zsing: zsings,
		zcosi: zcosis, zsini: zsinis,
		zcosh: cosq, zsinh: sinq,
		cc: c1ss, zn: zns, ze: zes,
	}
	lunar := thirdBodyGeometry{
		zcosg: zcosgl, zsing: zsingl,
		zcosi: zcosil, zsini: zsinil,
		zcosh: zcoshl*cosq + zsinhl*sinq,
		zsinh: sinq*zcoshl - cosq*zsinhl,
		cc: c1l, zn: znl, ze: zel,
	}

	st := thirdBody(me, rec, cc, solar)
	lt := thirdBody(me, rec, cc, lunar)
	st.periodic.zmo = zmos
	lt.periodic.zmo = zmol
	ds.solar = st.periodic
	ds.lunar = lt.periodic

	ds.sse = st.se + lt.se
	ds.ssi = st.si + lt.si
	ds.ssl = st.sl + lt.sl
	ds.ssg = (st.sgh - cc.cosio*st.shdq) + (lt.sgh - cc.cosio*lt.shdq)
	ds.ssh = st.shdq + lt.shdq

	if kind := classifyResonance(rec.MeanMotion, me.ecc); kind != ResonanceNone {
		ds.res = newResonanceTerms(kind, me, rec, cc, ds.gsto,
			lunarSolarSecular{ssl: ds.ssl, ssg: ds.ssg, ssh: ds.ssh})
		ds.anchor.reset(ds.res)
	}
	return ds
}

// thirdBody computes the secular rates and periodic amplitudes contributed by
// one perturbing body.
func thirdBody(me meanElements, rec RecoveredElements, cc *commonConstants, g thirdBodyGeometry) thirdBodyTerms {
	sing, cosg := math.Sincos(me.omega)
	eosq := cc.eosq

	a1 := g.zcosg*g.zcosh + g.zsing*g.zcosi*g.zsinh
	a3 := -g.zsing*g.zcosh + g.zcosg*g.zcosi*g.zsinh
	a7 := -g.zcosg*g.zsinh + g.zsing*g.zcosi*g.zcosh
	a8 := g.zsing * g.zsini
	a9 := g.zsing*g.zsinh + g.zcosg*g.zcosi*g.zcosh
	a10 := g.zcosg * g.zsini
	a2 := cc.cosio*a7 + cc.sinio*a8
	a4 := cc.cosio*a9 + cc.sinio*a10
	a5 := -cc.sinio*a7 + cc.cosio*a8
	a6 := -cc.sinio*a9 + cc.cosio*a10

	x1 := a1*cosg + a2*sing
	x2 := a3*cosg + a4*sing
	x3 := -a1*sing + a2*cosg
	x4 := -a3*sing + a4*cosg
	x5 := a5 * sing
	x6 := a6 * sing
	x7 := a5 * cosg
	x8 := a6 * cosg

	z31 := 12.0*x1*x1 - 3.0*x3*x3
	z32 := 24.0*x1*x2 - 6.0*x3*x4
	z33 := 12.0*x2*x2 - 3.0*x4*x4
	z1 := 3.0*(a1*a1+a2*a2) + z31*eosq
	z2 := 6.0*(a1*a3+a2*a4) + z32*eosq
	z3 := 3.0*(a3*a3+a4*a4) + z33*eosq
	z11 := -6.0*a1*a5 + eosq*(-24.0*x1*x7-6.0*x3*x5)
	z12 := -6.0*(a1*a6+a3*a5) + eosq*(-24.0*(x2*x7+x1*x8)-6.0*(x3*x6+x4*x5))
	z13 := -6.0*a3*a6 + eosq*(-24.0*x2*x8-6.0*x4*x6)
	z21 := 6.0*a2*a5 + eosq*(24.0*x1*x5-6.0*x3*x7)
	z22 := 6.0*(a4*a5+a2*a6) + eosq*(24.0*(x2*x5+x1*x6)-6.0*(x4*x7+x3*x8))
	z23 := 6.0*a4*a6 + eosq*(24.0*x2*x6-6.0*x4*x8)
	z1 = z1 + z1 + cc.betao2*z31
	z2 = z2 + z2 + cc.betao2*z32
	z3 = z3 + z3 + cc.betao2*z33

	s3 := g.cc / rec.MeanMotion
	s2 := -0.5 * s3 / cc.betao
	s4 := s3 * cc.betao
	s1 := -15.0 * me.ecc * s4
	s5 := x1*x3 + x2*x4
	s6 := x2*x3 + x1*x4
	s7 := x2*x4 - x1*x3

	var t thirdBodyTerms
	t.se = s1 * g.zn * s5
	t.si = s2 * g.zn * (z11 + z13)
	t.sl = -g.zn * s3 * (z1 + z3 - 14.0 - 6.0*eosq)
	t.sgh = s4 * g.zn * (z31 + z33 - 6.0)
	if me.incl >= shdqInclination && me.incl <= math.Pi-shdqInclination {
		t.shdq = -g.zn * s2 * (z21 + z23) / cc.sinio
	}

	t.periodic = periodicCoefficients{
		e2:  2.0 * s1 * s6,
		e3:  2.0 * s1 * s7,
		i2:  2.0 * s2 * z12,
		i3:  2.0 * s2 * (z13 - z11),
		l2:  -2.0 * s3 * z2,
		l3:  -2.0 * s3 * (z3 - z1),
		l4:  -2.0 * s3 * (-21.0 - 9.0*eosq) * g.ze,
		gh2: 2.0 * s4 * z32,
		gh3: 2.0 * s4 * (z33 - z31),
		gh4: -18.0 * s4 * g.ze,
		h2:  -2.0 * s2 * z22,
		h3:  -2.0 * s2 * (z23 - z21),
		zn:  g.zn,
		ze:  g.ze,
	}
	return t
}

// at evaluates the body's long-period contributions at tsince.
func (c periodicCoefficients) at(tsince float64) (pe, pinc, pl, pgh, ph float64) {
	zm := c.zmo + c.zn*tsince
	zf := zm + 2.0*c.ze*math.Sin(zm)
	sinzf, coszf := math.Sincos(zf)
	f2 := 0.5*sinzf*sinzf - 0.25
	f3 := -0.5 * sinzf * coszf

	pe = c.e2*f2 + c.e3*f3
	pinc = c.i2*f2 + c.i3*f3
	pl = c.l2*f2 + c.l3*f3 + c.l4*sinzf
	pgh = c.gh2*f2 + c.gh3*f3 + c.gh4*sinzf
	ph = c.h2*f2 + c.h3*f3
	return pe, pinc, pl, pgh, ph
}

// meanState is the set of elements the deep-space secular and periodic passes
// operate on.
type meanState struct {
	xll    float64 // mean anomaly, later mean longitude
	omgasm float64
	xnodes float64
	em     float64
	xinc   float64
	xn     float64
}

// secular adds the linear lunar/solar drift and, for resonant orbits, replaces
// the mean motion and mean longitude with the integrator output.
func (ds *deepSpace) secular(tsince float64, s *meanState) {
	s.xll += ds.ssl * tsince
	s.omgasm += ds.ssg * tsince
	s.xnodes += ds.ssh * tsince
	s.em += ds.sse * tsince
	s.xinc += ds.ssi * tsince

	if ds.res == nil {
		return
	}

	xn, xl := ds.anchor.advanceTo(ds.res, tsince)
	s.xn = xn
	theta := ds.gsto + tsince*thdt - s.xnodes
	if ds.res.kind == ResonanceSynchronous {
		s.xll = xl + theta - s.omgasm
	} else {
		s.xll = xl + theta + theta
	}
}

// periodics adds the lunar/solar long-period terms. Below 0.2 rad inclination
// the node is reconstructed from its perturbed sine and cosine.
func (ds *deepSpace) periodics(tsince float64, s *meanState) {
	spe, spinc, spl, spgh, sph := ds.solar.at(tsince)
	lpe, lpinc, lpl, lpgh, lph := ds.lunar.at(tsince)
	pe := spe + lpe
	pinc := spinc + lpinc
	pl := spl + lpl
	pgh := spgh + lpgh
	ph := sph + lph

	s.xinc += pinc
	s.em += pe
	sinis, cosis := math.Sincos(s.xinc)

	if s.xinc >= lyddaneInclination {
		tmp := ph / sinis
		s.omgasm += pgh - cosis*tmp
		s.xnodes += tmp
		s.xll += pl
		return
	}

	sinok, cosok := math.Sincos(s.xnodes)
	alfdp := sinis*sinok + (ph*cosok + pinc*cosis*sinok)
	betdp := sinis*cosok + (-ph*sinok + pinc*cosis*cosok)

	s.xnodes = wrapTwoPi(s.xnodes)
	xls := s.xll + s.omgasm + cosis*s.xnodes
	xls += pl + pgh - pinc*s.xnodes*sinis

	old := s.xnodes
	s.xnodes = math.Atan2(alfdp, betdp)
	if s.xnodes < 0.0 {
		s.xnodes += twoPi
	}
	// atan2 only recovers the node modulo 2π; keep it on the same branch as
	// the unperturbed node.
	if math.Abs(old-s.xnodes) > math.Pi {
		if s.xnodes < old {
			s.xnodes += twoPi
		} else {
			s.xnodes -= twoPi
		}
	}

	s.xll += pl
	s.omgasm = xls - s.xll - cosis*s.xnodes
}

// update applies the common secular terms, the lunar/solar secular and
// resonance terms and then the lunar/solar periodics.
func (ds *deepSpace) update(p *Propagator, tsince float64) (perturbedOrbit, inclinationTerms, error) {
	me, cc := p.mean, &p.common

	tsq := tsince * tsince
	s := meanState{
		xll:    me.m + cc.xmdot*tsince,
		omgasm: me.omega + cc.omgdot*tsince,
		xnodes: me.raan + cc.xnodot*tsince + cc.xnodcf*tsq,
		em:     me.ecc,
		xinc:   me.incl,
		xn:     p.recovered.MeanMotion,
	}
	tempa := 1.0 - cc.c1*tsince
	tempe := me.bstar * cc.c4 * tsince
	templ := cc.t2cof * tsq

	ds.secular(tsince, &s)
	if s.xn <= 0.0 {
		return perturbedOrbit{}, inclinationTerms{}, &PropagationError{
			Tsince: tsince, Reason: ReasonMeanMotionNonPositive, Value: s.xn,
		}
	}

	a := math.Pow(xke/s.xn, twoThirds) * tempa * tempa
	e, err := clampEccentricity(tsince, s.em-tempe)
	if err != nil {
		return perturbedOrbit{}, inclinationTerms{}, err
	}
	s.em = e
	s.xll += p.recovered.MeanMotion * templ

	ds.periodics(tsince, &s)

	if s.xinc < 0.0 {
		s.xinc = -s.xinc
		s.xnodes += math.Pi
		s.omgasm -= math.Pi
	}

	e, err = clampEccentricity(tsince, s.em)
	if err != nil {
		return perturbedOrbit{}, inclinationTerms{}, err
	}

	orbit := perturbedOrbit{
		a:     a,
		e:     e,
		omega: s.omgasm,
		xl:    s.xll + s.omgasm + s.xnodes,
		xnode: s.xnodes,
		xincl: s.xinc,
	}
	return orbit, newInclinationTerms(s.xinc), nil
}
