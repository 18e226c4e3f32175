package sgp4

import "math"

// RecoveredElements are derived once from the Brouwer mean elements when a
// propagator is constructed and are immutable thereafter.
type RecoveredElements struct {
	MeanMotion    float64 // recovered (un-Kozai'd) mean motion, rad/min
	SemiMajorAxis float64 // recovered semi-major axis, earth radii
	Perigee       float64 // perigee height above the equatorial radius, km
	Apogee        float64 // apogee height above the equatorial radius, km
	Period        float64 // minutes
}

// DeepSpace reports whether the period selects the deep-space model.
func (r RecoveredElements) DeepSpace() bool {
	return r.Period >= deepSpacePeriod
}

// recoverElements recovers the original mean motion and semi-major axis from
// the Kozai mean motion with a single algebraic refinement pass.
func recoverElements(me meanElements) RecoveredElements {
	a1 := math.Pow(xke/me.n, twoThirds)
	cosio := math.Cos(me.incl)
	theta2 := cosio * cosio
	x3thm1 := 3.0*theta2 - 1.0
	eosq := me.ecc * me.ecc
	betao2 := 1.0 - eosq
	betao := math.Sqrt(betao2)

	temp := (1.5 * ck2) * x3thm1 / (betao * betao2)
	del1 := temp / (a1 * a1)
	a0 := a1 * (1.0 - del1*(1.0/3.0+del1*(1.0+del1*134.0/81.0)))
	del0 := temp / (a0 * a0)

	n := me.n / (1.0 + del0)
	a := a0 / (1.0 - del0)

	return RecoveredElements{
		MeanMotion:    n,
		SemiMajorAxis: a,
		Perigee:       (a*(1.0-me.ecc) - ae) * xkmper,
		Apogee:        (a*(1.0+me.ecc) - ae) * xkmper,
		Period:        twoPi / n,
	}
}

// commonConstants are populated for every propagator regardless of branch.
type commonConstants struct {
	cosio, sinio float64
	theta2       float64
	x3thm1       float64
	x1mth2       float64
	x7thm1       float64
	eosq         float64
	betao        float64
	betao2       float64

	xlcof, aycof float64

	c1     float64
	c4     float64
	xmdot  float64
	omgdot float64
	xnodot float64
	xnodcf float64
	t2cof  float64

	// Drag setup terms reused by the near-earth constants.
	s4    float64
	tsi   float64
	eta   float64
	coef  float64
	coef1 float64
}

func newCommonConstants(me meanElements, rec RecoveredElements) commonConstants {
	var cc commonConstants

	cc.cosio = math.Cos(me.incl)
	cc.sinio = math.Sin(me.incl)
	cc.theta2 = cc.cosio * cc.cosio
	cc.x3thm1 = 3.0*cc.theta2 - 1.0
	cc.x1mth2 = 1.0 - cc.theta2
	cc.x7thm1 = 7.0*cc.theta2 - 1.0
	cc.eosq = me.ecc * me.ecc
	cc.betao2 = 1.0 - cc.eosq
	cc.betao = math.Sqrt(cc.betao2)
	cc.xlcof, cc.aycof = longPeriodCoefficients(cc.sinio, cc.cosio)

	a := rec.SemiMajorAxis
	n := rec.MeanMotion

	// For perigees below 156 km the atmosphere density parameters are adjusted.
	s4 := s
	qoms24 := qoms2t
	if rec.Perigee < adjustedPerigee {
		s4 = rec.Perigee - 78.0
		if rec.Perigee < floorPerigee {
			s4 = 20.0
		}
		qoms24 = math.Pow((120.0-s4)*ae/xkmper, 4.0)
		s4 = s4/xkmper + ae
	}

	pinvsq := 1.0 / (a * a * cc.betao2 * cc.betao2)
	tsi := 1.0 / (a - s4)
	eta := a * me.ecc * tsi
	etasq := eta * eta
	eeta := me.ecc * eta
	psisq := math.Abs(1.0 - etasq)
	coef := qoms24 * math.Pow(tsi, 4.0)
	coef1 := coef / math.Pow(psisq, 3.5)

	c2 := coef1 * n * (a*(1.0+1.5*etasq+eeta*(4.0+etasq)) +
		0.75*ck2*tsi/psisq*cc.x3thm1*(8.0+3.0*etasq*(8.0+etasq)))
	cc.c1 = me.bstar * c2
	cc.c4 = 2.0 * n * coef1 * a * cc.betao2 *
		(eta*(2.0+0.5*etasq) + me.ecc*(0.5+2.0*etasq) -
			2.0*ck2*tsi/(a*psisq)*
				(-3.0*cc.x3thm1*(1.0-2.0*eeta+etasq*(1.5-0.5*eeta))+
					0.75*cc.x1mth2*(2.0*etasq-eeta*(1.0+etasq))*math.Cos(2.0*me.omega)))

	theta4 := cc.theta2 * cc.theta2
	temp1 := 3.0 * ck2 * pinvsq * n
	temp2 := temp1 * ck2 * pinvsq
	temp3 := 1.25 * ck4 * pinvsq * pinvsq * n

	cc.xmdot = n + 0.5*temp1*cc.betao*cc.x3thm1 +
		0.0625*temp2*cc.betao*(13.0-78.0*cc.theta2+137.0*theta4)

	x1m5th := 1.0 - 5.0*cc.theta2
	cc.omgdot = -0.5*temp1*x1m5th +
		0.0625*temp2*(7.0-114.0*cc.theta2+395.0*theta4) +
		temp3*(3.0-36.0*cc.theta2+49.0*theta4)

	xhdot1 := -temp1 * cc.cosio
	cc.xnodot = xhdot1 + (0.5*temp2*(4.0-19.0*cc.theta2)+
		2.0*temp3*(3.0-7.0*cc.theta2))*cc.cosio
	cc.xnodcf = 3.5 * cc.betao2 * xhdot1 * cc.c1
	cc.t2cof = 1.5 * cc.c1

	cc.s4 = s4
	cc.tsi = tsi
	cc.eta = eta
	cc.coef = coef
	cc.coef1 = coef1
	return cc
}

// longPeriodCoefficients returns the xlcof and aycof long-period terms for an
// inclination. The xlcof divisor is guarded for retrograde equatorial orbits.
func longPeriodCoefficients(sinio, cosio float64) (xlcof, aycof float64) {
	if math.Abs(cosio+1.0) > 1.5e-12 {
		xlcof = 0.125 * a3ovk2 * sinio * (3.0 + 5.0*cosio) / (1.0 + cosio)
	} else {
		xlcof = 0.125 * a3ovk2 * sinio * (3.0 + 5.0*cosio) / 1.5e-12
	}
	aycof = 0.25 * a3ovk2 * sinio
	return xlcof, aycof
}
