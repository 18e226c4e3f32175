package sgp4

import (
	"math"
)

// nearEarth holds the constants of the SGP4 branch, used for periods under
// 225 minutes.
type nearEarth struct {
	// simple drops the cubic and quartic drag terms and the long-period
	// argument of perigee and mean anomaly correction (perigee < 220 km).
	simple bool

	c5     float64
	omgcof float64
	xmcof  float64
	delmo  float64
	sinmo  float64

	d2, d3, d4          float64
	t3cof, t4cof, t5cof float64
}

func newNearEarth(me meanElements, rec RecoveredElements, cc *commonConstants) *nearEarth {
	ne := &nearEarth{simple: rec.Perigee < simplePerigee}

	a := rec.SemiMajorAxis
	etasq := cc.eta * cc.eta
	eeta := me.ecc * cc.eta

	var c3 float64
	if me.ecc > 1.0e-4 {
		c3 = cc.coef * cc.tsi * a3ovk2 * rec.MeanMotion * ae * cc.sinio / me.ecc
		ne.xmcof = -twoThirds * cc.coef * me.bstar * ae / eeta
	}
	ne.c5 = 2.0 * cc.coef1 * a * cc.betao2 * (1.0 + 2.75*(etasq+eeta) + eeta*etasq)
	ne.omgcof = me.bstar * c3 * math.Cos(me.omega)
	ne.delmo = math.Pow(1.0+cc.eta*math.Cos(me.m), 3.0)
	ne.sinmo = math.Sin(me.m)

	if !ne.simple {
		c1sq := cc.c1 * cc.c1
		ne.d2 = 4.0 * a * cc.tsi * c1sq
		temp := ne.d2 * cc.tsi * cc.c1 / 3.0
		ne.d3 = (17.0*a + cc.s4) * temp
		ne.d4 = 0.5 * temp * a * cc.tsi * (221.0*a + 31.0*cc.s4) * cc.c1
		ne.t3cof = ne.d2 + 2.0*c1sq
		ne.t4cof = 0.25 * (3.0*ne.d3 + cc.c1*(12.0*ne.d2+10.0*c1sq))
		ne.t5cof = 0.2 * (3.0*ne.d4 + 12.0*cc.c1*ne.d3 + 6.0*ne.d2*ne.d2 +
			15.0*c1sq*(2.0*ne.d2+c1sq))
	}
	return ne
}

// update applies the secular gravity and drag corrections, which are closed
// form polynomials in tsince.
func (ne *nearEarth) update(p *Propagator, tsince float64) (perturbedOrbit, inclinationTerms, error) {
	me, cc := p.mean, &p.common

	xmdf := me.m + cc.xmdot*tsince
	omgadf := me.omega + cc.omgdot*tsince
	xnoddf := me.raan + cc.xnodot*tsince

	omega := omgadf
	xmp := xmdf

	tsq := tsince * tsince
	xnode := xnoddf + cc.xnodcf*tsq
	tempa := 1.0 - cc.c1*tsince
	tempe := me.bstar * cc.c4 * tsince
	templ := cc.t2cof * tsq

	if !ne.simple {
		delomg := ne.omgcof * tsince
		delm := ne.xmcof * (math.Pow(1.0+cc.eta*math.Cos(xmdf), 3.0) - ne.delmo)
		temp := delomg + delm
		xmp = xmdf + temp
		omega = omgadf - temp

		tcube := tsq * tsince
		tfour := tsince * tcube
		tempa = tempa - ne.d2*tsq - ne.d3*tcube - ne.d4*tfour
		tempe += me.bstar * ne.c5 * (math.Sin(xmp) - ne.sinmo)
		templ += ne.t3cof*tcube + tfour*(ne.t4cof+tsince*ne.t5cof)
	}

	e, err := clampEccentricity(tsince, me.ecc-tempe)
	if err != nil {
		return perturbedOrbit{}, inclinationTerms{}, err
	}

	orbit := perturbedOrbit{
		a:     p.recovered.SemiMajorAxis * tempa * tempa,
		e:     e,
		omega: omega,
		xl:    xmp + omega + xnode + p.recovered.MeanMotion*templ,
		xnode: xnode,
		xincl: me.incl,
	}
	it := inclinationTerms{
		cosio:  cc.cosio,
		sinio:  cc.sinio,
		x3thm1: cc.x3thm1,
		x1mth2: cc.x1mth2,
		x7thm1: cc.x7thm1,
		xlcof:  cc.xlcof,
		aycof:  cc.aycof,
	}
	return orbit, it, nil
}
