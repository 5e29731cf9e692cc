// Package sgp4 implements the near-Earth SGP4 analytic propagator
// (Hoots & Roehrke, Spacetrack Report #3, as revised by Vallado) on
// normalized OMM elements.
//
// Deep space (orbital period >= 225 min) is out of scope and rejected at
// constants derivation; SDP4 is not implemented. Output is a TEME state
// vector in km and km/s.
//
// Internally the model works in canonical SGP4 units: distances in Earth
// radii, angles in radians, time in minutes.
package sgp4

import (
	"math"

	"github.com/wiseman/whatsoverhead-in-space/internal/omm"
	"github.com/wiseman/whatsoverhead-in-space/internal/transform"
)

// WGS-72 constants used by the standard SGP4 model.
const (
	xkmper = 6378.135    // Earth equatorial radius, km
	mu     = 398600.8    // gravitational parameter, km^3/s^2
	j2     = 1.082616e-3 // second gravitational zonal harmonic
	j3     = -2.53881e-6
	j4     = -1.65597e-6

	minutesPerDay = 1440.0
	twoPi         = 2 * math.Pi

	ck2    = 0.5 * j2
	ck4    = -0.375 * j4
	a3ovk2 = -j3 / ck2

	// Deep-space boundary: orbital period in minutes.
	deepSpacePeriodMin = 225.0
)

// xke is sqrt(GM) in canonical units (ER^1.5 / min).
var xke = 60.0 / math.Sqrt(xkmper*xkmper*xkmper/mu)

// Constants holds the per-satellite SGP4 coefficients derived once from an
// element set. Immutable; safe for concurrent use.
type Constants struct {
	noradID int

	// Elements at epoch (radians, rad/min, ER).
	e0, i0, omega0, node0, m0 float64
	bstar                     float64

	// Brouwer mean motion and semi-major axis recovered from the Kozai
	// mean motion.
	xnodp float64 // rad/min
	aodp  float64 // ER

	// Trig of the epoch inclination, precomputed.
	sinio, cosio           float64
	x3thm1, x1mth2, x7thm1 float64

	// Secular rates (rad/min).
	xmdot, omgdot, xnodot float64

	// Drag and periodic coefficients.
	eta, c1, c4, c5       float64
	omgcof, xmcof, xnodcf float64
	t2cof, xlcof, aycof   float64
	delmo, sinmo          float64
	d2, d3, d4            float64
	t3cof, t4cof, t5cof   float64

	// Truncated model for perigees below 220 km.
	simple bool
}

// NoradID returns the catalog id of the element set these constants were
// derived from.
func (c *Constants) NoradID() int { return c.noradID }

// PeriodMinutes returns the orbital period implied by the recovered mean motion.
func (c *Constants) PeriodMinutes() float64 { return twoPi / c.xnodp }

// FromElements derives SGP4 constants from a normalized element set.
// Fails when the elements are outside the near-Earth SGP4 domain.
func FromElements(el omm.Elements) (*Constants, error) {
	c := &Constants{
		noradID: el.NoradID,
		e0:      el.Eccentricity,
		i0:      el.Inclination,
		omega0:  el.ArgPerigee,
		node0:   el.RAAN,
		m0:      el.MeanAnomaly,
		bstar:   el.Bstar,
	}

	if !(el.MeanMotion > 0) {
		return nil, &ElementsError{NoradID: el.NoradID, Detail: "mean motion must be positive"}
	}
	eosq := c.e0 * c.e0
	betao2 := 1.0 - eosq
	if betao2 <= 0 {
		return nil, &ElementsError{NoradID: el.NoradID, Detail: "eccentricity outside [0,1)"}
	}
	betao := math.Sqrt(betao2)

	// Recover the Brouwer mean motion and semi-major axis from the Kozai
	// mean motion in the element set.
	n0 := el.MeanMotion * twoPi / minutesPerDay
	a1 := math.Pow(xke/n0, 2.0/3.0)
	c.cosio = math.Cos(c.i0)
	c.sinio = math.Sin(c.i0)
	theta2 := c.cosio * c.cosio
	c.x3thm1 = 3.0*theta2 - 1.0
	del1 := 1.5 * ck2 * c.x3thm1 / (a1 * a1 * betao * betao2)
	ao := a1 * (1.0 - del1*(0.5*(2.0/3.0)+del1*(1.0+134.0/81.0*del1)))
	delo := 1.5 * ck2 * c.x3thm1 / (ao * ao * betao * betao2)
	c.xnodp = n0 / (1.0 + delo)
	c.aodp = ao / (1.0 - delo)

	if c.aodp <= 1.0 {
		return nil, &ElementsError{NoradID: el.NoradID, Detail: "semi-major axis at or below Earth radius"}
	}
	if period := twoPi / c.xnodp; period >= deepSpacePeriodMin {
		return nil, &DeepSpaceError{NoradID: el.NoradID, PeriodMinutes: period}
	}

	perigeeKm := (c.aodp*(1.0-c.e0) - 1.0) * xkmper
	c.simple = perigeeKm < 220.0

	// For perigees below 156 km the s and (q0-s)^4 constants are adjusted.
	s4 := 1.0 + 78.0/xkmper
	qoms24 := math.Pow((120.0-78.0)/xkmper, 4)
	if perigeeKm < 156.0 {
		s4 = perigeeKm - 78.0
		if perigeeKm <= 98.0 {
			s4 = 20.0
		}
		qoms24 = math.Pow((120.0-s4)/xkmper, 4)
		s4 = s4/xkmper + 1.0
	}

	pinvsq := 1.0 / (c.aodp * c.aodp * betao2 * betao2)
	tsi := 1.0 / (c.aodp - s4)
	c.eta = c.aodp * c.e0 * tsi
	etasq := c.eta * c.eta
	eeta := c.e0 * c.eta
	psisq := math.Abs(1.0 - etasq)
	coef := qoms24 * math.Pow(tsi, 4)
	coef1 := coef / math.Pow(psisq, 3.5)
	c2 := coef1 * c.xnodp * (c.aodp*(1.0+1.5*etasq+eeta*(4.0+etasq)) +
		0.75*ck2*tsi/psisq*c.x3thm1*(8.0+3.0*etasq*(8.0+etasq)))
	c.c1 = c.bstar * c2
	c.x1mth2 = 1.0 - theta2
	c.c4 = 2.0 * c.xnodp * coef1 * c.aodp * betao2 *
		(c.eta*(2.0+0.5*etasq) + c.e0*(0.5+2.0*etasq) -
			2.0*ck2*tsi/(c.aodp*psisq)*
				(-3.0*c.x3thm1*(1.0-2.0*eeta+etasq*(1.5-0.5*eeta))+
					0.75*c.x1mth2*(2.0*etasq-eeta*(1.0+etasq))*math.Cos(2.0*c.omega0)))
	c.c5 = 2.0 * coef1 * c.aodp * betao2 * (1.0 + 2.75*(etasq+eeta) + eeta*etasq)

	theta4 := theta2 * theta2
	temp1 := 3.0 * ck2 * pinvsq * c.xnodp
	temp2 := temp1 * ck2 * pinvsq
	temp3 := 1.25 * ck4 * pinvsq * pinvsq * c.xnodp
	c.xmdot = c.xnodp + 0.5*temp1*betao*c.x3thm1 +
		0.0625*temp2*betao*(13.0-78.0*theta2+137.0*theta4)
	c.omgdot = -0.5*temp1*(1.0-5.0*theta2) +
		0.0625*temp2*(7.0-114.0*theta2+395.0*theta4) +
		temp3*(3.0-36.0*theta2+49.0*theta4)
	xhdot1 := -temp1 * c.cosio
	c.xnodot = xhdot1 + (0.5*temp2*(4.0-19.0*theta2)+2.0*temp3*(3.0-7.0*theta2))*c.cosio

	// The c3, delta-omega, and delta-m terms blow up as e0 -> 0; the
	// standard model drops them for near-circular orbits.
	if c.e0 > 1.0e-4 {
		c3 := coef * tsi * a3ovk2 * c.xnodp * c.sinio / c.e0
		c.omgcof = c.bstar * c3 * math.Cos(c.omega0)
		c.xmcof = -(2.0 / 3.0) * coef * c.bstar / eeta
	}
	c.xnodcf = 3.5 * betao2 * xhdot1 * c.c1
	c.t2cof = 1.5 * c.c1
	// Guard the 1+cosio denominator against i0 near 180 degrees.
	denom := 1.0 + c.cosio
	if math.Abs(denom) < 1.5e-12 {
		denom = 1.5e-12
	}
	c.xlcof = 0.125 * a3ovk2 * c.sinio * (3.0 + 5.0*c.cosio) / denom
	c.aycof = 0.25 * a3ovk2 * c.sinio
	c.delmo = math.Pow(1.0+c.eta*math.Cos(c.m0), 3)
	c.sinmo = math.Sin(c.m0)
	c.x7thm1 = 7.0*theta2 - 1.0

	if !c.simple {
		c1sq := c.c1 * c.c1
		c.d2 = 4.0 * c.aodp * tsi * c1sq
		temp := c.d2 * tsi * c.c1 / 3.0
		c.d3 = (17.0*c.aodp + s4) * temp
		c.d4 = 0.5 * temp * c.aodp * tsi * (221.0*c.aodp + 31.0*s4) * c.c1
		c.t3cof = c.d2 + 2.0*c1sq
		c.t4cof = 0.25 * (3.0*c.d3 + c.c1*(12.0*c.d2+10.0*c1sq))
		c.t5cof = 0.2 * (3.0*c.d4 + 12.0*c.c1*c.d3 + 6.0*c.d2*c.d2 +
			15.0*c1sq*(2.0*c.d2+c1sq))
	}

	return c, nil
}

// Propagate computes the TEME state vector at tsince minutes from the
// element epoch.
func (c *Constants) Propagate(tsince float64) (transform.PositionTEME, error) {
	var zero transform.PositionTEME

	// Secular gravity and atmospheric drag.
	xmdf := c.m0 + c.xmdot*tsince
	omgadf := c.omega0 + c.omgdot*tsince
	xnoddf := c.node0 + c.xnodot*tsince
	omega := omgadf
	xmp := xmdf
	tsq := tsince * tsince
	xnode := xnoddf + c.xnodcf*tsq
	tempa := 1.0 - c.c1*tsince
	tempe := c.bstar * c.c4 * tsince
	templ := c.t2cof * tsq

	if !c.simple {
		delomg := c.omgcof * tsince
		delm := c.xmcof * (math.Pow(1.0+c.eta*math.Cos(xmdf), 3) - c.delmo)
		temp := delomg + delm
		xmp = xmdf + temp
		omega = omgadf - temp
		tcube := tsq * tsince
		tfour := tsince * tcube
		tempa = tempa - c.d2*tsq - c.d3*tcube - c.d4*tfour
		tempe += c.bstar * c.c5 * (math.Sin(xmp) - c.sinmo)
		templ += c.t3cof*tcube + tfour*(c.t4cof+tsince*c.t5cof)
	}

	a := c.aodp * tempa * tempa
	e := c.e0 - tempe
	if e >= 1.0 || e < -1.0e-3 {
		return zero, &DecayedError{NoradID: c.noradID, AtMinutes: tsince,
			Detail: "eccentricity left [0,1)"}
	}
	// Keep the eccentric-longitude formulation conditioned near e = 0.
	if e < 1.0e-6 {
		e = 1.0e-6
	}
	xl := xmp + omega + xnode + c.xnodp*templ
	xn := xke / math.Pow(a, 1.5)

	// Long-period periodics.
	axn := e * math.Cos(omega)
	beta2 := 1.0 - e*e
	temp := 1.0 / (a * beta2)
	xll := temp * c.xlcof * axn
	aynl := temp * c.aycof
	xlt := xl + xll
	ayn := e*math.Sin(omega) + aynl

	elsq := axn*axn + ayn*ayn
	if elsq >= 1.0 {
		return zero, &DecayedError{NoradID: c.noradID, AtMinutes: tsince,
			Detail: "perturbed eccentricity left [0,1)"}
	}

	// Solve Kepler's equation for the eccentric longitude by Newton
	// iteration: tolerance 1e-12 rad, at most 10 steps.
	capu := math.Mod(xlt-xnode, twoPi)
	if capu < 0 {
		capu += twoPi
	}
	epw := capu
	var sinepw, cosepw, ecose, esine float64
	maxStep := 1.25 * math.Sqrt(elsq)
	converged := false
	for i := 0; i < 10; i++ {
		sinepw = math.Sin(epw)
		cosepw = math.Cos(epw)
		ecose = axn*cosepw + ayn*sinepw
		esine = axn*sinepw - ayn*cosepw

		f := capu - epw + esine
		if math.Abs(f) < 1.0e-12 {
			converged = true
			break
		}
		delta := f / (1.0 - ecose)
		// Bound the first step; Newton can overshoot badly for high
		// perturbed eccentricity.
		if i == 0 {
			if delta > maxStep {
				delta = maxStep
			} else if delta < -maxStep {
				delta = -maxStep
			}
		} else {
			delta = f / (1.0 - ecose + 0.5*esine*delta)
		}
		epw += delta
	}
	if !converged {
		return zero, &KeplerError{NoradID: c.noradID, Tsince: tsince}
	}

	// Short-period preliminary quantities.
	pl := a * (1.0 - elsq)
	r := a * (1.0 - ecose)
	if r <= 0 || pl <= 0 {
		return zero, &DecayedError{NoradID: c.noradID, AtMinutes: tsince,
			Detail: "non-positive orbit radius"}
	}
	invR := 1.0 / r
	rdot := xke * math.Sqrt(a) * esine * invR
	rfdot := xke * math.Sqrt(pl) * invR
	aOverR := a * invR
	betal := math.Sqrt(1.0 - elsq)
	temp3 := 1.0 / (1.0 + betal)
	cosu := aOverR * (cosepw - axn + ayn*esine*temp3)
	sinu := aOverR * (sinepw - ayn - axn*esine*temp3)
	u := math.Atan2(sinu, cosu)
	sin2u := 2.0 * sinu * cosu
	cos2u := 2.0*cosu*cosu - 1.0

	invPl := 1.0 / pl
	temp1 := ck2 * invPl
	temp2 := temp1 * invPl

	// Short-period periodics.
	rk := r*(1.0-1.5*temp2*betal*c.x3thm1) + 0.5*temp1*c.x1mth2*cos2u
	uk := u - 0.25*temp2*c.x7thm1*sin2u
	xnodek := xnode + 1.5*temp2*c.cosio*sin2u
	xinck := c.i0 + 1.5*temp2*c.cosio*c.sinio*cos2u
	rdotk := rdot - xn*temp1*c.x1mth2*sin2u
	rfdotk := rfdot + xn*temp1*(c.x1mth2*cos2u+1.5*c.x3thm1)

	if rk < 1.0 {
		return zero, &DecayedError{NoradID: c.noradID, AtMinutes: tsince,
			Detail: "perigee at or below Earth radius"}
	}

	// Orientation vectors and TEME assembly.
	sinuk := math.Sin(uk)
	cosuk := math.Cos(uk)
	sinik := math.Sin(xinck)
	cosik := math.Cos(xinck)
	sinnok := math.Sin(xnodek)
	cosnok := math.Cos(xnodek)
	xmx := -sinnok * cosik
	xmy := cosnok * cosik
	ux := xmx*sinuk + cosnok*cosuk
	uy := xmy*sinuk + sinnok*cosuk
	uz := sinik * sinuk
	vx := xmx*cosuk - cosnok*sinuk
	vy := xmy*cosuk - sinnok*sinuk
	vz := sinik * cosuk

	vFactor := xkmper / 60.0
	state := transform.PositionTEME{
		X:  rk * ux * xkmper,
		Y:  rk * uy * xkmper,
		Z:  rk * uz * xkmper,
		VX: (rdotk*ux + rfdotk*vx) * vFactor,
		VY: (rdotk*uy + rfdotk*vy) * vFactor,
		VZ: (rdotk*uz + rfdotk*vz) * vFactor,
	}

	for _, v := range [6]float64{state.X, state.Y, state.Z, state.VX, state.VY, state.VZ} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return zero, &OverflowError{NoradID: c.noradID, Tsince: tsince}
		}
	}

	return state, nil
}
