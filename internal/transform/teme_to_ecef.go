// Package transform provides the coordinate frame conversions behind
// nearest-satellite queries.
//
// SGP4 outputs state vectors in TEME (True Equator Mean Equinox); ranking
// against a ground observer needs ECEF and geodetic coordinates. The TEME to
// ECEF transform is the simplified Vallado-style rotation using GMST only
// (TEME → PEF ≈ ECEF). Polar motion and the equation of the equinoxes are
// ignored, which introduces sub-kilometer error at most — tolerable when
// ranking satellites by distance.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"
	"time"
)

// PositionTEME represents a satellite position and velocity in the TEME frame.
type PositionTEME struct {
	X, Y, Z    float64 // km
	VX, VY, VZ float64 // km/s
}

// PositionECEF represents a satellite position and velocity in the ECEF frame.
type PositionECEF struct {
	X, Y, Z    float64 // km
	VX, VY, VZ float64 // km/s
}

// TEMEToECEF transforms a TEME position/velocity to ECEF at the given UTC time.
func TEMEToECEF(teme PositionTEME, t time.Time) PositionECEF {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST transforms TEME to ECEF using a precomputed GMST angle
// (radians). Useful when propagating many satellites to the same instant
// (compute GMST once).
//
// Position transform: r_ECEF = R3(θ) * r_TEME
// Velocity transform: v_ECEF = R3(θ) * v_TEME - ω × r_ECEF
//
// where R3(θ) is a rotation about the Z-axis by angle θ (GMST),
// and ω = [0, 0, ω_earth] is Earth's angular velocity vector.
func TEMEToECEFWithGMST(teme PositionTEME, gmst float64) PositionECEF {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	// Position: R3(GMST) rotation.
	xECEF := teme.X*cosG + teme.Y*sinG
	yECEF := -teme.X*sinG + teme.Y*cosG

	// Velocity: R3(GMST) rotation, then subtract Earth rotation effect.
	// ω × r_ECEF = [-ω*y_ECEF, ω*x_ECEF, 0]
	vxRot := teme.VX*cosG + teme.VY*sinG
	vyRot := -teme.VX*sinG + teme.VY*cosG

	return PositionECEF{
		X:  xECEF,
		Y:  yECEF,
		Z:  teme.Z,
		VX: vxRot + OmegaEarth*yECEF,
		VY: vyRot - OmegaEarth*xECEF,
		VZ: teme.VZ,
	}
}

// ValidateECEF checks that an ECEF position is physically reasonable for an
// Earth-orbiting satellite. Returns true if valid.
func ValidateECEF(pos PositionECEF) bool {
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) {
		return false
	}
	if math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return false
	}

	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)

	// Earth radius is ~6371 km. LEO is ~6571-6971 km. GEO is ~42164 km.
	// Allow a generous range: 6200 km to 50000 km.
	return mag >= 6200.0 && mag <= 50000.0
}
