package transform

import "math"

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378.137              // semi-major axis (km)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// Geodetic is a position on or above the WGS-84 ellipsoid.
// Latitude is in [-π/2, π/2], longitude in (-π, π], altitude in km.
type Geodetic struct {
	LatRad float64
	LonRad float64
	AltKm  float64
}

// LatDeg returns the latitude in degrees.
func (g Geodetic) LatDeg() float64 { return g.LatRad * 180.0 / math.Pi }

// LonDeg returns the longitude in degrees.
func (g Geodetic) LonDeg() float64 { return g.LonRad * 180.0 / math.Pi }

// ECEF converts a geodetic position to ECEF coordinates in km.
func (g Geodetic) ECEF() (x, y, z float64) {
	sinLat := math.Sin(g.LatRad)
	cosLat := math.Cos(g.LatRad)

	// Radius of curvature in the prime vertical.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	x = (n + g.AltKm) * cosLat * math.Cos(g.LonRad)
	y = (n + g.AltKm) * cosLat * math.Sin(g.LonRad)
	z = (n*(1-wgs84E2) + g.AltKm) * sinLat
	return x, y, z
}

// ECEFToGeodetic converts ECEF coordinates (km) to geodetic coordinates
// using the iterative Bowring method, converging to 1e-11 rad in latitude.
// Points on the polar axis yield longitude 0 and latitude ±π/2.
func ECEFToGeodetic(x, y, z float64) Geodetic {
	p := math.Sqrt(x*x + y*y)

	if p == 0 {
		// On the polar axis the longitude is undefined; fix it at 0.
		lat := math.Pi / 2
		if z < 0 {
			lat = -lat
		}
		b := wgs84A * (1 - wgs84F)
		return Geodetic{LatRad: lat, LonRad: 0, AltKm: math.Abs(z) - b}
	}

	lon := math.Atan2(y, x)
	if lon <= -math.Pi {
		lon += 2 * math.Pi
	}

	lat := math.Atan2(z, p*(1-wgs84E2))
	for i := 0; i < 10; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		next := math.Atan2(z+wgs84E2*n*sinLat, p)
		if math.Abs(next-lat) < 1e-11 {
			lat = next
			break
		}
		lat = next
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return Geodetic{LatRad: lat, LonRad: lon, AltKm: alt}
}

// ObserverPosition holds a ground observer's location in both geodetic and
// ECEF frames. The ECEF coordinates are precomputed once so they can be
// reused across many satellite distance computations.
type ObserverPosition struct {
	Geodetic
	ECEFx, ECEFy, ECEFz float64 // km
}

// NewObserverPosition creates an ObserverPosition from geodetic coordinates.
// Latitude and longitude are in degrees, altitude in km above the WGS-84
// ellipsoid.
func NewObserverPosition(latDeg, lonDeg, altKm float64) ObserverPosition {
	g := Geodetic{
		LatRad: latDeg * math.Pi / 180.0,
		LonRad: lonDeg * math.Pi / 180.0,
		AltKm:  altKm,
	}
	x, y, z := g.ECEF()
	return ObserverPosition{Geodetic: g, ECEFx: x, ECEFy: y, ECEFz: z}
}
