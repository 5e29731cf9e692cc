package nearest

import "math"

// earthRadiusKm is the mean Earth radius used for great-circle distances.
const earthRadiusKm = 6371.0

const deg2rad = math.Pi / 180.0

// Haversine returns the great-circle surface distance in km between two
// geodetic points given in degrees, on a sphere of radius 6371 km.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * deg2rad
	dLon := (lon2 - lon1) * deg2rad

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + math.Cos(lat1*deg2rad)*math.Cos(lat2*deg2rad)*sinLon*sinLon
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// Bearing returns the initial great-circle bearing in degrees [0, 360)
// from point 1 toward point 2 (inputs in degrees, 0 = north, clockwise).
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	dLon := (lon2 - lon1) * deg2rad
	y := math.Sin(dLon) * math.Cos(lat2*deg2rad)
	x := math.Cos(lat1*deg2rad)*math.Sin(lat2*deg2rad) -
		math.Sin(lat1*deg2rad)*math.Cos(lat2*deg2rad)*math.Cos(dLon)

	b := math.Atan2(y, x) / deg2rad
	b = math.Mod(b, 360.0)
	if b < 0 {
		b += 360.0
	}
	return b
}

// cardinalNames are the 8-wind compass directions, north first, clockwise.
var cardinalNames = [8]string{
	"north", "northeast", "east", "southeast",
	"south", "southwest", "west", "northwest",
}

// CardinalDirection names the compass direction for a bearing in degrees.
func CardinalDirection(bearingDeg float64) string {
	b := math.Mod(bearingDeg, 360.0)
	if b < 0 {
		b += 360.0
	}
	idx := int((b+22.5)/45.0) % 8
	return cardinalNames[idx]
}

// Orbit class altitude boundaries in km.
const (
	leoMaxAltKm = 2000.0
	geoMinAltKm = 35000.0
)

// OrbitClass labels an altitude as LEO, MEO, or GEO.
func OrbitClass(altKm float64) string {
	switch {
	case altKm < leoMaxAltKm:
		return "LEO"
	case altKm > geoMinAltKm:
		return "GEO"
	default:
		return "MEO"
	}
}
