package nearest

import "time"

// Metric selects the distance used to order a ranking.
type Metric string

const (
	// MetricSurface ranks by great-circle distance between the observer
	// and the sub-satellite point, ignoring altitude.
	MetricSurface Metric = "surface"
	// MetricSlant ranks by straight-line observer-to-satellite distance.
	MetricSlant Metric = "slant"
)

// Valid reports whether m is a recognized metric.
func (m Metric) Valid() bool {
	return m == MetricSurface || m == MetricSlant
}

// Observer is a ground observer in geodetic coordinates.
type Observer struct {
	LatDeg float64
	LonDeg float64
	AltKm  float64
}

// Request describes one nearest-satellite query. At is always supplied by
// the caller; the engine never reads a clock.
type Request struct {
	Observer     Observer
	At           time.Time
	Metric       Metric
	Limit        int  // 0 means the full ranking
	GroupByClass bool // also report the nearest satellite per orbit class
}

// RankedSatellite is one entry of a query ranking.
type RankedSatellite struct {
	NoradID    int     `json:"norad_id"`
	Name       string  `json:"name,omitempty"`
	LatDeg     float64 `json:"lat_deg"`
	LonDeg     float64 `json:"lon_deg"`
	AltKm      float64 `json:"alt_km"`
	SurfaceKm  float64 `json:"surface_km"`
	SlantKm    float64 `json:"slant_km"`
	DistanceKm float64 `json:"distance_km"` // the selected metric
	BearingDeg float64 `json:"bearing_deg"`
	Cardinal   string  `json:"cardinal"`
	OrbitClass string  `json:"orbit_class"`
	OrbitDesc  string  `json:"orbit_desc,omitempty"`
}

// Failure reports a catalog record excluded from the ranking. Propagation
// failures carry the NORAD id; decode failures carry the record index.
type Failure struct {
	NoradID int    `json:"norad_id,omitempty"`
	Index   int    `json:"index,omitempty"`
	Kind    string `json:"kind"`
	Detail  string `json:"detail,omitempty"`
}

// Result is the outcome of one query: the ordered ranking plus the records
// that could not participate.
type Result struct {
	At             time.Time                  `json:"at"`
	Metric         Metric                     `json:"metric"`
	Ranking        []RankedSatellite          `json:"ranking"`
	NearestByClass map[string]RankedSatellite `json:"nearest_by_class,omitempty"`
	Failures       []Failure                  `json:"failures"`
}

// Nearest returns the head of the ranking, or false when it is empty.
func (r *Result) Nearest() (RankedSatellite, bool) {
	if len(r.Ranking) == 0 {
		return RankedSatellite{}, false
	}
	return r.Ranking[0], true
}
