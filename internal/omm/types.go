package omm

import "time"

// Elements is a normalized orbital-element set decoded from one OMM record.
// Angles are radians, mean motion is rev/day, B* is 1/earth-radii.
// Immutable after decode.
type Elements struct {
	NoradID       int
	ObjectID      string // international designator, e.g. "1998-067A"
	Name          string
	Epoch         time.Time // UTC
	MeanMotion    float64   // rev/day
	Eccentricity  float64
	Inclination   float64 // rad
	RAAN          float64 // rad
	ArgPerigee    float64 // rad
	MeanAnomaly   float64 // rad
	Bstar         float64 // 1/earth-radii
	EphemerisType int
}

// EpochRange is the minimum and maximum element epochs in a catalog.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Catalog is a complete decoded element set from one source. Rejected
// carries the per-record decode failures so queries can report them
// alongside propagation failures.
type Catalog struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []Elements
	Rejected   []RecordError
}

// NewCatalog assembles a Catalog from decoded elements, computing the epoch range.
func NewCatalog(source string, fetchedAt time.Time, sats []Elements) *Catalog {
	c := &Catalog{Source: source, FetchedAt: fetchedAt, Satellites: sats}
	if len(sats) > 0 {
		c.EpochRange.Min = sats[0].Epoch
		c.EpochRange.Max = sats[0].Epoch
		for _, e := range sats[1:] {
			if e.Epoch.Before(c.EpochRange.Min) {
				c.EpochRange.Min = e.Epoch
			}
			if e.Epoch.After(c.EpochRange.Max) {
				c.EpochRange.Max = e.Epoch
			}
		}
	}
	return c
}
