// Package omm decodes CCSDS Orbit Mean-Elements Message catalogs into
// normalized element sets and holds the current catalog for queries.
//
// The JSON array form served by Space-Track and CelesTrak is accepted.
// Space-Track encodes numeric fields as strings, CelesTrak as numbers;
// both are handled. Angular fields arrive in degrees and are normalized
// to radians in [0, 2π).
package omm

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Record mirrors the OMM fields this decoder recognizes. It can be built
// directly by callers that already have the catalog in memory.
type Record struct {
	ObjectName    string     `json:"OBJECT_NAME"`
	ObjectID      string     `json:"OBJECT_ID"`
	NoradCatID    jsonNumber `json:"NORAD_CAT_ID"`
	Epoch         string     `json:"EPOCH"`
	MeanMotion    jsonNumber `json:"MEAN_MOTION"`
	Eccentricity  jsonNumber `json:"ECCENTRICITY"`
	Inclination   jsonNumber `json:"INCLINATION"`
	RAAN          jsonNumber `json:"RA_OF_ASC_NODE"`
	ArgPerigee    jsonNumber `json:"ARG_OF_PERICENTER"`
	MeanAnomaly   jsonNumber `json:"MEAN_ANOMALY"`
	Bstar         jsonNumber `json:"BSTAR"`
	EphemerisType jsonNumber `json:"EPHEMERIS_TYPE"`
}

// jsonNumber accepts both JSON numbers and numeric strings.
type jsonNumber float64

func (n *jsonNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	*n = jsonNumber(v)
	return nil
}

// RecordError reports a single rejected record by its index in the input.
type RecordError struct {
	Index  int
	Detail string
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d: %s", e.Index, e.Detail)
}

// Decode parses an OMM JSON array. Malformed records are reported
// individually; the remaining records are still returned.
func Decode(data []byte) ([]Elements, []RecordError, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("decoding OMM array: %w", err)
	}

	sats := make([]Elements, 0, len(raw))
	var bad []RecordError
	for i, msg := range raw {
		var rec Record
		if err := json.Unmarshal(msg, &rec); err != nil {
			bad = append(bad, RecordError{Index: i, Detail: err.Error()})
			continue
		}
		el, err := FromRecord(rec)
		if err != nil {
			bad = append(bad, RecordError{Index: i, Detail: err.Error()})
			continue
		}
		sats = append(sats, el)
	}
	return sats, bad, nil
}

// FromRecord converts one OMM record to a normalized Elements value.
func FromRecord(rec Record) (Elements, error) {
	if rec.NoradCatID <= 0 {
		return Elements{}, fmt.Errorf("missing or invalid NORAD_CAT_ID")
	}
	epoch, err := parseEpoch(rec.Epoch)
	if err != nil {
		return Elements{}, err
	}
	n0 := float64(rec.MeanMotion)
	if !(n0 > 0) {
		return Elements{}, fmt.Errorf("MEAN_MOTION must be positive, got %v", n0)
	}
	ecc := float64(rec.Eccentricity)
	if ecc < 0 || ecc >= 1 || math.IsNaN(ecc) {
		return Elements{}, fmt.Errorf("ECCENTRICITY out of [0,1): %v", ecc)
	}

	return Elements{
		NoradID:       int(rec.NoradCatID),
		ObjectID:      rec.ObjectID,
		Name:          rec.ObjectName,
		Epoch:         epoch,
		MeanMotion:    n0,
		Eccentricity:  ecc,
		Inclination:   wrapTwoPi(float64(rec.Inclination) * math.Pi / 180),
		RAAN:          wrapTwoPi(float64(rec.RAAN) * math.Pi / 180),
		ArgPerigee:    wrapTwoPi(float64(rec.ArgPerigee) * math.Pi / 180),
		MeanAnomaly:   wrapTwoPi(float64(rec.MeanAnomaly) * math.Pi / 180),
		Bstar:         float64(rec.Bstar),
		EphemerisType: int(rec.EphemerisType),
	}, nil
}

// epochLayouts covers OMM EPOCH strings with and without a zone suffix.
// OMM epochs are UTC by specification, so zoneless strings are read as UTC.
var epochLayouts = []string{
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseEpoch(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing EPOCH")
	}
	for _, layout := range epochLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid EPOCH %q", s)
}

func wrapTwoPi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
