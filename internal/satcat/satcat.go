// Package satcat reads the GCAT satellite catalog (satcat.tsv) and maps
// catalog numbers to operational-orbit descriptions. The catalog is
// optional; queries work without it and simply omit the descriptions.
package satcat

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// orbitDescs maps GCAT OpOrbit codes to human-readable descriptions.
var orbitDescs = map[string]string{
	"ATM":    "atmospheric orbit",
	"SO":     "suborbital",
	"TA":     "trans-atmospheric orbit",
	"LLEO/E": "equatorial lower LEO",
	"LLEO/I": "intermediate lower LEO",
	"LLEO/P": "polar lower LEO",
	"LLEO/S": "sun-synchronous lower LEO",
	"LLEO/R": "retrograde lower LEO",
	"LEO/E":  "equatorial upper LEO",
	"LEO/I":  "intermediate upper LEO",
	"LEO/P":  "polar upper LEO",
	"LEO/S":  "sun-synchronous upper LEO",
	"LEO/R":  "retrograde upper LEO",
	"MEO":    "medium Earth orbit",
	"HEO":    "highly elliptical orbit",
	"HEO/M":  "Molniya orbit",
	"GTO":    "geotransfer orbit",
	"GEO/S":  "stationary GEO",
	"GEO/I":  "inclined GEO",
	"GEO/T":  "synchronous GEO",
	"GEO/D":  "drift GEO",
	"GEO/SI": "inclined GEO",
	"GEO/ID": "inclined drift GEO",
	"GEO/NS": "near-sync GEO",
	"VHEO":   "very high Earth orbit",
	"DSO":    "deep space orbit",
	"CLO":    "cislunar/translunar orbit",
	"EEO":    "Earth escape orbit",
	"HCO":    "heliocentric orbit",
	"PCO":    "planetocentric orbit",
	"SSE":    "solar system escape orbit",
}

// Describe returns the description for an OpOrbit code.
func Describe(code string) string {
	if d, ok := orbitDescs[code]; ok {
		return d
	}
	return "unknown orbit"
}

// Table maps NORAD catalog numbers to OpOrbit codes.
type Table struct {
	orbits map[int]string
}

// Parse reads a tab-separated GCAT satcat file. Rows without a numeric
// Satcat column or without an OpOrbit value are skipped.
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading satcat header: %w", err)
	}
	satcatCol, orbitCol := -1, -1
	for i, name := range header {
		switch strings.TrimPrefix(strings.TrimSpace(name), "#") {
		case "Satcat":
			satcatCol = i
		case "OpOrbit":
			orbitCol = i
		}
	}
	if satcatCol < 0 || orbitCol < 0 {
		return nil, fmt.Errorf("satcat header missing Satcat or OpOrbit column")
	}

	orbits := make(map[int]string)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading satcat row: %w", err)
		}
		if len(row) <= satcatCol || len(row) <= orbitCol {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(row[satcatCol]))
		if err != nil {
			continue
		}
		orbit := strings.TrimSpace(row[orbitCol])
		if orbit == "" || orbit == "-" {
			continue
		}
		orbits[id] = orbit
	}

	return &Table{orbits: orbits}, nil
}

// Len returns the number of catalog entries with an orbit code.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.orbits)
}

// Description returns the operational-orbit description for a catalog
// number, or "" when unknown. Safe to call on a nil table.
func (t *Table) Description(noradID int) string {
	if t == nil {
		return ""
	}
	code, ok := t.orbits[noradID]
	if !ok {
		return ""
	}
	return Describe(code)
}
