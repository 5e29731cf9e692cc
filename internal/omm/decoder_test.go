package omm

import (
	"math"
	"strings"
	"testing"
	"time"
)

// celestrakJSON uses bare JSON numbers, as served by CelesTrak.
const celestrakJSON = `[
  {
    "OBJECT_NAME": "ISS (ZARYA)",
    "OBJECT_ID": "1998-067A",
    "EPOCH": "2026-08-01T12:00:00.000000",
    "MEAN_MOTION": 15.5,
    "ECCENTRICITY": 0.0001,
    "INCLINATION": 51.64,
    "RA_OF_ASC_NODE": 100.0,
    "ARG_OF_PERICENTER": 0.0,
    "MEAN_ANOMALY": 0.0,
    "EPHEMERIS_TYPE": 0,
    "NORAD_CAT_ID": 25544,
    "BSTAR": 0.0001027
  }
]`

// spacetrackJSON encodes every numeric field as a string, as served by
// Space-Track.
const spacetrackJSON = `[
  {
    "OBJECT_NAME": "ISS (ZARYA)",
    "OBJECT_ID": "1998-067A",
    "EPOCH": "2026-08-01T12:00:00.000000",
    "MEAN_MOTION": "15.5",
    "ECCENTRICITY": "0.0001",
    "INCLINATION": "51.64",
    "RA_OF_ASC_NODE": "100.0",
    "ARG_OF_PERICENTER": "0.0",
    "MEAN_ANOMALY": "0.0",
    "EPHEMERIS_TYPE": "0",
    "NORAD_CAT_ID": "25544",
    "BSTAR": "0.0001027"
  }
]`

// TestDecodeNumberAndStringFields verifies both the CelesTrak and
// Space-Track JSON encodings decode to the same elements.
func TestDecodeNumberAndStringFields(t *testing.T) {
	for _, tt := range []struct {
		name string
		data string
	}{
		{"celestrak numbers", celestrakJSON},
		{"spacetrack strings", spacetrackJSON},
	} {
		t.Run(tt.name, func(t *testing.T) {
			sats, bad, err := Decode([]byte(tt.data))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if len(bad) != 0 {
				t.Fatalf("unexpected rejects: %v", bad)
			}
			if len(sats) != 1 {
				t.Fatalf("got %d satellites, want 1", len(sats))
			}

			el := sats[0]
			if el.NoradID != 25544 {
				t.Errorf("NoradID = %d, want 25544", el.NoradID)
			}
			if el.Name != "ISS (ZARYA)" || el.ObjectID != "1998-067A" {
				t.Errorf("identity fields wrong: %q %q", el.Name, el.ObjectID)
			}
			if el.MeanMotion != 15.5 {
				t.Errorf("MeanMotion = %v, want 15.5", el.MeanMotion)
			}
			wantIncl := 51.64 * math.Pi / 180
			if math.Abs(el.Inclination-wantIncl) > 1e-12 {
				t.Errorf("Inclination = %v rad, want %v rad", el.Inclination, wantIncl)
			}
			wantEpoch := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
			if !el.Epoch.Equal(wantEpoch) {
				t.Errorf("Epoch = %v, want %v", el.Epoch, wantEpoch)
			}
			if el.Epoch.Location() != time.UTC {
				t.Errorf("Epoch location = %v, want UTC", el.Epoch.Location())
			}
		})
	}
}

// TestDecodeMalformedRecordIsolated verifies a bad record is rejected with
// its index while the surrounding records still decode.
func TestDecodeMalformedRecordIsolated(t *testing.T) {
	data := `[
	  {"OBJECT_NAME": "A", "NORAD_CAT_ID": 100, "EPOCH": "2026-08-01T00:00:00",
	   "MEAN_MOTION": 15.0, "ECCENTRICITY": 0.001, "INCLINATION": 51.6,
	   "RA_OF_ASC_NODE": 0, "ARG_OF_PERICENTER": 0, "MEAN_ANOMALY": 0, "BSTAR": 0},
	  {"OBJECT_NAME": "BAD", "NORAD_CAT_ID": 200, "EPOCH": "not-a-date",
	   "MEAN_MOTION": 15.0, "ECCENTRICITY": 0.001, "INCLINATION": 51.6,
	   "RA_OF_ASC_NODE": 0, "ARG_OF_PERICENTER": 0, "MEAN_ANOMALY": 0, "BSTAR": 0},
	  {"OBJECT_NAME": "C", "NORAD_CAT_ID": 300, "EPOCH": "2026-08-01T00:00:00",
	   "MEAN_MOTION": 15.0, "ECCENTRICITY": 0.001, "INCLINATION": 51.6,
	   "RA_OF_ASC_NODE": 0, "ARG_OF_PERICENTER": 0, "MEAN_ANOMALY": 0, "BSTAR": 0}
	]`

	sats, bad, err := Decode([]byte(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(sats) != 2 {
		t.Fatalf("got %d satellites, want 2", len(sats))
	}
	if sats[0].NoradID != 100 || sats[1].NoradID != 300 {
		t.Errorf("surviving ids = %d, %d; want 100, 300", sats[0].NoradID, sats[1].NoradID)
	}
	if len(bad) != 1 {
		t.Fatalf("got %d rejects, want 1", len(bad))
	}
	if bad[0].Index != 1 {
		t.Errorf("reject index = %d, want 1", bad[0].Index)
	}
	if !strings.Contains(bad[0].Detail, "EPOCH") {
		t.Errorf("reject detail %q should mention EPOCH", bad[0].Detail)
	}
}

// TestDecodeRejections exercises the per-record validation rules.
func TestDecodeRejections(t *testing.T) {
	tests := []struct {
		name   string
		record string
	}{
		{"missing norad id", `{"OBJECT_NAME": "X", "EPOCH": "2026-08-01T00:00:00", "MEAN_MOTION": 15.0, "ECCENTRICITY": 0.001}`},
		{"missing epoch", `{"NORAD_CAT_ID": 1, "MEAN_MOTION": 15.0, "ECCENTRICITY": 0.001}`},
		{"zero mean motion", `{"NORAD_CAT_ID": 1, "EPOCH": "2026-08-01T00:00:00", "MEAN_MOTION": 0, "ECCENTRICITY": 0.001}`},
		{"eccentricity one", `{"NORAD_CAT_ID": 1, "EPOCH": "2026-08-01T00:00:00", "MEAN_MOTION": 15.0, "ECCENTRICITY": 1.0}`},
		{"negative eccentricity", `{"NORAD_CAT_ID": 1, "EPOCH": "2026-08-01T00:00:00", "MEAN_MOTION": 15.0, "ECCENTRICITY": -0.1}`},
		{"non-numeric field", `{"NORAD_CAT_ID": 1, "EPOCH": "2026-08-01T00:00:00", "MEAN_MOTION": "fast", "ECCENTRICITY": 0.001}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sats, bad, err := Decode([]byte("[" + tt.record + "]"))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if len(sats) != 0 || len(bad) != 1 {
				t.Errorf("got %d satellites and %d rejects, want 0 and 1", len(sats), len(bad))
			}
		})
	}
}

// TestDecodeNotAnArray verifies a top-level decode failure is a hard error.
func TestDecodeNotAnArray(t *testing.T) {
	if _, _, err := Decode([]byte(`{"OBJECT_NAME": "X"}`)); err == nil {
		t.Fatal("expected error for non-array input")
	}
	if _, _, err := Decode([]byte(`garbage`)); err == nil {
		t.Fatal("expected error for non-JSON input")
	}
}

// TestEpochLayouts verifies the accepted EPOCH string forms, all read as UTC.
func TestEpochLayouts(t *testing.T) {
	want := time.Date(2026, 8, 1, 12, 30, 45, 500000000, time.UTC)
	for _, s := range []string{
		"2026-08-01T12:30:45.500000000Z",
		"2026-08-01T12:30:45.5",
		"2026-08-01T12:30:45.500000",
	} {
		got, err := parseEpoch(s)
		if err != nil {
			t.Errorf("parseEpoch(%q) failed: %v", s, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseEpoch(%q) = %v, want %v", s, got, want)
		}
	}

	// Whole seconds, no fraction.
	got, err := parseEpoch("2026-08-01T12:30:45")
	if err != nil {
		t.Fatalf("parseEpoch failed: %v", err)
	}
	if !got.Equal(time.Date(2026, 8, 1, 12, 30, 45, 0, time.UTC)) {
		t.Errorf("parseEpoch = %v, want 2026-08-01T12:30:45Z", got)
	}
}

// TestWrapTwoPi verifies angle normalization into [0, 2π).
func TestWrapTwoPi(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{2 * math.Pi, 0},
		{-math.Pi / 2, 3 * math.Pi / 2},
		{5 * math.Pi, math.Pi},
	}
	for _, tt := range tests {
		if got := wrapTwoPi(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("wrapTwoPi(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestNewCatalogEpochRange verifies the epoch range spans the element epochs.
func TestNewCatalogEpochRange(t *testing.T) {
	old := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	mid := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	cat := NewCatalog("test", time.Now(), []Elements{
		{NoradID: 1, Epoch: mid},
		{NoradID: 2, Epoch: recent},
		{NoradID: 3, Epoch: old},
	})

	if !cat.EpochRange.Min.Equal(old) {
		t.Errorf("EpochRange.Min = %v, want %v", cat.EpochRange.Min, old)
	}
	if !cat.EpochRange.Max.Equal(recent) {
		t.Errorf("EpochRange.Max = %v, want %v", cat.EpochRange.Max, recent)
	}
}

// TestStore verifies atomic catalog replacement and age reporting.
func TestStore(t *testing.T) {
	s := NewStore()
	if s.Get() != nil {
		t.Fatal("empty store should return nil")
	}
	if s.AgeSeconds() != -1 {
		t.Errorf("empty store AgeSeconds = %v, want -1", s.AgeSeconds())
	}

	cat := NewCatalog("test", time.Now().Add(-30*time.Second), nil)
	s.Set(cat)
	if s.Get() != cat {
		t.Fatal("Get did not return the stored catalog")
	}
	if age := s.AgeSeconds(); age < 29 || age > 35 {
		t.Errorf("AgeSeconds = %v, want ~30", age)
	}
}
