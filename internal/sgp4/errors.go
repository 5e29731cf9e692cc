package sgp4

import (
	"errors"
	"fmt"
)

// Kind classifies a propagation failure so callers can report it without
// matching on message text.
type Kind string

const (
	KindElementsOutOfRange Kind = "elements_out_of_range"
	KindDeepSpace          Kind = "deep_space_unsupported"
	KindKepler             Kind = "kepler_nonconvergent"
	KindDecayed            Kind = "decayed"
	KindOverflow           Kind = "numeric_overflow"
)

// KindError is implemented by all errors returned from this package.
type KindError interface {
	error
	Kind() Kind
}

// KindOf extracts the failure kind from an error chain. Returns "" if the
// error did not originate here.
func KindOf(err error) Kind {
	var ke KindError
	if errors.As(err, &ke) {
		return ke.Kind()
	}
	return ""
}

// ElementsError reports element values outside the SGP4 domain at
// constants derivation.
type ElementsError struct {
	NoradID int
	Detail  string
}

func (e *ElementsError) Error() string {
	return fmt.Sprintf("elements out of range for NORAD %d: %s", e.NoradID, e.Detail)
}

func (e *ElementsError) Kind() Kind { return KindElementsOutOfRange }

// DeepSpaceError reports an orbit with period >= 225 minutes, which this
// near-Earth-only implementation does not model.
type DeepSpaceError struct {
	NoradID       int
	PeriodMinutes float64
}

func (e *DeepSpaceError) Error() string {
	return fmt.Sprintf("deep-space orbit for NORAD %d: period %.1f min >= 225 min", e.NoradID, e.PeriodMinutes)
}

func (e *DeepSpaceError) Kind() Kind { return KindDeepSpace }

// KeplerError reports Newton iteration failing to converge.
type KeplerError struct {
	NoradID int
	Tsince  float64
}

func (e *KeplerError) Error() string {
	return fmt.Sprintf("kepler iteration did not converge for NORAD %d at tsince=%.3f min", e.NoradID, e.Tsince)
}

func (e *KeplerError) Kind() Kind { return KindKepler }

// DecayedError reports a satellite whose perigee fell at or below the Earth
// surface at the target time, or whose eccentricity left [0,1).
type DecayedError struct {
	NoradID   int
	AtMinutes float64
	Detail    string
}

func (e *DecayedError) Error() string {
	return fmt.Sprintf("satellite NORAD %d decayed at tsince=%.3f min: %s", e.NoradID, e.AtMinutes, e.Detail)
}

func (e *DecayedError) Kind() Kind { return KindDecayed }

// OverflowError reports a non-finite intermediate or output value.
type OverflowError struct {
	NoradID int
	Tsince  float64
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("non-finite result for NORAD %d at tsince=%.3f min", e.NoradID, e.Tsince)
}

func (e *OverflowError) Kind() Kind { return KindOverflow }
