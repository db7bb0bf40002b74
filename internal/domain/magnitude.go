package domain

import (
	"fmt"
	"math"
)

// MagnitudeRange is the half-open interval [Min, Max). A Max of +Inf marks
// the open top band ("Min and above").
type MagnitudeRange struct {
	Min float64
	Max float64
}

// The four selectable bands, indexed as in the selection UI.
var (
	BandMicro    = MagnitudeRange{Min: 0, Max: 2}
	BandMinor    = MagnitudeRange{Min: 2, Max: 4}
	BandModerate = MagnitudeRange{Min: 4, Max: 6}
	BandStrong   = MagnitudeRange{Min: 6, Max: math.Inf(1)}
)

var magnitudeBands = []MagnitudeRange{BandMicro, BandMinor, BandModerate, BandStrong}

// OpenTop reports whether the range has no upper bound.
func (r MagnitudeRange) OpenTop() bool {
	return math.IsInf(r.Max, 1)
}

// Contains reports whether m lies in the range.
func (r MagnitudeRange) Contains(m float64) bool {
	if r.OpenTop() {
		return m >= r.Min
	}
	return m >= r.Min && m < r.Max
}

// MaxHint returns the upper bound to send to the feed, nil for the open top.
func (r MagnitudeRange) MaxHint() *float64 {
	if r.OpenTop() {
		return nil
	}
	v := r.Max
	return &v
}

// MinHint returns the lower bound to send to the feed.
func (r MagnitudeRange) MinHint() *float64 {
	v := r.Min
	return &v
}

func (r MagnitudeRange) String() string {
	if r.OpenTop() {
		return fmt.Sprintf("%g+", r.Min)
	}
	return fmt.Sprintf("%g-%g", r.Min, r.Max)
}

// MatchesAny reports whether the magnitude satisfies the filter set. An empty
// set matches everything; a nil magnitude matches only the empty set.
func MatchesAny(magnitude *float64, ranges []MagnitudeRange) bool {
	if len(ranges) == 0 {
		return true
	}
	if magnitude == nil {
		return false
	}
	for _, r := range ranges {
		if r.Contains(*magnitude) {
			return true
		}
	}
	return false
}

// Superset returns the smallest single range covering every range in the
// set. ok is false when the set is empty.
func Superset(ranges []MagnitudeRange) (MagnitudeRange, bool) {
	if len(ranges) == 0 {
		return MagnitudeRange{}, false
	}
	out := ranges[0]
	for _, r := range ranges[1:] {
		out.Min = math.Min(out.Min, r.Min)
		out.Max = math.Max(out.Max, r.Max)
	}
	return out, true
}

// BandLabel names the band an event's magnitude falls into, or "unknown".
func BandLabel(magnitude *float64) string {
	if magnitude == nil {
		return "unknown"
	}
	for _, b := range magnitudeBands {
		if b.Contains(*magnitude) {
			return b.String()
		}
	}
	// Negative magnitudes exist for very small local events.
	return "negative"
}
