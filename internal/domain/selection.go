package domain

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidSelection is returned for time or magnitude indices outside the
// selectable options.
var ErrInvalidSelection = errors.New("invalid selection")

// TimeWindows are the selectable look-back windows in hours.
var TimeWindows = []int{24, 48, 72, 96}

var timeLabels = []string{"24 saat", "48 saat", "72 saat", "96 saat"}

// MapSelection converts UI selection indices into query parameters. Duplicate
// magnitude indices collapse and ranges come back in ascending band order. An
// empty index set yields nil ranges, meaning "no magnitude filter".
func MapSelection(timeIndex int, magnitudeIndices []int) (int, []MagnitudeRange, error) {
	if timeIndex < 0 || timeIndex >= len(TimeWindows) {
		return 0, nil, fmt.Errorf("%w: time index %d", ErrInvalidSelection, timeIndex)
	}
	hours := TimeWindows[timeIndex]

	if len(magnitudeIndices) == 0 {
		return hours, nil, nil
	}

	seen := make(map[int]struct{}, len(magnitudeIndices))
	idx := make([]int, 0, len(magnitudeIndices))
	for _, i := range magnitudeIndices {
		if i < 0 || i >= len(magnitudeBands) {
			return 0, nil, fmt.Errorf("%w: magnitude index %d", ErrInvalidSelection, i)
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		idx = append(idx, i)
	}
	sort.Ints(idx)

	ranges := make([]MagnitudeRange, 0, len(idx))
	for _, i := range idx {
		ranges = append(ranges, magnitudeBands[i])
	}
	return hours, ranges, nil
}

// Selection is the user's current filter state. Methods return updated copies.
type Selection struct {
	TimeIndex  int   `json:"time_index"`
	Magnitudes []int `json:"magnitudes"`
}

// SelectTime returns a copy with the time window index replaced.
func (s Selection) SelectTime(i int) Selection {
	return Selection{TimeIndex: i, Magnitudes: s.magnitudesCopy()}
}

// ToggleMagnitude adds the band index if absent, removes it if present.
func (s Selection) ToggleMagnitude(i int) Selection {
	out := make([]int, 0, len(s.Magnitudes)+1)
	removed := false
	for _, m := range s.Magnitudes {
		if m == i {
			removed = true
			continue
		}
		out = append(out, m)
	}
	if !removed {
		out = append(out, i)
	}
	sort.Ints(out)
	return Selection{TimeIndex: s.TimeIndex, Magnitudes: out}
}

// ClearMagnitudes resets the magnitude selection to "no filter".
func (s Selection) ClearMagnitudes() Selection {
	return Selection{TimeIndex: s.TimeIndex}
}

// Query maps the selection to (hours, ranges).
func (s Selection) Query() (int, []MagnitudeRange, error) {
	return MapSelection(s.TimeIndex, s.Magnitudes)
}

// TimeLabel is the display label for the selected window.
func (s Selection) TimeLabel() string {
	if s.TimeIndex < 0 || s.TimeIndex >= len(timeLabels) {
		return ""
	}
	return timeLabels[s.TimeIndex]
}

func (s Selection) magnitudesCopy() []int {
	if len(s.Magnitudes) == 0 {
		return nil
	}
	out := make([]int, len(s.Magnitudes))
	copy(out, s.Magnitudes)
	return out
}
