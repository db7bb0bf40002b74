package retrieval

import (
	"cmp"
	"slices"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
)

// Confine keeps events whose coordinates lie inside the region's acceptance
// box. Events without coordinates are dropped.
func Confine(events []domain.Earthquake, region domain.Region) []domain.Earthquake {
	out := make([]domain.Earthquake, 0, len(events))
	for _, e := range events {
		if region.Accepts(e) {
			out = append(out, e)
		}
	}
	return out
}

// FilterMagnitude keeps events matching any of the ranges. An empty range set
// keeps everything.
func FilterMagnitude(events []domain.Earthquake, ranges []domain.MagnitudeRange) []domain.Earthquake {
	if len(ranges) == 0 {
		return events
	}
	out := make([]domain.Earthquake, 0, len(events))
	for _, e := range events {
		if domain.MatchesAny(e.Magnitude, ranges) {
			out = append(out, e)
		}
	}
	return out
}

// Dedupe drops events whose ID was already seen. The first occurrence wins.
func Dedupe(events []domain.Earthquake) []domain.Earthquake {
	seen := make(map[string]struct{}, len(events))
	out := make([]domain.Earthquake, 0, len(events))
	for _, e := range events {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}

// SortNewestFirst orders events by occurrence time descending. Events without
// a timestamp sort as time 0, after everything else. The sort is stable.
func SortNewestFirst(events []domain.Earthquake) {
	slices.SortStableFunc(events, func(a, b domain.Earthquake) int {
		return cmp.Compare(b.OccurredAtOrZero(), a.OccurredAtOrZero())
	})
}

// refine applies confinement, magnitude filtering, deduplication and ordering.
func refine(events []domain.Earthquake, region domain.Region, ranges []domain.MagnitudeRange) []domain.Earthquake {
	out := Confine(events, region)
	out = FilterMagnitude(out, ranges)
	out = Dedupe(out)
	SortNewestFirst(out)
	return out
}
