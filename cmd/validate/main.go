// Command validate checks a recorded USGS GeoJSON capture (see quakefetch
// -raw-out) before it is committed as a test fixture. It verifies the feed
// shape, coordinate sanity, regional coverage and that the refinement steps
// produce a confined, duplicate-free, newest-first list.
//
// Usage:
//
//	go run ./cmd/validate -in internal/pipeline/testdata/usgs_turkey_sample.geojson
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/retrieval"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	in := flag.String("in", "", "path to a GeoJSON FeatureCollection capture")
	expect := flag.Int("expect-refined", -1, "expected number of events after refinement (-1 to skip)")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*in, *expect); code != 0 {
		os.Exit(code)
	}
}

func run(path string, expectRefined int) int {
	fmt.Println("=== Earthquake Fixture Validation ===")
	fmt.Println()

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read fixture: %v\n", err)
		return 1
	}

	var fc domain.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: decode fixture: %v\n", err)
		return 1
	}

	events := domain.NormalizeAll(fc.Features)
	refined := retrieval.Confine(events, domain.Turkey)
	refined = retrieval.Dedupe(refined)
	retrieval.SortNewestFirst(refined)

	phases := []*phase{
		validateShape(fc),
		validateCoordinates(events),
		validateCoverage(events, domain.Turkey),
		validateRefinement(refined, domain.Turkey, expectRefined),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Features: %d raw, %d after refinement\n", len(fc.Features), len(refined))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validateShape(fc domain.FeatureCollection) *phase {
	p := &phase{name: "Phase 1: Feed shape"}
	if fc.Type != "FeatureCollection" {
		p.errorf("type is %q, want FeatureCollection", fc.Type)
	}
	if len(fc.Features) == 0 {
		p.errorf("no features")
	}
	for i, f := range fc.Features {
		if f.ID == "" {
			p.errorf("feature %d: missing id", i)
		}
		if f.Geometry == nil {
			p.errorf("feature %s: missing geometry", f.ID)
		}
		if f.Properties.Time == nil {
			p.errorf("feature %s: missing time", f.ID)
		}
	}
	return p
}

func validateCoordinates(events []domain.Earthquake) *phase {
	p := &phase{name: "Phase 2: Coordinates"}
	for _, e := range events {
		if !e.HasCoordinates() {
			p.errorf("%s: missing latitude/longitude", e.ID)
			continue
		}
		if *e.Latitude < -90 || *e.Latitude > 90 {
			p.errorf("%s: latitude %v out of range", e.ID, *e.Latitude)
		}
		if *e.Longitude < -180 || *e.Longitude > 180 {
			p.errorf("%s: longitude %v out of range", e.ID, *e.Longitude)
		}
		if e.DepthKm != nil && *e.DepthKm < -10 {
			p.errorf("%s: depth %v km above ground", e.ID, *e.DepthKm)
		}
	}
	return p
}

// validateCoverage checks that every event lies within the padded query box:
// the feed must never return events outside what was asked for.
func validateCoverage(events []domain.Earthquake, region domain.Region) *phase {
	p := &phase{name: "Phase 3: Regional coverage"}
	inside := 0
	for _, e := range events {
		if !e.HasCoordinates() {
			continue
		}
		if !region.QueryBounds.Contains(*e.Latitude, *e.Longitude) {
			p.errorf("%s: (%.3f, %.3f) outside the query box", e.ID, *e.Latitude, *e.Longitude)
		}
		if region.Accepts(e) {
			inside++
		}
	}
	fmt.Printf("  %d of %d events inside the %s acceptance box\n", inside, len(events), region.Name)
	return p
}

func validateRefinement(refined []domain.Earthquake, region domain.Region, expect int) *phase {
	p := &phase{name: "Phase 4: Refinement"}
	seen := make(map[string]bool, len(refined))
	for i, e := range refined {
		if seen[e.ID] {
			p.errorf("%s: duplicate after dedupe", e.ID)
		}
		seen[e.ID] = true
		if !region.Accepts(e) {
			p.errorf("%s: outside acceptance box after confinement", e.ID)
		}
		if i > 0 && refined[i-1].OccurredAtOrZero() < e.OccurredAtOrZero() {
			p.errorf("%s: not newest-first at position %d", e.ID, i)
		}
	}
	if expect >= 0 && len(refined) != expect {
		p.errorf("refined count %d, expected %d", len(refined), expect)
	}
	return p
}
