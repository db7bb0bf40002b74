// Command quakefetch runs a single retrieval against the USGS feed and prints
// the result, optionally saving it as JSON. With -raw-out it also captures the
// unrefined GeoJSON response of the primary query, which is how the test
// fixtures under internal/pipeline/testdata are recorded.
//
// Usage:
//
//	go run ./cmd/quakefetch -window 1 -mag 2,3
//	go run ./cmd/quakefetch -province izmir -radius 200 -out results.json
//	go run ./cmd/quakefetch -raw-out internal/pipeline/testdata/capture.geojson
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/adapter/usgs"
	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
	"github.com/couchcryptid/quake-feed-service/internal/province"
	"github.com/couchcryptid/quake-feed-service/internal/retrieval"
	"github.com/jonboulle/clockwork"
)

type options struct {
	window   int
	mags     string
	province string
	lat, lon float64
	radius   float64
	baseURL  string
	timeout  time.Duration
	out      string
	rawOut   string
	verbose  bool
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var o options
	flag.IntVar(&o.window, "window", 0, "time window index: 0=24h 1=48h 2=72h 3=96h")
	flag.StringVar(&o.mags, "mag", "", "comma-separated magnitude band indices: 0=[0,2) 1=[2,4) 2=[4,6) 3=6+")
	flag.StringVar(&o.province, "province", "", "search around a province instead of the whole country")
	flag.Float64Var(&o.lat, "lat", 0, "search centre latitude (with -lon)")
	flag.Float64Var(&o.lon, "lon", 0, "search centre longitude (with -lat)")
	flag.Float64Var(&o.radius, "radius", 250, "search radius in km for -province or -lat/-lon")
	flag.StringVar(&o.baseURL, "base-url", usgs.DefaultBaseURL, "FDSN event service base URL")
	flag.DurationVar(&o.timeout, "timeout", 30*time.Second, "overall timeout")
	flag.StringVar(&o.out, "out", "", "write the refined result as JSON to this path")
	flag.StringVar(&o.rawOut, "raw-out", "", "write the raw GeoJSON of the primary query to this path")
	flag.BoolVar(&o.verbose, "v", false, "log plan attempts")
	flag.Parse()

	magnitudes, err := parseIndices(o.mags)
	if err != nil {
		return err
	}
	sel := domain.Selection{TimeIndex: o.window, Magnitudes: magnitudes}
	hours, ranges, err := sel.Query()
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	client := usgs.NewClient(o.baseURL, o.timeout, 5000, metrics, logger)
	planner := retrieval.NewPlanner(client, domain.Turkey, clock, metrics, logger)

	if o.rawOut != "" {
		if err := captureRaw(ctx, client, clock, hours, o.rawOut); err != nil {
			return err
		}
	}

	var events []domain.Earthquake
	center, label, around, err := resolveCenter(o, logger)
	if err != nil {
		return err
	}
	if around {
		fmt.Printf("Searching %.0f km around %s (%.4f, %.4f), last %s\n", o.radius, label, center.Lat, center.Lon, sel.TimeLabel())
		events, err = planner.FetchAroundPoint(ctx, hours, center, o.radius, ranges)
	} else {
		fmt.Printf("Searching %s, last %s\n", domain.Turkey.Name, sel.TimeLabel())
		events, err = planner.Fetch(ctx, hours, ranges)
	}
	if err != nil {
		return err
	}

	printEvents(os.Stdout, events)
	printStats(os.Stdout, events)

	if o.out != "" {
		if err := writeJSON(o.out, events); err != nil {
			return err
		}
		fmt.Printf("Wrote %d earthquakes to %s\n", len(events), o.out)
	}
	return nil
}

func resolveCenter(o options, logger *slog.Logger) (domain.Point, string, bool, error) {
	latLonSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "lat" || f.Name == "lon" {
			latLonSet = true
		}
	})

	switch {
	case latLonSet:
		return domain.Point{Lat: o.lat, Lon: o.lon}, "point", true, nil
	case o.province != "":
		p, err := province.Load(logger).Lookup(o.province)
		if err != nil {
			return domain.Point{}, "", false, err
		}
		return p.Point(), p.Name, true, nil
	default:
		return domain.Point{}, "", false, nil
	}
}

// captureRaw saves the unrefined box response for the window.
func captureRaw(ctx context.Context, client *usgs.Client, clock clockwork.Clock, hours int, path string) error {
	end := clock.Now().UTC()
	features, err := client.QueryRegionBox(ctx, domain.BoxQuery{
		Start: end.Add(-time.Duration(hours) * time.Hour),
		End:   end,
		Box:   domain.Turkey.QueryBounds,
	})
	if err != nil {
		return fmt.Errorf("raw capture: %w", err)
	}
	if features == nil {
		features = []domain.Feature{}
	}
	if err := writeJSON(path, domain.FeatureCollection{Type: "FeatureCollection", Features: features}); err != nil {
		return err
	}
	fmt.Printf("Captured %d raw features to %s\n", len(features), path)
	return nil
}

func parseIndices(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid magnitude index %q", part)
		}
		out = append(out, i)
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printEvents(w io.Writer, events []domain.Earthquake) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No earthquakes found.")
		return
	}
	for _, e := range events {
		when := "unknown time"
		if e.OccurredAtMillis != nil {
			when = time.UnixMilli(*e.OccurredAtMillis).UTC().Format("2006-01-02 15:04:05Z")
		}
		fmt.Fprintf(w, "  %-5s %-22s %s\n", formatMag(e.Magnitude), when, deref(e.Place))
	}
}

func printStats(w io.Writer, events []domain.Earthquake) {
	counts := map[string]int{}
	for _, e := range events {
		counts[domain.BandLabel(e.Magnitude)]++
	}
	bands := make([]string, 0, len(counts))
	for b := range counts {
		bands = append(bands, b)
	}
	sort.Strings(bands)

	fmt.Fprintf(w, "\nTotal: %d\n", len(events))
	for _, b := range bands {
		fmt.Fprintf(w, "  %-8s %d\n", b, counts[b])
	}
}

func formatMag(m *float64) string {
	if m == nil {
		return "-"
	}
	return strconv.FormatFloat(*m, 'f', 1, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
