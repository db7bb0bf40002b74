// Package retrieval turns a time window and magnitude selection into a
// confined, deduplicated, newest-first list of earthquakes, escalating through
// wider query plans when the feed returns nothing usable.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrFeedUnavailable is returned when no query against the feed succeeded.
	ErrFeedUnavailable = errors.New("earthquake feed unavailable")

	// ErrInvalidWindow is returned for a time window outside domain.TimeWindows.
	ErrInvalidWindow = errors.New("invalid time window")

	// ErrInvalidRadius is returned for a non-positive search radius.
	ErrInvalidRadius = errors.New("invalid radius")
)

// Fallback windows tried after the requested window and the circle query.
const (
	weekHours  = 168
	monthHours = 720
)

// Mode selects how a plan constrains the feed geographically.
type Mode int

const (
	ModeBox Mode = iota
	ModeCircle
)

func (m Mode) String() string {
	if m == ModeCircle {
		return "circle"
	}
	return "box"
}

// Plan is one (time window, geographic mode) query tried against the feed.
type Plan struct {
	Hours int
	Mode  Mode
}

func (p Plan) String() string {
	return fmt.Sprintf("%s/%dh", p.Mode, p.Hours)
}

// Plans returns the fallback chain for a requested window, in priority order.
func Plans(hoursWindow int) []Plan {
	return []Plan{
		{Hours: hoursWindow, Mode: ModeBox},
		{Hours: hoursWindow, Mode: ModeCircle},
		{Hours: weekHours, Mode: ModeBox},
		{Hours: monthHours, Mode: ModeBox},
	}
}

// Planner executes retrieval plans against a feed. It holds no state between
// calls; every call gets its own context for cancellation.
type Planner struct {
	feed    domain.Feed
	region  domain.Region
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPlanner creates a Planner for the given home region. A nil clock uses
// real time.
func NewPlanner(feed domain.Feed, region domain.Region, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Planner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Planner{
		feed:    feed,
		region:  region,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// Region returns the home region the planner confines results to.
func (p *Planner) Region() domain.Region {
	return p.region
}

// Fetch returns earthquakes in the home region for the last hoursWindow hours
// matching any of the ranges (all magnitudes when ranges is empty). Plans are
// tried in order until one yields a non-empty result. "No earthquakes" is an
// empty result, not an error.
func (p *Planner) Fetch(ctx context.Context, hoursWindow int, ranges []domain.MagnitudeRange) ([]domain.Earthquake, error) {
	if !slices.Contains(domain.TimeWindows, hoursWindow) {
		return nil, fmt.Errorf("%w: %dh", ErrInvalidWindow, hoursWindow)
	}

	logger := p.logger.With("fetch_id", uuid.NewString())
	plans := Plans(hoursWindow)

	attempts := make([]attempt[domain.Earthquake], 0, len(plans))
	for i, plan := range plans {
		label := strconv.Itoa(i)
		attempts = append(attempts, attempt[domain.Earthquake]{
			name: plan.String(),
			run: func(ctx context.Context) ([]domain.Earthquake, error) {
				out, err := p.runPlan(ctx, plan, ranges)
				p.recordAttempt(ctx, logger, label, plan, len(out), err)
				return out, err
			},
		})
	}

	out, err := firstNonEmpty(ctx, attempts)
	if err != nil {
		return nil, err
	}

	p.metrics.FetchResults.Observe(float64(len(out)))
	if len(out) == 0 {
		logger.Info("all plans exhausted without results", "window_hours", hoursWindow)
		return []domain.Earthquake{}, nil
	}
	return out, nil
}

// FetchAroundPoint returns earthquakes within radiusKm of center using a
// single circle query without fallback. The feed is narrowed by the smallest
// range covering every selected band; exact band matching, home-region
// confinement, deduplication and ordering happen client-side.
func (p *Planner) FetchAroundPoint(ctx context.Context, hoursWindow int, center domain.Point, radiusKm float64, ranges []domain.MagnitudeRange) ([]domain.Earthquake, error) {
	if !slices.Contains(domain.TimeWindows, hoursWindow) {
		return nil, fmt.Errorf("%w: %dh", ErrInvalidWindow, hoursWindow)
	}
	if radiusKm <= 0 {
		return nil, fmt.Errorf("%w: %g km", ErrInvalidRadius, radiusKm)
	}

	end := p.clock.Now().UTC()
	q := domain.CircleQuery{
		Start:    end.Add(-time.Duration(hoursWindow) * time.Hour),
		End:      end,
		Center:   center,
		RadiusKm: radiusKm,
	}
	if hint, ok := domain.Superset(ranges); ok {
		q.MinMagnitude = hint.MinHint()
		q.MaxMagnitude = hint.MaxHint()
	}

	features, err := p.feed.QueryRegionCircle(ctx, q)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		p.metrics.PlanAttempts.WithLabelValues("point", "error").Inc()
		p.logger.Warn("point query failed", "lat", center.Lat, "lon", center.Lon, "radius_km", radiusKm, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}

	out := refine(domain.NormalizeAll(features), p.region, ranges)

	outcome := "hit"
	if len(out) == 0 {
		outcome = "empty"
	}
	p.metrics.PlanAttempts.WithLabelValues("point", outcome).Inc()
	p.metrics.FetchResults.Observe(float64(len(out)))
	return out, nil
}

// runPlan queries the feed for one plan and refines the combined response.
func (p *Planner) runPlan(ctx context.Context, plan Plan, ranges []domain.MagnitudeRange) ([]domain.Earthquake, error) {
	end := p.clock.Now().UTC()
	start := end.Add(-time.Duration(plan.Hours) * time.Hour)

	features, err := p.queryPlan(ctx, plan, start, end, ranges)
	if err != nil {
		return nil, err
	}
	return refine(domain.NormalizeAll(features), p.region, ranges), nil
}

// queryPlan issues one query without ranges, or one query per range. Range
// queries run concurrently; results are concatenated in range order.
func (p *Planner) queryPlan(ctx context.Context, plan Plan, start, end time.Time, ranges []domain.MagnitudeRange) ([]domain.Feature, error) {
	if len(ranges) == 0 {
		return p.query(ctx, plan, start, end, nil, nil)
	}

	results := make([][]domain.Feature, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range ranges {
		g.Go(func() error {
			features, err := p.query(gctx, plan, start, end, r.MinHint(), r.MaxHint())
			if err != nil {
				return fmt.Errorf("range %s: %w", r, err)
			}
			results[i] = features
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var combined []domain.Feature
	for _, features := range results {
		combined = append(combined, features...)
	}
	return combined, nil
}

func (p *Planner) query(ctx context.Context, plan Plan, start, end time.Time, minMag, maxMag *float64) ([]domain.Feature, error) {
	switch plan.Mode {
	case ModeCircle:
		return p.feed.QueryRegionCircle(ctx, domain.CircleQuery{
			Start:        start,
			End:          end,
			Center:       p.region.Center(),
			RadiusKm:     p.region.FallbackRadiusKm,
			MinMagnitude: minMag,
			MaxMagnitude: maxMag,
		})
	default:
		return p.feed.QueryRegionBox(ctx, domain.BoxQuery{
			Start:        start,
			End:          end,
			Box:          p.region.QueryBounds,
			MinMagnitude: minMag,
			MaxMagnitude: maxMag,
		})
	}
}

// recordAttempt counts a plan outcome. A plan cut short by cancellation is
// counted as canceled, not as an error.
func (p *Planner) recordAttempt(ctx context.Context, logger *slog.Logger, label string, plan Plan, n int, err error) {
	switch {
	case err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled)):
		p.metrics.PlanAttempts.WithLabelValues(label, "canceled").Inc()
		logger.Debug("plan canceled", "plan", plan.String())
	case err != nil:
		p.metrics.PlanAttempts.WithLabelValues(label, "error").Inc()
		logger.Warn("plan failed, falling through", "plan", plan.String(), "error", err)
	case n == 0:
		p.metrics.PlanAttempts.WithLabelValues(label, "empty").Inc()
		logger.Debug("plan returned no events", "plan", plan.String())
	default:
		p.metrics.PlanAttempts.WithLabelValues(label, "hit").Inc()
		logger.Debug("plan returned events", "plan", plan.String(), "count", n)
	}
}
