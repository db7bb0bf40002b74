// Package pipeline periodically retrieves earthquakes for a fixed selection
// and publishes the ones not yet seen to a downstream sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Fetcher retrieves earthquakes for a window and magnitude filter.
type Fetcher interface {
	Fetch(ctx context.Context, hoursWindow int, ranges []domain.MagnitudeRange) ([]domain.Earthquake, error)
}

// BatchLoader writes multiple earthquakes to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.Earthquake) error
}

// Options configures a Poller.
type Options struct {
	Interval      time.Duration
	Selection     domain.Selection
	SeenCacheSize int
}

// Poller orchestrates the fetch-dedupe-publish loop.
type Poller struct {
	fetcher  Fetcher
	loader   BatchLoader
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	seen     *seenSet
	interval time.Duration
	hours    int
	ranges   []domain.MagnitudeRange
	ready    atomic.Bool
}

// New creates a Poller. The selection is validated once up front.
func New(f Fetcher, l BatchLoader, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, opts Options) (*Poller, error) {
	hours, ranges, err := opts.Selection.Query()
	if err != nil {
		return nil, fmt.Errorf("poll selection: %w", err)
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", opts.Interval)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{
		fetcher:  f,
		loader:   l,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		seen:     newSeenSet(opts.SeenCacheSize),
		interval: opts.Interval,
		hours:    hours,
		ranges:   ranges,
	}, nil
}

// CheckReadiness returns nil once the poller has completed one cycle,
// or an error describing why the service is not yet ready.
func (p *Poller) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("poller has not completed a cycle yet")
	}
	return nil
}

// Ready reports whether at least one cycle completed.
func (p *Poller) Ready() bool {
	return p.ready.Load()
}

// Run polls until the context is cancelled. A failed cycle is retried with
// exponential backoff instead of waiting for the next interval.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "interval", p.interval, "window_hours", p.hours, "ranges", len(p.ranges))
	p.metrics.PollerRunning.Set(1)
	defer p.metrics.PollerRunning.Set(0)

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			p.logger.Info("poller stopping", "reason", ctx.Err())
			return nil
		}

		if _, err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Error("poll cycle failed", "error", err, "retry_in", backoff)
			if !sleepWithContext(ctx, p.clock, backoff) {
				continue
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}

		backoff = initialBackoff
		sleepWithContext(ctx, p.clock, p.interval)
	}
}

// PollOnce runs one fetch-dedupe-publish cycle and returns how many events
// were published. Events are marked as seen only after a successful load, so
// a failed publish is retried in full on the next cycle.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	start := p.clock.Now()

	events, err := p.fetcher.Fetch(ctx, p.hours, p.ranges)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}

	fresh := make([]domain.Earthquake, 0, len(events))
	for _, e := range events {
		result := p.seen.check(e)
		p.metrics.SeenCache.WithLabelValues(string(result)).Inc()
		if result == seenHit {
			continue
		}
		if result == seenRevised {
			p.logger.Info("magnitude revised", "id", e.ID, "band", domain.BandLabel(e.Magnitude))
		}
		fresh = append(fresh, e)
	}

	if len(fresh) > 0 {
		if err := p.loader.LoadBatch(ctx, fresh); err != nil {
			return 0, fmt.Errorf("load batch of %d: %w", len(fresh), err)
		}
		for _, e := range fresh {
			p.seen.mark(e)
		}
		p.metrics.EventsPublished.Add(float64(len(fresh)))
	}

	p.metrics.PollDuration.Observe(p.clock.Since(start).Seconds())
	p.ready.Store(true)
	p.logger.Debug("poll cycle complete", "fetched", len(events), "published", len(fresh))
	return len(fresh), nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
