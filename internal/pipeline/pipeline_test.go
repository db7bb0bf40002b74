package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
	"github.com/couchcryptid/quake-feed-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type fetchResult struct {
	events []domain.Earthquake
	err    error
}

// mockFetcher returns scripted results in order, repeating the last one.
type mockFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
	hours   int
	ranges  []domain.MagnitudeRange
}

func (m *mockFetcher) Fetch(_ context.Context, hours int, ranges []domain.MagnitudeRange) ([]domain.Earthquake, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hours, m.ranges = hours, ranges
	i := min(m.calls, len(m.results)-1)
	m.calls++
	return m.results[i].events, m.results[i].err
}

type mockLoader struct {
	mu      sync.Mutex
	batches [][]domain.Earthquake
	err     error
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.Earthquake) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, append([]domain.Earthquake(nil), events...))
	return nil
}

func (m *mockLoader) loaded() [][]domain.Earthquake {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]domain.Earthquake(nil), m.batches...)
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

func quake(id string, mag float64) domain.Earthquake {
	return domain.Earthquake{ID: id, Magnitude: ptr(mag)}
}

func ids(events []domain.Earthquake) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func newPoller(t *testing.T, f pipeline.Fetcher, l pipeline.BatchLoader, clock clockwork.Clock, metrics *observability.Metrics) *pipeline.Poller {
	t.Helper()
	p, err := pipeline.New(f, l, clock, testLogger(), metrics, pipeline.Options{
		Interval:      time.Minute,
		Selection:     domain.Selection{TimeIndex: 1, Magnitudes: []int{2}},
		SeenCacheSize: 100,
	})
	require.NoError(t, err)
	return p
}

// --- tests ---

func TestNew_InvalidOptions(t *testing.T) {
	_, err := pipeline.New(&mockFetcher{}, &mockLoader{}, nil, testLogger(), newTestMetrics(), pipeline.Options{
		Interval:  time.Minute,
		Selection: domain.Selection{TimeIndex: 7},
	})
	require.ErrorIs(t, err, domain.ErrInvalidSelection)

	_, err = pipeline.New(&mockFetcher{}, &mockLoader{}, nil, testLogger(), newTestMetrics(), pipeline.Options{})
	require.Error(t, err)
}

func TestPollOnce_PublishesOnlyNewEvents(t *testing.T) {
	f := &mockFetcher{results: []fetchResult{
		{events: []domain.Earthquake{quake("a", 4.2), quake("b", 5.1)}},
		{events: []domain.Earthquake{quake("c", 4.0), quake("a", 4.2), quake("b", 5.1)}},
	}}
	l := &mockLoader{}
	metrics := newTestMetrics()
	p := newPoller(t, f, l, clockwork.NewFakeClock(), metrics)

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	batches := l.loaded()
	require.Len(t, batches, 2)
	assert.Equal(t, []string{"a", "b"}, ids(batches[0]))
	assert.Equal(t, []string{"c"}, ids(batches[1]))

	assert.Equal(t, 48, f.hours)
	assert.Equal(t, []domain.MagnitudeRange{domain.BandModerate}, f.ranges)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.EventsPublished), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.SeenCache.WithLabelValues("hit")), 0)
}

func TestPollOnce_RevisedMagnitudeRepublishes(t *testing.T) {
	f := &mockFetcher{results: []fetchResult{
		{events: []domain.Earthquake{quake("a", 4.2)}},
		{events: []domain.Earthquake{quake("a", 4.4)}},
	}}
	l := &mockLoader{}
	metrics := newTestMetrics()
	p := newPoller(t, f, l, clockwork.NewFakeClock(), metrics)

	_, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	batches := l.loaded()
	require.Len(t, batches, 2)
	assert.Equal(t, 4.4, *batches[1][0].Magnitude)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SeenCache.WithLabelValues("revised")), 0)
}

func TestPollOnce_NothingNewSkipsLoad(t *testing.T) {
	f := &mockFetcher{results: []fetchResult{{events: []domain.Earthquake{}}}}
	l := &mockLoader{err: errors.New("must not be called")}
	p := newPoller(t, f, l, clockwork.NewFakeClock(), newTestMetrics())

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, p.Ready(), "an empty cycle still counts as completed")
	require.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPollOnce_LoadFailureKeepsEventsUnseen(t *testing.T) {
	f := &mockFetcher{results: []fetchResult{{events: []domain.Earthquake{quake("a", 4.2)}}}}
	l := &mockLoader{err: errors.New("broker down")}
	p := newPoller(t, f, l, clockwork.NewFakeClock(), newTestMetrics())

	_, err := p.PollOnce(context.Background())
	require.Error(t, err)
	assert.False(t, p.Ready())
	require.Error(t, p.CheckReadiness(context.Background()))

	l.mu.Lock()
	l.err = nil
	l.mu.Unlock()

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPollOnce_FetchError(t *testing.T) {
	f := &mockFetcher{results: []fetchResult{{err: errors.New("earthquake feed unavailable")}}}
	l := &mockLoader{}
	p := newPoller(t, f, l, clockwork.NewFakeClock(), newTestMetrics())

	_, err := p.PollOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch")
	assert.Empty(t, l.loaded())
}

func TestRun_ContextCancellation(t *testing.T) {
	f := &mockFetcher{results: []fetchResult{{events: []domain.Earthquake{quake("a", 4.2)}}}}
	l := &mockLoader{}
	p := newPoller(t, f, l, clockwork.NewFakeClock(), newTestMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, l.loaded())
}

func TestRun_PollsOnInterval(t *testing.T) {
	f := &mockFetcher{results: []fetchResult{
		{events: []domain.Earthquake{quake("a", 4.2)}},
		{events: []domain.Earthquake{quake("b", 4.9), quake("a", 4.2)}},
	}}
	l := &mockLoader{}
	clock := clockwork.NewFakeClock()
	metrics := newTestMetrics()
	p := newPoller(t, f, l, clock, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()

	// First cycle runs immediately, then the poller waits for the interval.
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	require.Len(t, l.loaded(), 1)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PollerRunning), 0)

	clock.Advance(time.Minute)
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))

	batches := l.loaded()
	require.Len(t, batches, 2)
	assert.Equal(t, []string{"b"}, ids(batches[1]))

	cancel()
	require.NoError(t, <-done)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PollerRunning), 0)
}

func TestRun_BacksOffAfterFailure(t *testing.T) {
	f := &mockFetcher{results: []fetchResult{
		{err: errors.New("timeout")},
		{events: []domain.Earthquake{quake("a", 4.2)}},
	}}
	l := &mockLoader{}
	clock := clockwork.NewFakeClock()
	p := newPoller(t, f, l, clock, newTestMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()

	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.False(t, p.Ready())
	assert.Empty(t, l.loaded())

	// The retry fires after the initial backoff, well before the interval.
	clock.Advance(200 * time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.True(t, p.Ready())
	assert.Len(t, l.loaded(), 1)

	cancel()
	require.NoError(t, <-done)
}
