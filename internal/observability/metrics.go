package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Feed client metrics.
	FeedRequests    *prometheus.CounterVec   // labels: mode={box,circle}, outcome={success,error,empty}
	FeedAPIDuration *prometheus.HistogramVec // labels: mode={box,circle}

	// Retrieval planner metrics.
	PlanAttempts *prometheus.CounterVec // labels: plan={0..3,point}, outcome={hit,empty,error,canceled}
	FetchResults prometheus.Histogram

	// Poller metrics.
	EventsPublished prometheus.Counter
	SeenCache       *prometheus.CounterVec // labels: result={hit,miss,revised}
	PollerRunning   prometheus.Gauge
	PollDuration    prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.FeedRequests,
		m.FeedAPIDuration,
		m.PlanAttempts,
		m.FetchResults,
		m.EventsPublished,
		m.SeenCache,
		m.PollerRunning,
		m.PollDuration,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "feed_requests_total",
			Help:      "USGS feed requests by query mode and outcome.",
		}, []string{"mode", "outcome"}),
		FeedAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quake_feed",
			Name:      "feed_request_duration_seconds",
			Help:      "USGS feed request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"mode"}),
		PlanAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "plan_attempts_total",
			Help:      "Retrieval plan attempts by plan and outcome.",
		}, []string{"plan", "outcome"}),
		FetchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_feed",
			Name:      "fetch_result_size",
			Help:      "Number of earthquakes returned per retrieval.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "events_published_total",
			Help:      "Total earthquake events written to the sink topic.",
		}),
		SeenCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "seen_cache_total",
			Help:      "Poller seen-set lookups by result.",
		}, []string{"result"}),
		PollerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_feed",
			Name:      "poller_running",
			Help:      "1 when the poller is active, 0 when shut down.",
		}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_feed",
			Name:      "poll_duration_seconds",
			Help:      "Duration of a complete fetch-and-publish cycle.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}
