package usgs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
)

// DefaultBaseURL is the USGS FDSN event service root.
const DefaultBaseURL = "https://earthquake.usgs.gov/fdsnws/event/1"

// TimeLayout is the UTC timestamp format the feed expects for starttime/endtime.
const TimeLayout = "2006-01-02T15:04:05Z"

// Client implements domain.Feed using the USGS FDSN event query endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limit      int
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a USGS feed client. limit caps the number of features per
// request and should be large enough that legitimate result sets are not truncated.
func NewClient(baseURL string, timeout time.Duration, limit int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		limit:   limit,
		metrics: metrics,
		logger:  logger,
	}
}

// QueryRegionBox fetches events inside a bounding box.
func (c *Client) QueryRegionBox(ctx context.Context, q domain.BoxQuery) ([]domain.Feature, error) {
	params := c.baseParams(q.Start, q.End, q.MinMagnitude, q.MaxMagnitude)
	params.Set("minlatitude", formatFloat(q.Box.MinLat))
	params.Set("maxlatitude", formatFloat(q.Box.MaxLat))
	params.Set("minlongitude", formatFloat(q.Box.MinLon))
	params.Set("maxlongitude", formatFloat(q.Box.MaxLon))

	return c.doRequest(ctx, params, "box")
}

// QueryRegionCircle fetches events within a radius of a center point.
func (c *Client) QueryRegionCircle(ctx context.Context, q domain.CircleQuery) ([]domain.Feature, error) {
	params := c.baseParams(q.Start, q.End, q.MinMagnitude, q.MaxMagnitude)
	params.Set("latitude", formatFloat(q.Center.Lat))
	params.Set("longitude", formatFloat(q.Center.Lon))
	params.Set("maxradiuskm", formatFloat(q.RadiusKm))

	return c.doRequest(ctx, params, "circle")
}

func (c *Client) baseParams(start, end time.Time, minMag, maxMag *float64) url.Values {
	params := url.Values{
		"format":    {"geojson"},
		"starttime": {start.UTC().Format(TimeLayout)},
		"endtime":   {end.UTC().Format(TimeLayout)},
		"orderby":   {"time"},
		"limit":     {strconv.Itoa(c.limit)},
		"eventtype": {"earthquake"},
	}
	if minMag != nil {
		params.Set("minmagnitude", formatFloat(*minMag))
	}
	if maxMag != nil {
		params.Set("maxmagnitude", formatFloat(*maxMag))
	}
	return params
}

func (c *Client) doRequest(ctx context.Context, params url.Values, mode string) ([]domain.Feature, error) {
	fullURL := c.baseURL + "/query?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.FeedAPIDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FeedRequests.WithLabelValues(mode, "error").Inc()
		return nil, fmt.Errorf("%s feed request: %w", mode, err)
	}
	defer resp.Body.Close()

	// FDSN uses 204 for "no events match"; some deployments send it.
	if resp.StatusCode == http.StatusNoContent {
		c.metrics.FeedRequests.WithLabelValues(mode, "empty").Inc()
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.metrics.FeedRequests.WithLabelValues(mode, "error").Inc()
		return nil, fmt.Errorf("usgs API error: status %d: %s", resp.StatusCode, body)
	}

	var fc domain.FeatureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		c.metrics.FeedRequests.WithLabelValues(mode, "error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}

	outcome := "success"
	if len(fc.Features) == 0 {
		outcome = "empty"
	}
	c.metrics.FeedRequests.WithLabelValues(mode, outcome).Inc()
	c.logger.Debug("feed query complete", "mode", mode, "features", len(fc.Features))

	if len(fc.Features) >= c.limit {
		c.logger.Warn("feed result reached limit, results may be truncated",
			"mode", mode,
			"limit", c.limit,
		)
	}

	return fc.Features, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
