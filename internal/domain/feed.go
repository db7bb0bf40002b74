package domain

import (
	"context"
	"time"
)

// BoxQuery asks the feed for events inside a bounding box.
type BoxQuery struct {
	Start        time.Time
	End          time.Time
	Box          BoundingBox
	MinMagnitude *float64
	MaxMagnitude *float64
}

// CircleQuery asks the feed for events within RadiusKm of Center.
type CircleQuery struct {
	Start        time.Time
	End          time.Time
	Center       Point
	RadiusKm     float64
	MinMagnitude *float64
	MaxMagnitude *float64
}

// Feed retrieves raw earthquake features from a remote event service.
// Implementations perform no retries and no fallback.
type Feed interface {
	// QueryRegionBox returns features inside the query's bounding box.
	QueryRegionBox(ctx context.Context, q BoxQuery) ([]Feature, error)

	// QueryRegionCircle returns features within the query's radius.
	QueryRegionCircle(ctx context.Context, q CircleQuery) ([]Feature, error)
}
