package domain

// Feature is one raw GeoJSON feature as returned by the USGS feed.
type Feature struct {
	ID         string     `json:"id"`
	Properties Properties `json:"properties"`
	Geometry   *Geometry  `json:"geometry"`
}

// Properties is the subset of feature properties the service consumes.
type Properties struct {
	Mag   *float64 `json:"mag"`
	Place *string  `json:"place"`
	Time  *int64   `json:"time"` // epoch millis
	URL   *string  `json:"url"`
}

// Geometry holds a GeoJSON point.
type Geometry struct {
	Type        string    `json:"type,omitempty"`
	Coordinates []float64 `json:"coordinates"` // [lon, lat, depth_km]
}

// FeatureCollection is the top-level feed response.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Earthquake is the normalized, wire-independent representation of one event.
// Pointer fields are optional and nil when the source omits them.
type Earthquake struct {
	ID               string   `json:"id"`
	Magnitude        *float64 `json:"magnitude"`
	Place            *string  `json:"place,omitempty"`
	OccurredAtMillis *int64   `json:"occurred_at_millis,omitempty"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	DepthKm          *float64 `json:"depth_km,omitempty"`
	DetailURL        *string  `json:"detail_url,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are present.
func (e Earthquake) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// OccurredAtOrZero returns the event time in epoch millis, or 0 when unknown.
func (e Earthquake) OccurredAtOrZero() int64 {
	if e.OccurredAtMillis == nil {
		return 0
	}
	return *e.OccurredAtMillis
}

// Normalize maps a raw feed feature to an Earthquake. Missing fields become
// nil; it never fails.
func Normalize(f Feature) Earthquake {
	var coords []float64
	if f.Geometry != nil {
		coords = f.Geometry.Coordinates
	}

	return Earthquake{
		ID:               f.ID,
		Magnitude:        copyFloat(f.Properties.Mag),
		Place:            copyString(f.Properties.Place),
		OccurredAtMillis: copyInt(f.Properties.Time),
		Longitude:        coordAt(coords, 0),
		Latitude:         coordAt(coords, 1),
		DepthKm:          coordAt(coords, 2),
		DetailURL:        copyString(f.Properties.URL),
	}
}

// NormalizeAll maps every feature in order.
func NormalizeAll(features []Feature) []Earthquake {
	out := make([]Earthquake, 0, len(features))
	for _, f := range features {
		out = append(out, Normalize(f))
	}
	return out
}

func coordAt(coords []float64, i int) *float64 {
	if i >= len(coords) {
		return nil
	}
	v := coords[i]
	return &v
}

// The copies keep Earthquake values independent of the decoded feature.

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
