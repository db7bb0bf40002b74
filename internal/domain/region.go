package domain

// Point is a WGS-84 latitude/longitude pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BoundingBox is an inclusive latitude/longitude rectangle.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Point {
	return Point{
		Lat: (b.MinLat + b.MaxLat) / 2,
		Lon: (b.MinLon + b.MaxLon) / 2,
	}
}

// Region describes the single supported country.
type Region struct {
	Name string

	// Bounds is the acceptance box every returned event must fall into.
	Bounds BoundingBox

	// QueryBounds is the box sent to the feed. It is padded beyond Bounds.
	QueryBounds BoundingBox

	// FallbackRadiusKm is the circle radius used when the box query is empty.
	FallbackRadiusKm float64
}

// Turkey is the home region.
var Turkey = Region{
	Name:             "Türkiye",
	Bounds:           BoundingBox{MinLat: 35.5, MaxLat: 42.5, MinLon: 25.5, MaxLon: 45.0},
	QueryBounds:      BoundingBox{MinLat: 34.0, MaxLat: 43.5, MinLon: 24.0, MaxLon: 47.0},
	FallbackRadiusKm: 1000,
}

// Center returns the centroid of the acceptance box.
func (r Region) Center() Point {
	return r.Bounds.Center()
}

// Accepts reports whether the event has coordinates inside the acceptance box.
func (r Region) Accepts(e Earthquake) bool {
	if !e.HasCoordinates() {
		return false
	}
	return r.Bounds.Contains(*e.Latitude, *e.Longitude)
}
