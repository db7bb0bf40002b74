// Package domain models earthquake records retrieved from the USGS FDSN event
// service for the Turkey region.
//
// # Data Source
//
// Events come from the USGS FDSN event web service query endpoint,
// https://earthquake.usgs.gov/fdsnws/event/1/query, requested with
// format=geojson. Each response is a GeoJSON FeatureCollection; every feature
// carries an event ID, a properties block, and a point geometry.
//
// # USGS GeoJSON Conventions
//
// Coordinates:
//
//	[longitude, latitude, depth]  →  e.g. [35.21, 38.44, 10.0]
//	Longitude comes first, as in all GeoJSON. Depth is in kilometers.
//	The array may be shorter than three elements or missing entirely.
//
// Time:
//
//	properties.time is milliseconds since the Unix epoch (UTC).
//	Query bounds (starttime, endtime) are sent as "2006-01-02T15:04:05Z".
//
// Magnitude:
//
//	properties.mag is a decimal value whose scale varies by network
//	(ml, mb, mww, ...). It is null for some automatic solutions.
//
// # Region
//
// The service is confined to Turkey. The query box sent to the feed is padded
// slightly beyond the acceptance box, and every result is filtered
// client-side against the acceptance box regardless of how it was queried:
//
//	acceptance: lat 35.5..42.5, lon 25.5..45.0
//	query:      lat 34.0..43.5, lon 24.0..47.0
//
// # Magnitude Bands
//
// The selection UI offers four bands, each half-open except the last:
//
//	0: [0, 2)   1: [2, 4)   2: [4, 6)   3: [6, ∞)
//
// An empty selection means no magnitude filter. A record without a magnitude
// never matches an active filter.
package domain
