package domain

import "context"

// GeocodeResult is the best coordinate a geocoding provider returned for a
// query. Found distinguishes "no result" from the zero coordinate.
type GeocodeResult struct {
	Latitude  float64
	Longitude float64
	Found     bool
}

// Geocoder resolves a free-text place query to a single best coordinate.
// Implementations are subject to third-party rate limits; callers batch and
// throttle, the implementation only answers one query.
type Geocoder interface {
	Geocode(ctx context.Context, query, countryCode string) (GeocodeResult, error)
}
