package domain

import "context"

// GeocodingResult is a provider's best match for a place.
type GeocodingResult struct {
	Coordinates      Coordinates
	FormattedAddress string
	Confidence       float64 // 0.0–1.0 provider relevance score
}

// Empty reports whether the provider found no match.
func (r GeocodingResult) Empty() bool {
	return r.FormattedAddress == "" && r.Coordinates == (Coordinates{})
}

// Geocoder resolves a place's postal code to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, place Place) (GeocodingResult, error)
}
