package domain

import (
	"context"
	"errors"
)

// errNoGeocodingMatch is returned by Locate when the provider finds nothing.
var errNoGeocodingMatch = errors.New("no geocoding match")

// Locate returns place with coordinates, geocoding only when they are missing.
// Geocoding failures are wrapped in a *WeatherError because weather cannot be
// fetched for an unlocated place.
func Locate(ctx context.Context, place Place, g Geocoder) (Place, error) {
	if place.Coordinates != nil {
		return place, nil
	}
	if g == nil {
		return Place{}, &WeatherError{Place: place.Key(), Err: errors.New("place has no coordinates and geocoding is disabled")}
	}
	result, err := g.Geocode(ctx, place)
	if err != nil {
		return Place{}, &WeatherError{Place: place.Key(), Err: err}
	}
	if result.Empty() {
		return Place{}, &WeatherError{Place: place.Key(), Err: errNoGeocodingMatch}
	}
	return place.WithCoordinates(result.Coordinates)
}
