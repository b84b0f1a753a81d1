package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock geocoder ---

type mockGeocoder struct {
	result GeocodingResult
	err    error
	calls  int
}

func (m *mockGeocoder) Geocode(_ context.Context, _ Place) (GeocodingResult, error) {
	m.calls++
	return m.result, m.err
}

// --- tests ---

func TestLocate_AlreadyLocated(t *testing.T) {
	geo := &mockGeocoder{}
	place, err := NewPlace("22405", "US")
	require.NoError(t, err)
	place, err = place.WithCoordinates(Coordinates{Lat: 38.3, Lon: -77.4})
	require.NoError(t, err)

	got, err := Locate(context.Background(), place, geo)
	require.NoError(t, err)
	assert.Equal(t, place, got)
	assert.Equal(t, 0, geo.calls)
}

func TestLocate_Geocodes(t *testing.T) {
	geo := &mockGeocoder{result: GeocodingResult{
		Coordinates:      Coordinates{Lat: 38.3, Lon: -77.4},
		FormattedAddress: "Fredericksburg, Virginia 22405, United States",
		Confidence:       1,
	}}
	place, err := NewPlace("22405", "US")
	require.NoError(t, err)

	got, err := Locate(context.Background(), place, geo)
	require.NoError(t, err)
	require.NotNil(t, got.Coordinates)
	assert.Equal(t, 38.3, got.Coordinates.Lat)
	assert.Equal(t, -77.4, got.Coordinates.Lon)
	assert.Equal(t, place.Key(), got.Key())
	assert.Nil(t, place.Coordinates, "input place is not modified")
	assert.Equal(t, 1, geo.calls)
}

func TestLocate_Failures(t *testing.T) {
	place, err := NewPlace("22405", "US")
	require.NoError(t, err)
	apiErr := errors.New("service unavailable")

	tests := []struct {
		name    string
		geo     Geocoder
		wantErr error
	}{
		{name: "disabled", geo: nil},
		{name: "provider error", geo: &mockGeocoder{err: apiErr}, wantErr: apiErr},
		{name: "no match", geo: &mockGeocoder{}, wantErr: errNoGeocodingMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Locate(context.Background(), place, tt.geo)
			var weatherErr *WeatherError
			require.True(t, errors.As(err, &weatherErr))
			assert.Equal(t, "US-22405", weatherErr.Place)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLocate_InvalidCoordinates(t *testing.T) {
	geo := &mockGeocoder{result: GeocodingResult{Coordinates: Coordinates{Lat: 91, Lon: 0}, FormattedAddress: "nowhere"}}
	place, err := NewPlace("22405", "US")
	require.NoError(t, err)

	_, err = Locate(context.Background(), place, geo)
	var placeErr *PlaceError
	assert.True(t, errors.As(err, &placeErr))
}
