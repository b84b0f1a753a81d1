package domain

import (
	"errors"
	"fmt"
)

// ErrCropNotFound is wrapped by repositories when a crop ID has no record.
var ErrCropNotFound = errors.New("crop not found")

var (
	// ErrPlaceNotFound is wrapped by place repositories when a key has no record.
	ErrPlaceNotFound = errors.New("place not found")
	// ErrPlaceExists is wrapped when creating a place whose key is already stored.
	ErrPlaceExists = errors.New("place already exists")
)

// TemperatureError reports a non-numeric value, an unknown scale, or a scale
// mismatch in comparison or arithmetic.
type TemperatureError struct {
	Input string
	Scale Scale
	Msg   string
}

func (e *TemperatureError) Error() string {
	return fmt.Sprintf("temperature: %s (input %q)", e.Msg, e.Input)
}

// TemperatureRangeError reports an inverted range or a scale mismatch in a
// containment check.
type TemperatureRangeError struct {
	Low   Temperature
	High  Temperature
	Other string
	Msg   string
}

func (e *TemperatureRangeError) Error() string {
	s := fmt.Sprintf("temperature range [%d, %d] %s: %s", e.Low.value, e.High.value, e.Low.scale, e.Msg)
	if e.Other != "" {
		s += " (against " + e.Other + ")"
	}
	return s
}

// CropRequirementError reports an optimal range that is not nested in the
// absolute range, or ranges in different scales.
type CropRequirementError struct {
	Absolute TemperatureRange
	Optimal  TemperatureRange
	Msg      string
}

func (e *CropRequirementError) Error() string {
	return fmt.Sprintf("crop requirement: %s (absolute %s, optimal %s)", e.Msg, e.Absolute, e.Optimal)
}

// CropError reports a blank name or a malformed requirement set.
type CropError struct {
	Name string
	Msg  string
	Err  error
}

func (e *CropError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("crop %q: %s: %v", e.Name, e.Msg, e.Err)
	}
	return fmt.Sprintf("crop %q: %s", e.Name, e.Msg)
}

func (e *CropError) Unwrap() error { return e.Err }

// PlaceError reports an invalid postal code, country code or coordinate.
type PlaceError struct {
	PostalCode string
	Country    string
	Msg        string
}

func (e *PlaceError) Error() string {
	return fmt.Sprintf("place %q/%q: %s", e.PostalCode, e.Country, e.Msg)
}

// WeatherObservationError reports an observation missing a field required by
// its kind, or one whose scale or place does not match what it is checked against.
type WeatherObservationError struct {
	Place string
	Kind  ObservationKind
	Msg   string
}

func (e *WeatherObservationError) Error() string {
	return fmt.Sprintf("weather observation %s for %q: %s", e.Kind, e.Place, e.Msg)
}

// WeatherError wraps a failure of a weather collaborator for a place.
type WeatherError struct {
	Place string
	Err   error
}

func (e *WeatherError) Error() string {
	return fmt.Sprintf("weather for %q: %v", e.Place, e.Err)
}

func (e *WeatherError) Unwrap() error { return e.Err }

// RecommendationError reports invalid inputs to NewRecommendation.
type RecommendationError struct {
	Msg string
}

func (e *RecommendationError) Error() string {
	return "recommendation: " + e.Msg
}
