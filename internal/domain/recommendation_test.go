package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecommendation_Invalid(t *testing.T) {
	place := testPlace(t)
	crop := testCrop(t)

	tests := []struct {
		name   string
		place  Place
		crop   Crop
		margin Temperature
		conf   Confidence
	}{
		{name: "missing place", crop: crop, margin: DegreesF(1), conf: ConfidenceHigh},
		{name: "zero crop", place: place, margin: DegreesF(1), conf: ConfidenceHigh},
		{name: "margin in other scale", place: place, crop: crop, margin: DegreesC(1), conf: ConfidenceHigh},
		{name: "invalid margin", place: place, crop: crop, margin: Temperature{scale: Scale(9)}, conf: ConfidenceHigh},
		{name: "unknown confidence", place: place, crop: crop, margin: DegreesF(1), conf: Confidence(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRecommendation(tt.place, tt.crop, true, tt.margin, tt.conf)
			var recErr *RecommendationError
			assert.True(t, errors.As(err, &recErr))
		})
	}
}

func TestRecommendation_String(t *testing.T) {
	rec, err := NewRecommendation(testPlace(t), testCrop(t), false, DegreesF(-4), ConfidenceLow)
	require.NoError(t, err)
	assert.Equal(t, "Corn at 22405, US: not recommended (margin -4 °F, confidence Low)", rec.String())
}
