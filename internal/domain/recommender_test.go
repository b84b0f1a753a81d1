package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cropWith(t *testing.T, name string, absLow, optLow, optHigh, absHigh float64) Crop {
	t.Helper()
	crop, err := NewCrop(name, mustRequirement(t, absLow, optLow, optHigh, absHigh, Fahrenheit))
	require.NoError(t, err)
	return crop
}

func weatherF(t *testing.T, high, low, historic int) Weather {
	t.Helper()
	place := testPlace(t)
	fc, err := NewForecast(place, DegreesF(high), DegreesF(low))
	require.NoError(t, err)
	hist, err := NewHistoric(place, DegreesF(historic))
	require.NoError(t, err)
	return Weather{Forecast: &fc, Historic: &hist}
}

func TestRecommend_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		crop       Crop
		weather    Weather
		opts       []RecommenderOption
		want       bool
		wantMargin int
	}{
		{
			name:       "within every band",
			crop:       cropWith(t, "corn", 40, 65, 75, 80),
			weather:    weatherF(t, 79, 41, 70),
			want:       true,
			wantMargin: 1,
		},
		{
			name:       "forecast low breaches absolute",
			crop:       cropWith(t, "corn", 45, 65, 75, 80),
			weather:    weatherF(t, 79, 41, 70),
			want:       false,
			wantMargin: -4,
		},
		{
			name:       "forecast high breaches absolute",
			crop:       cropWith(t, "corn", 40, 65, 75, 78),
			weather:    weatherF(t, 79, 41, 70),
			want:       false,
			wantMargin: -1,
		},
		{
			name:       "historic average above optimal",
			crop:       cropWith(t, "corn", 40, 65, 75, 80),
			weather:    weatherF(t, 79, 41, 77),
			want:       false,
			wantMargin: -2,
		},
		{
			name:       "forecast midpoint outside optimal",
			crop:       cropWith(t, "corn", 40, 65, 75, 80),
			weather:    weatherF(t, 79, 41, 70),
			opts:       []RecommenderOption{WithForecastMidpoint(true)},
			want:       false,
			wantMargin: -5,
		},
		{
			name:       "forecast at absolute limits",
			crop:       cropWith(t, "corn", 41, 65, 75, 79),
			weather:    weatherF(t, 79, 41, 70),
			want:       true,
			wantMargin: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NewRecommender(tt.opts...).Recommend(tt.crop, tt.weather, ConfidenceHigh)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Recommended)
			assert.Equal(t, DegreesF(tt.wantMargin), rec.Margin)
			assert.Equal(t, tt.crop.ID(), rec.Crop.ID())
			assert.Equal(t, "US-22405", rec.Place.Key())
		})
	}
}

// A historic average exactly on the optimal boundary is rejected by default
// and accepted when the historic check is made inclusive.
func TestRecommend_HistoricBoundary(t *testing.T) {
	crop := cropWith(t, "corn", 40, 65, 75, 80)

	for _, hist := range []int{65, 75} {
		w := weatherF(t, 79, 41, hist)

		rec, err := NewRecommender().Recommend(crop, w, ConfidenceHigh)
		require.NoError(t, err)
		assert.False(t, rec.Recommended, "historic %d", hist)
		assert.Equal(t, 0, rec.Margin.Value())

		inclusive := DefaultBoundaryPolicy()
		inclusive.Historic = Inclusive
		rec, err = NewRecommender(WithBoundaryPolicy(inclusive)).Recommend(crop, w, ConfidenceHigh)
		require.NoError(t, err)
		assert.True(t, rec.Recommended, "historic %d", hist)
		assert.Equal(t, 0, rec.Margin.Value())
	}
}

func TestRecommend_AbsoluteBoundaryExclusive(t *testing.T) {
	crop := cropWith(t, "corn", 41, 65, 75, 79)
	policy := DefaultBoundaryPolicy()
	policy.Absolute = Exclusive

	rec, err := NewRecommender(WithBoundaryPolicy(policy)).Recommend(crop, weatherF(t, 79, 41, 70), ConfidenceHigh)
	require.NoError(t, err)
	assert.False(t, rec.Recommended)
}

func TestRecommend_ConfidenceWidensOptimal(t *testing.T) {
	crop := cropWith(t, "corn", 40, 65, 75, 80)
	w := weatherF(t, 79, 41, 63)
	r := NewRecommender()

	tests := []struct {
		conf Confidence
		want bool
	}{
		{conf: ConfidenceHigh, want: false},
		{conf: ConfidenceModerate, want: false},
		{conf: ConfidenceLow, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.conf.String(), func(t *testing.T) {
			rec, err := r.Recommend(crop, w, tt.conf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Recommended)
			assert.Equal(t, tt.conf, rec.Confidence)
		})
	}
}

func TestRecommend_ConfidenceIsMonotonic(t *testing.T) {
	crops := []Crop{
		cropWith(t, "corn", 40, 65, 75, 80),
		cropWith(t, "kale", -10, 20, 60, 85),
		cropWith(t, "rye", -20, -5, 10, 40),
	}
	r := NewRecommender()

	for _, crop := range crops {
		for hist := -30; hist <= 100; hist++ {
			w := weatherF(t, 30, 29, hist)
			w.Forecast = nil

			high, err := r.Recommend(crop, w, ConfidenceHigh)
			require.NoError(t, err)
			moderate, err := r.Recommend(crop, w, ConfidenceModerate)
			require.NoError(t, err)
			low, err := r.Recommend(crop, w, ConfidenceLow)
			require.NoError(t, err)

			if high.Recommended {
				assert.True(t, moderate.Recommended, "%s at %d", crop, hist)
			}
			if moderate.Recommended {
				assert.True(t, low.Recommended, "%s at %d", crop, hist)
			}
			assert.LessOrEqual(t, high.Margin.Value(), moderate.Margin.Value())
			assert.LessOrEqual(t, moderate.Margin.Value(), low.Margin.Value())
		}
	}
}

func TestRecommend_PartialWeather(t *testing.T) {
	crop := cropWith(t, "corn", 40, 65, 75, 80)
	full := weatherF(t, 79, 41, 90)

	rec, err := NewRecommender().Recommend(crop, Weather{Forecast: full.Forecast}, ConfidenceHigh)
	require.NoError(t, err)
	assert.True(t, rec.Recommended, "historic check is skipped")

	rec, err = NewRecommender().Recommend(crop, Weather{Historic: full.Historic}, ConfidenceHigh)
	require.NoError(t, err)
	assert.False(t, rec.Recommended)
	assert.Equal(t, -15, rec.Margin.Value())
}

func TestRecommend_ForecastAverage(t *testing.T) {
	crop := cropWith(t, "corn", 40, 65, 75, 80)
	fc, err := NewObservation(ObservationInput{
		Place:   testPlace(t),
		Kind:    Forecast,
		High:    tempPtr(DegreesF(79)),
		Low:     tempPtr(DegreesF(41)),
		Average: tempPtr(DegreesF(64)),
	})
	require.NoError(t, err)

	rec, err := NewRecommender().Recommend(crop, Weather{Forecast: &fc}, ConfidenceHigh)
	require.NoError(t, err)
	assert.False(t, rec.Recommended)
	assert.Equal(t, -1, rec.Margin.Value())
}

func TestRecommend_Errors(t *testing.T) {
	crop := cropWith(t, "corn", 40, 65, 75, 80)
	r := NewRecommender()

	celsius, err := NewHistoric(testPlace(t), DegreesC(20))
	require.NoError(t, err)
	_, err = r.Recommend(crop, Weather{Historic: &celsius}, ConfidenceHigh)
	var obsErr *WeatherObservationError
	assert.True(t, errors.As(err, &obsErr))

	_, err = r.Recommend(crop, Weather{}, ConfidenceHigh)
	assert.True(t, errors.As(err, &obsErr))

	_, err = r.Recommend(Crop{}, weatherF(t, 79, 41, 70), ConfidenceHigh)
	var cropErr *CropError
	assert.True(t, errors.As(err, &cropErr))

	_, err = r.Recommend(crop, weatherF(t, 79, 41, 70), Confidence(50))
	var recErr *RecommendationError
	assert.True(t, errors.As(err, &recErr))
}

func TestRecommend_Timestamp(t *testing.T) {
	fc := clockwork.NewFakeClockAt(time.Date(2026, 4, 1, 6, 30, 0, 0, time.UTC))
	SetClock(fc)
	defer SetClock(nil)

	rec, err := NewRecommender().Recommend(cropWith(t, "corn", 40, 65, 75, 80), weatherF(t, 79, 41, 70), 0)
	require.NoError(t, err)
	assert.Equal(t, fc.Now().UTC(), rec.GeneratedAt)
	assert.Equal(t, ConfidenceHigh, rec.Confidence)
}

func TestRecommendAll(t *testing.T) {
	good := cropWith(t, "corn", 40, 65, 75, 80)
	bad := cropWith(t, "okra", 45, 65, 75, 80)
	crops := []Crop{good, {}, bad, good}

	result := NewRecommender(WithWorkers(2)).RecommendAll(crops, weatherF(t, 79, 41, 70), ConfidenceModerate)

	assert.Equal(t, "US-22405", result.Place.Key())
	assert.Equal(t, ConfidenceModerate, result.Confidence)
	require.Len(t, result.Recommendations, 3)
	assert.Equal(t, "Corn", result.Recommendations[0].Crop.Name())
	assert.Equal(t, "Okra", result.Recommendations[1].Crop.Name())
	assert.Equal(t, "Corn", result.Recommendations[2].Crop.Name())

	require.Len(t, result.Failures, 1)
	var cropErr *CropError
	assert.True(t, errors.As(result.Failures[0].Err, &cropErr))

	recommended := result.Recommended()
	require.Len(t, recommended, 2)
	for _, rec := range recommended {
		assert.Equal(t, good.ID(), rec.Crop.ID())
	}
}

func TestRecommendAll_ZeroValueRecommender(t *testing.T) {
	crops := []Crop{cropWith(t, "corn", 40, 65, 75, 80), cropWith(t, "kale", 20, 40, 55, 70)}

	w := weatherF(t, 79, 41, 70)
	done := make(chan BatchResult, 1)
	go func() { done <- new(Recommender).RecommendAll(crops, w, ConfidenceHigh) }()

	select {
	case result := <-done:
		require.Len(t, result.Recommendations, 2)
		assert.True(t, result.Recommendations[0].Recommended)
		assert.False(t, result.Recommendations[1].Recommended)
	case <-time.After(5 * time.Second):
		t.Fatal("RecommendAll did not return")
	}
}

func TestRecommendAll_Empty(t *testing.T) {
	result := NewRecommender().RecommendAll(nil, weatherF(t, 79, 41, 70), 0)
	assert.Empty(t, result.Recommendations)
	assert.Empty(t, result.Failures)
	assert.Equal(t, ConfidenceHigh, result.Confidence)
}

func TestCropFailure_JSON(t *testing.T) {
	data, err := json.Marshal(CropFailure{Crop: testCrop(t), Err: errors.New("boom")})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"error":"boom"`)
	assert.Contains(t, string(data), `"name":"Corn"`)
}
