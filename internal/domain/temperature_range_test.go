package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRange(t *testing.T, low, high float64, scale Scale) TemperatureRange {
	t.Helper()
	r, err := NewTemperatureRange(low, high, scale)
	require.NoError(t, err)
	return r
}

func TestNewTemperatureRange(t *testing.T) {
	r := mustRange(t, 29.6, 50.2, Fahrenheit)
	assert.Equal(t, DegreesF(30), r.Low())
	assert.Equal(t, DegreesF(50), r.High())
	assert.Equal(t, Fahrenheit, r.Scale())

	single := mustRange(t, 40, 40, Celsius)
	assert.Equal(t, single.Low(), single.High())
}

func TestNewTemperatureRange_LowAboveHigh(t *testing.T) {
	_, err := NewTemperatureRange(60, 50, Fahrenheit)
	var rangeErr *TemperatureRangeError
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, DegreesF(60), rangeErr.Low)
	assert.Equal(t, DegreesF(50), rangeErr.High)
}

func TestRangeOf_MixedScales(t *testing.T) {
	_, err := RangeOf(DegreesF(10), DegreesC(20))
	var rangeErr *TemperatureRangeError
	assert.True(t, errors.As(err, &rangeErr))
}

func TestTemperatureRange_OrderingHolds(t *testing.T) {
	for _, pair := range [][2]float64{{0, 0}, {-10, 5}, {32, 212}, {49.5, 50.4}} {
		r, err := NewTemperatureRange(pair[0], pair[1], Fahrenheit)
		require.NoError(t, err)
		assert.LessOrEqual(t, r.Low().Value(), r.High().Value())
	}
	for _, pair := range [][2]float64{{1, 0}, {50.6, 50.4}, {212, 32}} {
		_, err := NewTemperatureRange(pair[0], pair[1], Fahrenheit)
		var rangeErr *TemperatureRangeError
		assert.True(t, errors.As(err, &rangeErr), "%v", pair)
	}
}

func TestTemperatureRange_IncludesTemperature(t *testing.T) {
	r := mustRange(t, 10, 100, Fahrenheit)

	tests := []struct {
		name      string
		temp      Temperature
		inclusive bool
		exclusive bool
	}{
		{name: "inside", temp: DegreesF(50), inclusive: true, exclusive: true},
		{name: "at low", temp: DegreesF(10), inclusive: true, exclusive: false},
		{name: "at high", temp: DegreesF(100), inclusive: true, exclusive: false},
		{name: "below", temp: DegreesF(9), inclusive: false, exclusive: false},
		{name: "above", temp: DegreesF(101), inclusive: false, exclusive: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.IncludesTemperature(tt.temp)
			require.NoError(t, err)
			assert.Equal(t, tt.inclusive, got, "default bounds are inclusive")

			got, err = r.IncludesTemperatureWith(tt.temp, Exclusive)
			require.NoError(t, err)
			assert.Equal(t, tt.exclusive, got)
		})
	}
}

func TestTemperatureRange_IncludesTemperatureScaleMismatch(t *testing.T) {
	r := mustRange(t, 10, 100, Fahrenheit)
	_, err := r.IncludesTemperature(DegreesC(50))
	var rangeErr *TemperatureRangeError
	require.True(t, errors.As(err, &rangeErr))
	assert.Contains(t, rangeErr.Error(), "50 °C")
}

func TestTemperatureRange_IncludesRange(t *testing.T) {
	outer := mustRange(t, 10, 100, Fahrenheit)

	ok, err := outer.IncludesRange(mustRange(t, 30, 50, Fahrenheit))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mustRange(t, 30, 100, Fahrenheit).IncludesRange(mustRange(t, 10, 50, Fahrenheit))
	require.NoError(t, err)
	assert.False(t, ok, "overlapping ranges are not nested")

	ok, err = outer.IncludesRange(outer)
	require.NoError(t, err)
	assert.True(t, ok, "a range includes itself")

	_, err = outer.IncludesRange(mustRange(t, 10, 30, Celsius))
	var rangeErr *TemperatureRangeError
	assert.True(t, errors.As(err, &rangeErr))
}

func TestTemperatureRange_Widen(t *testing.T) {
	r := mustRange(t, 65, 75, Fahrenheit)
	assert.Equal(t, r, r.widen(0))

	w := r.widen(0.05)
	assert.Equal(t, 62, w.Low().Value())
	assert.Equal(t, 79, w.High().Value())

	neg := mustRange(t, -10, -2, Celsius).widen(0.5)
	assert.Equal(t, -15, neg.Low().Value())
	assert.Equal(t, -1, neg.High().Value())
}

func TestTemperatureRange_JSON(t *testing.T) {
	data, err := json.Marshal(mustRange(t, 40, 80, Fahrenheit))
	require.NoError(t, err)
	assert.JSONEq(t, `{"low":40,"high":80,"scale":"F"}`, string(data))

	var r TemperatureRange
	assert.Error(t, json.Unmarshal([]byte(`{"low":80,"high":40,"scale":"F"}`), &r))
}

func TestTemperatureRange_JSONMissingBound(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing low", body: `{"high":80,"scale":"F"}`},
		{name: "missing high", body: `{"low":40}`},
		{name: "null low", body: `{"low":null,"high":80}`},
		{name: "empty", body: `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r TemperatureRange
			err := json.Unmarshal([]byte(tt.body), &r)
			var rangeErr *TemperatureRangeError
			require.ErrorAs(t, err, &rangeErr)
			assert.Equal(t, TemperatureRange{}, r)
		})
	}

	var r TemperatureRange
	require.NoError(t, json.Unmarshal([]byte(`{"low":0,"high":80}`), &r))
	assert.Equal(t, 0, r.Low().Value())
}
