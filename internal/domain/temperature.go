package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Scale is a temperature scale. The zero value is Fahrenheit.
type Scale int

const (
	Fahrenheit Scale = iota
	Celsius
)

// ParseScale accepts "F", "C", "fahrenheit" or "celsius" in any case.
func ParseScale(s string) (Scale, error) {
	switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "°"))) {
	case "f", "fahrenheit":
		return Fahrenheit, nil
	case "c", "celsius":
		return Celsius, nil
	default:
		return 0, &TemperatureError{Input: s, Msg: "unknown temperature scale"}
	}
}

func (s Scale) valid() bool {
	return s == Fahrenheit || s == Celsius
}

// Letter returns "F" or "C".
func (s Scale) Letter() string {
	switch s {
	case Fahrenheit:
		return "F"
	case Celsius:
		return "C"
	default:
		return "?"
	}
}

func (s Scale) String() string {
	return "°" + s.Letter()
}

func (s Scale) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, &TemperatureError{Input: strconv.Itoa(int(s)), Msg: "unknown temperature scale"}
	}
	return []byte(s.Letter()), nil
}

func (s *Scale) UnmarshalText(b []byte) error {
	v, err := ParseScale(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Temperature is a whole-degree temperature in a single scale. Values are only
// comparable with temperatures of the same scale.
type Temperature struct {
	value int
	scale Scale
}

// NewTemperature rounds value to the nearest whole degree.
func NewTemperature(value float64, scale Scale) (Temperature, error) {
	if !scale.valid() {
		return Temperature{}, &TemperatureError{Input: formatFloat(value), Msg: "unknown temperature scale"}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Temperature{}, &TemperatureError{Input: formatFloat(value), Scale: scale, Msg: "temperature must be a finite number"}
	}
	rounded := math.Round(value)
	if rounded > math.MaxInt32 || rounded < math.MinInt32 {
		return Temperature{}, &TemperatureError{Input: formatFloat(value), Scale: scale, Msg: "temperature out of range"}
	}
	return Temperature{value: int(rounded), scale: scale}, nil
}

// ParseTemperature parses a decimal string such as "71.6".
func ParseTemperature(s string, scale Scale) (Temperature, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return Temperature{}, &TemperatureError{Input: s, Scale: scale, Msg: "temperature must be numeric"}
	}
	return NewTemperature(v, scale)
}

// DegreesF returns a Fahrenheit temperature. Intended for literals.
func DegreesF(v int) Temperature {
	return Temperature{value: v, scale: Fahrenheit}
}

// DegreesC returns a Celsius temperature. Intended for literals.
func DegreesC(v int) Temperature {
	return Temperature{value: v, scale: Celsius}
}

func (t Temperature) Value() int   { return t.value }
func (t Temperature) Scale() Scale { return t.scale }

// Equal is false for temperatures of different scales.
func (t Temperature) Equal(other Temperature) bool {
	return t.scale == other.scale && t.value == other.value
}

// Compare returns -1, 0 or 1. Comparing across scales is an error.
func (t Temperature) Compare(other Temperature) (int, error) {
	if t.scale != other.scale {
		return 0, scaleMismatch(t, other, "cannot compare")
	}
	switch {
	case t.value < other.value:
		return -1, nil
	case t.value > other.value:
		return 1, nil
	default:
		return 0, nil
	}
}

// Add sums two temperatures of the same scale.
func (t Temperature) Add(other Temperature) (Temperature, error) {
	if t.scale != other.scale {
		return Temperature{}, scaleMismatch(t, other, "cannot add")
	}
	return Temperature{value: t.value + other.value, scale: t.scale}, nil
}

// Sub subtracts other from t. The result keeps t's scale.
func (t Temperature) Sub(other Temperature) (Temperature, error) {
	if t.scale != other.scale {
		return Temperature{}, scaleMismatch(t, other, "cannot subtract")
	}
	return Temperature{value: t.value - other.value, scale: t.scale}, nil
}

func (t Temperature) String() string {
	return fmt.Sprintf("%d %s", t.value, t.scale)
}

type temperatureJSON struct {
	Value int   `json:"value"`
	Scale Scale `json:"scale"`
}

func (t Temperature) MarshalJSON() ([]byte, error) {
	return json.Marshal(temperatureJSON{Value: t.value, Scale: t.scale})
}

func (t *Temperature) UnmarshalJSON(b []byte) error {
	var raw struct {
		Value *float64 `json:"value"`
		Scale Scale    `json:"scale"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return &TemperatureError{Input: string(b), Msg: "temperature must be numeric"}
	}
	if raw.Value == nil {
		return &TemperatureError{Input: string(b), Scale: raw.Scale, Msg: "temperature value is required"}
	}
	v, err := NewTemperature(*raw.Value, raw.Scale)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func scaleMismatch(a, b Temperature, op string) error {
	return &TemperatureError{
		Input: fmt.Sprintf("%s, %s", a, b),
		Scale: a.scale,
		Msg:   op + " temperatures of different scales",
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
