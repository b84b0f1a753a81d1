package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// Bounds selects whether range endpoints count as inside the range.
type Bounds int

const (
	Inclusive Bounds = iota
	Exclusive
)

// ParseBounds accepts "inclusive" or "exclusive".
func ParseBounds(s string) (Bounds, error) {
	switch s {
	case "inclusive":
		return Inclusive, nil
	case "exclusive":
		return Exclusive, nil
	default:
		return 0, fmt.Errorf("unknown bounds %q", s)
	}
}

func (b Bounds) String() string {
	if b == Exclusive {
		return "exclusive"
	}
	return "inclusive"
}

// TemperatureRange is a closed interval [Low, High] in one scale.
type TemperatureRange struct {
	low  Temperature
	high Temperature
}

// NewTemperatureRange rounds both endpoints into scale and rejects low > high.
func NewTemperatureRange(low, high float64, scale Scale) (TemperatureRange, error) {
	lo, err := NewTemperature(low, scale)
	if err != nil {
		return TemperatureRange{}, err
	}
	hi, err := NewTemperature(high, scale)
	if err != nil {
		return TemperatureRange{}, err
	}
	return RangeOf(lo, hi)
}

// RangeOf builds a range from two temperatures of the same scale.
func RangeOf(low, high Temperature) (TemperatureRange, error) {
	if low.scale != high.scale {
		return TemperatureRange{}, &TemperatureRangeError{Low: low, High: high, Msg: "endpoints use different scales"}
	}
	if low.value > high.value {
		return TemperatureRange{}, &TemperatureRangeError{Low: low, High: high, Msg: "low may not be greater than high"}
	}
	return TemperatureRange{low: low, high: high}, nil
}

func (r TemperatureRange) Low() Temperature  { return r.low }
func (r TemperatureRange) High() Temperature { return r.high }
func (r TemperatureRange) Scale() Scale      { return r.low.scale }

// IncludesTemperature reports whether low <= t <= high.
func (r TemperatureRange) IncludesTemperature(t Temperature) (bool, error) {
	return r.IncludesTemperatureWith(t, Inclusive)
}

// IncludesTemperatureWith checks t against the range using the given bounds.
// Exclusive bounds require low < t < high.
func (r TemperatureRange) IncludesTemperatureWith(t Temperature, b Bounds) (bool, error) {
	if t.scale != r.Scale() {
		return false, &TemperatureRangeError{Low: r.low, High: r.high, Other: t.String(), Msg: "cannot compare temperatures of different scales"}
	}
	if b == Exclusive {
		return r.low.value < t.value && t.value < r.high.value, nil
	}
	return r.low.value <= t.value && t.value <= r.high.value, nil
}

// IncludesRange reports whether other is nested within r. Shared endpoints count as nested.
func (r TemperatureRange) IncludesRange(other TemperatureRange) (bool, error) {
	if other.Scale() != r.Scale() {
		return false, &TemperatureRangeError{Low: r.low, High: r.high, Other: other.String(), Msg: "cannot compare ranges of different scales"}
	}
	return r.low.value <= other.low.value && r.high.value >= other.high.value, nil
}

// widen stretches the range outwards by fraction f of each endpoint's magnitude.
func (r TemperatureRange) widen(f float64) TemperatureRange {
	if f <= 0 {
		return r
	}
	lo := float64(r.low.value)
	hi := float64(r.high.value)
	// Scale is already valid and the widened values stay finite, so these cannot fail.
	low, _ := NewTemperature(lo-math.Abs(lo)*f, r.Scale())
	high, _ := NewTemperature(hi+math.Abs(hi)*f, r.Scale())
	return TemperatureRange{low: low, high: high}
}

func (r TemperatureRange) String() string {
	return fmt.Sprintf("[%d, %d] %s", r.low.value, r.high.value, r.Scale())
}

type rangeJSON struct {
	Low   int   `json:"low"`
	High  int   `json:"high"`
	Scale Scale `json:"scale"`
}

func (r TemperatureRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(rangeJSON{Low: r.low.value, High: r.high.value, Scale: r.Scale()})
}

func (r *TemperatureRange) UnmarshalJSON(b []byte) error {
	var raw struct {
		Low   *float64 `json:"low"`
		High  *float64 `json:"high"`
		Scale Scale    `json:"scale"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode temperature range: %w", err)
	}
	if raw.Low == nil || raw.High == nil {
		return &TemperatureRangeError{Msg: "low and high are required"}
	}
	v, err := NewTemperatureRange(*raw.Low, *raw.High, raw.Scale)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

