package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ObservationKind distinguishes near-term forecasts from long-horizon history.
type ObservationKind int

const (
	Forecast ObservationKind = iota + 1
	Historic
)

func (k ObservationKind) String() string {
	switch k {
	case Forecast:
		return "forecast"
	case Historic:
		return "historic"
	default:
		return "unknown"
	}
}

func (k ObservationKind) MarshalText() ([]byte, error) {
	if k != Forecast && k != Historic {
		return nil, fmt.Errorf("unknown observation kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *ObservationKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "forecast":
		*k = Forecast
	case "historic":
		*k = Historic
	default:
		return fmt.Errorf("unknown observation kind %q", b)
	}
	return nil
}

// ObservationInput carries the raw fields of an observation. Fields that do
// not apply to Kind may be nil.
type ObservationInput struct {
	Place      Place           `json:"place"`
	Kind       ObservationKind `json:"kind"`
	High       *Temperature    `json:"high,omitempty"`
	Low        *Temperature    `json:"low,omitempty"`
	Average    *Temperature    `json:"average,omitempty"`
	ObservedAt time.Time       `json:"observed_at,omitzero"`
}

// WeatherObservation is a validated, timestamped weather snapshot for a place.
// Forecasts carry high and low and may carry an average. Historic observations
// carry an average and may carry a high.
type WeatherObservation struct {
	in ObservationInput
}

// NewObservation validates in against the rules of its kind. A zero
// ObservedAt is stamped with the current time.
func NewObservation(in ObservationInput) (WeatherObservation, error) {
	fail := func(msg string) (WeatherObservation, error) {
		return WeatherObservation{}, &WeatherObservationError{Place: in.Place.Key(), Kind: in.Kind, Msg: msg}
	}
	if in.Place.IsZero() {
		return fail("place is required")
	}
	switch in.Kind {
	case Forecast:
		if in.High == nil || in.Low == nil {
			return fail("forecast requires high and low")
		}
	case Historic:
		if in.Average == nil {
			return fail("historic observation requires an average")
		}
		if in.Low != nil {
			return fail("historic observation does not carry a low")
		}
	default:
		return fail("unknown observation kind")
	}

	var scale *Scale
	for _, t := range []*Temperature{in.High, in.Low, in.Average} {
		if t == nil {
			continue
		}
		if scale == nil {
			s := t.scale
			scale = &s
			continue
		}
		if t.scale != *scale {
			return fail("temperatures use different scales")
		}
	}
	if in.High != nil && in.Low != nil && in.Low.value > in.High.value {
		return fail("low may not exceed high")
	}

	out := in
	out.High = copyTemp(in.High)
	out.Low = copyTemp(in.Low)
	out.Average = copyTemp(in.Average)
	if out.ObservedAt.IsZero() {
		out.ObservedAt = clock.Now().UTC()
	}
	return WeatherObservation{in: out}, nil
}

// NewForecast builds a forecast observation without an average.
func NewForecast(place Place, high, low Temperature) (WeatherObservation, error) {
	return NewObservation(ObservationInput{Place: place, Kind: Forecast, High: &high, Low: &low})
}

// NewHistoric builds a historic observation from a long-horizon average.
func NewHistoric(place Place, average Temperature) (WeatherObservation, error) {
	return NewObservation(ObservationInput{Place: place, Kind: Historic, Average: &average})
}

func (o WeatherObservation) Place() Place                 { return o.in.Place }
func (o WeatherObservation) Kind() ObservationKind        { return o.in.Kind }
func (o WeatherObservation) ObservedAt() time.Time        { return o.in.ObservedAt }
func (o WeatherObservation) High() (Temperature, bool)    { return deref(o.in.High) }
func (o WeatherObservation) Low() (Temperature, bool)     { return deref(o.in.Low) }
func (o WeatherObservation) Average() (Temperature, bool) { return deref(o.in.Average) }

// Scale is the scale shared by every temperature in the observation.
func (o WeatherObservation) Scale() Scale {
	for _, t := range []*Temperature{o.in.High, o.in.Low, o.in.Average} {
		if t != nil {
			return t.scale
		}
	}
	return Fahrenheit
}

func (o WeatherObservation) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.in)
}

func (o *WeatherObservation) UnmarshalJSON(b []byte) error {
	var in ObservationInput
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	v, err := NewObservation(in)
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Weather is the set of observations a recommendation is computed from. At
// least one of Forecast and Historic must be present.
type Weather struct {
	Forecast *WeatherObservation `json:"forecast,omitempty"`
	Historic *WeatherObservation `json:"historic,omitempty"`
}

// Place returns the place the observations describe.
func (w Weather) Place() Place {
	if w.Forecast != nil {
		return w.Forecast.Place()
	}
	if w.Historic != nil {
		return w.Historic.Place()
	}
	return Place{}
}

// check verifies the observations can be evaluated against a requirement in scale.
func (w Weather) check(scale Scale) error {
	if w.Forecast == nil && w.Historic == nil {
		return &WeatherObservationError{Msg: "no forecast or historic observation supplied"}
	}
	for _, slot := range []struct {
		obs  *WeatherObservation
		want ObservationKind
	}{{w.Forecast, Forecast}, {w.Historic, Historic}} {
		if slot.obs == nil {
			continue
		}
		key := slot.obs.Place().Key()
		if slot.obs.Kind() != slot.want {
			return &WeatherObservationError{Place: key, Kind: slot.obs.Kind(), Msg: "expected a " + slot.want.String() + " observation"}
		}
		if slot.obs.Scale() != scale {
			return &WeatherObservationError{Place: key, Kind: slot.obs.Kind(), Msg: fmt.Sprintf("observation in %s, crop requirement in %s", slot.obs.Scale(), scale)}
		}
	}
	if w.Forecast != nil && w.Historic != nil && w.Forecast.Place().Key() != w.Historic.Place().Key() {
		return &WeatherObservationError{Place: w.Forecast.Place().Key(), Kind: Historic, Msg: "forecast and historic observations describe different places"}
	}
	return nil
}

// WeatherReport is what a WeatherSource returns for a place.
type WeatherReport struct {
	Place           Place       `json:"place"`
	ForecastHigh    Temperature `json:"forecast_high"`
	ForecastLow     Temperature `json:"forecast_low"`
	HistoricAverage Temperature `json:"historic_average"`
	ObservedAt      time.Time   `json:"observed_at"`
}

// Weather splits the report into forecast and historic observations.
func (r WeatherReport) Weather() (Weather, error) {
	fc, err := NewObservation(ObservationInput{
		Place: r.Place, Kind: Forecast,
		High: &r.ForecastHigh, Low: &r.ForecastLow,
		ObservedAt: r.ObservedAt,
	})
	if err != nil {
		return Weather{}, err
	}
	hist, err := NewObservation(ObservationInput{
		Place: r.Place, Kind: Historic,
		Average:    &r.HistoricAverage,
		ObservedAt: r.ObservedAt,
	})
	if err != nil {
		return Weather{}, err
	}
	return Weather{Forecast: &fc, Historic: &hist}, nil
}

func copyTemp(t *Temperature) *Temperature {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func deref(t *Temperature) (Temperature, bool) {
	if t == nil {
		return Temperature{}, false
	}
	return *t, true
}
