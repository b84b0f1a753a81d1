package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// RequirementKind names a category of growing requirement.
type RequirementKind string

// RequirementTemperature is the only kind evaluated by the Recommender today.
const RequirementTemperature RequirementKind = "temperature"

// Requirement is one growing condition a crop places on its environment.
type Requirement interface {
	Kind() RequirementKind
	requirement()
}

// TemperatureRequirement holds the band a crop survives in (Absolute) and the
// band it thrives in (Optimal). Optimal is always nested in Absolute.
type TemperatureRequirement struct {
	absolute TemperatureRange
	optimal  TemperatureRange
}

// NewTemperatureRequirement validates scale equality, then containment.
func NewTemperatureRequirement(absolute, optimal TemperatureRange) (TemperatureRequirement, error) {
	if absolute.Scale() != optimal.Scale() {
		return TemperatureRequirement{}, &CropRequirementError{Absolute: absolute, Optimal: optimal, Msg: "absolute and optimal ranges use different scales"}
	}
	ok, err := absolute.IncludesRange(optimal)
	if err != nil {
		return TemperatureRequirement{}, &CropRequirementError{Absolute: absolute, Optimal: optimal, Msg: err.Error()}
	}
	if !ok {
		return TemperatureRequirement{}, &CropRequirementError{Absolute: absolute, Optimal: optimal, Msg: "optimal range must lie within absolute range"}
	}
	return TemperatureRequirement{absolute: absolute, optimal: optimal}, nil
}

func (TemperatureRequirement) Kind() RequirementKind { return RequirementTemperature }
func (TemperatureRequirement) requirement()          {}

func (r TemperatureRequirement) Absolute() TemperatureRange { return r.absolute }
func (r TemperatureRequirement) Optimal() TemperatureRange  { return r.optimal }
func (r TemperatureRequirement) Scale() Scale               { return r.absolute.Scale() }

func (r TemperatureRequirement) String() string {
	return fmt.Sprintf("absolute %s, optimal %s", r.absolute, r.optimal)
}

type temperatureRequirementJSON struct {
	Absolute TemperatureRange `json:"absolute"`
	Optimal  TemperatureRange `json:"optimal"`
}

func (r TemperatureRequirement) MarshalJSON() ([]byte, error) {
	return json.Marshal(temperatureRequirementJSON{Absolute: r.absolute, Optimal: r.optimal})
}

func (r *TemperatureRequirement) UnmarshalJSON(b []byte) error {
	var raw temperatureRequirementJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v, err := NewTemperatureRequirement(raw.Absolute, raw.Optimal)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Requirements maps each kind to at most one requirement.
type Requirements map[RequirementKind]Requirement

// Kinds returns the kinds present, sorted.
func (rs Requirements) Kinds() []RequirementKind {
	kinds := make([]RequirementKind, 0, len(rs))
	for k := range rs {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Temperature returns the temperature requirement if present.
func (rs Requirements) Temperature() (TemperatureRequirement, bool) {
	r, ok := rs[RequirementTemperature].(TemperatureRequirement)
	return r, ok
}

func (rs Requirements) clone() Requirements {
	out := make(Requirements, len(rs))
	for k, v := range rs {
		out[k] = v
	}
	return out
}

// UnmarshalJSON decodes known kinds and rejects the rest.
func (rs *Requirements) UnmarshalJSON(b []byte) error {
	var raw map[RequirementKind]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Requirements, len(raw))
	for kind, msg := range raw {
		switch kind {
		case RequirementTemperature:
			var tr TemperatureRequirement
			if err := json.Unmarshal(msg, &tr); err != nil {
				return err
			}
			out[kind] = tr
		default:
			return fmt.Errorf("unsupported requirement kind %q", kind)
		}
	}
	*rs = out
	return nil
}
