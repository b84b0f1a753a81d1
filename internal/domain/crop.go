package domain

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Crop is a plantable crop type with its growing requirements. Crops are
// values: Renamed and WithRequirement return modified copies.
type Crop struct {
	id           uuid.UUID
	name         string
	requirements Requirements
}

// NewCrop assigns a fresh random ID and validates the name and requirements.
// A temperature requirement is mandatory.
func NewCrop(name string, reqs ...Requirement) (Crop, error) {
	return RestoreCrop(uuid.New(), name, reqs...)
}

// RestoreCrop rebuilds a crop with an existing ID, e.g. when loading from storage.
func RestoreCrop(id uuid.UUID, name string, reqs ...Requirement) (Crop, error) {
	if id == uuid.Nil {
		return Crop{}, &CropError{Name: name, Msg: "id is required"}
	}
	clean, err := normalizeName(name)
	if err != nil {
		return Crop{}, err
	}
	set := make(Requirements, len(reqs))
	for _, r := range reqs {
		if r == nil {
			return Crop{}, &CropError{Name: clean, Msg: "requirement may not be nil"}
		}
		if _, dup := set[r.Kind()]; dup {
			return Crop{}, &CropError{Name: clean, Msg: "duplicate requirement kind " + string(r.Kind())}
		}
		set[r.Kind()] = r
	}
	if _, ok := set.Temperature(); !ok {
		return Crop{}, &CropError{Name: clean, Msg: "a temperature requirement is required"}
	}
	return Crop{id: id, name: clean, requirements: set}, nil
}

// normalizeName trims whitespace and title-cases each word: " sweet CORN " -> "Sweet Corn".
func normalizeName(name string) (string, error) {
	trimmed := strings.Join(strings.Fields(name), " ")
	if trimmed == "" {
		return "", &CropError{Name: name, Msg: "name may not be blank"}
	}
	return cases.Title(language.English).String(trimmed), nil
}

func (c Crop) ID() uuid.UUID { return c.id }
func (c Crop) Name() string  { return c.name }

// Requirements returns a copy of the crop's requirement set.
func (c Crop) Requirements() Requirements { return c.requirements.clone() }

// TemperatureRequirement is always present on a constructed crop.
func (c Crop) TemperatureRequirement() TemperatureRequirement {
	r, _ := c.requirements.Temperature()
	return r
}

// IsZero reports whether c was not built through NewCrop or RestoreCrop.
func (c Crop) IsZero() bool { return c.id == uuid.Nil }

// Renamed returns a copy of c with a new name. The ID is kept.
func (c Crop) Renamed(name string) (Crop, error) {
	clean, err := normalizeName(name)
	if err != nil {
		return Crop{}, err
	}
	out := c
	out.name = clean
	out.requirements = c.requirements.clone()
	return out, nil
}

// WithRequirement returns a copy of c with req replacing any requirement of the same kind.
func (c Crop) WithRequirement(req Requirement) (Crop, error) {
	if req == nil {
		return Crop{}, &CropError{Name: c.name, Msg: "requirement may not be nil"}
	}
	out := c
	out.requirements = c.requirements.clone()
	out.requirements[req.Kind()] = req
	return out, nil
}

func (c Crop) String() string { return c.name }

type cropJSON struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	Requirements Requirements `json:"requirements"`
}

func (c Crop) MarshalJSON() ([]byte, error) {
	return json.Marshal(cropJSON{ID: c.id, Name: c.name, Requirements: c.requirements})
}

func (c *Crop) UnmarshalJSON(b []byte) error {
	var raw cropJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	reqs := make([]Requirement, 0, len(raw.Requirements))
	for _, k := range raw.Requirements.Kinds() {
		reqs = append(reqs, raw.Requirements[k])
	}
	v, err := RestoreCrop(raw.ID, raw.Name, reqs...)
	if err != nil {
		return err
	}
	*c = v
	return nil
}
