package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// cropRecordFields is the column count of a crop import row:
// name, absolute low, optimal low, optimal high, absolute high.
const cropRecordFields = 5

// CropRecord is the flat shape crops are imported and stored in.
type CropRecord struct {
	Name         string  `json:"name" validate:"required"`
	AbsoluteLow  float64 `json:"absolute_low"`
	OptimalLow   float64 `json:"optimal_low"`
	OptimalHigh  float64 `json:"optimal_high"`
	AbsoluteHigh float64 `json:"absolute_high"`
	Scale        Scale   `json:"scale"`
}

// ParseCropRecord reads one CSV row in the order
// [name, absoluteLow, optimalLow, optimalHigh, absoluteHigh].
func ParseCropRecord(fields []string, scale Scale) (CropRecord, error) {
	if len(fields) != cropRecordFields {
		return CropRecord{}, &CropError{Name: firstField(fields), Msg: fmt.Sprintf("expected %d fields, got %d", cropRecordFields, len(fields))}
	}
	name := strings.TrimSpace(fields[0])
	temps := make([]float64, 0, 4)
	for _, f := range fields[1:] {
		t, err := ParseTemperature(f, scale)
		if err != nil {
			return CropRecord{}, &CropError{Name: name, Msg: "invalid temperature", Err: err}
		}
		temps = append(temps, float64(t.value))
	}
	return CropRecord{
		Name:         name,
		AbsoluteLow:  temps[0],
		OptimalLow:   temps[1],
		OptimalHigh:  temps[2],
		AbsoluteHigh: temps[3],
		Scale:        scale,
	}, nil
}

// Requirement builds the temperature requirement described by the record.
func (r CropRecord) Requirement() (TemperatureRequirement, error) {
	absolute, err := NewTemperatureRange(r.AbsoluteLow, r.AbsoluteHigh, r.Scale)
	if err != nil {
		return TemperatureRequirement{}, err
	}
	optimal, err := NewTemperatureRange(r.OptimalLow, r.OptimalHigh, r.Scale)
	if err != nil {
		return TemperatureRequirement{}, err
	}
	return NewTemperatureRequirement(absolute, optimal)
}

// NewCrop creates a crop with a fresh ID from the record.
func (r CropRecord) NewCrop() (Crop, error) {
	req, err := r.Requirement()
	if err != nil {
		return Crop{}, &CropError{Name: r.Name, Msg: "invalid requirement", Err: err}
	}
	return NewCrop(r.Name, req)
}

// Restore rebuilds a stored crop with its existing ID.
func (r CropRecord) Restore(id uuid.UUID) (Crop, error) {
	req, err := r.Requirement()
	if err != nil {
		return Crop{}, &CropError{Name: r.Name, Msg: "invalid requirement", Err: err}
	}
	return RestoreCrop(id, r.Name, req)
}

// CropRecordFromCrop flattens a crop's temperature requirement.
func CropRecordFromCrop(c Crop) CropRecord {
	req := c.TemperatureRequirement()
	return CropRecord{
		Name:         c.Name(),
		AbsoluteLow:  float64(req.absolute.low.value),
		OptimalLow:   float64(req.optimal.low.value),
		OptimalHigh:  float64(req.optimal.high.value),
		AbsoluteHigh: float64(req.absolute.high.value),
		Scale:        req.Scale(),
	}
}

// UnmarshalJSON rejects records that leave out a temperature bound rather
// than reading the bound as zero.
func (r *CropRecord) UnmarshalJSON(b []byte) error {
	var raw struct {
		Name         string   `json:"name"`
		AbsoluteLow  *float64 `json:"absolute_low"`
		OptimalLow   *float64 `json:"optimal_low"`
		OptimalHigh  *float64 `json:"optimal_high"`
		AbsoluteHigh *float64 `json:"absolute_high"`
		Scale        Scale    `json:"scale"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode crop record: %w", err)
	}
	bounds := []struct {
		field string
		v     *float64
	}{
		{"absolute_low", raw.AbsoluteLow},
		{"optimal_low", raw.OptimalLow},
		{"optimal_high", raw.OptimalHigh},
		{"absolute_high", raw.AbsoluteHigh},
	}
	for _, bound := range bounds {
		if bound.v == nil {
			return &CropError{Name: raw.Name, Msg: bound.field + " is required"}
		}
	}
	*r = CropRecord{
		Name:         raw.Name,
		AbsoluteLow:  *raw.AbsoluteLow,
		OptimalLow:   *raw.OptimalLow,
		OptimalHigh:  *raw.OptimalHigh,
		AbsoluteHigh: *raw.AbsoluteHigh,
		Scale:        raw.Scale,
	}
	return nil
}

// Fields renders the record as a CSV row.
func (r CropRecord) Fields() []string {
	return []string{
		r.Name,
		formatFloat(r.AbsoluteLow),
		formatFloat(r.OptimalLow),
		formatFloat(r.OptimalHigh),
		formatFloat(r.AbsoluteHigh),
	}
}

func firstField(fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimSpace(fields[0])
}
