package domain

import (
	"fmt"
	"time"
)

// Recommendation is the verdict on planting one crop at one place. Margin is
// the signed distance to the binding temperature boundary: positive means
// inside every band with room to spare, negative names the violated one.
type Recommendation struct {
	Place       Place       `json:"place"`
	Crop        Crop        `json:"crop"`
	Recommended bool        `json:"recommended"`
	Margin      Temperature `json:"margin"`
	Confidence  Confidence  `json:"confidence"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// NewRecommendation validates its inputs and stamps the current time.
func NewRecommendation(place Place, crop Crop, recommended bool, margin Temperature, conf Confidence) (Recommendation, error) {
	if place.IsZero() {
		return Recommendation{}, &RecommendationError{Msg: "place is required"}
	}
	if crop.IsZero() {
		return Recommendation{}, &RecommendationError{Msg: "crop must be a constructed crop"}
	}
	if !margin.scale.valid() {
		return Recommendation{}, &RecommendationError{Msg: "margin must be a valid temperature"}
	}
	if margin.scale != crop.TemperatureRequirement().Scale() {
		return Recommendation{}, &RecommendationError{Msg: fmt.Sprintf("margin in %s, crop requirement in %s", margin.scale, crop.TemperatureRequirement().Scale())}
	}
	conf = conf.orDefault()
	if !conf.valid() {
		return Recommendation{}, &RecommendationError{Msg: fmt.Sprintf("unknown confidence %d", int(conf))}
	}
	return Recommendation{
		Place:       place,
		Crop:        crop,
		Recommended: recommended,
		Margin:      margin,
		Confidence:  conf,
		GeneratedAt: clock.Now().UTC(),
	}, nil
}

func (r Recommendation) String() string {
	verdict := "not recommended"
	if r.Recommended {
		verdict = "recommended"
	}
	return fmt.Sprintf("%s at %s: %s (margin %s, confidence %s)", r.Crop, r.Place, verdict, r.Margin, r.Confidence)
}
