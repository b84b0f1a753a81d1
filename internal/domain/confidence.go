package domain

import (
	"fmt"
	"strings"
)

// Confidence is how strictly the optimal band is applied. Its value is the
// strictness percentage: lower confidence widens the band.
type Confidence int

const (
	ConfidenceLow      Confidence = 95
	ConfidenceModerate Confidence = 98
	ConfidenceHigh     Confidence = 100
)

// ParseConfidence accepts "low", "moderate" or "high" in any case. An empty
// string yields ConfidenceHigh.
func ParseConfidence(s string) (Confidence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return ConfidenceLow, nil
	case "moderate":
		return ConfidenceModerate, nil
	case "high", "":
		return ConfidenceHigh, nil
	default:
		return 0, fmt.Errorf("unknown confidence %q", s)
	}
}

// Strictness is the percentage associated with the level.
func (c Confidence) Strictness() int { return int(c.orDefault()) }

// Factor is the fraction by which the optimal band is widened: (100-strictness)/100.
func (c Confidence) Factor() float64 {
	return float64(100-c.Strictness()) / 100
}

func (c Confidence) valid() bool {
	return c == ConfidenceLow || c == ConfidenceModerate || c == ConfidenceHigh
}

// orDefault maps the zero value to ConfidenceHigh.
func (c Confidence) orDefault() Confidence {
	if c == 0 {
		return ConfidenceHigh
	}
	return c
}

func (c Confidence) String() string {
	switch c.orDefault() {
	case ConfidenceLow:
		return "Low"
	case ConfidenceModerate:
		return "Moderate"
	case ConfidenceHigh:
		return "High"
	default:
		return fmt.Sprintf("Confidence(%d)", int(c))
	}
}

func (c Confidence) MarshalText() ([]byte, error) {
	if !c.orDefault().valid() {
		return nil, fmt.Errorf("unknown confidence %d", int(c))
	}
	return []byte(strings.ToLower(c.String())), nil
}

func (c *Confidence) UnmarshalText(b []byte) error {
	v, err := ParseConfidence(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
