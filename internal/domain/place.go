package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinates) validate() error {
	if c.Lat <= -90 || c.Lat >= 90 {
		return fmt.Errorf("latitude %.4f must be between -90 and 90", c.Lat)
	}
	if c.Lon <= -180 || c.Lon >= 180 {
		return fmt.Errorf("longitude %.4f must be between -180 and 180", c.Lon)
	}
	return nil
}

func (c Coordinates) String() string {
	ns, ew := "N", "E"
	lat, lon := c.Lat, c.Lon
	if lat < 0 {
		ns, lat = "S", -lat
	}
	if lon < 0 {
		ew, lon = "W", -lon
	}
	return fmt.Sprintf("%.2f°%s %.2f°%s", lat, ns, lon, ew)
}

// Place is where crops are planted: a postal code within a country, with
// optional coordinates.
type Place struct {
	PostalCode  string       `json:"postal_code"`
	Country     string       `json:"country"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// NewPlace trims the postal code and upper-cases the two-letter ISO country code.
func NewPlace(postalCode, country string) (Place, error) {
	pc := strings.TrimSpace(postalCode)
	cc := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(country), " ", ""))
	if pc == "" {
		return Place{}, &PlaceError{PostalCode: postalCode, Country: country, Msg: "postal code may not be blank"}
	}
	if len(cc) != 2 || !isASCIIUpper(cc) {
		return Place{}, &PlaceError{PostalCode: postalCode, Country: country, Msg: "country must be a two-letter code"}
	}
	return Place{PostalCode: pc, Country: cc}, nil
}

// ParsePlace reads "US:22405" style keys as used in configuration. An
// optional "@lat,lon" suffix locates the place, e.g. "US:22405@38.3,-77.4".
func ParsePlace(s string) (Place, error) {
	key, loc, located := strings.Cut(strings.TrimSpace(s), "@")
	country, postal, ok := strings.Cut(key, ":")
	if !ok {
		return Place{}, &PlaceError{PostalCode: s, Msg: "expected COUNTRY:POSTAL[@LAT,LON]"}
	}
	place, err := NewPlace(postal, country)
	if err != nil || !located {
		return place, err
	}
	lat, lon, ok := strings.Cut(loc, ",")
	if !ok {
		return Place{}, &PlaceError{PostalCode: postal, Country: country, Msg: fmt.Sprintf("coordinates %q: expected LAT,LON", loc)}
	}
	var c Coordinates
	if c.Lat, err = strconv.ParseFloat(strings.TrimSpace(lat), 64); err != nil {
		return Place{}, &PlaceError{PostalCode: postal, Country: country, Msg: fmt.Sprintf("latitude %q is not a number", lat)}
	}
	if c.Lon, err = strconv.ParseFloat(strings.TrimSpace(lon), 64); err != nil {
		return Place{}, &PlaceError{PostalCode: postal, Country: country, Msg: fmt.Sprintf("longitude %q is not a number", lon)}
	}
	return place.WithCoordinates(c)
}

// Located reports whether the place carries coordinates.
func (p Place) Located() bool { return p.Coordinates != nil }

// WithCoordinates returns a copy of p located at c.
func (p Place) WithCoordinates(c Coordinates) (Place, error) {
	if err := c.validate(); err != nil {
		return Place{}, &PlaceError{PostalCode: p.PostalCode, Country: p.Country, Msg: err.Error()}
	}
	p.Coordinates = &c
	return p, nil
}

// UnmarshalJSON builds the place through NewPlace and WithCoordinates so
// decoded places obey the same rules as constructed ones.
func (p *Place) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var raw struct {
		PostalCode  string       `json:"postal_code"`
		Country     string       `json:"country"`
		Coordinates *Coordinates `json:"coordinates"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode place: %w", err)
	}
	place, err := NewPlace(raw.PostalCode, raw.Country)
	if err != nil {
		return err
	}
	if raw.Coordinates != nil {
		if place, err = place.WithCoordinates(*raw.Coordinates); err != nil {
			return err
		}
	}
	*p = place
	return nil
}

// Key identifies the place regardless of coordinates, e.g. "US-22405".
func (p Place) Key() string {
	return p.Country + "-" + p.PostalCode
}

// IsZero reports whether p was never set.
func (p Place) IsZero() bool {
	return p.PostalCode == "" && p.Country == ""
}

func (p Place) String() string {
	return p.PostalCode + ", " + p.Country
}

func isASCIIUpper(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
