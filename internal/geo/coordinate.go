package geo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Point is a validated WGS-84 position in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ToNumber parses a form value into a finite number. Empty text, text that does
// not parse, NaN and the infinities all report ok=false; callers treat that as
// "not ready".
func ToNumber(value string) (float64, bool) {
	s := strings.TrimSpace(value)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// Input is a coordinate exactly as the operator typed it. The admin console
// sends either JSON strings or JSON numbers for the same field.
type Input string

// FromFloat renders a number as an Input.
func FromFloat(f float64) Input {
	return Input(strconv.FormatFloat(f, 'f', -1, 64))
}

// Float returns the numeric value of the input if it is finite.
func (in Input) Float() (float64, bool) {
	return ToNumber(string(in))
}

// UnmarshalJSON accepts a string, a number or null.
func (in *Input) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*in = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*in = Input(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("coordinate must be a string or number: %w", err)
		}
		*in = Input(n.String())
	}
	return nil
}

// PointOf validates a latitude/longitude pair. Both must be finite and within
// their geographic ranges.
func PointOf(lat, lng Input) (Point, bool) {
	la, ok := lat.Float()
	if !ok || la < -90 || la > 90 {
		return Point{}, false
	}
	ln, ok := lng.Float()
	if !ok || ln < -180 || ln > 180 {
		return Point{}, false
	}
	return Point{Lat: la, Lng: ln}, true
}

// Valid reports whether p has finite, in-range coordinates.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// String formats p as "lat,lng", the form the maps web services expect.
func (p Point) String() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}
