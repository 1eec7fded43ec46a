package geo

import (
	"encoding/binary"
	"fmt"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-polyline"
)

// Preview is what the map renders for a computed path. It is the only place
// the encoded path is ever decoded.
type Preview struct {
	Geometry    string  `json:"geometry"` // GeoJSON LineString
	Points      int     `json:"points"`
	Bounds      Bounds  `json:"bounds"`
	ApproxKm    float64 `json:"approx_km"`
	EncodedPath string  `json:"encoded_path"`
}

// DecodePath decodes a Google encoded polyline into points.
func DecodePath(encoded string) ([]Point, error) {
	coords, rest, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode path: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("decode path: %d trailing bytes", len(rest))
	}
	pts := make([]Point, 0, len(coords))
	for _, c := range coords {
		pts = append(pts, Point{Lat: c[0], Lng: c[1]})
	}
	return pts, nil
}

func lineString(pts []Point) (*geom.LineString, error) {
	coords := make([]geom.Coord, 0, len(pts))
	for _, p := range pts {
		coords = append(coords, geom.Coord{p.Lng, p.Lat})
	}
	return geom.NewLineString(geom.XY).SetCoords(coords)
}

// LineString converts pts into a GeoJSON LineString.
func LineString(pts []Point) (string, error) {
	ls, err := lineString(pts)
	if err != nil {
		return "", err
	}
	b, err := gjson.Marshal(ls)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// BuildPreview decodes an encoded path into a renderable preview.
func BuildPreview(encoded string) (*Preview, error) {
	if encoded == "" {
		return nil, fmt.Errorf("decode path: empty")
	}
	pts, err := DecodePath(encoded)
	if err != nil {
		return nil, err
	}
	geometry, err := LineString(pts)
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}
	bounds, _ := BoundsOf(pts)
	return &Preview{
		Geometry:    geometry,
		Points:      len(pts),
		Bounds:      bounds,
		ApproxKm:    RoundKm(PathLength(pts)),
		EncodedPath: encoded,
	}, nil
}

// PathWKB decodes an encoded path into a little-endian WKB LineString for
// storage next to the draft.
func PathWKB(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	pts, err := DecodePath(encoded)
	if err != nil {
		return nil, err
	}
	ls, err := lineString(pts)
	if err != nil {
		return nil, err
	}
	return wkb.Marshal(ls, binary.LittleEndian)
}
