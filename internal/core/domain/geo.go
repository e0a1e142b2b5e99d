package domain

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/paulmach/orb"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// NewGeoPoint builds a GeoPoint and rejects out-of-range or NaN coordinates.
func NewGeoPoint(lat, lon float64) (GeoPoint, error) {
	p := GeoPoint{Lat: lat, Lon: lon}
	if !p.Valid() {
		return GeoPoint{}, ErrInvalidPoint
	}
	return p, nil
}

// Valid reports whether the point lies within WGS 84 bounds.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Orb returns the point in orb's (lon, lat) order.
func (p GeoPoint) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// GeoPointFromOrb converts an orb.Point (lon, lat) into a GeoPoint.
func GeoPointFromOrb(p orb.Point) GeoPoint {
	return GeoPoint{Lat: p.Lat(), Lon: p.Lon()}
}

// ScreenPoint is a position in the map's current pixel space.
// Only meaningful for the transform it was computed with.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec returns the point as an r2 vector.
func (s ScreenPoint) Vec() r2.Point {
	return r2.Point{X: s.X, Y: s.Y}
}

// ScreenPointFromVec converts an r2 vector back into a ScreenPoint.
func ScreenPointFromVec(v r2.Point) ScreenPoint {
	return ScreenPoint{X: v.X, Y: v.Y}
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundsFromOrb converts an orb.Bound.
func BoundsFromOrb(b orb.Bound) Bounds {
	return Bounds{
		MinLat: b.Min.Lat(),
		MinLon: b.Min.Lon(),
		MaxLat: b.Max.Lat(),
		MaxLon: b.Max.Lon(),
	}
}
