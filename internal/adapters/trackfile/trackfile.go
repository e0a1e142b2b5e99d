// Package trackfile reads recorded tracks and writes walked trails as GeoJSON.
//
// Two input formats are accepted: a JSON array of {"lat","lon","time"}
// samples, or GeoJSON (FeatureCollection, Feature or bare geometry). Features
// may carry a "coordTimes" property with one RFC 3339 timestamp per
// coordinate, as produced by common GPX converters.
package trackfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/fogmap/internal/core/domain"
)

var ErrEmptyTrack = errors.New("track has no points")

type flatSample struct {
	Lat  float64   `json:"lat"`
	Lon  float64   `json:"lon"`
	Time time.Time `json:"time"`
}

// Load reads a track file from disk.
func Load(path string) ([]domain.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a track in either supported format.
func Decode(r io.Reader) ([]domain.Sample, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read track: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyTrack
	}

	var samples []domain.Sample
	if data[0] == '[' {
		samples, err = decodeFlat(data)
	} else {
		samples, err = decodeGeoJSON(data)
	}
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, ErrEmptyTrack
	}
	for i, s := range samples {
		if !s.Point.Valid() {
			return nil, fmt.Errorf("point %d: %w", i, domain.ErrInvalidPoint)
		}
	}
	return samples, nil
}

func decodeFlat(data []byte) ([]domain.Sample, error) {
	var flat []flatSample
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}
	out := make([]domain.Sample, len(flat))
	for i, f := range flat {
		out[i] = domain.Sample{
			Point:  domain.GeoPoint{Lat: f.Lat, Lon: f.Lon},
			Source: domain.SourceGPS,
			Time:   f.Time,
		}
	}
	return out, nil
}

func decodeGeoJSON(data []byte) ([]domain.Sample, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("decode feature collection: %w", err)
		}
		var out []domain.Sample
		for _, f := range fc.Features {
			out = append(out, featureSamples(f)...)
		}
		return out, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("decode feature: %w", err)
		}
		return featureSamples(f), nil
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("decode geometry: %w", err)
		}
		return samplesFromPoints(geometryPoints(g.Geometry()), nil), nil
	}
}

func featureSamples(f *geojson.Feature) []domain.Sample {
	var times []time.Time
	if raw, ok := f.Properties["coordTimes"].([]interface{}); ok {
		for _, v := range raw {
			s, _ := v.(string)
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				times = nil
				break
			}
			times = append(times, t)
		}
	}
	return samplesFromPoints(geometryPoints(f.Geometry), times)
}

// geometryPoints flattens the geometry into visiting order. Polygons and
// other area geometries are not tracks and yield nothing.
func geometryPoints(g orb.Geometry) []orb.Point {
	switch g := g.(type) {
	case orb.Point:
		return []orb.Point{g}
	case orb.MultiPoint:
		return g
	case orb.LineString:
		return g
	case orb.MultiLineString:
		var out []orb.Point
		for _, ls := range g {
			out = append(out, ls...)
		}
		return out
	case orb.Collection:
		var out []orb.Point
		for _, sub := range g {
			out = append(out, geometryPoints(sub)...)
		}
		return out
	default:
		return nil
	}
}

func samplesFromPoints(pts []orb.Point, times []time.Time) []domain.Sample {
	if len(times) != len(pts) {
		times = nil
	}
	out := make([]domain.Sample, len(pts))
	for i, p := range pts {
		out[i] = domain.Sample{Point: domain.GeoPointFromOrb(p), Source: domain.SourceGPS}
		if times != nil {
			out[i].Time = times[i]
		}
	}
	return out
}

// TrailCollection renders walked polylines as a FeatureCollection: one
// LineString per polyline (a Point while it has a single vertex). The
// collection's bbox is the revealed extent when known.
func TrailCollection(sessionID string, segments [][]domain.GeoPoint, revealed *domain.Bounds) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, seg := range segments {
		var f *geojson.Feature
		if len(seg) == 1 {
			f = geojson.NewFeature(seg[0].Orb())
		} else {
			ls := make(orb.LineString, len(seg))
			for j, p := range seg {
				ls[j] = p.Orb()
			}
			f = geojson.NewFeature(ls)
		}
		f.Properties["session_id"] = sessionID
		f.Properties["segment"] = i
		fc.Append(f)
	}
	if revealed != nil {
		fc.BBox = geojson.BBox{revealed.MinLon, revealed.MinLat, revealed.MaxLon, revealed.MaxLat}
	}
	return fc
}
