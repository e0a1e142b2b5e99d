package geospatial

import "math"

const (
	earthRadiusM = 6371008.8

	// metersPerPixelZ0 is the Web-Mercator ground resolution at the equator
	// for zoom 0 with 256 px tiles.
	metersPerPixelZ0 = 156543.03392804097
)

// Distance returns the flat (equirectangular) distance in meters between two
// points. Good to well under a percent at city scale.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	x := toRad(lon2-lon1) * math.Cos(toRad((lat1+lat2)/2))
	y := toRad(lat2 - lat1)
	return math.Sqrt(x*x+y*y) * earthRadiusM
}

// PathLength sums Distance over consecutive (lat, lon) pairs.
func PathLength(lats, lons []float64) float64 {
	n := len(lats)
	if len(lons) < n {
		n = len(lons)
	}
	total := 0.0
	for i := 1; i < n; i++ {
		total += Distance(lats[i-1], lons[i-1], lats[i], lons[i])
	}
	return total
}

// MetersPerPixel returns the ground size of one map pixel at the given
// latitude and (possibly fractional) zoom.
func MetersPerPixel(lat, zoom float64) float64 {
	return metersPerPixelZ0 * math.Cos(toRad(lat)) / math.Exp2(zoom)
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / 111320.0
	lonDelta := radiusMeters / (111320.0 * math.Cos(toRad(lat)))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
