// Package viewport is a server-side map host. It mirrors a client's Web
// Mercator viewport so the fog engine can project points without a browser.
package viewport

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/samirrijal/fogmap/internal/core/domain"
)

const (
	// TileSize is the pixel size of one map tile at integer zoom.
	TileSize = 256.0

	MinZoom = 0.0
	MaxZoom = 22.0

	earthRadius = 6378137.0 // spherical mercator
	maxLat      = 85.05112878
)

// Host implements ports.MapHost, ports.MapController and ports.Viewport.
type Host struct {
	center      domain.GeoPoint
	zoom        float64
	width       float64
	height      float64
	interactive bool
}

// New creates a host for the given view. Gestures start enabled.
func New(v domain.View) *Host {
	return &Host{
		center:      clampPoint(v.Center),
		zoom:        clampZoom(v.Zoom),
		width:       float64(v.Width),
		height:      float64(v.Height),
		interactive: true,
	}
}

// Project maps a geographic point into the current pixel space, with (0,0)
// at the top-left corner of the viewport.
func (h *Host) Project(p domain.GeoPoint) domain.ScreenPoint {
	w := h.world(p)
	c := h.world(h.center)
	return domain.ScreenPoint{
		X: w[0] - c[0] + h.width/2,
		Y: w[1] - c[1] + h.height/2,
	}
}

// Unproject is the inverse of Project, used for screen-space clicks.
func (h *Host) Unproject(s domain.ScreenPoint) domain.GeoPoint {
	c := h.world(h.center)
	wx := c[0] + s.X - h.width/2
	wy := c[1] + s.Y - h.height/2

	scale := h.scale()
	half := math.Pi * earthRadius
	merc := orb.Point{wx/scale - half, half - wy/scale}
	return clampPoint(domain.GeoPointFromOrb(project.Mercator.ToWGS84(merc)))
}

// CurrentZoom returns the (possibly fractional) zoom level.
func (h *Host) CurrentZoom() float64 { return h.zoom }

// Center returns the map centre.
func (h *Host) Center() domain.GeoPoint { return h.center }

// Size returns the viewport size in pixels.
func (h *Host) Size() (float64, float64) { return h.width, h.height }

// PanTo recentres the map on p.
func (h *Host) PanTo(p domain.GeoPoint) { h.center = clampPoint(p) }

// PanBy shifts the view by a pixel offset, like a drag gesture.
func (h *Host) PanBy(dx, dy float64) {
	h.center = h.Unproject(domain.ScreenPoint{X: h.width/2 + dx, Y: h.height/2 + dy})
}

// SetZoom changes the zoom level, clamped to [MinZoom, MaxZoom].
func (h *Host) SetZoom(z float64) { h.zoom = clampZoom(z) }

// Resize changes the viewport size; non-positive values are ignored.
func (h *Host) Resize(width, height int) {
	if width > 0 {
		h.width = float64(width)
	}
	if height > 0 {
		h.height = float64(height)
	}
}

// SetInteractive enables or disables drag, zoom and tap gestures.
func (h *Host) SetInteractive(enabled bool) { h.interactive = enabled }

// Interactive reports whether gestures are enabled.
func (h *Host) Interactive() bool { return h.interactive }

// View returns the current view description.
func (h *Host) View() domain.View {
	return domain.View{
		Center: h.center,
		Zoom:   h.zoom,
		Width:  int(h.width),
		Height: int(h.height),
	}
}

// world returns the point in global pixel coordinates at the current zoom.
func (h *Host) world(p domain.GeoPoint) orb.Point {
	merc := project.WGS84.ToMercator(clampPoint(p).Orb())
	scale := h.scale()
	half := math.Pi * earthRadius
	return orb.Point{(merc[0] + half) * scale, (half - merc[1]) * scale}
}

// scale is pixels per mercator meter.
func (h *Host) scale() float64 {
	return TileSize * math.Exp2(h.zoom) / (2 * math.Pi * earthRadius)
}

func clampPoint(p domain.GeoPoint) domain.GeoPoint {
	p.Lat = math.Max(-maxLat, math.Min(maxLat, p.Lat))
	return p
}

func clampZoom(z float64) float64 {
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}
