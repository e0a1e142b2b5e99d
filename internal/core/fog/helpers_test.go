package fog_test

import (
	"math"

	"github.com/samirrijal/fogmap/internal/core/domain"
)

// linearHost projects lon to x and lat to -y, scaled by 2^zoom.
type linearHost struct {
	zoom        float64
	unit        float64 // pixels per degree at zoom 0
	center      domain.GeoPoint
	width       float64
	height      float64
	interactive bool
	pans        int
}

func newLinearHost(unit, zoom float64) *linearHost {
	return &linearHost{unit: unit, zoom: zoom, width: 800, height: 600, interactive: true}
}

func (h *linearHost) Project(p domain.GeoPoint) domain.ScreenPoint {
	s := h.unit * math.Exp2(h.zoom)
	return domain.ScreenPoint{X: p.Lon * s, Y: -p.Lat * s}
}

func (h *linearHost) CurrentZoom() float64        { return h.zoom }
func (h *linearHost) Center() domain.GeoPoint     { return h.center }
func (h *linearHost) Size() (float64, float64)    { return h.width, h.height }
func (h *linearHost) PanTo(p domain.GeoPoint)     { h.center = p; h.pans++ }
func (h *linearHost) SetInteractive(enabled bool) { h.interactive = enabled }
func (h *linearHost) Interactive() bool           { return h.interactive }

// recordingSurface keeps every frame it is asked to draw.
type recordingSurface struct {
	frames []domain.Frame
}

func (s *recordingSurface) Draw(f domain.Frame) error {
	s.frames = append(s.frames, f)
	return nil
}
