package fog

import "github.com/samirrijal/fogmap/internal/core/domain"

// PathLine keeps the walked polyline(s). Break starts a new polyline; earlier
// ones stay drawn.
type PathLine struct {
	segments [][]domain.GeoPoint
}

// NewPathLine returns an empty path.
func NewPathLine() *PathLine {
	return &PathLine{}
}

// Extend appends p to the current polyline.
func (l *PathLine) Extend(p domain.GeoPoint) {
	if len(l.segments) == 0 {
		l.segments = append(l.segments, nil)
	}
	last := len(l.segments) - 1
	l.segments[last] = append(l.segments[last], p)
}

// Break ends the current polyline so the next Extend starts a fresh one.
func (l *PathLine) Break() {
	if n := len(l.segments); n > 0 && len(l.segments[n-1]) == 0 {
		return
	}
	l.segments = append(l.segments, nil)
}

// Clear drops every polyline.
func (l *PathLine) Clear() {
	l.segments = nil
}

// Segments returns a copy of the non-empty polylines.
func (l *PathLine) Segments() [][]domain.GeoPoint {
	var out [][]domain.GeoPoint
	for _, seg := range l.segments {
		if len(seg) == 0 {
			continue
		}
		cp := make([]domain.GeoPoint, len(seg))
		copy(cp, seg)
		out = append(out, cp)
	}
	return out
}

// Primitives projects each polyline with at least two points.
func (l *PathLine) Primitives(proj *Projector) []domain.Primitive {
	var out []domain.Primitive
	for _, seg := range l.segments {
		if len(seg) < 2 {
			continue
		}
		pts := make([]domain.ScreenPoint, len(seg))
		for i, g := range seg {
			pts[i] = proj.Project(g)
		}
		out = append(out, domain.Primitive{
			Kind:   domain.PrimitivePolyline,
			Role:   domain.RolePath,
			Points: pts,
		})
	}
	return out
}
