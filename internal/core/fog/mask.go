package fog

import (
	"math"

	"github.com/samirrijal/fogmap/internal/core/domain"
	"github.com/samirrijal/fogmap/internal/core/ports"
)

// MaskConfig holds the numbers the mask renderer needs. Width and Height are
// used only when the map host does not report its own size.
type MaskConfig struct {
	Margin        float64
	Width         float64
	Height        float64
	BaseRadius    float64
	ReferenceZoom float64
}

// DefaultMaskConfig mirrors the defaults in internal/pkg/config.
func DefaultMaskConfig() MaskConfig {
	return MaskConfig{
		Margin:        1000,
		Width:         1280,
		Height:        720,
		BaseRadius:    1,
		ReferenceZoom: 10,
	}
}

// UnmaskRadius returns the on-screen reveal radius at zoom:
// BaseRadius * 2^(zoom - ReferenceZoom).
func (c MaskConfig) UnmaskRadius(zoom float64) float64 {
	return c.BaseRadius * math.Exp2(zoom-c.ReferenceZoom)
}

// MaskRenderer turns the store into screen-space primitives for the current
// transform: an oversized opaque rectangle followed by one cutout per shape
// and then the path polylines.
type MaskRenderer struct {
	cfg     MaskConfig
	proj    *Projector
	store   *Store
	path    *PathLine
	surface ports.Surface
}

// NewMaskRenderer wires a renderer. path and surface may be nil.
func NewMaskRenderer(cfg MaskConfig, proj *Projector, store *Store, path *PathLine, surface ports.Surface) *MaskRenderer {
	return &MaskRenderer{cfg: cfg, proj: proj, store: store, path: path, surface: surface}
}

// Config returns the renderer configuration.
func (m *MaskRenderer) Config() MaskConfig {
	return m.cfg
}

// RedrawAll re-projects every stored shape and emits the frame to the surface.
func (m *MaskRenderer) RedrawAll() (domain.Frame, error) {
	if !m.proj.HasMap() {
		return domain.Frame{}, domain.ErrNoMap
	}

	zoom := m.proj.CurrentZoom()
	width, height := m.viewportSize()
	r := m.cfg.UnmaskRadius(zoom)

	frame := domain.Frame{
		Width:      width,
		Height:     height,
		Zoom:       zoom,
		Revision:   m.store.Revision(),
		Primitives: make([]domain.Primitive, 0, m.store.Len()+2),
	}
	frame.Primitives = append(frame.Primitives, m.maskRect(width, height))

	m.store.ForEach(func(s domain.RevealShape) {
		switch s.Kind {
		case domain.ShapeCircle:
			frame.Primitives = append(frame.Primitives, m.circleCutout(s, zoom))
		case domain.ShapeQuad:
			if p, ok := m.quadCutout(s, r); ok {
				frame.Primitives = append(frame.Primitives, p)
			}
		}
	})

	if m.path != nil {
		frame.Primitives = append(frame.Primitives, m.path.Primitives(m.proj)...)
	}

	if m.surface != nil {
		if err := m.surface.Draw(frame); err != nil {
			return frame, err
		}
	}
	return frame, nil
}

func (m *MaskRenderer) viewportSize() (float64, float64) {
	if vp, ok := m.proj.Host().(ports.Viewport); ok {
		if w, h := vp.Size(); w > 0 && h > 0 {
			return w, h
		}
	}
	return m.cfg.Width, m.cfg.Height
}

func (m *MaskRenderer) maskRect(width, height float64) domain.Primitive {
	return domain.Primitive{
		Kind:   domain.PrimitiveRect,
		Role:   domain.RoleMask,
		X:      -m.cfg.Margin,
		Y:      -m.cfg.Margin,
		Width:  width + 2*m.cfg.Margin,
		Height: height + 2*m.cfg.Margin,
	}
}

func (m *MaskRenderer) circleCutout(s domain.RevealShape, zoom float64) domain.Primitive {
	c := m.proj.Project(s.Center)
	return domain.Primitive{
		Kind: domain.PrimitiveCircle,
		Role: domain.RoleCutout,
		CX:   c.X,
		CY:   c.Y,
		R:    s.Radius * math.Exp2(zoom-s.RefZoom),
	}
}

func (m *MaskRenderer) quadCutout(s domain.RevealShape, r float64) (domain.Primitive, bool) {
	vs, ok := QuadVertices(m.proj.Project(s.From), m.proj.Project(s.To), r)
	if !ok {
		return domain.Primitive{}, false
	}
	return domain.Primitive{
		Kind:   domain.PrimitivePolygon,
		Role:   domain.RoleCutout,
		Points: vs[:],
	}, true
}

// QuadVertices returns the strip of half-width r joining from and to:
// from+r·perp(u), from−r·perp(u), to−r·perp(u), to+r·perp(u), where u is the
// unit direction and perp(u) = (−u.y, u.x). It reports false when the two
// points coincide.
func QuadVertices(from, to domain.ScreenPoint, r float64) ([4]domain.ScreenPoint, bool) {
	a, b := from.Vec(), to.Vec()
	v := b.Sub(a)
	if v.X == 0 && v.Y == 0 {
		return [4]domain.ScreenPoint{}, false
	}
	offset := v.Normalize().Ortho().Mul(r)

	return [4]domain.ScreenPoint{
		domain.ScreenPointFromVec(a.Add(offset)),
		domain.ScreenPointFromVec(a.Sub(offset)),
		domain.ScreenPointFromVec(b.Sub(offset)),
		domain.ScreenPointFromVec(b.Add(offset)),
	}, true
}
