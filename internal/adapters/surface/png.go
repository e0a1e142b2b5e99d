package surface

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/fogleman/gg"

	"github.com/samirrijal/fogmap/internal/core/domain"
)

// PNG implements ports.Surface by rasterising each frame with gg.
type PNG struct {
	style Style

	mu   sync.Mutex
	last []byte
}

// NewPNG creates a PNG surface.
func NewPNG(style Style) *PNG {
	return &PNG{style: style}
}

// Draw rasterises the frame and keeps the encoded image.
func (p *PNG) Draw(frame domain.Frame) error {
	var buf bytes.Buffer
	if err := WritePNG(&buf, frame, p.style); err != nil {
		return err
	}
	p.mu.Lock()
	p.last = buf.Bytes()
	p.mu.Unlock()
	return nil
}

// Bytes returns the last encoded image.
func (p *PNG) Bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// WritePNG rasterises the viewport part of the frame: fog everywhere except
// the cutouts, then the path on top.
func WritePNG(w io.Writer, frame domain.Frame, style Style) error {
	width := int(math.Ceil(frame.Width))
	height := int(math.Ceil(frame.Height))
	if width <= 0 || height <= 0 {
		return fmt.Errorf("png: empty viewport %dx%d", width, height)
	}

	// Holes first, as an alpha mask.
	holes := gg.NewContext(width, height)
	holes.SetRGBA(0, 0, 0, 1)
	for _, prim := range frame.Cutouts() {
		tracePrimitive(holes, prim)
		holes.Fill()
	}

	dc := gg.NewContext(width, height)
	if !style.Transparent {
		dc.SetRGB(1, 1, 1)
		dc.Clear()
	}

	if mask, ok := frame.Mask(); ok {
		if err := dc.SetMask(holes.AsMask()); err != nil {
			return fmt.Errorf("png: set mask: %w", err)
		}
		dc.InvertMask()
		r, g, b := parseHex(style.FogColor)
		dc.SetRGBA(r, g, b, style.FogOpacity)
		dc.DrawRectangle(mask.X, mask.Y, mask.Width, mask.Height)
		dc.Fill()
		dc.ResetClip()
	}

	dc.SetHexColor(style.PathColor)
	dc.SetLineWidth(style.PathWidth)
	dc.SetLineJoinRound()
	dc.SetLineCapRound()
	for _, prim := range frame.Primitives {
		if prim.Role != domain.RolePath {
			continue
		}
		tracePrimitive(dc, prim)
		dc.Stroke()
	}

	return dc.EncodePNG(w)
}

func tracePrimitive(dc *gg.Context, p domain.Primitive) {
	switch p.Kind {
	case domain.PrimitiveCircle:
		dc.DrawCircle(p.CX, p.CY, p.R)
	case domain.PrimitiveRect:
		dc.DrawRectangle(p.X, p.Y, p.Width, p.Height)
	case domain.PrimitivePolygon, domain.PrimitivePolyline:
		if len(p.Points) == 0 {
			return
		}
		dc.NewSubPath()
		dc.MoveTo(p.Points[0].X, p.Points[0].Y)
		for _, pt := range p.Points[1:] {
			dc.LineTo(pt.X, pt.Y)
		}
		if p.Kind == domain.PrimitivePolygon {
			dc.ClosePath()
		}
	}
}

// parseHex reads #rgb or #rrggbb. Anything else is black.
func parseHex(s string) (r, g, b float64) {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return float64(v>>16&0xff) / 255, float64(v>>8&0xff) / 255, float64(v&0xff) / 255
}
