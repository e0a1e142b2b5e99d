package surface

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/samirrijal/fogmap/internal/core/domain"
)

const maskID = "fog-cutout"

// SVG implements ports.Surface by rendering each frame into an SVG document.
// The mask rect is painted white inside <mask>, cutouts black, so the fog
// rect shows everywhere except the revealed area.
type SVG struct {
	style Style

	mu   sync.Mutex
	last []byte
}

// NewSVG creates an SVG surface.
func NewSVG(style Style) *SVG {
	return &SVG{style: style}
}

// Draw renders the frame and keeps the document.
func (s *SVG) Draw(frame domain.Frame) error {
	var buf bytes.Buffer
	if err := WriteSVG(&buf, frame, s.style); err != nil {
		return err
	}
	s.mu.Lock()
	s.last = buf.Bytes()
	s.mu.Unlock()
	return nil
}

// Bytes returns the last rendered document.
func (s *SVG) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// WriteSVG writes the frame as a standalone SVG document.
func WriteSVG(w io.Writer, frame domain.Frame, style Style) error {
	var b strings.Builder

	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`,
		num(frame.Width), num(frame.Height), num(frame.Width), num(frame.Height))
	b.WriteString("\n")

	mask, hasMask := frame.Mask()
	if hasMask {
		fmt.Fprintf(&b, `<defs><mask id="%s" maskUnits="userSpaceOnUse" x="%s" y="%s" width="%s" height="%s">`,
			maskID, num(mask.X), num(mask.Y), num(mask.Width), num(mask.Height))
		b.WriteString("\n")
		fmt.Fprintf(&b, `<rect x="%s" y="%s" width="%s" height="%s" fill="white"/>`,
			num(mask.X), num(mask.Y), num(mask.Width), num(mask.Height))
		b.WriteString("\n")
		for _, p := range frame.Cutouts() {
			writeShape(&b, p, `fill="black"`)
		}
		b.WriteString("</mask></defs>\n")

		fmt.Fprintf(&b, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s" fill-opacity="%s" mask="url(#%s)"/>`,
			num(mask.X), num(mask.Y), num(mask.Width), num(mask.Height),
			style.FogColor, num(style.FogOpacity), maskID)
		b.WriteString("\n")
	}

	stroke := fmt.Sprintf(`fill="none" stroke="%s" stroke-width="%s" stroke-linejoin="round" stroke-linecap="round"`,
		style.PathColor, num(style.PathWidth))
	for _, p := range frame.Primitives {
		if p.Role == domain.RolePath {
			writeShape(&b, p, stroke)
		}
	}

	b.WriteString("</svg>\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func writeShape(b *strings.Builder, p domain.Primitive, attrs string) {
	switch p.Kind {
	case domain.PrimitiveCircle:
		fmt.Fprintf(b, `<circle cx="%s" cy="%s" r="%s" %s/>`, num(p.CX), num(p.CY), num(p.R), attrs)
	case domain.PrimitivePolygon:
		fmt.Fprintf(b, `<polygon points="%s" %s/>`, points(p.Points), attrs)
	case domain.PrimitivePolyline:
		fmt.Fprintf(b, `<polyline points="%s" %s/>`, points(p.Points), attrs)
	case domain.PrimitiveRect:
		fmt.Fprintf(b, `<rect x="%s" y="%s" width="%s" height="%s" %s/>`,
			num(p.X), num(p.Y), num(p.Width), num(p.Height), attrs)
	default:
		return
	}
	b.WriteString("\n")
}

func points(pts []domain.ScreenPoint) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = num(p.X) + "," + num(p.Y)
	}
	return strings.Join(parts, " ")
}

// num prints at most two decimals without trailing zeros.
func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}
