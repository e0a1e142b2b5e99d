package surface

import (
	"io"

	"github.com/samirrijal/fogmap/internal/core/domain"
)

// SVGEncoder renders one-off SVG documents.
type SVGEncoder struct{ Style Style }

func (SVGEncoder) ContentType() string { return "image/svg+xml" }

func (e SVGEncoder) Encode(w io.Writer, frame domain.Frame) error {
	return WriteSVG(w, frame, e.Style)
}

// PNGEncoder renders one-off PNG images.
type PNGEncoder struct{ Style Style }

func (PNGEncoder) ContentType() string { return "image/png" }

func (e PNGEncoder) Encode(w io.Writer, frame domain.Frame) error {
	return WritePNG(w, frame, e.Style)
}
