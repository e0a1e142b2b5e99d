package domain

// PrimitiveKind names a drawable primitive understood by a rendering surface.
type PrimitiveKind string

const (
	PrimitiveRect     PrimitiveKind = "rect"
	PrimitiveCircle   PrimitiveKind = "circle"
	PrimitivePolygon  PrimitiveKind = "polygon"
	PrimitivePolyline PrimitiveKind = "polyline"
)

// Primitive is a single drawable element in screen space.
//
// rect uses X, Y, Width, Height; circle uses CX, CY, R; polygon and polyline
// use Points. Role tells the surface whether the primitive is the opaque mask,
// a cutout hole, or the cosmetic path line.
type Primitive struct {
	Kind   PrimitiveKind `json:"kind"`
	Role   PrimitiveRole `json:"role"`
	X      float64       `json:"x"`
	Y      float64       `json:"y"`
	Width  float64       `json:"width"`
	Height float64       `json:"height"`
	CX     float64       `json:"cx"`
	CY     float64       `json:"cy"`
	R      float64       `json:"r"`
	Points []ScreenPoint `json:"points,omitempty"`
}

// PrimitiveRole classifies primitives within a Frame.
type PrimitiveRole string

const (
	RoleMask   PrimitiveRole = "mask"
	RoleCutout PrimitiveRole = "cutout"
	RolePath   PrimitiveRole = "path"
)

// Frame is the ordered output of one redraw.
type Frame struct {
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
	Zoom       float64     `json:"zoom"`
	Revision   uint64      `json:"revision"`
	Primitives []Primitive `json:"primitives"`
}

// Cutouts returns the cutout primitives in emission order.
func (f Frame) Cutouts() []Primitive {
	var out []Primitive
	for _, p := range f.Primitives {
		if p.Role == RoleCutout {
			out = append(out, p)
		}
	}
	return out
}

// Mask returns the full-map mask rectangle, if present.
func (f Frame) Mask() (Primitive, bool) {
	for _, p := range f.Primitives {
		if p.Role == RoleMask {
			return p, true
		}
	}
	return Primitive{}, false
}
