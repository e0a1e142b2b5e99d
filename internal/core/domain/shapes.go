package domain

// ShapeKind tags a RevealShape variant.
type ShapeKind string

const (
	ShapeCircle ShapeKind = "circle"
	ShapeQuad   ShapeKind = "quad"
)

// RevealShape is one revealed region of the fog, keyed by the geographic
// point(s) that produced it. Build it with NewCircle or NewQuad.
type RevealShape struct {
	Kind ShapeKind `json:"kind"`

	// Circle
	Center  GeoPoint `json:"center"`
	Radius  float64  `json:"radius,omitempty"`   // pixels at RefZoom
	RefZoom float64  `json:"ref_zoom,omitempty"` // zoom the radius was computed at

	// ConnectingQuad
	From GeoPoint `json:"from"`
	To   GeoPoint `json:"to"`
}

// NewCircle reveals a single visited point.
func NewCircle(center GeoPoint, radius, refZoom float64) RevealShape {
	return RevealShape{Kind: ShapeCircle, Center: center, Radius: radius, RefZoom: refZoom}
}

// NewQuad reveals the strip between two consecutive visited points.
func NewQuad(from, to GeoPoint) RevealShape {
	return RevealShape{Kind: ShapeQuad, From: from, To: to}
}

// IsCircle reports whether s is a Circle.
func (s RevealShape) IsCircle() bool { return s.Kind == ShapeCircle }

// IsQuad reports whether s is a ConnectingQuad.
func (s RevealShape) IsQuad() bool { return s.Kind == ShapeQuad }
