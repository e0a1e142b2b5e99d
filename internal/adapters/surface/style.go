// Package surface turns fog frames into documents a client can display:
// an SVG mask document and a rasterised PNG overlay.
package surface

// Style controls fog and path appearance.
type Style struct {
	FogColor    string  // hex, e.g. "#1b1b2f"
	FogOpacity  float64 // 0..1
	PathColor   string
	PathWidth   float64
	Transparent bool // PNG only: leave revealed pixels transparent instead of white
}

// DefaultStyle is an almost opaque dark fog with a red trail.
func DefaultStyle() Style {
	return Style{
		FogColor:    "#1b1b2f",
		FogOpacity:  0.9,
		PathColor:   "#e63946",
		PathWidth:   3,
		Transparent: true,
	}
}
