package fog

import (
	"github.com/samirrijal/fogmap/internal/core/domain"
	"github.com/samirrijal/fogmap/internal/core/ports"
)

// Projector converts geographic points to the host map's current pixel space.
// It never caches: every call asks the host, so results are only valid until
// the next pan or zoom.
type Projector struct {
	host ports.MapHost
}

// NewProjector returns a projector with no map attached.
func NewProjector() *Projector {
	return &Projector{}
}

// Attach binds the projector to a map host.
func (p *Projector) Attach(host ports.MapHost) {
	p.host = host
}

// HasMap reports whether a host is attached. Callers must check it before Project.
func (p *Projector) HasMap() bool {
	return p.host != nil
}

// Host returns the attached map host (nil before Attach).
func (p *Projector) Host() ports.MapHost {
	return p.host
}

// Project returns the current screen position of g.
func (p *Projector) Project(g domain.GeoPoint) domain.ScreenPoint {
	return p.host.Project(g)
}

// CurrentZoom returns the host's zoom level.
func (p *Projector) CurrentZoom() float64 {
	return p.host.CurrentZoom()
}

// controller returns the host's gesture/recentre controls, if it has any.
func (p *Projector) controller() (ports.MapController, bool) {
	if p.host == nil {
		return nil, false
	}
	mc, ok := p.host.(ports.MapController)
	return mc, ok
}
