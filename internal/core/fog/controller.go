// Package fog implements the fog-of-war reveal engine: the revealed-area
// store, the projection adapter, the mask renderer and the trail tracker,
// all owned by a single Controller.
//
// A Controller is not safe for concurrent use. Its owner delivers events one
// at a time, in arrival order.
package fog

import (
	"github.com/paulmach/orb"

	"github.com/samirrijal/fogmap/internal/core/domain"
	"github.com/samirrijal/fogmap/internal/core/ports"
	"github.com/samirrijal/fogmap/internal/pkg/geospatial"
)

// Config groups the controller's tunables.
type Config struct {
	Mask    MaskConfig
	Tracker TrackerConfig
}

// DefaultConfig returns the default mask and tracker settings.
func DefaultConfig() Config {
	return Config{Mask: DefaultMaskConfig()}
}

// Controller is the view controller: it exclusively owns the state, the
// store, the projector and both renderers.
type Controller struct {
	state   domain.MapViewState
	proj    *Projector
	store   *Store
	path    *PathLine
	tracker *Tracker
	mask    *MaskRenderer

	last domain.Frame
}

// NewController builds a controller with no map attached. surface may be nil.
func NewController(cfg Config, surface ports.Surface) *Controller {
	c := &Controller{
		proj:  NewProjector(),
		store: NewStore(),
		path:  NewPathLine(),
	}
	c.tracker = NewTracker(cfg.Tracker, cfg.Mask, &c.state, c.proj, c.store, c.path)
	c.mask = NewMaskRenderer(cfg.Mask, c.proj, c.store, c.path, surface)
	return c
}

// AttachMap binds the map host and performs the initial redraw.
func (c *Controller) AttachMap(host ports.MapHost) (domain.Frame, error) {
	c.proj.Attach(host)
	c.state.HasMap = true
	if mc, ok := c.proj.controller(); ok && c.state.IsTrackingUser {
		mc.SetInteractive(false)
	}
	return c.Redraw()
}

// OnLocation feeds a geolocation sample through the tracker.
func (c *Controller) OnLocation(p domain.GeoPoint) (Outcome, error) {
	out := c.tracker.Handle(p)
	if out.Accepted && c.state.HasMap {
		if _, err := c.Redraw(); err != nil {
			return out, err
		}
	}
	return out, nil
}

// OnClick turns a map click into a sample when click-to-move is on.
func (c *Controller) OnClick(p domain.GeoPoint) (Outcome, error) {
	if !c.state.IsClickToMove {
		return Outcome{}, domain.ErrClickIgnored
	}
	return c.OnLocation(p)
}

// OnMove handles a pan event.
func (c *Controller) OnMove() (domain.Frame, error) {
	return c.Redraw()
}

// OnZoom handles a zoom event.
func (c *Controller) OnZoom() (domain.Frame, error) {
	return c.Redraw()
}

// SetTracking toggles tracking mode. The store is never cleared here.
func (c *Controller) SetTracking(on bool) (bool, error) {
	changed := c.tracker.SetTracking(on)
	if changed && c.state.HasMap {
		if _, err := c.Redraw(); err != nil {
			return changed, err
		}
	}
	return changed, nil
}

// SetClickToMove toggles click-to-move mode.
func (c *Controller) SetClickToMove(on bool) {
	c.state.IsClickToMove = on
}

// Reset clears the revealed area and the path in one step.
func (c *Controller) Reset() error {
	c.store.Clear()
	c.path.Clear()
	c.tracker.Reset()
	if c.state.HasMap {
		_, err := c.Redraw()
		return err
	}
	return nil
}

// Redraw re-projects everything for the current transform.
func (c *Controller) Redraw() (domain.Frame, error) {
	f, err := c.mask.RedrawAll()
	if err != nil {
		return f, err
	}
	c.last = f
	return f, nil
}

// Frame returns the most recent redraw output.
func (c *Controller) Frame() domain.Frame {
	return c.last
}

// State returns a copy of the view state.
func (c *Controller) State() domain.MapViewState {
	s := c.state
	if s.LastAcceptedPoint != nil {
		p := *s.LastAcceptedPoint
		s.LastAcceptedPoint = &p
	}
	if s.NowCoordinates != nil {
		p := *s.NowCoordinates
		s.NowCoordinates = &p
	}
	return s
}

// Host returns the attached map host, or nil.
func (c *Controller) Host() ports.MapHost {
	return c.proj.Host()
}

// Shapes returns a copy of the revealed shapes in insertion order.
func (c *Controller) Shapes() []domain.RevealShape {
	return c.store.Snapshot()
}

// Counts returns the number of circles and quads in the store.
func (c *Controller) Counts() (circles, quads int) {
	return c.store.Counts()
}

// Revision returns the store revision.
func (c *Controller) Revision() uint64 {
	return c.store.Revision()
}

// Trail returns the walked polylines.
func (c *Controller) Trail() [][]domain.GeoPoint {
	return c.path.Segments()
}

// TrailMeters returns the flat length of every polyline.
func (c *Controller) TrailMeters() float64 {
	total := 0.0
	for _, seg := range c.path.Segments() {
		lats := make([]float64, len(seg))
		lons := make([]float64, len(seg))
		for i, p := range seg {
			lats[i], lons[i] = p.Lat, p.Lon
		}
		total += geospatial.PathLength(lats, lons)
	}
	return total
}

// RevealedBounds returns the geographic extent of the revealed area, padded by
// the real-world reveal radius, or nil when nothing is revealed.
func (c *Controller) RevealedBounds() *domain.Bounds {
	if c.store.Len() == 0 {
		return nil
	}

	cfg := c.mask.Config()
	var bound orb.Bound
	first := true
	c.store.ForEach(func(s domain.RevealShape) {
		if !s.IsCircle() {
			return
		}
		// Ground radius is independent of zoom; evaluate it at the shape's own.
		meters := s.Radius * geospatial.MetersPerPixel(s.Center.Lat, s.RefZoom)
		if meters <= 0 {
			meters = cfg.BaseRadius * geospatial.MetersPerPixel(s.Center.Lat, cfg.ReferenceZoom)
		}
		minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(s.Center.Lat, s.Center.Lon, meters)
		b := orb.Bound{Min: orb.Point{minLon, minLat}, Max: orb.Point{maxLon, maxLat}}
		if first {
			bound = b
			first = false
			return
		}
		bound = bound.Union(b)
	})
	if first {
		return nil
	}
	out := domain.BoundsFromOrb(bound)
	return &out
}
