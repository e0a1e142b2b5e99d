package fog

import (
	"github.com/samirrijal/fogmap/internal/core/domain"
	"github.com/samirrijal/fogmap/internal/pkg/geospatial"
)

// TrackerConfig tunes sample acceptance.
type TrackerConfig struct {
	// MinStepMeters drops tracking samples closer than this to the last
	// accepted point. Zero accepts every sample.
	MinStepMeters float64
}

// Outcome describes what a single sample did.
type Outcome struct {
	Accepted     bool `json:"accepted"`
	QuadAppended bool `json:"quad_appended"`
	Filtered     bool `json:"filtered"`
	Recentered   bool `json:"recentered"`
}

// Tracker extends the revealed trail while the user is being tracked.
type Tracker struct {
	cfg   TrackerConfig
	mask  MaskConfig
	state *domain.MapViewState
	proj  *Projector
	store *Store
	path  *PathLine
}

// NewTracker wires a tracker over shared controller state.
func NewTracker(cfg TrackerConfig, mask MaskConfig, state *domain.MapViewState, proj *Projector, store *Store, path *PathLine) *Tracker {
	return &Tracker{cfg: cfg, mask: mask, state: state, proj: proj, store: store, path: path}
}

// Handle applies one location sample.
//
// Idle: only the marker position moves. Tracking: circle, connecting quad
// from the previous accepted point, path extension, recentre, gesture lock.
func (t *Tracker) Handle(p domain.GeoPoint) Outcome {
	now := p
	t.state.NowCoordinates = &now

	if !t.state.IsTrackingUser {
		return Outcome{}
	}

	last := t.state.LastAcceptedPoint
	if last != nil && t.cfg.MinStepMeters > 0 &&
		geospatial.Distance(last.Lat, last.Lon, p.Lat, p.Lon) < t.cfg.MinStepMeters {
		return Outcome{Filtered: true}
	}

	zoom := t.mask.ReferenceZoom
	if t.proj.HasMap() {
		zoom = t.proj.CurrentZoom()
	}

	var out Outcome
	t.store.AppendCircle(p, t.mask.UnmaskRadius(zoom), zoom)
	if last != nil {
		out.QuadAppended = t.store.AppendConnectingQuad(*last, p)
	}
	t.path.Extend(p)

	if mc, ok := t.proj.controller(); ok {
		mc.PanTo(p)
		mc.SetInteractive(false)
		out.Recentered = true
	}

	accepted := p
	t.state.LastAcceptedPoint = &accepted
	out.Accepted = true
	return out
}

// SetTracking switches between Idle and Tracking. It reports whether the mode
// changed. Neither direction touches the store.
func (t *Tracker) SetTracking(on bool) bool {
	if t.state.IsTrackingUser == on {
		return false
	}
	t.state.IsTrackingUser = on

	mc, hasControls := t.proj.controller()
	if on {
		// Re-anchor: the first sample after resuming starts a new strip.
		t.state.LastAcceptedPoint = nil
		if hasControls {
			mc.SetInteractive(false)
		}
		return true
	}

	if hasControls {
		mc.SetInteractive(true)
	}
	t.path.Break()
	return true
}

// Reset forgets the anchor so the next accepted sample has no predecessor.
func (t *Tracker) Reset() {
	t.state.LastAcceptedPoint = nil
}
