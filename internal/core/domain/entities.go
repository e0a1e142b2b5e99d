package domain

import (
	"time"
)

// SampleSource tells where a location sample came from.
type SampleSource string

const (
	SourceGPS   SampleSource = "gps"
	SourceClick SampleSource = "click"
)

// Valid reports whether s is a known source. The empty source is not valid.
func (s SampleSource) Valid() bool {
	return s == SourceGPS || s == SourceClick
}

// Sample is one location update fed to a session.
type Sample struct {
	Point  GeoPoint     `json:"point"`
	Source SampleSource `json:"source"`
	Time   time.Time    `json:"time"`
}

// MapViewState is the view controller's mode and anchor state.
type MapViewState struct {
	HasMap            bool      `json:"has_map"`
	IsTrackingUser    bool      `json:"is_tracking_user"`
	IsClickToMove     bool      `json:"is_click_to_move"`
	LastAcceptedPoint *GeoPoint `json:"last_accepted_point,omitempty"`
	NowCoordinates    *GeoPoint `json:"now_coordinates,omitempty"`
}

// View describes a viewport: where the map is centred, how far it is zoomed,
// and how many pixels it covers.
type View struct {
	Center GeoPoint `json:"center"`
	Zoom   float64  `json:"zoom" validate:"gte=0,lte=24"`
	Width  int      `json:"width" validate:"gt=0,lte=8192"`
	Height int      `json:"height" validate:"gt=0,lte=8192"`
}

// SessionSummary is the externally visible state of one fog session.
type SessionSummary struct {
	ID          string       `json:"id"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	State       MapViewState `json:"state"`
	View        View         `json:"view"`
	Interactive bool         `json:"interactive"`
	Circles     int          `json:"circles"`
	Quads       int          `json:"quads"`
	Revision    uint64       `json:"revision"`
	TrailMeters float64      `json:"trail_meters"`
	Revealed    *Bounds      `json:"revealed_bounds,omitempty"`
}

// RevealEvent is published whenever a sample extends the revealed area.
type RevealEvent struct {
	SessionID string       `json:"session_id"`
	Point     GeoPoint     `json:"point"`
	Source    SampleSource `json:"source"`
	Circles   int          `json:"circles"`
	Quads     int          `json:"quads"`
	Revision  uint64       `json:"revision"`
	Time      time.Time    `json:"time"`
}

// ViewUpdate changes a session's viewport. Nil fields are left alone.
type ViewUpdate struct {
	Center *GeoPoint `json:"center,omitempty"`
	Zoom   *float64  `json:"zoom,omitempty" validate:"omitempty,gte=0,lte=24"`
	Width  *int      `json:"width,omitempty" validate:"omitempty,gt=0,lte=8192"`
	Height *int      `json:"height,omitempty" validate:"omitempty,gt=0,lte=8192"`
}

// ModeUpdate toggles tracking and click-to-move. Nil fields are left alone.
type ModeUpdate struct {
	Tracking    *bool `json:"tracking,omitempty"`
	ClickToMove *bool `json:"click_to_move,omitempty"`
}

// Click is a map click given either geographically or in screen pixels.
type Click struct {
	Point  *GeoPoint    `json:"point,omitempty"`
	Screen *ScreenPoint `json:"screen,omitempty"`
}

// IngestResult reports what one sample did to a session.
type IngestResult struct {
	Accepted     bool   `json:"accepted"`
	QuadAppended bool   `json:"quad_appended"`
	Filtered     bool   `json:"filtered"`
	Recentered   bool   `json:"recentered"`
	Circles      int    `json:"circles"`
	Quads        int    `json:"quads"`
	Revision     uint64 `json:"revision"`
}
