package ports

import (
	"io"

	"github.com/samirrijal/fogmap/internal/core/domain"
)

// MapHost is the only view the fog engine has of the underlying map widget.
// Pan and zoom notifications arrive as controller events (OnMove / OnZoom).
type MapHost interface {
	Project(p domain.GeoPoint) domain.ScreenPoint
	CurrentZoom() float64
	Center() domain.GeoPoint
}

// MapController lets the tracker recentre the map and lock user gestures.
type MapController interface {
	PanTo(p domain.GeoPoint)
	SetInteractive(enabled bool)
	Interactive() bool
}

// Viewport exposes the current pixel size of the map, when the host knows it.
type Viewport interface {
	Size() (width, height float64)
}

// Surface receives the ordered drawable primitives of each redraw.
type Surface interface {
	Draw(frame domain.Frame) error
}

// MapView is a server-side map host the session can drive directly: it
// projects, accepts pan/zoom/resize, and maps screen clicks back to the globe.
type MapView interface {
	MapHost
	MapController
	Viewport
	Unproject(s domain.ScreenPoint) domain.GeoPoint
	SetZoom(zoom float64)
	Resize(width, height int)
	View() domain.View
}

// MaskEncoder serialises a frame into an image format.
type MaskEncoder interface {
	ContentType() string
	Encode(w io.Writer, frame domain.Frame) error
}
