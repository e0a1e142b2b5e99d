package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/fogmap/internal/adapters/trackfile"
	"github.com/samirrijal/fogmap/internal/core/domain"
)

var validate = validator.New()

// sampleRequest is one geolocation fix.
type sampleRequest struct {
	Lat    *float64            `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon    *float64            `json:"lon" validate:"required,gte=-180,lte=180"`
	Time   time.Time           `json:"time"`
	Source domain.SampleSource `json:"source" validate:"omitempty,oneof=gps click"`
}

// clickRequest is a map click, geographic or in viewport pixels.
type clickRequest struct {
	Lat *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lon *float64 `json:"lon" validate:"omitempty,gte=-180,lte=180"`
	X   *float64 `json:"x"`
	Y   *float64 `json:"y"`
}

// trackImportResult summarises a track upload.
type trackImportResult struct {
	Samples  int                  `json:"samples"`
	Accepted int                  `json:"accepted"`
	Last     *domain.IngestResult `json:"last"`
}

func parseBody(c *fiber.Ctx, v interface{}) error {
	if err := c.BodyParser(v); err != nil {
		return errors.New("invalid request body")
	}
	if err := validate.Struct(v); err != nil {
		return err
	}
	return nil
}

// CreateSessionHandler opens a session. The body is an optional view.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var view *domain.View
		if len(bytes.TrimSpace(c.Body())) > 0 {
			view = &domain.View{}
			if err := c.BodyParser(view); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}

		sum, err := deps.Sessions.Create(c.UserContext(), view)
		if err != nil {
			return errFromService(c, err)
		}
		c.Location("/v1/sessions/" + sum.ID)
		return c.Status(fiber.StatusCreated).JSON(sum)
	}
}

// ListSessionsHandler returns open sessions, paginated.
func ListSessionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset, limit := parsePagination(c, 50, 200)
		sessions, total := deps.Sessions.List(c.UserContext(), offset, limit)

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: sessions, Pagination: pg})
	}
}

// GetSessionHandler returns one session summary.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sum, err := deps.Sessions.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(sum)
	}
}

// CloseSessionHandler drops a session.
func CloseSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Close(c.UserContext(), c.Params("id")); err != nil {
			return errFromService(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// IngestSampleHandler feeds one geolocation sample.
func IngestSampleHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req sampleRequest
		if err := parseBody(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}

		res, err := deps.Sessions.IngestSample(c.UserContext(), c.Params("id"), domain.Sample{
			Point:  domain.GeoPoint{Lat: *req.Lat, Lon: *req.Lon},
			Source: req.Source,
			Time:   req.Time,
		})
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(res)
	}
}

// ImportTrackHandler feeds a whole recorded track, in order. The body is a
// JSON sample array or GeoJSON.
func ImportTrackHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		samples, err := trackfile.Decode(bytes.NewReader(c.Body()))
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		out := trackImportResult{Samples: len(samples)}
		for _, s := range samples {
			res, err := deps.Sessions.IngestSample(c.UserContext(), c.Params("id"), s)
			if err != nil {
				return errFromService(c, err)
			}
			if res.Accepted {
				out.Accepted++
			}
			out.Last = res
		}
		return c.JSON(out)
	}
}

// ClickHandler applies a map click.
func ClickHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req clickRequest
		if err := parseBody(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}

		var click domain.Click
		switch {
		case req.Lat != nil && req.Lon != nil:
			click.Point = &domain.GeoPoint{Lat: *req.Lat, Lon: *req.Lon}
		case req.X != nil && req.Y != nil:
			click.Screen = &domain.ScreenPoint{X: *req.X, Y: *req.Y}
		default:
			return errBadRequest(c, "either lat/lon or x/y is required")
		}

		res, err := deps.Sessions.Click(c.UserContext(), c.Params("id"), click)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(res)
	}
}

// SetViewHandler pans, zooms or resizes the session map.
func SetViewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var upd domain.ViewUpdate
		if err := c.BodyParser(&upd); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		frame, err := deps.Sessions.SetView(c.UserContext(), c.Params("id"), upd)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(frame)
	}
}

// SetModeHandler toggles tracking and click-to-move.
func SetModeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var upd domain.ModeUpdate
		if err := c.BodyParser(&upd); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if upd.Tracking == nil && upd.ClickToMove == nil {
			return errBadRequest(c, "tracking or click_to_move is required")
		}
		sum, err := deps.Sessions.SetMode(c.UserContext(), c.Params("id"), upd)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(sum)
	}
}

// ResetTrailHandler clears the revealed area and the path.
func ResetTrailHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.ResetTrail(c.UserContext(), c.Params("id")); err != nil {
			return errFromService(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// FrameHandler returns the latest drawable primitives.
func FrameHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		frame, err := deps.Sessions.Frame(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(frame)
	}
}

// ShapesHandler returns the revealed shapes in insertion order.
func ShapesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		shapes, err := deps.Sessions.Shapes(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(shapes)
	}
}

// MaskHandler renders the fog mask in the given format.
func MaskHandler(deps *Dependencies, format string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		img, err := deps.Sessions.RenderMask(c.UserContext(), c.Params("id"), format)
		if err != nil {
			return errFromService(c, err)
		}
		c.Set(fiber.HeaderETag, img.ETag)
		c.Set(fiber.HeaderContentType, img.ContentType)
		return c.Send(img.Data)
	}
}

// TrailGeoJSONHandler returns the walked path as a GeoJSON FeatureCollection.
func TrailGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		snap, err := deps.Sessions.TrailSnapshot(c.UserContext(), id)
		if err != nil {
			return errFromService(c, err)
		}

		data, err := json.Marshal(trackfile.TrailCollection(id, snap.Segments, snap.Revealed))
		if err != nil {
			return errInternal(c, "encode geojson")
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(data)
	}
}
