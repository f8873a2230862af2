package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/lertxundi/anchorage/internal/core/domain"
	"github.com/lertxundi/anchorage/internal/core/usecases"
	"github.com/lertxundi/anchorage/internal/pkg/metrics"
)

// frameRequest is one device frame: the camera's geospatial pose plus the
// device's own tracking verdict. Latitude/longitude are pointers so a frame
// without a fix can still report tracking state.
type frameRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Altitude  float64  `json:"altitude"`
	Heading   float64  `json:"heading"`
	Tracking  bool     `json:"tracking"`
}

type placeRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// OpenSessionHandler starts a new device session.
func OpenSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := deps.Sessions.Open(c.UserContext())
		if err != nil {
			return errInternal(c, err.Error())
		}
		metrics.LiveSessions.Set(float64(deps.Sessions.Count()))
		return c.Status(201).JSON(sess)
	}
}

// FrameHandler ingests one device frame and returns the recomputed
// near-flags and draw list. A frame without usable tracking is skipped
// with a 409 so the client can surface the error.
func FrameHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req frameRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid frame payload: "+err.Error())
		}

		var pose *domain.CameraPose
		if req.Latitude != nil && req.Longitude != nil {
			pose = &domain.CameraPose{
				Latitude:  *req.Latitude,
				Longitude: *req.Longitude,
				Altitude:  req.Altitude,
				Heading:   req.Heading,
			}
		}

		res, err := deps.Sessions.Frame(c.UserContext(), c.Params("id"), pose, req.Tracking)
		switch {
		case errors.Is(err, usecases.ErrSessionNotFound):
			return errNotFound(c, "unknown session")
		case errors.Is(err, usecases.ErrNotTracking):
			metrics.FramesSkipped.Inc()
			return errTrackingUnavailable(c)
		case err != nil:
			return errInternal(c, err.Error())
		}

		metrics.FramesProcessed.Inc()
		near := 0
		for _, s := range res.Slots {
			if s.Near {
				near++
			}
		}
		metrics.NearAnchors.Set(float64(near))

		return c.JSON(res)
	}
}

// PlaceAnchorHandler requests an anchor placement at the tapped
// coordinates. A request while the session is not tracking is a deliberate
// no-op, reported as placed=false with status 200.
func PlaceAnchorHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req placeRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid placement payload: "+err.Error())
		}
		if req.Lat < -90 || req.Lat > 90 || req.Lon < -180 || req.Lon > 180 {
			return errBadRequest(c, "lat/lon out of range")
		}

		ok, err := deps.Sessions.Place(c.UserContext(), c.Params("id"), domain.GeoPoint{Lat: req.Lat, Lon: req.Lon})
		switch {
		case errors.Is(err, usecases.ErrSessionNotFound):
			return errNotFound(c, "unknown session")
		case err != nil:
			return errInternal(c, err.Error())
		}

		if !ok {
			metrics.PlacementsIgnored.Inc()
			return c.JSON(fiber.Map{"placed": false})
		}

		metrics.AnchorsPlaced.WithLabelValues("fresh").Inc()
		return c.Status(201).JSON(fiber.Map{"placed": true})
	}
}

// ListAnchorsHandler returns the session's slot inventory.
func ListAnchorsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		anchors, err := deps.Sessions.Anchors(c.UserContext(), c.Params("id"))
		switch {
		case errors.Is(err, usecases.ErrSessionNotFound):
			return errNotFound(c, "unknown session")
		case err != nil:
			return errInternal(c, err.Error())
		}
		if anchors == nil {
			anchors = []domain.AnchorStatus{}
		}
		return c.JSON(anchors)
	}
}

// NearbyAnchorsHandler returns stored records within a radius of a point,
// across all sessions.
func NearbyAnchorsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Anchors == nil {
			return errInternal(c, "storage not available")
		}

		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		radius := c.QueryFloat("radius", 100)

		if lat == 0 && lon == 0 {
			return errBadRequest(c, "lat and lon are required")
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return errBadRequest(c, "lat/lon out of range")
		}
		if radius <= 0 || radius > 10000 {
			return errBadRequest(c, "radius must be between 1 and 10000 meters")
		}

		anchors, err := deps.Anchors.FindNearby(c.UserContext(), lat, lon, radius, 200)
		if err != nil {
			return errInternal(c, err.Error())
		}

		// Apply offset/limit pagination on the full list
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 50)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 200 {
			limit = 50
		}

		total := len(anchors)
		if offset >= total {
			anchors = nil
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			anchors = anchors[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: anchors, Pagination: pg})
	}
}
