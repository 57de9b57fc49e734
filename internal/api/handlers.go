package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sincitytravels/navigator/internal/middleware"
	"github.com/sincitytravels/navigator/internal/models"
	"github.com/sincitytravels/navigator/internal/navigation"
	"go.uber.org/zap"
)

// Version is reported by the health endpoint
const Version = "2.5"

const (
	defaultNearbyRadius = 500.0
	maxNearbyRadius     = 5000.0
)

var poiIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,20}$`)

// TripComposer builds multi-leg trips between POIs
type TripComposer interface {
	ComposeTrip(ctx context.Context, startID, endID string) (*models.Trip, error)
}

// Catalog serves the read-only listing endpoints
type Catalog interface {
	FindPOI(ctx context.Context, id string) (*models.POI, error)
	ListPOIs(ctx context.Context, category string) ([]models.POI, error)
	ListRecommendedPOIs(ctx context.Context) ([]models.POI, error)
	FindNearbyPOIs(ctx context.Context, center models.Coordinate, radius float64, category string) ([]models.NearbyPOI, error)
	ListProperties(ctx context.Context) ([]models.Property, error)
	ListPropertyDistances(ctx context.Context, walkThreshold float64) ([]models.PropertyDistance, error)
	POIDistance(ctx context.Context, a, b string) (float64, bool, error)
	FindStoredIndoorRoute(ctx context.Context, startPOIID, endPOIID string) (*models.StoredRoute, error)
	ResolveNodes(ctx context.Context, ids []int64, propertyID int64) ([]models.Node, error)
}

// HealthCheck is one named dependency probe. A nil Check marks an optional
// dependency that is not configured; it reports "disabled" and never degrades.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler serves the navigation HTTP API
type Handler struct {
	trips         TripComposer
	catalog       Catalog
	checks        []HealthCheck
	walkThreshold float64
	log           *zap.Logger
	now           func() time.Time
}

// NewHandler creates the API handler
func NewHandler(trips TripComposer, catalog Catalog, walkThreshold float64, checks []HealthCheck, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		trips:         trips,
		catalog:       catalog,
		checks:        checks,
		walkThreshold: walkThreshold,
		log:           logger,
		now:           time.Now,
	}
}

// NavigateRequest is the body of POST /api/navigate
type NavigateRequest struct {
	StartPOIID string `json:"start_poi_id"`
	EndPOIID   string `json:"end_poi_id"`
}

// Navigate handles POST /api/navigate
func (h *Handler) Navigate(c *fiber.Ctx) error {
	var req NavigateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Request body must be JSON",
		})
	}

	start := strings.TrimSpace(req.StartPOIID)
	end := strings.TrimSpace(req.EndPOIID)
	if start == "" || end == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "start_poi_id and end_poi_id required",
		})
	}
	if !validPOIID(start) || !validPOIID(end) {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid POI ID format",
		})
	}
	if start == end {
		return c.Status(400).JSON(fiber.Map{
			"error": "Start and end POI must be different",
		})
	}

	c.Locals(middleware.LocalStartPOI, utils.CopyString(start))
	c.Locals(middleware.LocalEndPOI, utils.CopyString(end))

	trip, err := h.trips.ComposeTrip(c.UserContext(), start, end)
	switch {
	case errors.Is(err, navigation.ErrNotFound):
		return c.Status(404).JSON(fiber.Map{
			"error": "POI not found",
		})
	case errors.Is(err, navigation.ErrInvalidInput):
		return c.Status(400).JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		return fmt.Errorf("compose trip %s -> %s: %w", start, end, err)
	}

	c.Locals(middleware.LocalMode, string(trip.Mode))
	return c.JSON(trip)
}

// POIResponse is the public form of a POI
type POIResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	Property       string   `json:"casino_property"`
	Lat            float64  `json:"lat"`
	Lng            float64  `json:"lng"`
	Level          string   `json:"level,omitempty"`
	Area           string   `json:"area,omitempty"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
}

func toPOIResponse(p models.POI) POIResponse {
	return POIResponse{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		Property: p.Property,
		Lat:      p.Location.Lat,
		Lng:      p.Location.Lng,
		Level:    p.Level,
		Area:     p.Area,
	}
}

// ListPOIs handles GET /api/pois
func (h *Handler) ListPOIs(c *fiber.Ctx) error {
	category := c.Query("category")
	if category != "" && !models.ValidCategory(category) {
		return invalidCategory(c)
	}

	pois, err := h.catalog.ListPOIs(c.UserContext(), category)
	if err != nil {
		return err
	}

	resp := make([]POIResponse, 0, len(pois))
	for _, p := range pois {
		resp = append(resp, toPOIResponse(p))
	}
	return c.JSON(resp)
}

// RecommendedPOIs handles GET /api/pois/recommended
func (h *Handler) RecommendedPOIs(c *fiber.Ctx) error {
	pois, err := h.catalog.ListRecommendedPOIs(c.UserContext())
	if err != nil {
		return err
	}

	resp := make([]POIResponse, 0, len(pois))
	for _, p := range pois {
		resp = append(resp, toPOIResponse(p))
	}
	return c.JSON(resp)
}

// Nearby handles GET /api/nearby
func (h *Handler) Nearby(c *fiber.Ctx) error {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "lat and lng are required and must be numbers",
		})
	}
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return c.Status(400).JSON(fiber.Map{
			"error": "lat must be -90..90, lng must be -180..180",
		})
	}

	radius := defaultNearbyRadius
	if raw := c.Query("radius"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(r) || r < 0 {
			return c.Status(400).JSON(fiber.Map{
				"error": "radius must be a non-negative number",
			})
		}
		radius = r
	}
	if radius > maxNearbyRadius {
		radius = maxNearbyRadius
	}

	category := c.Query("category")
	if category != "" && !models.ValidCategory(category) {
		return invalidCategory(c)
	}

	nearby, err := h.catalog.FindNearbyPOIs(c.UserContext(), models.Coordinate{Lat: lat, Lng: lng}, radius, category)
	if err != nil {
		return err
	}

	resp := make([]POIResponse, 0, len(nearby))
	for _, n := range nearby {
		r := toPOIResponse(n.POI)
		d := n.DistanceMeters
		r.DistanceMeters = &d
		resp = append(resp, r)
	}
	return c.JSON(resp)
}

// PropertyResponse is the public form of a property
type PropertyResponse struct {
	ID   int64   `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Area string  `json:"area,omitempty"`
}

// ListProperties handles GET /api/properties
func (h *Handler) ListProperties(c *fiber.Ctx) error {
	props, err := h.catalog.ListProperties(c.UserContext())
	if err != nil {
		return err
	}

	resp := make([]PropertyResponse, 0, len(props))
	for _, p := range props {
		resp = append(resp, PropertyResponse{
			ID:   p.ID,
			Name: p.Name,
			Lat:  p.Location.Lat,
			Lng:  p.Location.Lng,
			Area: p.Area,
		})
	}
	return c.JSON(resp)
}

// PropertyDistances handles GET /api/property-distances
func (h *Handler) PropertyDistances(c *fiber.Ctx) error {
	distances, err := h.catalog.ListPropertyDistances(c.UserContext(), h.walkThreshold)
	if err != nil {
		return err
	}
	return c.JSON(distances)
}

// Distance handles GET /api/distance/:a/:b
func (h *Handler) Distance(c *fiber.Ctx) error {
	a, b := c.Params("a"), c.Params("b")
	if !validPOIID(a) || !validPOIID(b) {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid POI ID format",
		})
	}

	d, ok, err := h.catalog.POIDistance(c.UserContext(), a, b)
	if err != nil {
		return err
	}
	if !ok {
		return c.Status(404).JSON(fiber.Map{
			"error": "POI not found",
		})
	}
	return c.JSON(fiber.Map{
		"distance_meters": d,
	})
}

// IndoorRouteResponse describes a stored route between two POIs, or the
// straight-line fallback when none is stored
type IndoorRouteResponse struct {
	Found          bool              `json:"found"`
	Start          models.POISummary `json:"start"`
	End            models.POISummary `json:"end"`
	DistanceMeters float64           `json:"distance_meters"`
	TimeSeconds    int               `json:"estimated_time_seconds"`
	HasStairs      *bool             `json:"has_stairs,omitempty"`
	HasElevator    *bool             `json:"has_elevator,omitempty"`
	Waypoints      []models.Waypoint `json:"waypoints"`
}

// IndoorRoute handles GET /api/route/:start/:end
func (h *Handler) IndoorRoute(c *fiber.Ctx) error {
	startID, endID := c.Params("start"), c.Params("end")
	if !validPOIID(startID) || !validPOIID(endID) {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid POI ID format",
		})
	}

	ctx := c.UserContext()
	start, err := h.catalog.FindPOI(ctx, startID)
	if err != nil {
		return err
	}
	end, err := h.catalog.FindPOI(ctx, endID)
	if err != nil {
		return err
	}
	if start == nil || end == nil {
		return c.Status(404).JSON(fiber.Map{
			"error": "POI not found",
		})
	}

	startWP, endWP := navigation.POIWaypoint(start), navigation.POIWaypoint(end)
	resp := IndoorRouteResponse{
		Start:     summarize(start),
		End:       summarize(end),
		Waypoints: []models.Waypoint{startWP, endWP},
	}

	route, err := h.catalog.FindStoredIndoorRoute(ctx, startID, endID)
	if err != nil {
		return err
	}
	if route == nil {
		d, _, err := h.catalog.POIDistance(ctx, startID, endID)
		if err != nil {
			return err
		}
		resp.DistanceMeters = d
		resp.TimeSeconds = int(d / navigation.DefaultWalkSpeed)
		return c.JSON(resp)
	}

	resp.Found = true
	resp.DistanceMeters = route.DistanceMeters
	resp.TimeSeconds = route.DurationSeconds
	resp.HasStairs = &route.HasStairs
	resp.HasElevator = &route.HasElevator

	nodes, err := h.catalog.ResolveNodes(ctx, route.NodeIDs, route.PropertyID)
	if err != nil {
		return err
	}
	byID := make(map[int64]models.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	var path []models.Waypoint
	for _, id := range route.NodeIDs {
		if n, ok := byID[id]; ok {
			path = append(path, navigation.NodeWaypoint(n))
		}
	}
	if len(path) >= 2 {
		resp.Waypoints = append(append([]models.Waypoint{startWP}, path...), endWP)
	}

	return c.JSON(resp)
}

// Health handles the /health endpoint
func (h *Handler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	checks := fiber.Map{}
	status := "ok"
	httpStatus := 200
	for _, hc := range h.checks {
		if hc.Check == nil {
			checks[hc.Name] = "disabled"
			continue
		}
		if err := hc.Check(ctx); err != nil {
			h.log.Warn("health check failed", zap.String("check", hc.Name), zap.Error(err))
			checks[hc.Name] = err.Error()
			status = "degraded"
			httpStatus = 503
			continue
		}
		checks[hc.Name] = "ok"
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"version":   Version,
		"checks":    checks,
	})
}

// ErrorHandler renders errors that escaped a handler as JSON
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			msg := fe.Message
			if fe.Code == fiber.StatusNotFound {
				msg = "Not found"
			}
			return c.Status(fe.Code).JSON(fiber.Map{"error": msg})
		}

		logger.Error("internal error",
			zap.String("path", utils.CopyString(c.Path())),
			zap.Error(err),
		)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
}

func summarize(p *models.POI) models.POISummary {
	return models.POISummary{
		ID:       p.ID,
		Name:     p.Name,
		Property: p.Property,
		Lat:      p.Location.Lat,
		Lng:      p.Location.Lng,
	}
}

func validPOIID(id string) bool {
	return poiIDPattern.MatchString(id)
}

func invalidCategory(c *fiber.Ctx) error {
	return c.Status(400).JSON(fiber.Map{
		"error": "Invalid category. Must be one of: " + strings.Join(models.Categories, ", "),
	})
}
