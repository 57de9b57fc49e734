package navigation

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/sincitytravels/navigator/internal/fare"
	"github.com/sincitytravels/navigator/internal/geo"
	"github.com/sincitytravels/navigator/internal/models"
	"github.com/sincitytravels/navigator/internal/observability"
	"go.uber.org/zap"
)

var (
	// ErrInvalidInput is returned for missing or identical POI ids
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a POI id cannot be resolved
	ErrNotFound = errors.New("not found")
)

// Config holds the navigation thresholds
type Config struct {
	WalkThresholdMeters     float64 `toml:"walk_threshold_meters"`
	WalkSpeed               float64 `toml:"walk_speed_mps"`
	DefaultPropertyDistance float64 `toml:"default_property_distance_meters"`
}

// DefaultConfig returns the Las Vegas Strip defaults
func DefaultConfig() Config {
	return Config{
		WalkThresholdMeters:     500,
		WalkSpeed:               DefaultWalkSpeed,
		DefaultPropertyDistance: 1000,
	}
}

// Composer builds multi-leg trips between two points of interest
type Composer struct {
	store      Datastore
	directions DirectionsProvider
	fares      *fare.Estimator
	cfg        Config
	log        *zap.Logger
	metrics    *observability.Collector
	newID      func() string
}

// NewComposer creates a composer. directions may be nil, in which case every
// outdoor leg uses straight-line geometry.
func NewComposer(store Datastore, directions DirectionsProvider, fares *fare.Estimator, cfg Config, logger *zap.Logger, metrics *observability.Collector) *Composer {
	defaults := DefaultConfig()
	if cfg.WalkThresholdMeters <= 0 {
		cfg.WalkThresholdMeters = defaults.WalkThresholdMeters
	}
	if cfg.WalkSpeed <= 0 {
		cfg.WalkSpeed = defaults.WalkSpeed
	}
	if cfg.DefaultPropertyDistance <= 0 {
		cfg.DefaultPropertyDistance = defaults.DefaultPropertyDistance
	}
	if fares == nil {
		fares = fare.NewEstimator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		store:      store,
		directions: directions,
		fares:      fares,
		cfg:        cfg,
		log:        logger,
		metrics:    metrics,
		newID:      uuid.NewString,
	}
}

// TransportFor picks walk or rideshare for an inter-property distance
func (c *Composer) TransportFor(distanceMeters float64) models.TransportMode {
	if distanceMeters <= c.cfg.WalkThresholdMeters {
		return models.TransportWalk
	}
	return models.TransportRideshare
}

// ComposeTrip builds the trip from startID to endID. Provider failures never
// surface; only unresolvable POIs, invalid ids and datastore failures do.
func (c *Composer) ComposeTrip(ctx context.Context, startID, endID string) (*models.Trip, error) {
	if startID == "" || endID == "" {
		return nil, fmt.Errorf("%w: start and end POI ids are required", ErrInvalidInput)
	}
	if startID == endID {
		return nil, fmt.Errorf("%w: start and end POI must be different", ErrInvalidInput)
	}

	start, err := c.findPOI(ctx, startID)
	if err != nil {
		return nil, err
	}
	end, err := c.findPOI(ctx, endID)
	if err != nil {
		return nil, err
	}

	var legs []models.Leg
	if start.Property == end.Property {
		leg, err := c.sameProperty(ctx, start, end)
		if err != nil {
			return nil, err
		}
		legs = []models.Leg{leg}
	} else {
		legs, err = c.crossProperty(ctx, start, end)
		if err != nil {
			return nil, err
		}
	}

	for i := range legs {
		legs[i].Number = i + 1
	}

	trip := &models.Trip{
		ID:       c.newID(),
		Start:    summary(start),
		End:      summary(end),
		Mode:     models.TransportWalk,
		LegCount: len(legs),
		Legs:     legs,
	}

	total := 0.0
	for _, leg := range legs {
		total += leg.DistanceMeters
		trip.TotalTimeSeconds += leg.DurationSecs
		if leg.Kind == models.LegRideshare {
			trip.Mode = models.TransportRideshare
		}
	}
	trip.TotalDistanceMeters = geo.Round(total, 1)

	c.metrics.TripComposed(string(trip.Mode))
	c.log.Info("trip composed",
		zap.String("trip_id", trip.ID),
		zap.String("start", start.ID),
		zap.String("end", end.ID),
		zap.String("mode", string(trip.Mode)),
		zap.Int("legs", trip.LegCount),
		zap.Float64("distance_meters", trip.TotalDistanceMeters))

	return trip, nil
}

func (c *Composer) findPOI(ctx context.Context, id string) (*models.POI, error) {
	poi, err := c.store.FindPOI(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load POI %s: %w", id, err)
	}
	if poi == nil {
		return nil, fmt.Errorf("%w: POI %s", ErrNotFound, id)
	}
	return poi, nil
}

func summary(p *models.POI) models.POISummary {
	return models.POISummary{
		ID:       p.ID,
		Name:     p.Name,
		Property: p.Property,
		Lat:      p.Location.Lat,
		Lng:      p.Location.Lng,
	}
}

// sameProperty builds the single indoor leg, splicing in the stored route's
// node path when one exists
func (c *Composer) sameProperty(ctx context.Context, start, end *models.POI) (models.Leg, error) {
	route, err := c.store.FindStoredIndoorRoute(ctx, start.ID, end.ID)
	if err != nil {
		return models.Leg{}, fmt.Errorf("failed to load stored route %s -> %s: %w", start.ID, end.ID, err)
	}

	waypoints := []models.Waypoint{POIWaypoint(start)}
	if route != nil && len(route.NodeIDs) > 0 {
		nodes, err := c.store.ResolveNodes(ctx, route.NodeIDs, route.PropertyID)
		if err != nil {
			return models.Leg{}, fmt.Errorf("failed to resolve route nodes: %w", err)
		}
		byID := make(map[int64]models.Node, len(nodes))
		for _, n := range nodes {
			byID[n.ID] = n
		}
		// Path order comes from the stored route, not the lookup
		for _, id := range route.NodeIDs {
			if n, ok := byID[id]; ok {
				waypoints = append(waypoints, NodeWaypoint(n))
			}
		}
	}
	waypoints = append(waypoints, POIWaypoint(end))

	dist := geo.PathDistance(waypoints)
	// Stored distances may include detours the node geometry does not show
	if route != nil && route.DistanceMeters > dist {
		dist = route.DistanceMeters
	}

	hasStairs, hasElevator := false, false
	if route != nil {
		hasStairs, hasElevator = route.HasStairs, route.HasElevator
	}

	return models.Leg{
		Kind:           models.LegIndoor,
		Label:          "Walk through " + start.Property,
		Transport:      models.TransportWalk,
		Property:       start.Property,
		DistanceMeters: geo.Round(dist, 1),
		DurationSecs:   walkSeconds(dist, c.cfg.WalkSpeed),
		Steps:          generateSteps(waypoints, c.cfg.WalkSpeed),
		Waypoints:      waypoints,
		HasStairs:      &hasStairs,
		HasElevator:    &hasElevator,
	}, nil
}

func (c *Composer) crossProperty(ctx context.Context, start, end *models.POI) ([]models.Leg, error) {
	interDist, ok, err := c.store.FindPropertyDistance(ctx, start.Property, end.Property)
	if err != nil {
		return nil, fmt.Errorf("failed to load property distance %s -> %s: %w", start.Property, end.Property, err)
	}
	if !ok {
		interDist = c.cfg.DefaultPropertyDistance
	}

	mode := c.TransportFor(interDist)
	role := models.RoleMain
	if mode == models.TransportRideshare {
		role = models.RoleRidesharePickup
	}

	startEnt, err := ResolveEntrance(ctx, c.store, start, role, start.Property+" Exit")
	if err != nil {
		return nil, err
	}
	endEnt, err := ResolveEntrance(ctx, c.store, end, role, end.Property+" Entrance")
	if err != nil {
		return nil, err
	}

	c.log.Debug("entrances resolved",
		zap.String("mode", string(mode)),
		zap.Float64("property_distance_meters", interDist),
		zap.Stringer("start_tier", startEnt.Tier),
		zap.Stringer("end_tier", endEnt.Tier))

	departure, err := c.indoorLeg(ctx, start, startEnt, false)
	if err != nil {
		return nil, err
	}
	departure.Kind = models.LegIndoorDeparture
	departure.Label = "Exit " + start.Property

	var outdoor models.Leg
	if mode == models.TransportWalk {
		outdoor = c.outdoorWalkLeg(ctx, start, end, startEnt, endEnt)
	} else {
		outdoor = c.rideshareLeg(ctx, start, end, startEnt, endEnt)
	}

	arrival, err := c.indoorLeg(ctx, end, endEnt, true)
	if err != nil {
		return nil, err
	}
	arrival.Kind = models.LegIndoorArrival
	arrival.Label = "Enter " + end.Property + " to " + end.Name

	return []models.Leg{departure, outdoor, arrival}, nil
}

// indoorLeg walks between a POI and its resolved entrance. reverse runs
// entrance -> POI.
func (c *Composer) indoorLeg(ctx context.Context, poi *models.POI, ent EntranceResolution, reverse bool) (models.Leg, error) {
	var waypoints []models.Waypoint
	if ent.HasNode() {
		path, err := c.store.FindIndoorPath(ctx, poi.ID, ent.Entrance.NodeID, poi.Property, reverse)
		if err != nil {
			return models.Leg{}, fmt.Errorf("failed to load indoor path for %s: %w", poi.ID, err)
		}
		waypoints = path
	}
	if len(waypoints) < 2 {
		waypoints = []models.Waypoint{POIWaypoint(poi), ent.Waypoint()}
		if reverse {
			waypoints[0], waypoints[1] = waypoints[1], waypoints[0]
		}
	}

	dist := geo.PathDistance(waypoints)
	return models.Leg{
		Transport:      models.TransportWalk,
		Property:       poi.Property,
		DistanceMeters: geo.Round(dist, 1),
		DurationSecs:   walkSeconds(dist, c.cfg.WalkSpeed),
		Steps:          generateSteps(waypoints, c.cfg.WalkSpeed),
		Waypoints:      waypoints,
	}, nil
}

func (c *Composer) getDirections(ctx context.Context, origin, destination models.Coordinate, mode models.TravelMode) (*models.NormalizedRoute, bool) {
	if c.directions == nil {
		return nil, false
	}
	route, ok := c.directions.GetDirections(ctx, origin, destination, mode)
	if !ok || route == nil {
		return nil, false
	}
	return route, true
}

func entranceLabel(ent EntranceResolution, property string) string {
	if ent.Entrance.Name != "" {
		return ent.Entrance.Name
	}
	return property
}

func (c *Composer) outdoorWalkLeg(ctx context.Context, start, end *models.POI, startEnt, endEnt EntranceResolution) models.Leg {
	from, to := startEnt.Entrance.Location, endEnt.Entrance.Location
	leg := models.Leg{
		Kind:      models.LegOutdoorWalk,
		Label:     "Walk to " + end.Property,
		Transport: models.TransportWalk,
	}

	if route, ok := c.getDirections(ctx, from, to, models.TravelWalking); ok {
		waypoints := append([]models.Waypoint(nil), route.Waypoints...)
		if len(waypoints) > 0 {
			first, last := &waypoints[0], &waypoints[len(waypoints)-1]
			first.Name, first.Kind = entranceLabel(startEnt, start.Property), models.NodeEntrance
			last.Name, last.Kind = entranceLabel(endEnt, end.Property), models.NodeEntrance
		}
		steps := route.Steps
		if steps == nil {
			steps = []models.Step{}
		}
		leg.DistanceMeters = route.DistanceMeters
		leg.DurationSecs = route.DurationSeconds
		leg.Steps = steps
		leg.Waypoints = waypoints
		leg.Source = models.SourceProvider
		return leg
	}

	waypoints := []models.Waypoint{
		{Lat: from.Lat, Lng: from.Lng, Name: entranceLabel(startEnt, start.Property), Kind: models.NodeEntrance},
		{Lat: to.Lat, Lng: to.Lng, Name: entranceLabel(endEnt, end.Property), Kind: models.NodeEntrance},
	}
	dist := geo.Haversine(from, to)
	leg.DistanceMeters = geo.Round(dist, 1)
	leg.DurationSecs = walkSeconds(dist, c.cfg.WalkSpeed)
	leg.Steps = generateSteps(waypoints, c.cfg.WalkSpeed)
	leg.Waypoints = waypoints
	leg.Source = models.SourceStraightLine
	return leg
}

func (c *Composer) rideshareLeg(ctx context.Context, start, end *models.POI, startEnt, endEnt EntranceResolution) models.Leg {
	from, to := startEnt.Entrance.Location, endEnt.Entrance.Location
	pickupName := start.Property + " Pickup"
	dropoffName := end.Property + " Dropoff"

	var (
		distance  float64
		waypoints []models.Waypoint
		source    models.RouteSource
		driveSecs = -1
	)

	if route, ok := c.getDirections(ctx, from, to, models.TravelDriving); ok {
		distance = route.DistanceMeters
		driveSecs = route.DurationSeconds
		waypoints = append([]models.Waypoint(nil), route.Waypoints...)
		if len(waypoints) > 0 {
			first, last := &waypoints[0], &waypoints[len(waypoints)-1]
			first.Name, first.Kind = pickupName, models.NodeRidesharePickup
			last.Name, last.Kind = dropoffName, models.NodeRideshareDropoff
		}
		source = models.SourceProvider
	} else {
		distance = geo.Haversine(from, to)
		waypoints = []models.Waypoint{
			{Lat: from.Lat, Lng: from.Lng, Name: pickupName, Kind: models.NodeRidesharePickup},
			{Lat: to.Lat, Lng: to.Lng, Name: dropoffName, Kind: models.NodeRideshareDropoff},
		}
		source = models.SourceStraightLine
	}

	estimate := c.fares.Estimate(distance)
	if driveSecs >= 0 {
		estimate.EstimatedDriveMinutes = geo.Round(float64(driveSecs)/60, 1)
	}
	rideTime := int(estimate.EstimatedDriveMinutes * 60)
	links := fare.DeepLinks(from, to, end.Property)
	rounded := geo.Round(distance, 1)

	pickup := startEnt.Entrance.Name
	if pickup == "" {
		pickup = start.Property + " Rideshare Pickup"
	}
	dropoff := endEnt.Entrance.Name
	if dropoff == "" {
		dropoff = end.Property + " Rideshare Dropoff"
	}

	return models.Leg{
		Kind:           models.LegRideshare,
		Label:          "Rideshare to " + end.Property,
		Transport:      models.TransportRideshare,
		DistanceMeters: rounded,
		DurationSecs:   rideTime,
		Fare:           &estimate,
		DeepLinks:      &links,
		Pickup:         &models.NamedPoint{Lat: from.Lat, Lng: from.Lng, Name: pickup},
		Dropoff:        &models.NamedPoint{Lat: to.Lat, Lng: to.Lng, Name: dropoff},
		Steps: []models.Step{
			{
				Instruction: "Head to the rideshare pickup area at " + start.Property,
				From:        from,
				To:          from,
			},
			{
				Instruction: "Request your ride via Uber or Lyft",
				TimeSeconds: estimate.Uber.ETAMinutes * 60,
				From:        from,
				To:          from,
			},
			{
				Instruction:    fmt.Sprintf("Ride to %s (%s mi)", end.Property, strconv.FormatFloat(estimate.DistanceMiles, 'f', -1, 64)),
				DistanceMeters: rounded,
				TimeSeconds:    rideTime,
				From:           from,
				To:             to,
			},
		},
		Waypoints: waypoints,
		Source:    source,
	}
}
