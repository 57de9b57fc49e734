package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sincitytravels/navigator/internal/geo"
	"github.com/sincitytravels/navigator/internal/models"
	"github.com/sincitytravels/navigator/internal/navigation"
)

// MaxIntermediateNodes caps the junction/elevator/stairs nodes placed on an indoor leg
const MaxIntermediateNodes = 2

// Querier is the subset of pgxpool.Pool the store needs
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ navigation.Datastore = (*Store)(nil)

// Store reads POIs, navigation nodes and routes from the PostGIS schema
type Store struct {
	db Querier
}

// NewStore creates a store over a pool or connection
func NewStore(db Querier) *Store {
	return &Store{db: db}
}

const poiColumns = `
	id, name, COALESCE(category::text, ''), COALESCE(casino_property, ''),
	ST_Y(location::geometry), ST_X(location::geometry),
	COALESCE(level::text, ''), COALESCE(area, '')`

func scanPOI(row pgx.Row, p *models.POI) error {
	return row.Scan(&p.ID, &p.Name, &p.Category, &p.Property,
		&p.Location.Lat, &p.Location.Lng, &p.Level, &p.Area)
}

// FindPOI loads a point of interest by id
func (s *Store) FindPOI(ctx context.Context, id string) (*models.POI, error) {
	query := `SELECT ` + poiColumns + ` FROM pois WHERE id = $1`

	var p models.POI
	if err := scanPOI(s.db.QueryRow(ctx, query, id), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query POI: %w", err)
	}
	return &p, nil
}

// FindStoredIndoorRoute loads the pre-computed route between two POIs
func (s *Store) FindStoredIndoorRoute(ctx context.Context, startPOIID, endPOIID string) (*models.StoredRoute, error) {
	query := `
		SELECT total_distance_meters::float8,
		       COALESCE(estimated_time_seconds, 0)::int,
		       COALESCE(path_nodes, '{}')::bigint[],
		       COALESCE(has_stairs, FALSE),
		       COALESCE(has_elevator, FALSE),
		       COALESCE(property_id, 0)::bigint
		FROM synthetic_routes
		WHERE start_poi_id = $1 AND end_poi_id = $2
		LIMIT 1
	`

	var r models.StoredRoute
	err := s.db.QueryRow(ctx, query, startPOIID, endPOIID).Scan(
		&r.DistanceMeters, &r.DurationSeconds, &r.NodeIDs,
		&r.HasStairs, &r.HasElevator, &r.PropertyID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query stored route: %w", err)
	}
	return &r, nil
}

const nodeColumns = `
	id, COALESCE(name, ''), node_type::text,
	COALESCE(indoor_level::text, ''), COALESCE(entrance_role::text, ''),
	ST_Y(location::geometry), ST_X(location::geometry)`

func scanNode(row pgx.Row, n *models.Node) error {
	var kind, role string
	if err := row.Scan(&n.ID, &n.Name, &kind, &n.IndoorLevel, &role,
		&n.Location.Lat, &n.Location.Lng); err != nil {
		return err
	}
	n.Kind = models.NodeKind(kind)
	n.EntranceRole = models.EntranceRole(role)
	return nil
}

// ResolveNodes loads navigation nodes by id. A zero propertyID disables the
// property filter. Result order is unspecified.
func (s *Store) ResolveNodes(ctx context.Context, ids []int64, propertyID int64) ([]models.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + nodeColumns + `
		FROM navigation_nodes
		WHERE id = ANY($1) AND ($2::bigint = 0 OR property_id = $2)
	`

	rows, err := s.db.Query(ctx, query, ids, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query navigation nodes: %w", err)
	}
	defer rows.Close()

	var nodes []models.Node
	for rows.Next() {
		var n models.Node
		if err := scanNode(rows, &n); err != nil {
			return nil, fmt.Errorf("failed to scan navigation node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// FindPropertyDistance looks up the straight-line distance between two properties
func (s *Store) FindPropertyDistance(ctx context.Context, fromProperty, toProperty string) (float64, bool, error) {
	query := `
		SELECT distance_meters::float8 FROM property_distances
		WHERE from_property_name = $1 AND to_property_name = $2
	`

	var d float64
	err := s.db.QueryRow(ctx, query, fromProperty, toProperty).Scan(&d)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query property distance: %w", err)
	}
	return d, true, nil
}

// FindNearestEntrance returns the entrance of the given role closest to the POI
func (s *Store) FindNearestEntrance(ctx context.Context, poiID string, role models.EntranceRole) (*models.Entrance, error) {
	query := `
		SELECT node_id::bigint, COALESCE(node_name, ''),
		       node_lat::float8, node_lng::float8,
		       COALESCE(distance_meters, 0)::float8
		FROM find_nearest_entrance($1, $2)
	`

	var (
		nodeID *int64
		e      models.Entrance
	)
	err := s.db.QueryRow(ctx, query, poiID, string(role)).Scan(
		&nodeID, &e.Name, &e.Location.Lat, &e.Location.Lng, &e.Distance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query nearest entrance: %w", err)
	}
	if nodeID == nil {
		return nil, nil
	}
	e.NodeID = *nodeID
	return &e, nil
}

// FindIndoorPath builds POI -> intermediates -> entrance, reversed when
// reverse is set. Intermediates are the junction, elevator and stairs nodes
// of the property nearest the POI.
func (s *Store) FindIndoorPath(ctx context.Context, poiID string, entranceNodeID int64, property string, reverse bool) ([]models.Waypoint, error) {
	poi, err := s.FindPOI(ctx, poiID)
	if err != nil {
		return nil, err
	}

	var entrance models.Node
	err = scanNode(s.db.QueryRow(ctx, `SELECT `+nodeColumns+` FROM navigation_nodes WHERE id = $1`, entranceNodeID), &entrance)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to query entrance node: %w", err)
	}
	if poi == nil || errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	query := `
		SELECT nn.id, COALESCE(nn.name, ''), nn.node_type::text,
		       COALESCE(nn.indoor_level::text, ''), COALESCE(nn.entrance_role::text, ''),
		       ST_Y(nn.location::geometry), ST_X(nn.location::geometry)
		FROM navigation_nodes nn
		JOIN properties p ON nn.property_id = p.id
		WHERE p.name = $1
		  AND nn.id != $2
		  AND nn.node_type IN ('junction', 'elevator', 'stairs')
		ORDER BY ST_Distance(
			nn.location,
			ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography
		)
		LIMIT $5
	`

	rows, err := s.db.Query(ctx, query, property, entranceNodeID,
		poi.Location.Lng, poi.Location.Lat, MaxIntermediateNodes)
	if err != nil {
		return nil, fmt.Errorf("failed to query intermediate nodes: %w", err)
	}
	defer rows.Close()

	var intermediates []models.Waypoint
	for rows.Next() {
		var n models.Node
		if err := scanNode(rows, &n); err != nil {
			return nil, fmt.Errorf("failed to scan intermediate node: %w", err)
		}
		intermediates = append(intermediates, navigation.NodeWaypoint(n))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	poiWP := navigation.POIWaypoint(poi)
	entWP := navigation.NodeWaypoint(entrance)
	if entrance.Name == "" {
		entWP.Name = "Entrance"
	}
	if entWP.EntranceRole == "" {
		entWP.EntranceRole = models.RoleMain
	}

	path := make([]models.Waypoint, 0, len(intermediates)+2)
	if reverse {
		path = append(path, entWP)
		path = append(path, intermediates...)
		path = append(path, poiWP)
	} else {
		path = append(path, poiWP)
		path = append(path, intermediates...)
		path = append(path, entWP)
	}
	return path, nil
}

// ListPOIs returns open POIs, optionally filtered by category
func (s *Store) ListPOIs(ctx context.Context, category string) ([]models.POI, error) {
	query := `SELECT ` + poiColumns + `
		FROM pois
		WHERE ($1::text = '' OR category::text = $1)
		  AND is_closed = FALSE
		ORDER BY casino_property, name
	`

	rows, err := s.db.Query(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query POIs: %w", err)
	}
	defer rows.Close()

	pois := []models.POI{}
	for rows.Next() {
		var p models.POI
		if err := scanPOI(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan POI: %w", err)
		}
		pois = append(pois, p)
	}
	return pois, rows.Err()
}

// ListRecommendedPOIs returns open POIs tagged "recommended", ordered by name
func (s *Store) ListRecommendedPOIs(ctx context.Context) ([]models.POI, error) {
	query := `SELECT ` + poiColumns + `
		FROM pois
		WHERE tags @> ARRAY['recommended']::text[]
		  AND is_closed = FALSE
		ORDER BY name
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommended POIs: %w", err)
	}
	defer rows.Close()

	pois := []models.POI{}
	for rows.Next() {
		var p models.POI
		if err := scanPOI(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan POI: %w", err)
		}
		pois = append(pois, p)
	}
	return pois, rows.Err()
}

// FindNearbyPOIs returns open POIs within radius meters of center, nearest first
func (s *Store) FindNearbyPOIs(ctx context.Context, center models.Coordinate, radius float64, category string) ([]models.NearbyPOI, error) {
	query := `
		WITH origin AS (
			SELECT ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography AS g
		)
		SELECT ` + poiColumns + `,
		       ST_Distance(location, origin.g)::float8 AS distance
		FROM pois, origin
		WHERE ST_DWithin(location, origin.g, $3)
		  AND ($4::text = '' OR category::text = $4)
		  AND is_closed = FALSE
		ORDER BY distance
		LIMIT 50
	`

	rows, err := s.db.Query(ctx, query, center.Lng, center.Lat, radius, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby POIs: %w", err)
	}
	defer rows.Close()

	nearby := []models.NearbyPOI{}
	for rows.Next() {
		var n models.NearbyPOI
		if err := rows.Scan(&n.ID, &n.Name, &n.Category, &n.Property,
			&n.Location.Lat, &n.Location.Lng, &n.Level, &n.Area, &n.DistanceMeters); err != nil {
			return nil, fmt.Errorf("failed to scan nearby POI: %w", err)
		}
		nearby = append(nearby, n)
	}
	return nearby, rows.Err()
}

// ListProperties returns every casino property
func (s *Store) ListProperties(ctx context.Context) ([]models.Property, error) {
	query := `
		SELECT id::bigint, name,
		       ST_Y(location::geometry), ST_X(location::geometry),
		       COALESCE(area, '')
		FROM properties
		ORDER BY id
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	props := []models.Property{}
	for rows.Next() {
		var p models.Property
		if err := rows.Scan(&p.ID, &p.Name, &p.Location.Lat, &p.Location.Lng, &p.Area); err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		props = append(props, p)
	}
	return props, rows.Err()
}

// ListPropertyDistances returns every property pair, nearest first, classified
// as walk or rideshare against walkThreshold
func (s *Store) ListPropertyDistances(ctx context.Context, walkThreshold float64) ([]models.PropertyDistance, error) {
	query := `
		SELECT from_property_name, to_property_name,
		       ROUND(distance_meters::numeric)::float8,
		       distance_meters <= $1
		FROM property_distances
		ORDER BY distance_meters
	`

	rows, err := s.db.Query(ctx, query, walkThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query property distances: %w", err)
	}
	defer rows.Close()

	distances := []models.PropertyDistance{}
	for rows.Next() {
		var d models.PropertyDistance
		var walkable bool
		if err := rows.Scan(&d.From, &d.To, &d.DistanceMeters, &walkable); err != nil {
			return nil, fmt.Errorf("failed to scan property distance: %w", err)
		}
		d.Mode = models.TransportRideshare
		if walkable {
			d.Mode = models.TransportWalk
		}
		distances = append(distances, d)
	}
	return distances, rows.Err()
}

// POIDistance returns the great-circle distance between two POIs, or false
// when either is unknown
func (s *Store) POIDistance(ctx context.Context, a, b string) (float64, bool, error) {
	pa, err := s.FindPOI(ctx, a)
	if err != nil {
		return 0, false, err
	}
	pb, err := s.FindPOI(ctx, b)
	if err != nil {
		return 0, false, err
	}
	if pa == nil || pb == nil {
		return 0, false, nil
	}
	return geo.Haversine(pa.Location, pb.Location), true, nil
}
