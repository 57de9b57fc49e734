package navigation

import (
	"context"

	"github.com/sincitytravels/navigator/internal/models"
)

// Datastore is the read-only collaborator that supplies POIs, stored indoor
// routes, navigation nodes and property distances. Lookups that find nothing
// return a nil record and a nil error; errors are reserved for failures.
type Datastore interface {
	FindPOI(ctx context.Context, id string) (*models.POI, error)
	FindStoredIndoorRoute(ctx context.Context, startPOIID, endPOIID string) (*models.StoredRoute, error)
	ResolveNodes(ctx context.Context, ids []int64, propertyID int64) ([]models.Node, error)
	FindPropertyDistance(ctx context.Context, fromProperty, toProperty string) (float64, bool, error)
	FindNearestEntrance(ctx context.Context, poiID string, role models.EntranceRole) (*models.Entrance, error)

	// FindIndoorPath returns POI -> intermediates -> entrance, or the
	// reverse order when reverse is set. An unknown POI or entrance
	// yields an empty path.
	FindIndoorPath(ctx context.Context, poiID string, entranceNodeID int64, property string, reverse bool) ([]models.Waypoint, error)
}

// DirectionsProvider returns a normalized outdoor route, or false when the
// provider cannot serve the request.
type DirectionsProvider interface {
	GetDirections(ctx context.Context, origin, destination models.Coordinate, mode models.TravelMode) (*models.NormalizedRoute, bool)
}

// NodeWaypoint converts a navigation node to a waypoint. Unnamed nodes are
// labelled with their kind.
func NodeWaypoint(n models.Node) models.Waypoint {
	name := n.Name
	if name == "" {
		name = string(n.Kind)
	}
	return models.Waypoint{
		Lat:          n.Location.Lat,
		Lng:          n.Location.Lng,
		Name:         name,
		Kind:         n.Kind,
		IndoorLevel:  n.IndoorLevel,
		EntranceRole: n.EntranceRole,
	}
}

// POIWaypoint converts a point of interest to a waypoint
func POIWaypoint(p *models.POI) models.Waypoint {
	return models.Waypoint{
		Lat:  p.Location.Lat,
		Lng:  p.Location.Lng,
		Name: p.Name,
		Kind: models.NodePOI,
	}
}
