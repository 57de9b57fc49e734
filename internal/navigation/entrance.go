package navigation

import (
	"context"
	"fmt"

	"github.com/sincitytravels/navigator/internal/models"
)

// EntranceTier records which step of the resolution strategy produced an entrance
type EntranceTier int

const (
	// TierResolved means an entrance with the requested role was found
	TierResolved EntranceTier = iota
	// TierFallback means the requested role was missing and a main entrance was used
	TierFallback
	// TierPlaceholder means no entrance exists; the POI's own position stands in
	TierPlaceholder
)

func (t EntranceTier) String() string {
	switch t {
	case TierResolved:
		return "resolved"
	case TierFallback:
		return "fallback"
	case TierPlaceholder:
		return "placeholder"
	default:
		return fmt.Sprintf("EntranceTier(%d)", int(t))
	}
}

// EntranceResolution is the outcome of ResolveEntrance
type EntranceResolution struct {
	Tier     EntranceTier
	Entrance models.Entrance
}

// HasNode reports whether the entrance is a real navigation node
func (r EntranceResolution) HasNode() bool {
	return r.Tier != TierPlaceholder
}

// Waypoint returns the entrance as an entrance-kind waypoint
func (r EntranceResolution) Waypoint() models.Waypoint {
	return models.Waypoint{
		Lat:  r.Entrance.Location.Lat,
		Lng:  r.Entrance.Location.Lng,
		Name: r.Entrance.Name,
		Kind: models.NodeEntrance,
	}
}

// ResolveEntrance finds the entrance nearest to poi. It tries the requested
// role, then the main entrance, and finally synthesizes a placeholder named
// placeholderName at the POI itself with zero departure distance.
func ResolveEntrance(ctx context.Context, store Datastore, poi *models.POI, role models.EntranceRole, placeholderName string) (EntranceResolution, error) {
	ent, err := store.FindNearestEntrance(ctx, poi.ID, role)
	if err != nil {
		return EntranceResolution{}, fmt.Errorf("failed to find %s entrance for %s: %w", role, poi.ID, err)
	}
	if ent != nil {
		return EntranceResolution{Tier: TierResolved, Entrance: *ent}, nil
	}

	if role != models.RoleMain {
		ent, err = store.FindNearestEntrance(ctx, poi.ID, models.RoleMain)
		if err != nil {
			return EntranceResolution{}, fmt.Errorf("failed to find main entrance for %s: %w", poi.ID, err)
		}
		if ent != nil {
			return EntranceResolution{Tier: TierFallback, Entrance: *ent}, nil
		}
	}

	return EntranceResolution{
		Tier: TierPlaceholder,
		Entrance: models.Entrance{
			Name:     placeholderName,
			Location: poi.Location,
		},
	}, nil
}
