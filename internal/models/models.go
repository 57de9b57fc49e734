package models

// NodeKind represents the structural role of a waypoint
type NodeKind string

const (
	NodePOI              NodeKind = "poi"
	NodeJunction         NodeKind = "junction"
	NodeElevator         NodeKind = "elevator"
	NodeStairs           NodeKind = "stairs"
	NodeEntrance         NodeKind = "entrance"
	NodeRidesharePickup  NodeKind = "rideshare_pickup"
	NodeRideshareDropoff NodeKind = "rideshare_dropoff"
)

// EntranceRole classifies an entrance node
type EntranceRole string

const (
	RoleMain            EntranceRole = "main"
	RoleRidesharePickup EntranceRole = "rideshare_pickup"
)

// LegKind represents the type of a trip leg
type LegKind string

const (
	LegIndoor          LegKind = "indoor"
	LegIndoorDeparture LegKind = "indoor_departure"
	LegOutdoorWalk     LegKind = "outdoor_walk"
	LegRideshare       LegKind = "rideshare"
	LegIndoorArrival   LegKind = "indoor_arrival"
)

// TransportMode is the way a leg (or a whole trip) is travelled
type TransportMode string

const (
	TransportWalk      TransportMode = "walk"
	TransportRideshare TransportMode = "rideshare"
)

// TravelMode is the mode requested from the directions provider
type TravelMode string

const (
	TravelWalking TravelMode = "walking"
	TravelDriving TravelMode = "driving"
)

// RouteSource records where a leg's outdoor geometry came from
type RouteSource string

const (
	SourceProvider     RouteSource = "google_directions"
	SourceStraightLine RouteSource = "straight_line"
)

// Coordinate is an immutable latitude/longitude pair
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Waypoint is a geographic point with a structural role
type Waypoint struct {
	Lat          float64      `json:"lat"`
	Lng          float64      `json:"lng"`
	Name         string       `json:"name,omitempty"`
	Kind         NodeKind     `json:"node_type,omitempty"`
	IndoorLevel  string       `json:"indoor_level,omitempty"`
	EntranceRole EntranceRole `json:"entrance_role,omitempty"`
}

// Coordinate returns the waypoint position
func (w Waypoint) Coordinate() Coordinate {
	return Coordinate{Lat: w.Lat, Lng: w.Lng}
}

// Step is a single turn-by-turn instruction
type Step struct {
	Instruction    string     `json:"instruction"`
	DistanceMeters float64    `json:"distance_meters"`
	TimeSeconds    int        `json:"time_seconds"`
	From           Coordinate `json:"from"`
	To             Coordinate `json:"to"`
}

// ProviderFare is the fare range for one rideshare provider
type ProviderFare struct {
	EstimateLow  float64 `json:"estimate_low"`
	EstimateHigh float64 `json:"estimate_high"`
	ETAMinutes   int     `json:"eta_minutes"`
}

// FareEstimate holds fare ranges for both rideshare providers
type FareEstimate struct {
	Uber                  ProviderFare `json:"uber"`
	Lyft                  ProviderFare `json:"lyft"`
	DistanceMiles         float64      `json:"distance_miles"`
	EstimatedDriveMinutes float64      `json:"estimated_drive_minutes"`
}

// DeepLinks are provider app links for requesting a ride
type DeepLinks struct {
	Uber string `json:"uber"`
	Lyft string `json:"lyft"`
}

// NamedPoint is a labelled coordinate (rideshare pickup / dropoff)
type NamedPoint struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name"`
}

// Leg is one contiguous, single-transport-mode segment of a trip
type Leg struct {
	Kind           LegKind       `json:"leg_type"`
	Number         int           `json:"leg_number"`
	Label          string        `json:"label"`
	Transport      TransportMode `json:"transport"`
	Property       string        `json:"property,omitempty"`
	DistanceMeters float64       `json:"distance_meters"`
	DurationSecs   int           `json:"estimated_time_seconds"`
	Steps          []Step        `json:"steps"`
	Waypoints      []Waypoint    `json:"waypoints"`
	HasStairs      *bool         `json:"has_stairs,omitempty"`
	HasElevator    *bool         `json:"has_elevator,omitempty"`
	Fare           *FareEstimate `json:"fare_estimates,omitempty"`
	DeepLinks      *DeepLinks    `json:"deep_links,omitempty"`
	Pickup         *NamedPoint   `json:"pickup,omitempty"`
	Dropoff        *NamedPoint   `json:"dropoff,omitempty"`
	Source         RouteSource   `json:"source,omitempty"`
}

// POISummary is the start/end summary attached to a trip
type POISummary struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Property string  `json:"property"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// Trip is a complete multi-leg itinerary between two points of interest
type Trip struct {
	ID                  string        `json:"id"`
	Start               POISummary    `json:"start"`
	End                 POISummary    `json:"end"`
	Mode                TransportMode `json:"mode"`
	TotalDistanceMeters float64       `json:"total_distance_meters"`
	TotalTimeSeconds    int           `json:"total_time_seconds"`
	LegCount            int           `json:"leg_count"`
	Legs                []Leg         `json:"legs"`
}

// NormalizedRoute is the provider-independent shape of a directions result
type NormalizedRoute struct {
	DistanceMeters  float64    `json:"distance_meters"`
	DurationSeconds int        `json:"duration_seconds"`
	Waypoints       []Waypoint `json:"waypoints"`
	Steps           []Step     `json:"steps"`
}

// Categories lists the POI categories, sorted
var Categories = []string{
	"attraction",
	"casino",
	"entertainment",
	"hotel",
	"nightlife",
	"pool_spa",
	"restaurant",
	"shopping",
}

// ValidCategory reports whether c is a known POI category
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Datastore records

// POI represents a point of interest inside a property
type POI struct {
	ID       string
	Name     string
	Category string
	Location Coordinate
	Property string
	Level    string
	Area     string
}

// NearbyPOI is a POI annotated with its distance from a search point
type NearbyPOI struct {
	POI
	DistanceMeters float64
}

// Property is a casino resort
type Property struct {
	ID       int64
	Name     string
	Location Coordinate
	Area     string
}

// StoredRoute is a pre-computed indoor route between two POIs
type StoredRoute struct {
	DistanceMeters  float64
	DurationSeconds int
	NodeIDs         []int64
	HasStairs       bool
	HasElevator     bool
	PropertyID      int64
}

// Node is a navigation node inside a property
type Node struct {
	ID           int64
	Name         string
	Location     Coordinate
	Kind         NodeKind
	IndoorLevel  string
	EntranceRole EntranceRole
}

// Entrance is the result of a nearest-entrance lookup
type Entrance struct {
	NodeID   int64
	Name     string
	Location Coordinate
	Distance float64
}

// PropertyDistance is one row of the property-to-property distance table
type PropertyDistance struct {
	From           string        `json:"from_property_name"`
	To             string        `json:"to_property_name"`
	DistanceMeters float64       `json:"distance_meters"`
	Mode           TransportMode `json:"mode"`
}
