// Package geo holds the pure trigonometric helpers used to synthesize
// walking directions when no provider data exists.
package geo

import (
	"math"

	"github.com/sincitytravels/navigator/internal/models"
)

// EarthRadius is the mean Earth radius in meters
const EarthRadius = 6371000

// Turn is the classification of a change in bearing
type Turn string

const (
	TurnStraight   Turn = "continue straight"
	TurnRight      Turn = "turn right"
	TurnSharpRight Turn = "turn sharp right"
	TurnLeft       Turn = "turn left"
	TurnSharpLeft  Turn = "turn sharp left"
	TurnUTurn      Turn = "make a U-turn"
)

var directions = [8]string{
	"north", "northeast", "east", "southeast",
	"south", "southwest", "west", "northwest",
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Bearing returns the initial compass bearing from a to b in [0, 360)
func Bearing(a, b models.Coordinate) float64 {
	lat1, lat2 := toRadians(a.Lat), toRadians(b.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	x := math.Sin(dLng) * math.Cos(lat2)
	y := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	bearing := math.Mod(math.Atan2(x, y)*180/math.Pi+360, 360)
	if bearing >= 360 {
		bearing = 0
	}
	return bearing
}

// Haversine calculates the great-circle distance between two coordinates in meters
func Haversine(a, b models.Coordinate) float64 {
	lat1, lat2 := toRadians(a.Lat), toRadians(b.Lat)
	deltaLat := toRadians(b.Lat - a.Lat)
	deltaLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadius * c
}

// Direction maps a bearing to the nearest of the 8 compass labels
func Direction(bearing float64) string {
	idx := int(math.RoundToEven(bearing/45)) % 8
	if idx < 0 {
		idx += 8
	}
	return directions[idx]
}

// ClassifyTurn classifies the change from prevBearing to bearing
func ClassifyTurn(prevBearing, bearing float64) Turn {
	diff := math.Mod(bearing-prevBearing+360, 360)
	if diff < 0 {
		diff += 360
	}
	return classifyDiff(diff)
}

func classifyDiff(diff float64) Turn {
	switch {
	case diff < 30 || diff >= 330:
		return TurnStraight
	case diff < 90:
		return TurnRight
	case diff <= 170:
		return TurnSharpRight
	case diff > 270:
		return TurnLeft
	case diff > 190:
		return TurnSharpLeft
	default:
		return TurnUTurn
	}
}

// PathDistance sums the haversine distances between consecutive waypoints
func PathDistance(waypoints []models.Waypoint) float64 {
	total := 0.0
	for i := 0; i+1 < len(waypoints); i++ {
		total += Haversine(waypoints[i].Coordinate(), waypoints[i+1].Coordinate())
	}
	return total
}

// Round rounds v to the given number of decimal places, half away from zero
func Round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
