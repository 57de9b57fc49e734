package navigation

import (
	"unicode"
	"unicode/utf8"

	"github.com/sincitytravels/navigator/internal/geo"
	"github.com/sincitytravels/navigator/internal/models"
)

// DefaultWalkSpeed is the assumed walking speed in meters per second (~3.1 mph)
const DefaultWalkSpeed = 1.4

// GenerateSteps synthesizes turn-by-turn instructions from an ordered
// waypoint list. Fewer than two waypoints yields no steps.
func GenerateSteps(waypoints []models.Waypoint) []models.Step {
	return generateSteps(waypoints, DefaultWalkSpeed)
}

func generateSteps(waypoints []models.Waypoint, speed float64) []models.Step {
	if len(waypoints) < 2 {
		return []models.Step{}
	}
	if speed <= 0 {
		speed = DefaultWalkSpeed
	}

	steps := make([]models.Step, 0, len(waypoints)-1)
	var prevBearing float64
	hasPrev := false

	for i := 0; i+1 < len(waypoints); i++ {
		from, to := waypoints[i], waypoints[i+1]

		bearing := geo.Bearing(from.Coordinate(), to.Coordinate())
		dist := geo.Haversine(from.Coordinate(), to.Coordinate())
		direction := geo.Direction(bearing)

		var instruction string
		switch {
		case i == 0:
			instruction = "Head " + direction
			if from.Name != "" {
				instruction += " from " + from.Name
			}
		case from.Kind == models.NodeElevator:
			if to.IndoorLevel != "" {
				instruction = "Take elevator to Level " + to.IndoorLevel
			} else {
				instruction = "Take the elevator"
			}
		case from.Kind == models.NodeStairs:
			instruction = "Take the stairs"
		case from.Kind == models.NodeEntrance:
			switch {
			case from.EntranceRole == models.RoleRidesharePickup:
				instruction = "Head to the rideshare pickup area"
			case from.Name != "":
				instruction = "Exit through " + from.Name
			default:
				instruction = "Exit through the main entrance"
			}
		case hasPrev:
			turn := geo.ClassifyTurn(prevBearing, bearing)
			if turn == geo.TurnStraight {
				instruction = "Continue straight " + direction
			} else {
				instruction = capitalize(string(turn))
				if to.Name != "" {
					instruction += " toward " + to.Name
				}
			}
		default:
			instruction = "Continue " + direction
		}

		if to.Kind == models.NodeEntrance {
			instruction += arrivalPhrase(to)
		}

		steps = append(steps, models.Step{
			Instruction:    instruction,
			DistanceMeters: geo.Round(dist, 1),
			TimeSeconds:    walkSeconds(dist, speed),
			From:           from.Coordinate(),
			To:             to.Coordinate(),
		})

		prevBearing = bearing
		hasPrev = true
	}

	return steps
}

func arrivalPhrase(to models.Waypoint) string {
	if to.EntranceRole == models.RoleRidesharePickup {
		return " to the rideshare pickup area"
	}
	if to.Name != "" {
		return " to " + to.Name
	}
	return " to the entrance"
}

// walkSeconds truncates to whole seconds
func walkSeconds(meters, speed float64) int {
	if meters <= 0 {
		return 0
	}
	return int(meters / speed)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
