package fare

import (
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/sincitytravels/navigator/internal/geo"
	"github.com/sincitytravels/navigator/internal/models"
)

const (
	metersPerMile = 1609.34

	// pickupBufferMinutes is added to the drive time for the driver to arrive
	pickupBufferMinutes = 2
	minETAMinutes       = 3

	lowFactor  = 0.85
	highFactor = 1.25
)

// Rates holds the pricing parameters for one rideshare provider
type Rates struct {
	BaseFare   float64 `toml:"base_fare"`
	PerMinute  float64 `toml:"per_minute"`
	PerMile    float64 `toml:"per_mile"`
	BookingFee float64 `toml:"booking_fee"`
	MinFare    float64 `toml:"min_fare"`
}

// Las Vegas averages
var (
	DefaultUberRates = Rates{BaseFare: 1.55, PerMinute: 0.35, PerMile: 1.75, BookingFee: 2.55, MinFare: 8.00}
	DefaultLyftRates = Rates{BaseFare: 1.46, PerMinute: 0.30, PerMile: 1.60, BookingFee: 2.75, MinFare: 7.50}
)

// DefaultAvgSpeedMPH is the average rideshare speed on the Strip
const DefaultAvgSpeedMPH = 15

// Estimator maps a driving distance to fare ranges for both providers
type Estimator struct {
	Uber        Rates
	Lyft        Rates
	AvgSpeedMPH float64
}

// NewEstimator creates an estimator with the default Las Vegas rates
func NewEstimator() *Estimator {
	return &Estimator{
		Uber:        DefaultUberRates,
		Lyft:        DefaultLyftRates,
		AvgSpeedMPH: DefaultAvgSpeedMPH,
	}
}

// Estimate computes the fare ranges for a ride of distanceMeters
func (e *Estimator) Estimate(distanceMeters float64) models.FareEstimate {
	speed := e.AvgSpeedMPH
	if speed <= 0 {
		speed = DefaultAvgSpeedMPH
	}

	miles := distanceMeters / metersPerMile
	minutes := miles / speed * 60
	eta := int(math.Max(minETAMinutes, math.RoundToEven(minutes+pickupBufferMinutes)))

	return models.FareEstimate{
		Uber:                  providerFare(e.Uber, miles, minutes, eta),
		Lyft:                  providerFare(e.Lyft, miles, minutes, eta),
		DistanceMiles:         geo.Round(miles, 2),
		EstimatedDriveMinutes: geo.Round(minutes, 1),
	}
}

func providerFare(r Rates, miles, minutes float64, eta int) models.ProviderFare {
	fare := r.BaseFare + r.PerMinute*minutes + r.PerMile*miles + r.BookingFee
	fare = math.Max(r.MinFare, geo.Round(fare, 2))

	return models.ProviderFare{
		EstimateLow:  geo.Round(fare*lowFactor, 2),
		EstimateHigh: geo.Round(fare*highFactor, 2),
		ETAMinutes:   eta,
	}
}

// DeepLinks builds the Uber and Lyft app links for a ride. No network call is made.
func DeepLinks(pickup, dropoff models.Coordinate, destination string) models.DeepLinks {
	uber := fmt.Sprintf(
		"https://m.uber.com/ul/?action=setPickup"+
			"&pickup[latitude]=%s&pickup[longitude]=%s"+
			"&dropoff[latitude]=%s&dropoff[longitude]=%s"+
			"&dropoff[nickname]=%s",
		formatCoord(pickup.Lat), formatCoord(pickup.Lng),
		formatCoord(dropoff.Lat), formatCoord(dropoff.Lng),
		url.QueryEscape(destination),
	)
	lyft := fmt.Sprintf(
		"https://lyft.com/ride?id=lyft"+
			"&pickup[latitude]=%s&pickup[longitude]=%s"+
			"&destination[latitude]=%s&destination[longitude]=%s",
		formatCoord(pickup.Lat), formatCoord(pickup.Lng),
		formatCoord(dropoff.Lat), formatCoord(dropoff.Lng),
	)

	return models.DeepLinks{Uber: uber, Lyft: lyft}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
