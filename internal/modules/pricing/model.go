// README: Fare schedule, quote request, and quote result definitions.
package pricing

import "drivebook/internal/types"

// Tier charges PerKm for every kilometre up to UpToKm. UpToKm of zero means unbounded.
type Tier struct {
	UpToKm float64
	PerKm  int64
}

// Schedule is a flat fare covering BaseKm followed by piecewise-linear tiers.
type Schedule struct {
	BaseFare int64
	BaseKm   float64
	Tiers    []Tier
}

func DefaultSchedule() Schedule {
	return Schedule{
		BaseFare: 5000,
		BaseKm:   10,
		Tiers: []Tier{
			{UpToKm: 50, PerKm: 250},
			{UpToKm: 0, PerKm: 90},
		},
	}
}

type Method string

const (
	MethodDistance Method = "distance"
	MethodHourly   Method = "hourly"
)

type QuoteRequest struct {
	DistanceKm *float64
	HourlyRate int64
	Duration   types.Duration
}

// Quote is the price breakdown stored on a booking.
type Quote struct {
	Method     Method      `json:"method"`
	DistanceKm *float64    `json:"distance_km,omitempty"`
	Hours      float64     `json:"hours,omitempty"`
	Base       types.Money `json:"base"`
	Discount   types.Money `json:"discount"`
	Tax        types.Money `json:"tax"`
	Total      types.Money `json:"total"`
}

type RouteQuote struct {
	DistanceKm float64     `json:"distance_km"`
	Source     string      `json:"source"`
	Fare       types.Money `json:"fare"`
}
