// README: Pricing service computes tiered distance fares and hourly quotes.
package pricing

import (
	"context"
	"math"

	"drivebook/internal/types"
)

var ErrInvalidDistance = types.NewValidationError("distance_km", "must be a finite number greater than or equal to zero")

// RouteEstimator returns the driving distance between two points.
type RouteEstimator interface {
	DistanceKm(ctx context.Context, origin, destination types.Point) (float64, error)
}

type Service struct {
	schedule Schedule
	currency string
	routes   RouteEstimator
}

// NewService uses the default schedule. routes may be nil, in which case route quotes use
// great-circle distance.
func NewService(currency string, routes RouteEstimator) *Service {
	return &Service{schedule: DefaultSchedule(), currency: currency, routes: routes}
}

// Price maps a distance to an amount, rounded to the nearest whole unit.
func (s Schedule) Price(distanceKm float64) (int64, error) {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) || distanceKm < 0 {
		return 0, ErrInvalidDistance
	}
	fare := float64(s.BaseFare)
	covered := s.BaseKm
	for _, t := range s.Tiers {
		if distanceKm <= covered {
			break
		}
		upper := distanceKm
		if t.UpToKm > 0 && t.UpToKm < upper {
			upper = t.UpToKm
		}
		fare += (upper - covered) * float64(t.PerKm)
		covered = upper
	}
	return int64(math.Round(fare)), nil
}

func (s *Service) Estimate(ctx context.Context, distanceKm float64) (types.Money, error) {
	amount, err := s.schedule.Price(distanceKm)
	if err != nil {
		return types.Money{}, err
	}
	return types.NewMoney(amount, s.currency), nil
}

// Quote prices by distance when one is given and non-zero, otherwise by hourly rate.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	if req.DistanceKm != nil && *req.DistanceKm != 0 {
		km := *req.DistanceKm
		base, err := s.Estimate(ctx, km)
		if err != nil {
			return Quote{}, err
		}
		return s.quote(MethodDistance, base, &km, 0), nil
	}
	if req.Duration.IsZero() {
		return Quote{}, types.ErrInvalidDuration
	}
	hours := req.Duration.Hours()
	base := types.NewMoney(int64(math.Round(float64(req.HourlyRate)*hours)), s.currency)
	return s.quote(MethodHourly, base, nil, hours), nil
}

func (s *Service) quote(m Method, base types.Money, km *float64, hours float64) Quote {
	discount := types.NewMoney(0, s.currency)
	tax := types.NewMoney(0, s.currency)
	return Quote{
		Method:     m,
		DistanceKm: km,
		Hours:      hours,
		Base:       base,
		Discount:   discount,
		Tax:        tax,
		Total:      base.Sub(discount).Add(tax),
	}
}

func (s *Service) QuoteRoute(ctx context.Context, pickup, dropoff types.Point) (RouteQuote, error) {
	source := "maps"
	var km float64
	if s.routes != nil {
		d, err := s.routes.DistanceKm(ctx, pickup, dropoff)
		if err != nil {
			return RouteQuote{}, err
		}
		km = d
	} else {
		source = "haversine"
		km = haversineKm(pickup, dropoff)
	}
	fare, err := s.Estimate(ctx, km)
	if err != nil {
		return RouteQuote{}, err
	}
	return RouteQuote{DistanceKm: km, Source: source, Fare: fare}, nil
}
