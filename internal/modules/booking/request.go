// README: Turns a raw create command into a validated booking request.
package booking

import (
	"math"
	"strings"
	"time"

	"drivebook/internal/modules/pricing"
	"drivebook/internal/types"
)

type CreateCommand struct {
	Customer       types.Principal
	DriverID       types.ID
	Pickup         types.Place
	Dropoff        *types.Place
	Kind           string
	DurationValue  float64
	DurationUnit   string
	ScheduledStart time.Time
	PaymentMethod  string
	DistanceKm     *float64
	Notes          string
}

var (
	ErrMissingDriver = types.NewValidationError("driver_id", "must not be empty")
	ErrMissingPickup = types.NewValidationError("pickup.address", "must not be empty")
	ErrInvalidWindow = types.NewValidationError("duration", "end time must be after start")
)

// request is a CreateCommand whose every field has been checked.
type request struct {
	customerID types.ID
	driverID   types.ID
	pickup     types.Place
	dropoff    *types.Place
	kind       Kind
	duration   types.Duration
	start      time.Time
	end        time.Time
	method     PaymentMethod
	distanceKm *float64
	notes      string
}

// parse validates cmd. A zero ScheduledStart means now.
func (cmd CreateCommand) parse(now time.Time) (request, error) {
	if cmd.DriverID == "" {
		return request{}, ErrMissingDriver
	}
	if strings.TrimSpace(cmd.Pickup.Address) == "" {
		return request{}, ErrMissingPickup
	}
	kind, err := ParseKind(cmd.Kind)
	if err != nil {
		return request{}, err
	}
	duration, err := types.ParseDuration(cmd.DurationValue, cmd.DurationUnit)
	if err != nil {
		return request{}, err
	}
	method, err := ParsePaymentMethod(cmd.PaymentMethod)
	if err != nil {
		return request{}, err
	}
	if cmd.DistanceKm != nil {
		d := *cmd.DistanceKm
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			return request{}, pricing.ErrInvalidDistance
		}
	}
	start := cmd.ScheduledStart
	if start.IsZero() {
		start = now
	}
	start = start.UTC()
	end := duration.EndTime(start)
	if !start.Before(end) {
		return request{}, ErrInvalidWindow
	}
	return request{
		customerID: cmd.Customer.ID,
		driverID:   cmd.DriverID,
		pickup:     cmd.Pickup,
		dropoff:    cmd.Dropoff,
		kind:       kind,
		duration:   duration,
		start:      start,
		end:        end,
		method:     method,
		distanceKm: cmd.DistanceKm,
		notes:      strings.TrimSpace(cmd.Notes),
	}, nil
}
