// README: Driver aggregate holding rates, rating, and the availability calendar.
package driver

import (
	"time"

	"drivebook/internal/modules/availability"
	"drivebook/internal/types"
)

type Rates struct {
	Hourly  int64 `json:"hourly"`
	Daily   int64 `json:"daily"`
	Weekly  int64 `json:"weekly"`
	Monthly int64 `json:"monthly"`
}

func DefaultRates() Rates {
	return Rates{Hourly: 25, Daily: 200, Weekly: 1200, Monthly: 4000}
}

type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// DefaultRating is what a driver starts with before any customer rating.
func DefaultRating() Rating {
	return Rating{Average: 5.0, Count: 0}
}

type Driver struct {
	ID           types.ID                  `json:"id"`
	Rates        Rates                     `json:"rates"`
	Currency     string                    `json:"currency"`
	Rating       Rating                    `json:"rating"`
	Availability availability.Availability `json:"availability"`
	Version      int                       `json:"version"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

func (d *Driver) Clone() *Driver {
	c := *d
	c.Availability = d.Availability.Clone()
	return &c
}

type Stats struct {
	ActiveBookings    int        `json:"active_bookings"`
	CompletedBookings int        `json:"completed_bookings"`
	IsCurrentlyBooked bool       `json:"is_currently_booked"`
	NextAvailableAt   *time.Time `json:"next_available_at,omitempty"`
}

func (d *Driver) Stats(now time.Time) Stats {
	st := Stats{
		ActiveBookings:    d.Availability.Count(availability.SlotActive),
		CompletedBookings: d.Availability.Count(availability.SlotCompleted),
		IsCurrentlyBooked: len(d.Availability.InFlight(now)) > 0,
	}
	if end, ok := d.Availability.LatestActiveEnd(); ok {
		st.NextAvailableAt = &end
	}
	return st
}

// Summary is a driver as listed to customers choosing whom to book.
type Summary struct {
	ID                types.ID `json:"id"`
	Rates             Rates    `json:"rates"`
	Currency          string   `json:"currency"`
	Rating            Rating   `json:"rating"`
	IsOpenForBookings bool     `json:"is_open_for_bookings"`
	Stats             Stats    `json:"stats"`
}

func (d *Driver) Summary(now time.Time) Summary {
	return Summary{
		ID:                d.ID,
		Rates:             d.Rates,
		Currency:          d.Currency,
		Rating:            d.Rating,
		IsOpenForBookings: d.Availability.IsOpenForBookings,
		Stats:             d.Stats(now),
	}
}
