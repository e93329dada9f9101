// README: Driver calendar model: booked time intervals and the open-for-bookings flag.
package availability

import (
	"time"

	"drivebook/internal/types"
)

type SlotStatus string

const (
	SlotActive    SlotStatus = "active"
	SlotCompleted SlotStatus = "completed"
	SlotCancelled SlotStatus = "cancelled"
)

func (s SlotStatus) Valid() bool {
	switch s {
	case SlotActive, SlotCompleted, SlotCancelled:
		return true
	}
	return false
}

// DefaultRetention is how long finished slots are kept before cleanup removes them.
const DefaultRetention = 30 * 24 * time.Hour

// TimeInterval is a half-open [Start, End) window reserved for one booking.
type TimeInterval struct {
	BookingRef types.ID   `json:"booking_ref"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
	Status     SlotStatus `json:"status"`
}

var (
	ErrInvalidInterval = types.NewValidationError("interval", "start must be before end")
	ErrMissingRef      = types.NewValidationError("interval.booking_ref", "must not be empty")
)

// NewTimeInterval returns an Active interval.
func NewTimeInterval(ref types.ID, start, end time.Time) (TimeInterval, error) {
	if ref == "" {
		return TimeInterval{}, ErrMissingRef
	}
	if !start.Before(end) {
		return TimeInterval{}, ErrInvalidInterval
	}
	return TimeInterval{BookingRef: ref, Start: start, End: end, Status: SlotActive}, nil
}

// Overlaps reports whether the interval intersects [start, end). Touching endpoints do not overlap.
func (i TimeInterval) Overlaps(start, end time.Time) bool {
	return start.Before(i.End) && end.After(i.Start)
}

// Spans reports whether t falls within the interval, bounds included.
func (i TimeInterval) Spans(t time.Time) bool {
	return !t.Before(i.Start) && !t.After(i.End)
}

// Availability is owned by a driver. Slots are kept ordered by Start.
type Availability struct {
	IsOpenForBookings bool           `json:"is_open_for_bookings"`
	Slots             []TimeInterval `json:"slots"`
}

func (a Availability) Clone() Availability {
	out := Availability{IsOpenForBookings: a.IsOpenForBookings}
	if a.Slots != nil {
		out.Slots = make([]TimeInterval, len(a.Slots))
		copy(out.Slots, a.Slots)
	}
	return out
}
