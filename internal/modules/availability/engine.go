// README: Overlap checks, conflict discovery, next-free lookup, and stale slot eviction.
package availability

import (
	"sort"
	"time"

	"drivebook/internal/types"
)

// Report is the answer to an availability query for one window.
type Report struct {
	Available           bool           `json:"available"`
	IsOpenForBookings   bool           `json:"is_open_for_bookings"`
	Conflicts           []TimeInterval `json:"conflicts"`
	SuggestedRetryAfter *time.Time     `json:"suggested_retry_after,omitempty"`
}

// IsAvailable is false when the driver is closed or any Active slot overlaps [start, end).
func (a Availability) IsAvailable(start, end time.Time) bool {
	if !a.IsOpenForBookings {
		return false
	}
	for _, s := range a.Slots {
		if s.Status == SlotActive && s.Overlaps(start, end) {
			return false
		}
	}
	return true
}

// Conflicts lists the Active slots overlapping [start, end).
func (a Availability) Conflicts(start, end time.Time) []TimeInterval {
	out := []TimeInterval{}
	for _, s := range a.Slots {
		if s.Status == SlotActive && s.Overlaps(start, end) {
			out = append(out, s)
		}
	}
	return out
}

// NextAvailableAfter returns the soonest end among Active slots ending after the given instant.
func (a Availability) NextAvailableAfter(after time.Time) (time.Time, bool) {
	var best time.Time
	found := false
	for _, s := range a.Slots {
		if s.Status != SlotActive || !s.End.After(after) {
			continue
		}
		if !found || s.End.Before(best) {
			best = s.End
			found = true
		}
	}
	return best, found
}

// Check returns a *ConflictError when [start, end) cannot be booked.
func (a Availability) Check(start, end time.Time) error {
	if a.IsAvailable(start, end) {
		return nil
	}
	err := &ConflictError{Conflicts: a.Conflicts(start, end), Closed: !a.IsOpenForBookings}
	if next, ok := a.NextAvailableAfter(start); ok {
		err.RetryAfter = &next
	}
	return err
}

func (a Availability) Report(start, end time.Time) Report {
	r := Report{
		Available:         a.IsAvailable(start, end),
		IsOpenForBookings: a.IsOpenForBookings,
		Conflicts:         a.Conflicts(start, end),
	}
	if !r.Available {
		if next, ok := a.NextAvailableAfter(start); ok {
			r.SuggestedRetryAfter = &next
		}
	}
	return r
}

// EvictStale drops finished slots that ended before now-retention. Active slots always stay.
func (a Availability) EvictStale(now time.Time, retention time.Duration) (Availability, int) {
	cutoff := now.Add(-retention)
	out := Availability{IsOpenForBookings: a.IsOpenForBookings, Slots: make([]TimeInterval, 0, len(a.Slots))}
	for _, s := range a.Slots {
		if s.Status != SlotActive && s.End.Before(cutoff) {
			continue
		}
		out.Slots = append(out.Slots, s)
	}
	return out, len(a.Slots) - len(out.Slots)
}

// InFlight lists Active slots that include now.
func (a Availability) InFlight(now time.Time) []TimeInterval {
	var out []TimeInterval
	for _, s := range a.Slots {
		if s.Status == SlotActive && s.Spans(now) {
			out = append(out, s)
		}
	}
	return out
}

func (a Availability) LatestActiveEnd() (time.Time, bool) {
	var latest time.Time
	found := false
	for _, s := range a.Slots {
		if s.Status == SlotActive && (!found || s.End.After(latest)) {
			latest = s.End
			found = true
		}
	}
	return latest, found
}

func (a Availability) Count(status SlotStatus) int {
	n := 0
	for _, s := range a.Slots {
		if s.Status == status {
			n++
		}
	}
	return n
}

func (a Availability) Slot(ref types.ID) (TimeInterval, bool) {
	for _, s := range a.Slots {
		if s.BookingRef == ref {
			return s, true
		}
	}
	return TimeInterval{}, false
}

// Reserve re-checks availability and inserts slot keeping Start order.
func (a *Availability) Reserve(slot TimeInterval) error {
	if err := a.Check(slot.Start, slot.End); err != nil {
		return err
	}
	slot.Status = SlotActive
	i := sort.Search(len(a.Slots), func(i int) bool { return a.Slots[i].Start.After(slot.Start) })
	a.Slots = append(a.Slots, TimeInterval{})
	copy(a.Slots[i+1:], a.Slots[i:])
	a.Slots[i] = slot
	return nil
}

// SetSlotStatus updates the slot reserved for ref. It reports false when there is none.
func (a *Availability) SetSlotStatus(ref types.ID, status SlotStatus) bool {
	for i := range a.Slots {
		if a.Slots[i].BookingRef == ref {
			a.Slots[i].Status = status
			return true
		}
	}
	return false
}
