// README: Slot conflict error carrying the intervals a caller can use to pick another window.
package availability

import (
	"errors"
	"fmt"
	"time"
)

var ErrSlotConflict = errors.New("requested time slot is not available")

type ConflictError struct {
	Conflicts  []TimeInterval
	RetryAfter *time.Time
	// Closed is set when the driver is not accepting bookings at all.
	Closed bool
}

func (e *ConflictError) Error() string {
	if e.Closed {
		return "driver is not accepting bookings"
	}
	msg := fmt.Sprintf("requested time slot overlaps %d booked slot(s)", len(e.Conflicts))
	if e.RetryAfter != nil {
		msg += ", next free at " + e.RetryAfter.UTC().Format(time.RFC3339)
	}
	return msg
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrSlotConflict
}
