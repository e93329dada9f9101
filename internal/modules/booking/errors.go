// README: Booking error kinds.
package booking

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("booking not found")
	ErrDriverNotFound    = errors.New("driver not found")
	ErrForbidden         = errors.New("caller may not act on this booking")
	ErrIllegalTransition = errors.New("illegal booking transition")
	ErrNotCompleted      = errors.New("only completed bookings can be rated")
	ErrAlreadyRated      = errors.New("booking already rated by caller")

	errStale = errors.New("stale booking version")
)

// TransitionError names the state a booking was in and the state it was asked to enter.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move booking from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}
