// README: Base handler utilities (JSON helpers, request binding, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"drivebook/internal/modules/availability"
	"drivebook/internal/modules/booking"
	"drivebook/internal/modules/driver"
	"drivebook/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type conflictResponse struct {
	Error               string                      `json:"error"`
	IsOpenForBookings   bool                        `json:"is_open_for_bookings"`
	Conflicts           []availability.TimeInterval `json:"conflicts"`
	SuggestedRetryAfter *time.Time                  `json:"suggested_retry_after,omitempty"`
}

type transitionResponse struct {
	Error string         `json:"error"`
	From  booking.Status `json:"current_status"`
	To    booking.Status `json:"requested_status"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// bind decodes the JSON body into req and runs its binding tags.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, bindingMessage(err))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		writeError(c, http.StatusBadRequest, bindingMessage(err))
		return false
	}
	return true
}

// writeServiceError maps module errors onto HTTP statuses.
func writeServiceError(c *gin.Context, err error) {
	var (
		validation *types.ValidationError
		conflict   *availability.ConflictError
		transition *booking.TransitionError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: validation.Error(), Field: validation.Field})
	case errors.As(err, &conflict):
		conflicts := conflict.Conflicts
		if conflicts == nil {
			conflicts = []availability.TimeInterval{}
		}
		writeJSON(c, http.StatusConflict, conflictResponse{
			Error:               conflict.Error(),
			IsOpenForBookings:   !conflict.Closed,
			Conflicts:           conflicts,
			SuggestedRetryAfter: conflict.RetryAfter,
		})
	case errors.As(err, &transition):
		writeJSON(c, http.StatusConflict, transitionResponse{Error: transition.Error(), From: transition.From, To: transition.To})
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, booking.ErrDriverNotFound), errors.Is(err, driver.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrForbidden), errors.Is(err, driver.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, types.ErrConcurrentModification),
		errors.Is(err, driver.ErrHasInFlightBooking),
		errors.Is(err, driver.ErrExists),
		errors.Is(err, booking.ErrAlreadyRated),
		errors.Is(err, booking.ErrNotCompleted):
		writeError(c, http.StatusConflict, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
