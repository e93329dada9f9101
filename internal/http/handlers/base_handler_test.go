// README: Error-to-status mapping tests.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"drivebook/internal/modules/availability"
	"drivebook/internal/modules/booking"
	"drivebook/internal/modules/driver"
	"drivebook/internal/types"
)

func TestWriteServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err      error
		status   int
		contains string
	}{
		{types.ErrInvalidDurationUnit, http.StatusBadRequest, `"field":"duration.unit"`},
		{fmt.Errorf("wrapped: %w", driver.ErrInvalidRating), http.StatusBadRequest, `"field":"rating"`},
		{booking.ErrNotFound, http.StatusNotFound, "booking not found"},
		{driver.ErrNotFound, http.StatusNotFound, "driver not found"},
		{booking.ErrForbidden, http.StatusForbidden, ""},
		{&availability.ConflictError{Closed: true}, http.StatusConflict, `"conflicts":[]`},
		{&booking.TransitionError{From: booking.StatusCompleted, To: booking.StatusCancelled}, http.StatusConflict, `"requested_status":"cancelled"`},
		{types.ErrConcurrentModification, http.StatusConflict, "retry later"},
		{driver.ErrHasInFlightBooking, http.StatusConflict, ""},
		{booking.ErrNotCompleted, http.StatusConflict, ""},
		{errors.New("pg: connection reset"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			writeServiceError(c, tc.err)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}
			if !strings.Contains(w.Body.String(), tc.contains) {
				t.Fatalf("body %s missing %s", w.Body.String(), tc.contains)
			}
		})
	}
}
