// README: Driver handlers for registration, search, availability, and slot cleanup.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"drivebook/internal/http/middleware"
	"drivebook/internal/modules/driver"
	"drivebook/internal/types"
)

type DriverHandler struct {
	drivers *driver.Service
}

func NewDriverHandler(svc *driver.Service) *DriverHandler {
	return &DriverHandler{drivers: svc}
}

type registerReq struct {
	Rates *driver.Rates `json:"rates"`
}

func (h *DriverHandler) Register(c *gin.Context) {
	var req registerReq
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}
	d, err := h.drivers.Register(c.Request.Context(), driver.RegisterCommand{
		Caller: middleware.Caller(c),
		Rates:  req.Rates,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, d)
}

type windowQuery struct {
	Start time.Time `form:"start" time_format:"2006-01-02T15:04:05Z07:00"`
	End   time.Time `form:"end" time_format:"2006-01-02T15:04:05Z07:00"`
}

type searchQuery struct {
	windowQuery
	MinRating float64 `form:"min_rating" binding:"gte=0,lte=5"`
}

func (h *DriverHandler) Search(c *gin.Context) {
	var q searchQuery
	if !bindQuery(c, &q) {
		return
	}
	out, err := h.drivers.Search(c.Request.Context(), driver.SearchQuery{Start: q.Start, End: q.End, MinRating: q.MinRating})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"drivers": out, "count": len(out)})
}

func (h *DriverHandler) Get(c *gin.Context) {
	d, stats, err := h.drivers.Stats(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"driver": d, "stats": stats})
}

func (h *DriverHandler) Availability(c *gin.Context) {
	var q windowQuery
	if !bindQuery(c, &q) {
		return
	}
	if q.Start.IsZero() || q.End.IsZero() {
		writeError(c, http.StatusBadRequest, "start and end are required")
		return
	}
	report, err := h.drivers.QueryAvailability(c.Request.Context(), types.ID(c.Param("id")), q.Start, q.End)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, report)
}

type openReq struct {
	IsOpenForBookings *bool `json:"is_open_for_bookings" binding:"required"`
}

func (h *DriverHandler) SetAvailability(c *gin.Context) {
	var req openReq
	if !bind(c, &req) {
		return
	}
	a, err := h.drivers.SetOpen(c.Request.Context(), driver.SetOpenCommand{
		DriverID: types.ID(c.Param("id")),
		Caller:   middleware.Caller(c),
		Open:     *req.IsOpenForBookings,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, a)
}

func (h *DriverHandler) CleanupSlots(c *gin.Context) {
	id := types.ID(c.Param("id"))
	h.cleanup(c, &id)
}

func (h *DriverHandler) CleanupAllSlots(c *gin.Context) {
	h.cleanup(c, nil)
}

func (h *DriverHandler) cleanup(c *gin.Context, id *types.ID) {
	n, err := h.drivers.CleanupStale(c.Request.Context(), middleware.Caller(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"pruned_count": n})
}
