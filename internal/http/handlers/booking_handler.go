// README: Booking handlers for create/list/get, status transitions, rating, and payment status.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"drivebook/internal/http/middleware"
	"drivebook/internal/modules/booking"
	"drivebook/internal/types"
)

type BookingHandler struct {
	bookings *booking.Service
}

func NewBookingHandler(svc *booking.Service) *BookingHandler {
	return &BookingHandler{bookings: svc}
}

type placeReq struct {
	Address string   `json:"address" binding:"required"`
	Lat     *float64 `json:"lat" binding:"omitempty,latitude"`
	Lng     *float64 `json:"lng" binding:"omitempty,longitude"`
}

func (p placeReq) place() types.Place {
	out := types.Place{Address: p.Address}
	if p.Lat != nil && p.Lng != nil {
		out.Coordinates = &types.Point{Lat: *p.Lat, Lng: *p.Lng}
	}
	return out
}

type durationReq struct {
	Value float64 `json:"value" binding:"required,gt=0"`
	Unit  string  `json:"unit" binding:"required,duration_unit"`
}

type createBookingReq struct {
	DriverID       string      `json:"driver_id" binding:"required"`
	Pickup         placeReq    `json:"pickup"`
	Dropoff        *placeReq   `json:"dropoff"`
	BookingKind    string      `json:"booking_kind" binding:"omitempty,booking_kind"`
	Duration       durationReq `json:"duration"`
	ScheduledStart *time.Time  `json:"scheduled_start"`
	PaymentMethod  string      `json:"payment_method" binding:"required,payment_method"`
	DistanceKm     *float64    `json:"distance_km" binding:"omitempty,gte=0"`
	Notes          string      `json:"notes" binding:"max=1000"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if !bind(c, &req) {
		return
	}
	cmd := booking.CreateCommand{
		Customer:      middleware.Caller(c),
		DriverID:      types.ID(req.DriverID),
		Pickup:        req.Pickup.place(),
		Kind:          req.BookingKind,
		DurationValue: req.Duration.Value,
		DurationUnit:  req.Duration.Unit,
		PaymentMethod: req.PaymentMethod,
		DistanceKm:    req.DistanceKm,
		Notes:         req.Notes,
	}
	if cmd.Kind == "" {
		cmd.Kind = string(booking.KindOneTime)
	}
	if req.Dropoff != nil {
		d := req.Dropoff.place()
		cmd.Dropoff = &d
	}
	if req.ScheduledStart != nil {
		cmd.ScheduledStart = *req.ScheduledStart
	}
	b, err := h.bookings.Create(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, b)
}

func (h *BookingHandler) List(c *gin.Context) {
	out, err := h.bookings.List(c.Request.Context(), middleware.Caller(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"bookings": out, "count": len(out)})
}

// Reviews lists the ratings a driver received. Mounted under /drivers/:id.
func (h *BookingHandler) Reviews(c *gin.Context) {
	out, err := h.bookings.Reviews(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"reviews": out, "count": len(out)})
}

func (h *BookingHandler) Get(c *gin.Context) {
	b, err := h.bookings.Get(c.Request.Context(), types.ID(c.Param("id")), middleware.Caller(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

type statusReq struct {
	Status string `json:"status" binding:"required,booking_status"`
	Note   string `json:"note" binding:"max=500"`
}

func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	var req statusReq
	if !bind(c, &req) {
		return
	}
	target, err := booking.ParseStatus(req.Status)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	h.transition(c, target, req.Note)
}

// Cancel is DELETE /bookings/:id; the optional reason query lands in the timeline.
func (h *BookingHandler) Cancel(c *gin.Context) {
	h.transition(c, booking.StatusCancelled, c.Query("reason"))
}

func (h *BookingHandler) transition(c *gin.Context, target booking.Status, note string) {
	b, err := h.bookings.Transition(c.Request.Context(), booking.TransitionCommand{
		BookingID: types.ID(c.Param("id")),
		Caller:    middleware.Caller(c),
		Target:    target,
		Note:      note,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

type rateReq struct {
	Score int    `json:"score" binding:"required"`
	Text  string `json:"text" binding:"max=1000"`
}

func (h *BookingHandler) Rate(c *gin.Context) {
	var req rateReq
	if !bind(c, &req) {
		return
	}
	b, err := h.bookings.Rate(c.Request.Context(), booking.RateCommand{
		BookingID: types.ID(c.Param("id")),
		Caller:    middleware.Caller(c),
		Score:     req.Score,
		Text:      req.Text,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

type paymentReq struct {
	PaymentStatus string `json:"payment_status" binding:"required,payment_status"`
}

func (h *BookingHandler) SetPayment(c *gin.Context) {
	var req paymentReq
	if !bind(c, &req) {
		return
	}
	status, err := booking.ParsePaymentStatus(req.PaymentStatus)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	b, err := h.bookings.SetPaymentStatus(c.Request.Context(), booking.PaymentCommand{
		BookingID: types.ID(c.Param("id")),
		Caller:    middleware.Caller(c),
		Status:    status,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}
