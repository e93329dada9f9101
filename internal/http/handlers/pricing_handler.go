// README: Fare estimate handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"drivebook/internal/modules/pricing"
	"drivebook/internal/types"
)

type PricingHandler struct {
	pricing *pricing.Service
}

func NewPricingHandler(svc *pricing.Service) *PricingHandler {
	return &PricingHandler{pricing: svc}
}

type fareQuery struct {
	DistanceKm *float64 `form:"distance_km" binding:"required"`
}

func (h *PricingHandler) Fare(c *gin.Context) {
	var q fareQuery
	if !bindQuery(c, &q) {
		return
	}
	fare, err := h.pricing.Estimate(c.Request.Context(), *q.DistanceKm)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"distance_km": *q.DistanceKm, "fare": fare})
}

type pointReq struct {
	Lat float64 `json:"lat" binding:"latitude"`
	Lng float64 `json:"lng" binding:"longitude"`
}

type routeReq struct {
	Pickup  pointReq `json:"pickup"`
	Dropoff pointReq `json:"dropoff"`
}

func (h *PricingHandler) Route(c *gin.Context) {
	var req routeReq
	if !bind(c, &req) {
		return
	}
	q, err := h.pricing.QuoteRoute(c.Request.Context(),
		types.Point{Lat: req.Pickup.Lat, Lng: req.Pickup.Lng},
		types.Point{Lat: req.Dropoff.Lat, Lng: req.Dropoff.Lng},
	)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, q)
}
