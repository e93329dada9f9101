// README: API gateway; builds the gin engine, installs middleware, and registers routes.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"drivebook/internal/http/handlers"
	"drivebook/internal/http/middleware"
	"drivebook/internal/infra"
	"drivebook/internal/logging"
	"drivebook/internal/modules/booking"
	"drivebook/internal/modules/driver"
	"drivebook/internal/modules/pricing"
)

type ServerDeps struct {
	Booking  *booking.Service
	Driver   *driver.Service
	Pricing  *pricing.Service
	Verifier infra.TokenVerifier
	Logger   *slog.Logger
}

type Server struct {
	booking  *booking.Service
	driver   *driver.Service
	pricing  *pricing.Service
	verifier infra.TokenVerifier
	logger   *slog.Logger
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		booking:  deps.Booking,
		driver:   deps.Driver,
		pricing:  deps.Pricing,
		verifier: deps.Verifier,
		logger:   logging.OrDefault(deps.Logger),
	}
}

// Routes returns the HTTP handler. Everything under /api requires a Firebase ID token.
func (s *Server) Routes() (http.Handler, error) {
	if err := handlers.RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(middleware.Logging(s.logger), middleware.Recovery(s.logger), middleware.Metrics())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", middleware.Auth(s.verifier))

	bookings := handlers.NewBookingHandler(s.booking)
	api.POST("/bookings", bookings.Create)
	api.GET("/bookings", bookings.List)
	api.GET("/bookings/:id", bookings.Get)
	api.PUT("/bookings/:id/status", bookings.UpdateStatus)
	api.DELETE("/bookings/:id", bookings.Cancel)
	api.POST("/bookings/:id/rating", bookings.Rate)
	api.PUT("/bookings/:id/payment", bookings.SetPayment)

	drivers := handlers.NewDriverHandler(s.driver)
	api.POST("/drivers", drivers.Register)
	api.GET("/drivers", drivers.Search)
	api.POST("/drivers/cleanup-slots", drivers.CleanupAllSlots)
	api.GET("/drivers/:id", drivers.Get)
	api.GET("/drivers/:id/availability", drivers.Availability)
	api.GET("/drivers/:id/reviews", bookings.Reviews)
	api.PUT("/drivers/:id/availability", drivers.SetAvailability)
	api.POST("/drivers/:id/cleanup-slots", drivers.CleanupSlots)

	fares := handlers.NewPricingHandler(s.pricing)
	api.GET("/pricing/fare", fares.Fare)
	api.POST("/pricing/route", fares.Route)

	return r, nil
}
