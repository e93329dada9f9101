// README: Entry point; loads config, wires stores and services, starts the HTTP server and cleanup ticker.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"drivebook/internal/config"
	httptransport "drivebook/internal/http"
	"drivebook/internal/infra"
	"drivebook/internal/logging"
	"drivebook/internal/maps"
	"drivebook/internal/modules/booking"
	"drivebook/internal/modules/driver"
	"drivebook/internal/modules/pricing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("drivebook-api stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.Firebase.ProjectID == "" {
		return errors.New("DRIVEBOOK_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		return err
	}

	var (
		driverStore  driver.Store
		bookingStore booking.Store
		uow          driver.UnitOfWork
	)
	switch cfg.Store {
	case "memory":
		driverStore = driver.NewMemoryStore()
		bookingStore = booking.NewMemoryStore()
		uow = infra.NewMemUnitOfWork()
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		driverStore = driver.NewStore(pool)
		bookingStore = booking.NewStore(pool)
		uow = infra.NewUnitOfWork(pool)
	}

	var lock driver.Locker
	if cfg.Redis.Addr != "" {
		client, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer client.Close()
		host, _ := os.Hostname()
		lock = driver.NewRedisLock(client, host)
	}

	var events booking.EventPublisher = booking.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := infra.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		events = booking.NewEventPublisher(producer)
	}

	var routes pricing.RouteEstimator
	if cfg.Maps.APIKey != "" {
		rs, err := maps.NewRouteService(cfg.Maps.APIKey, cfg.Maps.Region)
		if err != nil {
			return err
		}
		routes = rs
	}

	pricingSvc := pricing.NewService(cfg.Booking.Currency, routes)
	driverSvc := driver.NewService(driverStore, uow, cfg.Booking, logger)
	bookingSvc := booking.NewService(booking.Deps{
		Store:   bookingStore,
		Drivers: driverSvc,
		Pricing: pricingSvc,
		UoW:     uow,
		Events:  events,
		Logger:  logger,
	}, cfg.Booking)

	handler, err := httptransport.NewServer(httptransport.ServerDeps{
		Booking:  bookingSvc,
		Driver:   driverSvc,
		Pricing:  pricingSvc,
		Verifier: verifier,
		Logger:   logger,
	}).Routes()
	if err != nil {
		return err
	}
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go driverSvc.RunCleanupTicker(ctx, lock)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTP.Addr, "store", cfg.Store)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}
