// README: Booking service runs the lifecycle; each change commits together with its calendar side effect.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"drivebook/internal/config"
	"drivebook/internal/logging"
	"drivebook/internal/modules/availability"
	"drivebook/internal/modules/driver"
	"drivebook/internal/modules/pricing"
	"drivebook/internal/observability"
	"drivebook/internal/types"
)

// Store persists bookings. Update succeeds only when the stored version equals b.Version,
// and bumps b.Version on success.
type Store interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id types.ID) (*Booking, error)
	Update(ctx context.Context, b *Booking) (bool, error)
	ListByCustomer(ctx context.Context, customerID types.ID) ([]*Booking, error)
	ListByDriver(ctx context.Context, driverID types.ID) ([]*Booking, error)
	ListAll(ctx context.Context) ([]*Booking, error)
}

// Drivers is the calendar side of a booking; *driver.Service implements it.
type Drivers interface {
	Get(ctx context.Context, id types.ID) (*driver.Driver, error)
	ReserveSlot(ctx context.Context, id types.ID, slot availability.TimeInterval) error
	ReleaseSlot(ctx context.Context, id, ref types.ID, status availability.SlotStatus) error
	ApplyRating(ctx context.Context, id types.ID, score int) (driver.Rating, error)
}

type Pricing interface {
	Quote(ctx context.Context, req pricing.QuoteRequest) (pricing.Quote, error)
}

type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Deps struct {
	Store   Store
	Drivers Drivers
	Pricing Pricing
	UoW     UnitOfWork
	Events  EventPublisher
	Logger  *slog.Logger
}

type Service struct {
	store   Store
	drivers Drivers
	pricing Pricing
	uow     UnitOfWork
	events  EventPublisher
	cfg     config.BookingConfig
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(deps Deps, cfg config.BookingConfig) *Service {
	if cfg.MaxCASAttempts <= 0 {
		cfg.MaxCASAttempts = 1
	}
	events := deps.Events
	if events == nil {
		events = NopPublisher{}
	}
	return &Service{
		store:   deps.Store,
		drivers: deps.Drivers,
		pricing: deps.Pricing,
		uow:     deps.UoW,
		events:  events,
		cfg:     cfg,
		logger:  logging.OrDefault(deps.Logger),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type TransitionCommand struct {
	BookingID types.ID
	Caller    types.Principal
	Target    Status
	Note      string
}

type RateCommand struct {
	BookingID types.ID
	Caller    types.Principal
	Score     int
	Text      string
}

type PaymentCommand struct {
	BookingID types.ID
	Caller    types.Principal
	Status    PaymentStatus
}

// Create admits a Pending booking if the driver's window is free right now. The slot itself
// is only reserved when the driver accepts.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Booking, error) {
	if cmd.Customer.Role != types.RoleCustomer {
		return nil, ErrForbidden
	}
	now := s.now()
	req, err := cmd.parse(now)
	if err != nil {
		return nil, err
	}

	d, err := s.drivers.Get(ctx, req.driverID)
	if errors.Is(err, driver.ErrNotFound) {
		return nil, ErrDriverNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := d.Availability.Check(req.start, req.end); err != nil {
		observability.SlotConflicts.WithLabelValues("admission").Inc()
		return nil, err
	}

	quote, err := s.pricing.Quote(ctx, pricing.QuoteRequest{
		DistanceKm: req.distanceKm,
		HourlyRate: d.Rates.Hourly,
		Duration:   req.duration,
	})
	if err != nil {
		return nil, err
	}

	b := &Booking{
		ID:             types.NewID(),
		CustomerID:     req.customerID,
		DriverID:       req.driverID,
		Pickup:         req.pickup,
		Dropoff:        req.dropoff,
		Kind:           req.kind,
		Duration:       req.duration,
		ScheduledStart: req.start,
		ScheduledEnd:   req.end,
		DistanceKm:     req.distanceKm,
		Status:         StatusPending,
		PaymentStatus:  PaymentPending,
		PaymentMethod:  req.method,
		Pricing:        quote,
		Notes:          req.notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	b.record(StatusPending, now, "booking requested", req.customerID)
	if err := s.store.Create(ctx, b); err != nil {
		return nil, err
	}

	observability.BookingsCreated.Inc()
	s.logger.Info("booking created", "booking_id", b.ID, "driver_id", b.DriverID, "customer_id", b.CustomerID)
	s.publish(ctx, newEvent(EventCreated, b, "", req.customerID, now))
	return b, nil
}

// Transition moves a booking along the lifecycle on behalf of the caller.
func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) (*Booking, error) {
	var from Status
	b, err := s.update(ctx, cmd.BookingID, func(ctx context.Context, b *Booking, now time.Time) error {
		actor, ok := actorFor(b, cmd.Caller)
		if !ok {
			return ErrForbidden
		}
		t, ok := lookupTransition(b.Status, cmd.Target)
		if !ok {
			return &TransitionError{From: b.Status, To: cmd.Target}
		}
		if !t.Allows(actor) {
			return ErrForbidden
		}
		from = b.Status
		if err := s.applySideEffects(ctx, b, cmd.Target, now); err != nil {
			return err
		}
		b.Status = cmd.Target
		b.record(cmd.Target, now, cmd.Note, cmd.Caller.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.BookingTransitions.WithLabelValues(string(from), string(b.Status)).Inc()
	s.logger.Info("booking transitioned", "booking_id", b.ID, "from", from, "to", b.Status, "actor_id", cmd.Caller.ID)
	s.publish(ctx, newEvent(EventTransitioned, b, from, cmd.Caller.ID, b.UpdatedAt))
	return b, nil
}

// applySideEffects keeps the driver's calendar and the booking's derived fields in step
// with the status the booking is about to enter.
func (s *Service) applySideEffects(ctx context.Context, b *Booking, target Status, now time.Time) error {
	switch target {
	case StatusAccepted:
		slot, err := availability.NewTimeInterval(b.ID, b.ScheduledStart, b.ScheduledEnd)
		if err != nil {
			return err
		}
		return s.drivers.ReserveSlot(ctx, b.DriverID, slot)
	case StatusStarted:
		b.ActualStart = &now
	case StatusCompleted:
		b.ActualEnd = &now
		b.PaymentStatus = PaymentPaid
		return s.drivers.ReleaseSlot(ctx, b.DriverID, b.ID, availability.SlotCompleted)
	case StatusCancelled:
		if b.Status == StatusPending {
			return nil
		}
		return s.drivers.ReleaseSlot(ctx, b.DriverID, b.ID, availability.SlotCancelled)
	}
	return nil
}

// Rate records the caller's score on a completed booking. A customer's score also
// feeds the driver's running average.
func (s *Service) Rate(ctx context.Context, cmd RateCommand) (*Booking, error) {
	if err := driver.ValidateScore(cmd.Score); err != nil {
		return nil, err
	}
	b, err := s.update(ctx, cmd.BookingID, func(ctx context.Context, b *Booking, now time.Time) error {
		actor, ok := actorFor(b, cmd.Caller)
		if !ok {
			return ErrForbidden
		}
		if b.Status != StatusCompleted {
			return ErrNotCompleted
		}
		score := cmd.Score
		switch actor {
		case ActorCustomer:
			if b.Rating.CustomerScore != nil {
				return ErrAlreadyRated
			}
			b.Rating.CustomerScore = &score
			b.Rating.CustomerText = cmd.Text
			b.Rating.CustomerRatedAt = &now
			if _, err := s.drivers.ApplyRating(ctx, b.DriverID, score); err != nil {
				return err
			}
		case ActorDriver:
			if b.Rating.DriverScore != nil {
				return ErrAlreadyRated
			}
			b.Rating.DriverScore = &score
			b.Rating.DriverText = cmd.Text
			b.Rating.DriverRatedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, newEvent(EventRated, b, b.Status, cmd.Caller.ID, b.UpdatedAt))
	return b, nil
}

// SetPaymentStatus lets an admin correct the payment label.
func (s *Service) SetPaymentStatus(ctx context.Context, cmd PaymentCommand) (*Booking, error) {
	if !cmd.Caller.IsAdmin() {
		return nil, ErrForbidden
	}
	b, err := s.update(ctx, cmd.BookingID, func(_ context.Context, b *Booking, now time.Time) error {
		b.PaymentStatus = cmd.Status
		b.record(b.Status, now, "payment status set to "+string(cmd.Status), cmd.Caller.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, newEvent(EventPaymentUpdated, b, b.Status, cmd.Caller.ID, b.UpdatedAt))
	return b, nil
}

// Get returns a booking to its customer, its driver, or an admin.
func (s *Service) Get(ctx context.Context, id types.ID, caller types.Principal) (*Booking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := actorFor(b, caller); !ok && !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	return b, nil
}

// List returns the caller's bookings, newest first. Admins see every booking.
func (s *Service) List(ctx context.Context, caller types.Principal) ([]*Booking, error) {
	switch caller.Role {
	case types.RoleAdmin:
		return s.store.ListAll(ctx)
	case types.RoleDriver:
		return s.store.ListByDriver(ctx, caller.ID)
	default:
		return s.store.ListByCustomer(ctx, caller.ID)
	}
}

// update loads the booking, applies fn, and writes it back in one unit of work. A lost
// version race rolls everything back and starts over, up to MaxCASAttempts times.
func (s *Service) update(ctx context.Context, id types.ID, fn func(ctx context.Context, b *Booking, now time.Time) error) (*Booking, error) {
	for attempt := 1; attempt <= s.cfg.MaxCASAttempts; attempt++ {
		var out *Booking
		err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
			b, err := s.store.Get(ctx, id)
			if err != nil {
				return err
			}
			now := s.now()
			if err := fn(ctx, b, now); err != nil {
				return err
			}
			b.UpdatedAt = now
			ok, err := s.store.Update(ctx, b)
			if err != nil {
				return err
			}
			if !ok {
				return errStale
			}
			out = b
			return nil
		})
		if errors.Is(err, errStale) {
			observability.CASRetries.WithLabelValues("booking").Inc()
			s.logger.Debug("booking version conflict, retrying", "booking_id", id, "attempt", attempt)
			continue
		}
		return out, err
	}
	return nil, types.ErrConcurrentModification
}

func (s *Service) publish(ctx context.Context, e Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		observability.EventPublishFailures.Inc()
		s.logger.Warn("publish booking event failed", "booking_id", e.BookingID, "type", e.Type, "err", err)
	}
}
