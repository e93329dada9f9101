// README: Driver service owns each driver's calendar; every write is a versioned compare-and-swap.
package driver

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"drivebook/internal/config"
	"drivebook/internal/logging"
	"drivebook/internal/modules/availability"
	"drivebook/internal/observability"
	"drivebook/internal/types"
)

// Store persists drivers. Update succeeds only when the stored version equals d.Version,
// and bumps d.Version on success.
type Store interface {
	Create(ctx context.Context, d *Driver) error
	Get(ctx context.Context, id types.ID) (*Driver, error)
	Update(ctx context.Context, d *Driver) (bool, error)
	List(ctx context.Context) ([]*Driver, error)
}

type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker elects the replica that runs a periodic job.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

var (
	ErrNotFound           = errors.New("driver not found")
	ErrExists             = errors.New("driver already registered")
	ErrForbidden          = errors.New("caller may not manage this driver")
	ErrHasInFlightBooking = errors.New("driver has a booking in progress")
	ErrInvalidRates       = types.NewValidationError("rates", "must not be negative")

	errStale       = errors.New("stale driver version")
	errNothingToDo = errors.New("nothing to prune")
)

const cleanupLockKey = "drivebook:cleanup:lock"

type Service struct {
	store  Store
	uow    UnitOfWork
	cfg    config.BookingConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, uow UnitOfWork, cfg config.BookingConfig, logger *slog.Logger) *Service {
	if cfg.MaxCASAttempts <= 0 {
		cfg.MaxCASAttempts = 1
	}
	if cfg.SlotRetention <= 0 {
		cfg.SlotRetention = availability.DefaultRetention
	}
	return &Service{store: store, uow: uow, cfg: cfg, logger: logging.OrDefault(logger), now: time.Now}
}

type RegisterCommand struct {
	Caller types.Principal
	Rates  *Rates
}

type SetOpenCommand struct {
	DriverID types.ID
	Caller   types.Principal
	Open     bool
}

type SearchQuery struct {
	Start     time.Time
	End       time.Time
	MinRating float64
}

// Register creates the caller's driver record, open for bookings.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*Driver, error) {
	if cmd.Caller.Role != types.RoleDriver {
		return nil, ErrForbidden
	}
	rates := DefaultRates()
	if cmd.Rates != nil {
		rates = *cmd.Rates
	}
	if rates.Hourly < 0 || rates.Daily < 0 || rates.Weekly < 0 || rates.Monthly < 0 {
		return nil, ErrInvalidRates
	}
	now := s.now()
	d := &Driver{
		ID:           cmd.Caller.ID,
		Rates:        rates,
		Currency:     s.cfg.Currency,
		Rating:       DefaultRating(),
		Availability: availability.Availability{IsOpenForBookings: true, Slots: []availability.TimeInterval{}},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info("driver registered", "driver_id", d.ID)
	return d, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) QueryAvailability(ctx context.Context, id types.ID, start, end time.Time) (availability.Report, error) {
	if !start.Before(end) {
		return availability.Report{}, availability.ErrInvalidInterval
	}
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return availability.Report{}, err
	}
	return d.Availability.Report(start, end), nil
}

// SetOpen toggles whether the driver takes new bookings. Closing is refused while an
// Active slot spans the current time.
func (s *Service) SetOpen(ctx context.Context, cmd SetOpenCommand) (availability.Availability, error) {
	if err := s.authorize(cmd.Caller, cmd.DriverID); err != nil {
		return availability.Availability{}, err
	}
	d, err := s.mutate(ctx, cmd.DriverID, func(d *Driver) error {
		if !cmd.Open && len(d.Availability.InFlight(s.now())) > 0 {
			return ErrHasInFlightBooking
		}
		d.Availability.IsOpenForBookings = cmd.Open
		return nil
	})
	if err != nil {
		return availability.Availability{}, err
	}
	s.logger.Info("driver availability toggled", "driver_id", cmd.DriverID, "open", cmd.Open)
	return d.Availability, nil
}

// ReserveSlot re-checks the window against the current calendar and inserts an Active slot.
func (s *Service) ReserveSlot(ctx context.Context, id types.ID, slot availability.TimeInterval) error {
	_, err := s.mutate(ctx, id, func(d *Driver) error {
		return d.Availability.Reserve(slot)
	})
	return err
}

// ReleaseSlot marks the slot for ref as finished. A missing slot is not an error.
func (s *Service) ReleaseSlot(ctx context.Context, id, ref types.ID, status availability.SlotStatus) error {
	_, err := s.mutate(ctx, id, func(d *Driver) error {
		d.Availability.SetSlotStatus(ref, status)
		return nil
	})
	return err
}

func (s *Service) ApplyRating(ctx context.Context, id types.ID, score int) (Rating, error) {
	if err := ValidateScore(score); err != nil {
		return Rating{}, err
	}
	d, err := s.mutate(ctx, id, func(d *Driver) error {
		r, err := UpdateRating(d.Rating, score)
		if err != nil {
			return err
		}
		d.Rating = r
		return nil
	})
	if err != nil {
		return Rating{}, err
	}
	return d.Rating, nil
}

// CleanupStale prunes one driver, or every driver when id is nil. Only the driver
// themself or an admin may prune one calendar; only an admin may prune all of them.
func (s *Service) CleanupStale(ctx context.Context, caller types.Principal, id *types.ID) (int, error) {
	if id == nil {
		if !caller.IsAdmin() {
			return 0, ErrForbidden
		}
		return s.cleanupAll(ctx)
	}
	if err := s.authorize(caller, *id); err != nil {
		return 0, err
	}
	return s.cleanupOne(ctx, *id)
}

func (s *Service) cleanupOne(ctx context.Context, id types.ID) (int, error) {
	pruned := 0
	_, err := s.mutate(ctx, id, func(d *Driver) error {
		d.Availability, pruned = d.Availability.EvictStale(s.now(), s.cfg.SlotRetention)
		if pruned == 0 {
			return errNothingToDo
		}
		return nil
	})
	if errors.Is(err, errNothingToDo) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	observability.SlotsPruned.Add(float64(pruned))
	return pruned, nil
}

func (s *Service) cleanupAll(ctx context.Context) (int, error) {
	drivers, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, d := range drivers {
		n, err := s.cleanupOne(ctx, d.ID)
		if err != nil {
			return total, err
		}
		total += n
	}
	s.logger.Info("stale slots cleaned", "drivers", len(drivers), "pruned", total)
	return total, nil
}

// Search lists drivers open for bookings, free for [Start, End) when a window is given,
// rated at least MinRating, best rated first.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]Summary, error) {
	windowed := !q.Start.IsZero() || !q.End.IsZero()
	if windowed && !q.Start.Before(q.End) {
		return nil, availability.ErrInvalidInterval
	}
	drivers, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := []Summary{}
	for _, d := range drivers {
		if !d.Availability.IsOpenForBookings || d.Rating.Average < q.MinRating {
			continue
		}
		if windowed && !d.Availability.IsAvailable(q.Start, q.End) {
			continue
		}
		out = append(out, d.Summary(now))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rating.Average != out[j].Rating.Average {
			return out[i].Rating.Average > out[j].Rating.Average
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Service) Stats(ctx context.Context, id types.ID) (*Driver, Stats, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, Stats{}, err
	}
	return d, d.Stats(s.now()), nil
}

// RunCleanupTicker prunes stale slots every CleanupInterval. With a non-nil lock only the
// replica holding it for the interval does the work.
func (s *Service) RunCleanupTicker(ctx context.Context, lock Locker) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if lock != nil {
				ok, err := lock.TryLock(ctx, cleanupLockKey, s.cfg.CleanupInterval*9/10)
				if err != nil {
					s.logger.Warn("cleanup lock failed", "err", err)
					continue
				}
				if !ok {
					continue
				}
			}
			if _, err := s.cleanupAll(ctx); err != nil {
				s.logger.Warn("scheduled cleanup failed", "err", err)
			}
		}
	}
}

func (s *Service) authorize(caller types.Principal, id types.ID) error {
	if caller.IsAdmin() || (caller.Role == types.RoleDriver && caller.ID == id) {
		return nil
	}
	return ErrForbidden
}

// mutate applies fn to a fresh copy of the driver and writes it back if nobody else
// wrote in between, retrying up to MaxCASAttempts times.
func (s *Service) mutate(ctx context.Context, id types.ID, fn func(d *Driver) error) (*Driver, error) {
	for attempt := 1; attempt <= s.cfg.MaxCASAttempts; attempt++ {
		var out *Driver
		err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
			d, err := s.store.Get(ctx, id)
			if err != nil {
				return err
			}
			if err := fn(d); err != nil {
				return err
			}
			d.UpdatedAt = s.now()
			ok, err := s.store.Update(ctx, d)
			if err != nil {
				return err
			}
			if !ok {
				return errStale
			}
			out = d
			return nil
		})
		if errors.Is(err, errStale) {
			observability.CASRetries.WithLabelValues("driver").Inc()
			s.logger.Debug("driver version conflict, retrying", "driver_id", id, "attempt", attempt)
			continue
		}
		var conflict *availability.ConflictError
		if errors.As(err, &conflict) {
			observability.SlotConflicts.WithLabelValues("reserve").Inc()
		}
		return out, err
	}
	return nil, types.ErrConcurrentModification
}
