// README: Driver service tests against the in-memory store.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"drivebook/internal/config"
	"drivebook/internal/infra"
	"drivebook/internal/modules/availability"
	"drivebook/internal/types"
)

var (
	testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	admin   = types.Principal{ID: "admin1", Role: types.RoleAdmin}
)

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	if store == nil {
		store = NewMemoryStore()
	}
	svc := NewService(store, infra.NewMemUnitOfWork(), config.DefaultBookingConfig(), nil)
	svc.now = func() time.Time { return testNow }
	return svc
}

func driverPrincipal(id string) types.Principal {
	return types.Principal{ID: types.ID(id), Role: types.RoleDriver}
}

func mustRegister(t *testing.T, svc *Service, id string) *Driver {
	t.Helper()
	d, err := svc.Register(context.Background(), RegisterCommand{Caller: driverPrincipal(id)})
	if err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	return d
}

func mustReserve(t *testing.T, svc *Service, driverID, ref string, start, end time.Time) {
	t.Helper()
	slot, err := availability.NewTimeInterval(types.ID(ref), start, end)
	if err != nil {
		t.Fatalf("interval: %v", err)
	}
	if err := svc.ReserveSlot(context.Background(), types.ID(driverID), slot); err != nil {
		t.Fatalf("reserve %s: %v", ref, err)
	}
}

func TestRegister(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	d := mustRegister(t, svc, "d1")
	if d.Rates != DefaultRates() || d.Rating != DefaultRating() || !d.Availability.IsOpenForBookings {
		t.Fatalf("unexpected defaults %+v", d)
	}
	if d.Currency != "RWF" {
		t.Fatalf("currency = %q", d.Currency)
	}

	if _, err := svc.Register(ctx, RegisterCommand{Caller: driverPrincipal("d1")}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterCommand{Caller: types.Principal{ID: "c1", Role: types.RoleCustomer}}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	bad := Rates{Hourly: -1}
	if _, err := svc.Register(ctx, RegisterCommand{Caller: driverPrincipal("d2"), Rates: &bad}); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetOpen(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	mustRegister(t, svc, "d1")
	mustReserve(t, svc, "d1", "busy", testNow.Add(-time.Hour), testNow.Add(time.Hour))

	t.Run("refuses to close during an in-flight booking", func(t *testing.T) {
		_, err := svc.SetOpen(ctx, SetOpenCommand{DriverID: "d1", Caller: driverPrincipal("d1"), Open: false})
		if !errors.Is(err, ErrHasInFlightBooking) {
			t.Fatalf("expected ErrHasInFlightBooking, got %v", err)
		}
	})

	t.Run("other drivers are forbidden", func(t *testing.T) {
		_, err := svc.SetOpen(ctx, SetOpenCommand{DriverID: "d1", Caller: driverPrincipal("d2"), Open: true})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("closes once the booking is finished", func(t *testing.T) {
		if err := svc.ReleaseSlot(ctx, "d1", "busy", availability.SlotCompleted); err != nil {
			t.Fatalf("release: %v", err)
		}
		a, err := svc.SetOpen(ctx, SetOpenCommand{DriverID: "d1", Caller: driverPrincipal("d1"), Open: false})
		if err != nil {
			t.Fatalf("close: %v", err)
		}
		if a.IsOpenForBookings {
			t.Fatal("expected closed availability")
		}
		r, err := svc.QueryAvailability(ctx, "d1", testNow.Add(24*time.Hour), testNow.Add(25*time.Hour))
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if r.Available {
			t.Fatal("closed driver reported available")
		}
	})

	t.Run("admin may reopen", func(t *testing.T) {
		a, err := svc.SetOpen(ctx, SetOpenCommand{DriverID: "d1", Caller: admin, Open: true})
		if err != nil || !a.IsOpenForBookings {
			t.Fatalf("reopen: %+v, %v", a, err)
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := svc.SetOpen(ctx, SetOpenCommand{DriverID: "nope", Caller: admin, Open: true})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestQueryAvailability(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	mustRegister(t, svc, "d1")
	start := testNow.Add(48 * time.Hour)
	mustReserve(t, svc, "d1", "b1", start, start.Add(2*time.Hour))

	r, err := svc.QueryAvailability(ctx, "d1", start.Add(time.Hour), start.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if r.Available || len(r.Conflicts) != 1 || r.SuggestedRetryAfter == nil || !r.SuggestedRetryAfter.Equal(start.Add(2*time.Hour)) {
		t.Fatalf("unexpected report %+v", r)
	}

	if _, err := svc.QueryAvailability(ctx, "d1", start, start); !errors.Is(err, availability.ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
	if _, err := svc.QueryAvailability(ctx, "ghost", start, start.Add(time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReserveSlotRejectsOverlap(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	mustRegister(t, svc, "d1")
	start := testNow.Add(time.Hour)
	mustReserve(t, svc, "d1", "b1", start, start.Add(time.Hour))

	slot, _ := availability.NewTimeInterval("b2", start.Add(30*time.Minute), start.Add(90*time.Minute))
	err := svc.ReserveSlot(ctx, "d1", slot)
	var conflict *availability.ConflictError
	if !errors.As(err, &conflict) || len(conflict.Conflicts) != 1 || conflict.Conflicts[0].BookingRef != "b1" {
		t.Fatalf("expected conflict with b1, got %v", err)
	}

	d, _ := svc.Get(ctx, "d1")
	if len(d.Availability.Slots) != 1 {
		t.Fatalf("rejected slot was stored: %+v", d.Availability.Slots)
	}
}

func TestCleanupStale(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	mustRegister(t, svc, "d1")
	mustRegister(t, svc, "d2")

	old := testNow.Add(-60 * 24 * time.Hour)
	mustReserve(t, svc, "d1", "old-done", old, old.Add(time.Hour))
	mustReserve(t, svc, "d1", "old-active", old.Add(2*time.Hour), old.Add(3*time.Hour))
	mustReserve(t, svc, "d2", "old-cancelled", old, old.Add(time.Hour))
	_ = svc.ReleaseSlot(ctx, "d1", "old-done", availability.SlotCompleted)
	_ = svc.ReleaseSlot(ctx, "d2", "old-cancelled", availability.SlotCancelled)

	id := types.ID("d1")
	if _, err := svc.CleanupStale(ctx, driverPrincipal("d2"), &id); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.CleanupStale(ctx, driverPrincipal("d1"), nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for global cleanup, got %v", err)
	}

	n, err := svc.CleanupStale(ctx, driverPrincipal("d1"), &id)
	if err != nil || n != 1 {
		t.Fatalf("cleanup d1: n=%d err=%v", n, err)
	}
	n, err = svc.CleanupStale(ctx, admin, nil)
	if err != nil || n != 1 {
		t.Fatalf("cleanup all: n=%d err=%v", n, err)
	}
	n, err = svc.CleanupStale(ctx, admin, nil)
	if err != nil || n != 0 {
		t.Fatalf("second cleanup should prune nothing: n=%d err=%v", n, err)
	}

	d, _ := svc.Get(ctx, "d1")
	if _, ok := d.Availability.Slot("old-active"); !ok {
		t.Fatal("active slot was pruned")
	}
}

func TestSearch(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		mustRegister(t, svc, id)
	}
	start := testNow.Add(24 * time.Hour)
	mustReserve(t, svc, "b", "busy", start, start.Add(time.Hour))
	if _, err := svc.SetOpen(ctx, SetOpenCommand{DriverID: "c", Caller: admin, Open: false}); err != nil {
		t.Fatalf("close c: %v", err)
	}
	if _, err := svc.ApplyRating(ctx, "a", 3); err != nil {
		t.Fatalf("rate a: %v", err)
	}

	got, err := svc.Search(ctx, SearchQuery{Start: start, End: start.Add(time.Hour)})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 || got[0].ID != "d" || got[1].ID != "a" {
		t.Fatalf("unexpected search result %+v", got)
	}

	got, err = svc.Search(ctx, SearchQuery{MinRating: 4})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "d" {
		t.Fatalf("unexpected rating filter result %+v", got)
	}
	if got[0].Stats.ActiveBookings != 1 || got[0].Stats.NextAvailableAt == nil {
		t.Fatalf("expected stats for b, got %+v", got[0].Stats)
	}

	if _, err := svc.Search(ctx, SearchQuery{Start: start}); !errors.Is(err, availability.ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestApplyRating(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	mustRegister(t, svc, "d1")

	r, err := svc.ApplyRating(ctx, "d1", 3)
	if err != nil || r.Average != 3 || r.Count != 1 {
		t.Fatalf("first rating: %+v, %v", r, err)
	}
	r, err = svc.ApplyRating(ctx, "d1", 5)
	if err != nil || r.Average != 4 || r.Count != 2 {
		t.Fatalf("second rating: %+v, %v", r, err)
	}
	if _, err := svc.ApplyRating(ctx, "d1", 9); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("expected ErrInvalidRating, got %v", err)
	}
}

// flakyStore loses the first n version races.
type flakyStore struct {
	*MemoryStore
	mu   sync.Mutex
	fail int
}

func (f *flakyStore) Update(ctx context.Context, d *Driver) (bool, error) {
	f.mu.Lock()
	if f.fail > 0 {
		f.fail--
		f.mu.Unlock()
		return false, nil
	}
	f.mu.Unlock()
	return f.MemoryStore.Update(ctx, d)
}

func TestMutateRetriesVersionConflicts(t *testing.T) {
	ctx := context.Background()

	store := &flakyStore{MemoryStore: NewMemoryStore()}
	svc := newTestService(t, store)
	mustRegister(t, svc, "d1")

	store.fail = 2
	if _, err := svc.ApplyRating(ctx, "d1", 4); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}

	store.fail = 100
	if _, err := svc.ApplyRating(ctx, "d1", 4); !errors.Is(err, types.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}
	d, _ := svc.Get(ctx, "d1")
	if d.Rating.Count != 1 {
		t.Fatalf("expected exactly one applied rating, got %+v", d.Rating)
	}
}

func TestConcurrentReserveSameWindow(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	mustRegister(t, svc, "d1")
	start := testNow.Add(time.Hour)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			slot, _ := availability.NewTimeInterval(types.ID(fmt.Sprintf("b%d", i)), start, start.Add(time.Hour))
			errs <- svc.ReserveSlot(ctx, "d1", slot)
		}(i)
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, availability.ErrSlotConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 success, got %d", success)
	}
}

type countingLock struct {
	calls atomic.Int32
	grant bool
}

func (l *countingLock) TryLock(_ context.Context, _ string, _ time.Duration) (bool, error) {
	l.calls.Add(1)
	return l.grant, nil
}

func TestRunCleanupTicker(t *testing.T) {
	cfg := config.DefaultBookingConfig()
	cfg.CleanupInterval = 10 * time.Millisecond
	svc := NewService(NewMemoryStore(), infra.NewMemUnitOfWork(), cfg, nil)
	svc.now = func() time.Time { return testNow }
	mustRegister(t, svc, "d1")
	old := testNow.Add(-60 * 24 * time.Hour)
	mustReserve(t, svc, "d1", "old", old, old.Add(time.Hour))
	_ = svc.ReleaseSlot(context.Background(), "d1", "old", availability.SlotCompleted)

	denied := &countingLock{grant: false}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { svc.RunCleanupTicker(ctx, denied); close(done) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done
	if denied.calls.Load() == 0 {
		t.Fatal("expected the ticker to ask for the lock")
	}
	if d, _ := svc.Get(context.Background(), "d1"); len(d.Availability.Slots) != 1 {
		t.Fatal("cleanup ran without holding the lock")
	}

	granted := &countingLock{grant: true}
	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	go svc.RunCleanupTicker(ctx, granted)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d, _ := svc.Get(context.Background(), "d1"); len(d.Availability.Slots) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("stale slot was not pruned by the ticker")
}
