// README: In-memory booking store for local runs and tests.
package booking

import (
	"context"
	"sort"
	"sync"

	"drivebook/internal/infra"
	"drivebook/internal/types"
)

type MemoryStore struct {
	mu       sync.RWMutex
	bookings map[types.ID]*Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bookings: make(map[types.ID]*Booking)}
}

func (m *MemoryStore) Create(ctx context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = b.Clone()
	infra.OnRollback(ctx, func() {
		m.mu.Lock()
		delete(m.bookings, b.ID)
		m.mu.Unlock()
	})
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id types.ID) (*Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.Clone(), nil
}

func (m *MemoryStore) Update(ctx context.Context, b *Booking) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.bookings[b.ID]
	if !ok {
		return false, ErrNotFound
	}
	if cur.Version != b.Version {
		return false, nil
	}
	b.Version++
	m.bookings[b.ID] = b.Clone()
	infra.OnRollback(ctx, func() {
		m.mu.Lock()
		m.bookings[cur.ID] = cur
		m.mu.Unlock()
	})
	return true, nil
}

func (m *MemoryStore) ListByCustomer(_ context.Context, customerID types.ID) ([]*Booking, error) {
	return m.filter(func(b *Booking) bool { return b.CustomerID == customerID }), nil
}

func (m *MemoryStore) ListByDriver(_ context.Context, driverID types.ID) ([]*Booking, error) {
	return m.filter(func(b *Booking) bool { return b.DriverID == driverID }), nil
}

func (m *MemoryStore) ListAll(_ context.Context) ([]*Booking, error) {
	return m.filter(func(*Booking) bool { return true }), nil
}

func (m *MemoryStore) filter(keep func(*Booking) bool) []*Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Booking, 0)
	for _, b := range m.bookings {
		if keep(b) {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
