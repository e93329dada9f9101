// README: In-memory driver store for local runs and tests.
package driver

import (
	"context"
	"sort"
	"sync"

	"drivebook/internal/infra"
	"drivebook/internal/types"
)

type MemoryStore struct {
	mu      sync.RWMutex
	drivers map[types.ID]*Driver
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drivers: make(map[types.ID]*Driver)}
}

func (m *MemoryStore) Create(ctx context.Context, d *Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drivers[d.ID]; ok {
		return ErrExists
	}
	m.drivers[d.ID] = d.Clone()
	infra.OnRollback(ctx, func() {
		m.mu.Lock()
		delete(m.drivers, d.ID)
		m.mu.Unlock()
	})
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id types.ID) (*Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

func (m *MemoryStore) Update(ctx context.Context, d *Driver) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.drivers[d.ID]
	if !ok {
		return false, ErrNotFound
	}
	if cur.Version != d.Version {
		return false, nil
	}
	d.Version++
	m.drivers[d.ID] = d.Clone()
	infra.OnRollback(ctx, func() {
		m.mu.Lock()
		m.drivers[cur.ID] = cur
		m.mu.Unlock()
	})
	return true, nil
}

func (m *MemoryStore) List(_ context.Context) ([]*Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
