package flag

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// defaultPageLimit bounds list queries when the caller does not set one.
const defaultPageLimit = 50

// MemoryStore is an in-memory implementation of the Store interface.
// It is used in tests and works for single-process deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	flags     map[uuid.UUID]*Flag
	byKey     map[string]uuid.UUID
	overrides map[uuid.UUID]map[string]*Override
	history   []*HistoryEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flags:     make(map[uuid.UUID]*Flag),
		byKey:     make(map[string]uuid.UUID),
		overrides: make(map[uuid.UUID]map[string]*Override),
	}
}

func (m *MemoryStore) CreateFlag(ctx context.Context, f *Flag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byKey[f.Key]; exists {
		return ErrDuplicateKey
	}

	// Store a copy to keep the caller's struct detached from store state.
	cp := *f
	m.flags[cp.ID] = &cp
	m.byKey[cp.Key] = cp.ID
	return nil
}

func (m *MemoryStore) GetFlag(ctx context.Context, id uuid.UUID) (*Flag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, exists := m.flags[id]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *MemoryStore) GetFlagByKey(ctx context.Context, key string) (*Flag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.byKey[key]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *m.flags[id]
	return &cp, nil
}

func (m *MemoryStore) ListFlags(ctx context.Context) ([]*Flag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Flag, 0, len(m.flags))
	for _, f := range m.flags {
		cp := *f
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (m *MemoryStore) UpdateFlag(ctx context.Context, f *Flag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.flags[f.ID]
	if !exists {
		return ErrNotFound
	}
	if current.Version != f.Version {
		return ErrConflict
	}

	cp := *f
	cp.Version++
	m.flags[cp.ID] = &cp
	f.Version = cp.Version
	return nil
}

func (m *MemoryStore) UpsertOverride(ctx context.Context, o *Override) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, exists := m.overrides[o.FlagID]
	if !exists {
		rows = make(map[string]*Override)
		m.overrides[o.FlagID] = rows
	}
	cp := *o
	rows[o.TenantID] = &cp
	return nil
}

func (m *MemoryStore) GetOverride(ctx context.Context, flagID uuid.UUID, tenantID string) (*Override, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, exists := m.overrides[flagID][tenantID]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) DeleteOverride(ctx context.Context, flagID uuid.UUID, tenantID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.overrides[flagID][tenantID]; !exists {
		return false, nil
	}
	delete(m.overrides[flagID], tenantID)
	return true, nil
}

func (m *MemoryStore) ListOverrides(ctx context.Context, flagID uuid.UUID, filter OverrideFilter, page Page) ([]*Override, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Override, 0, len(m.overrides[flagID]))
	for _, o := range m.overrides[flagID] {
		if filter.Enabled != nil && o.Enabled != *filter.Enabled {
			continue
		}
		cp := *o
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].TenantID < result[j].TenantID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return paginate(result, page), nil
}

func (m *MemoryStore) AppendHistory(ctx context.Context, e *HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *e
	m.history = append(m.history, &cp)
	return nil
}

func (m *MemoryStore) ListHistory(ctx context.Context, flagID uuid.UUID, page Page) ([]*HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*HistoryEntry
	// Entries are appended in creation order; walk backwards for
	// newest-first.
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].FlagID != flagID {
			continue
		}
		cp := *m.history[i]
		result = append(result, &cp)
	}
	return paginate(result, page), nil
}

func paginate[T any](items []T, page Page) []T {
	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	offset := max(page.Offset, 0)
	if offset >= len(items) {
		return nil
	}
	end := min(offset+limit, len(items))
	return slices.Clone(items[offset:end])
}
