package flag

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flaggate/pkg/logger"
)

// TenantDirectory resolves tenant display names. Tenant records live in an
// external system; the flag service only stores tenant IDs.
type TenantDirectory interface {
	TenantName(ctx context.Context, tenantID string) (string, error)
}

// OverrideManager creates and removes per-tenant overrides. Overrides for
// different tenants are independent rows, so no cross-tenant coordination
// is needed; each mutation produces a history entry.
type OverrideManager struct {
	store      Store
	recorder   *Recorder
	directory  TenantDirectory
	log        *slog.Logger
	invalidate []InvalidateFunc
}

// OverrideManagerOption configures the OverrideManager.
type OverrideManagerOption func(*OverrideManager)

// WithTenantDirectory sets the directory used to resolve tenant names in
// listings. Without one, listings carry IDs only.
func WithTenantDirectory(d TenantDirectory) OverrideManagerOption {
	return func(m *OverrideManager) {
		if d != nil {
			m.directory = d
		}
	}
}

// WithOverrideLogger sets the diagnostic logger.
func WithOverrideLogger(log *slog.Logger) OverrideManagerOption {
	return func(m *OverrideManager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithOverrideInvalidate registers a cache invalidation hook invoked after
// every successful override mutation with the affected flag key.
func WithOverrideInvalidate(fn InvalidateFunc) OverrideManagerOption {
	return func(m *OverrideManager) {
		if fn != nil {
			m.invalidate = append(m.invalidate, fn)
		}
	}
}

// NewOverrideManager creates the override manager.
func NewOverrideManager(store Store, recorder *Recorder, opts ...OverrideManagerOption) *OverrideManager {
	if store == nil {
		panic("flag: store cannot be nil")
	}
	if recorder == nil {
		panic("flag: recorder cannot be nil")
	}

	m := &OverrideManager{
		store:    store,
		recorder: recorder,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Set upserts the override for (flagID, tenantID) and records an
// override_added history entry. Archived flags reject new overrides.
func (m *OverrideManager) Set(ctx context.Context, flagID uuid.UUID, tenantID string, enabled bool, actor string) (*Override, error) {
	if tenantID == "" {
		return nil, errors.Join(ErrValidation, errors.New("tenant id is required"))
	}

	f, err := m.store.GetFlag(ctx, flagID)
	if err != nil {
		return nil, err
	}
	if f.Status == StatusArchived {
		return nil, newInvalidTransition(f.Status, "override")
	}

	var before map[string]any
	if existing, err := m.store.GetOverride(ctx, flagID, tenantID); err == nil {
		before = overrideState(existing)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	o := &Override{
		FlagID:    flagID,
		TenantID:  tenantID,
		Enabled:   enabled,
		CreatedAt: time.Now().UTC(),
		CreatedBy: actor,
	}
	if err := m.store.UpsertOverride(ctx, o); err != nil {
		return nil, err
	}

	m.record(ctx, flagID, ChangeOverrideAdded, actor, before, overrideState(o))
	m.notifyInvalidate(ctx, f.Key)
	return o, nil
}

// Remove deletes the override if present and records an override_removed
// history entry. Removing a missing override is a no-op without history.
func (m *OverrideManager) Remove(ctx context.Context, flagID uuid.UUID, tenantID string, actor string) error {
	f, err := m.store.GetFlag(ctx, flagID)
	if err != nil {
		return err
	}

	existing, err := m.store.GetOverride(ctx, flagID, tenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	deleted, err := m.store.DeleteOverride(ctx, flagID, tenantID)
	if err != nil {
		return err
	}
	if !deleted {
		return nil
	}

	m.record(ctx, flagID, ChangeOverrideRemoved, actor, overrideState(existing), nil)
	m.notifyInvalidate(ctx, f.Key)
	return nil
}

// OverrideItem is an override enriched with the tenant's display name when
// a directory is configured.
type OverrideItem struct {
	Override
	TenantName string `json:"tenant_name,omitempty"`
}

// List returns a flag's overrides, newest first, with tenant names resolved
// best-effort: a directory failure degrades to an empty name rather than
// failing the listing.
func (m *OverrideManager) List(ctx context.Context, flagID uuid.UUID, filter OverrideFilter, page Page) ([]OverrideItem, error) {
	if _, err := m.store.GetFlag(ctx, flagID); err != nil {
		return nil, err
	}

	overrides, err := m.store.ListOverrides(ctx, flagID, filter, page)
	if err != nil {
		return nil, err
	}

	items := make([]OverrideItem, 0, len(overrides))
	for _, o := range overrides {
		item := OverrideItem{Override: *o}
		if m.directory != nil {
			name, err := m.directory.TenantName(ctx, o.TenantID)
			if err != nil {
				m.log.WarnContext(ctx, "tenant name resolution failed",
					logger.TenantID(o.TenantID),
					logger.Error(err))
			} else {
				item.TenantName = name
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (m *OverrideManager) record(ctx context.Context, flagID uuid.UUID, change ChangeType, actor string, before, after map[string]any) {
	if _, err := m.recorder.Record(ctx, flagID, change, actor, before, after); err != nil {
		m.log.ErrorContext(ctx, "failed to record override history",
			slog.String("flag_id", flagID.String()),
			slog.String("change_type", string(change)),
			logger.Error(err))
	}
}

func (m *OverrideManager) notifyInvalidate(ctx context.Context, flagKey string) {
	for _, fn := range m.invalidate {
		fn(ctx, flagKey)
	}
}
