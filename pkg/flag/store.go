package flag

import (
	"context"

	"github.com/google/uuid"
)

// Page bounds list queries. A zero Limit falls back to the store default.
type Page struct {
	Limit  int
	Offset int
}

// OverrideFilter narrows override listings.
type OverrideFilter struct {
	// Enabled filters by override value when non-nil.
	Enabled *bool
}

// Store persists flag definitions, overrides, and history behind a narrow
// CRUD+CAS interface. Implementations must enforce key uniqueness, the
// one-row-per-(flag,tenant) override invariant, and append-only history.
type Store interface {
	// CreateFlag inserts a new flag. Returns ErrDuplicateKey when the key
	// is already taken.
	CreateFlag(ctx context.Context, f *Flag) error

	// GetFlag returns a flag by ID, or ErrNotFound.
	GetFlag(ctx context.Context, id uuid.UUID) (*Flag, error)

	// GetFlagByKey returns a flag by its key, or ErrNotFound.
	GetFlagByKey(ctx context.Context, key string) (*Flag, error)

	// ListFlags returns all flags ordered by key.
	ListFlags(ctx context.Context) ([]*Flag, error)

	// UpdateFlag persists f using compare-and-swap on f.Version: the write
	// succeeds only against a row still at that version, and increments it.
	// Returns ErrConflict when the row moved on, ErrNotFound when it is
	// gone. On success f carries the new version.
	UpdateFlag(ctx context.Context, f *Flag) error

	// UpsertOverride creates or replaces the override row for
	// (o.FlagID, o.TenantID).
	UpsertOverride(ctx context.Context, o *Override) error

	// GetOverride returns the override for the pair, or ErrNotFound.
	GetOverride(ctx context.Context, flagID uuid.UUID, tenantID string) (*Override, error)

	// DeleteOverride removes the override if present. It reports whether a
	// row was deleted; deleting a missing override is not an error.
	DeleteOverride(ctx context.Context, flagID uuid.UUID, tenantID string) (bool, error)

	// ListOverrides returns the overrides for a flag, newest first.
	ListOverrides(ctx context.Context, flagID uuid.UUID, filter OverrideFilter, page Page) ([]*Override, error)

	// AppendHistory appends an immutable history entry.
	AppendHistory(ctx context.Context, e *HistoryEntry) error

	// ListHistory returns history entries for a flag, newest first.
	ListHistory(ctx context.Context, flagID uuid.UUID, page Page) ([]*HistoryEntry, error)
}
