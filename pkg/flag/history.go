package flag

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Recorder appends immutable audit entries for flag state changes. Every
// mutating operation in this package goes through it, so each transition is
// traceable to an actor and timestamp.
type Recorder struct {
	store Store
}

// NewRecorder creates a history recorder backed by the given store.
func NewRecorder(store Store) *Recorder {
	if store == nil {
		panic("flag: store cannot be nil")
	}
	return &Recorder{store: store}
}

// Record appends a history entry and returns its ID. Before and After are
// state snapshots; Before is nil for creations.
func (r *Recorder) Record(ctx context.Context, flagID uuid.UUID, change ChangeType, actor string, before, after map[string]any) (uuid.UUID, error) {
	entry := &HistoryEntry{
		ID:         uuid.New(),
		FlagID:     flagID,
		ChangeType: change,
		Actor:      actor,
		Before:     before,
		After:      after,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.store.AppendHistory(ctx, entry); err != nil {
		return uuid.Nil, err
	}
	return entry.ID, nil
}

// List returns history entries for a flag, newest first.
func (r *Recorder) List(ctx context.Context, flagID uuid.UUID, page Page) ([]*HistoryEntry, error) {
	return r.store.ListHistory(ctx, flagID, page)
}

// flagState snapshots the audited fields of a flag for a history entry.
func flagState(f *Flag) map[string]any {
	return map[string]any{
		"key":                f.Key,
		"name":               f.Name,
		"description":        f.Description,
		"enabled":            f.Enabled,
		"rollout_percentage": f.RolloutPercentage,
		"status":             string(f.Status),
	}
}

// overrideState snapshots an override for a history entry.
func overrideState(o *Override) map[string]any {
	return map[string]any{
		"tenant_id": o.TenantID,
		"enabled":   o.Enabled,
	}
}
