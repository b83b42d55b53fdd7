package flag

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a feature flag. It is a closed set:
// every switch over Status in this package covers all four values so a new
// status is a compile-visible change, not a silently ignored string.
type Status string

const (
	// StatusActive means the flag is governed by its global switch and is
	// either fully off (rollout 0) or fully on (rollout 100).
	StatusActive Status = "active"
	// StatusRollout means the flag is partially exposed (0 < rollout < 100).
	StatusRollout Status = "rollout"
	// StatusKilled means the emergency kill switch is engaged: the flag
	// evaluates false for everyone, overrides included.
	StatusKilled Status = "killed"
	// StatusArchived is terminal. Archived flags never evaluate true and
	// reject every further mutation.
	StatusArchived Status = "archived"
)

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusRollout, StatusKilled, StatusArchived:
		return true
	}
	return false
}

// Flag is a feature flag definition. Key is the immutable public identifier
// used on the evaluation path; ID is the storage identity used on the admin
// path. Version backs optimistic concurrency: every successful update
// increments it, and updates carrying a stale version fail with ErrConflict.
type Flag struct {
	ID                uuid.UUID `json:"id"`
	Key               string    `json:"key"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	Enabled           bool      `json:"enabled"`
	RolloutPercentage int       `json:"rollout_percentage"`
	Status            Status    `json:"status"`
	Version           int64     `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Override is an explicit per-tenant decision that bypasses the rollout
// computation. At most one exists per (FlagID, TenantID).
type Override struct {
	FlagID    uuid.UUID `json:"flag_id"`
	TenantID  string    `json:"tenant_id"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
}

// ChangeType classifies a history entry.
type ChangeType string

const (
	ChangeCreated         ChangeType = "created"
	ChangeUpdated         ChangeType = "updated"
	ChangeToggled         ChangeType = "toggled"
	ChangeRolloutChanged  ChangeType = "rollout_changed"
	ChangeOverrideAdded   ChangeType = "override_added"
	ChangeOverrideRemoved ChangeType = "override_removed"
	ChangeKilled          ChangeType = "killed"
	ChangeRevived         ChangeType = "revived"
	ChangeArchived        ChangeType = "archived"
)

// HistoryEntry is an immutable audit record of a single state change.
// Before and After hold JSON snapshots of the affected flag or override;
// Before is empty for creations.
type HistoryEntry struct {
	ID         uuid.UUID      `json:"id"`
	FlagID     uuid.UUID      `json:"flag_id"`
	ChangeType ChangeType     `json:"change_type"`
	Actor      string         `json:"actor"`
	Before     map[string]any `json:"before,omitempty"`
	After      map[string]any `json:"after,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
