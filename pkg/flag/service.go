package flag

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flaggate/pkg/logger"
)

// InvalidateFunc receives flag keys whose cached evaluation state became
// stale after a mutation.
type InvalidateFunc func(ctx context.Context, flagKey string)

// Service is the privileged mutation surface for flags. All mutations are
// optimistic: the read-modify-write cycle carries the row version, and a
// lost race surfaces as ErrConflict so the caller retries on fresh state
// instead of clobbering a concurrent edit.
type Service struct {
	store      Store
	recorder   *Recorder
	log        *slog.Logger
	invalidate []InvalidateFunc
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the diagnostic logger.
func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithInvalidate registers a cache invalidation hook invoked after every
// successful mutation with the affected flag key.
func WithInvalidate(fn InvalidateFunc) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.invalidate = append(s.invalidate, fn)
		}
	}
}

// NewService creates the admin flag service.
func NewService(store Store, recorder *Recorder, opts ...ServiceOption) *Service {
	if store == nil {
		panic("flag: store cannot be nil")
	}
	if recorder == nil {
		panic("flag: recorder cannot be nil")
	}

	s := &Service{
		store:    store,
		recorder: recorder,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams carries the fields for a new flag.
type CreateParams struct {
	Key               string
	Name              string
	Description       string
	Enabled           bool
	RolloutPercentage int
}

// Create inserts a new flag and records a created history entry.
func (s *Service) Create(ctx context.Context, p CreateParams, actor string) (*Flag, error) {
	if err := ValidateKey(p.Key); err != nil {
		return nil, err
	}
	if err := ValidateRollout(p.RolloutPercentage); err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, errors.Join(ErrValidation, errors.New("name is required"))
	}

	now := time.Now().UTC()
	f := &Flag{
		ID:                uuid.New(),
		Key:               p.Key,
		Name:              p.Name,
		Description:       p.Description,
		Enabled:           p.Enabled,
		RolloutPercentage: p.RolloutPercentage,
		Status:            statusForRollout(p.RolloutPercentage),
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.CreateFlag(ctx, f); err != nil {
		return nil, err
	}

	s.record(ctx, f.ID, ChangeCreated, actor, nil, flagState(f))
	s.notifyInvalidate(ctx, f.Key)
	return f, nil
}

// UpdateParams carries a partial update. Nil fields are left untouched;
// each changed field produces its own history entry.
type UpdateParams struct {
	Name              *string
	Description       *string
	Enabled           *bool
	RolloutPercentage *int
}

// Update applies a partial update to a flag. The flag key is immutable and
// cannot be changed. Archived flags reject every update.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p UpdateParams, actor string) (*Flag, error) {
	f, err := s.store.GetFlag(ctx, id)
	if err != nil {
		return nil, err
	}
	if !mutable(f.Status) {
		return nil, newInvalidTransition(f.Status, "update")
	}
	if p.RolloutPercentage != nil {
		if err := ValidateRollout(*p.RolloutPercentage); err != nil {
			return nil, err
		}
		// Revive always returns the flag at rollout 0, so a percentage set
		// while killed could never take effect. Reject it instead of
		// recording a change that never applies.
		if f.Status == StatusKilled {
			return nil, newInvalidTransition(f.Status, "update_rollout")
		}
	}

	before := flagState(f)
	var changes []ChangeType

	if p.Name != nil && *p.Name != f.Name {
		if *p.Name == "" {
			return nil, errors.Join(ErrValidation, errors.New("name cannot be empty"))
		}
		f.Name = *p.Name
		changes = append(changes, ChangeUpdated)
	}
	if p.Description != nil && *p.Description != f.Description {
		f.Description = *p.Description
		if len(changes) == 0 || changes[len(changes)-1] != ChangeUpdated {
			changes = append(changes, ChangeUpdated)
		}
	}
	if p.Enabled != nil && *p.Enabled != f.Enabled {
		f.Enabled = *p.Enabled
		changes = append(changes, ChangeToggled)
	}
	if p.RolloutPercentage != nil && *p.RolloutPercentage != f.RolloutPercentage {
		f.RolloutPercentage = *p.RolloutPercentage
		f.Status = statusForRollout(f.RolloutPercentage)
		changes = append(changes, ChangeRolloutChanged)
	}

	if len(changes) == 0 {
		return f, nil
	}

	f.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateFlag(ctx, f); err != nil {
		return nil, err
	}

	after := flagState(f)
	for _, change := range changes {
		s.record(ctx, f.ID, change, actor, before, after)
	}
	s.notifyInvalidate(ctx, f.Key)
	return f, nil
}

// Kill engages the emergency kill switch: the flag evaluates false for
// every tenant, overrides included, until revived.
func (s *Service) Kill(ctx context.Context, id uuid.UUID, reason, actor string) (*Flag, error) {
	f, err := s.store.GetFlag(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canKill(f.Status); err != nil {
		return nil, err
	}

	before := flagState(f)
	f.Status = StatusKilled
	f.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateFlag(ctx, f); err != nil {
		return nil, err
	}

	after := flagState(f)
	if reason != "" {
		after["kill_reason"] = reason
	}
	s.record(ctx, f.ID, ChangeKilled, actor, before, after)
	s.notifyInvalidate(ctx, f.Key)
	return f, nil
}

// Revive returns a killed flag to active with rollout reset to 0, forcing a
// deliberate re-exposure rather than resuming the pre-incident percentage.
func (s *Service) Revive(ctx context.Context, id uuid.UUID, actor string) (*Flag, error) {
	f, err := s.store.GetFlag(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canRevive(f.Status); err != nil {
		return nil, err
	}

	before := flagState(f)
	f.Status = StatusActive
	f.RolloutPercentage = 0
	f.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateFlag(ctx, f); err != nil {
		return nil, err
	}

	s.record(ctx, f.ID, ChangeRevived, actor, before, flagState(f))
	s.notifyInvalidate(ctx, f.Key)
	return f, nil
}

// Archive retires a flag permanently. Archived flags never evaluate true
// and reject all further mutation.
func (s *Service) Archive(ctx context.Context, id uuid.UUID, actor string) (*Flag, error) {
	f, err := s.store.GetFlag(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canArchive(f.Status); err != nil {
		return nil, err
	}

	before := flagState(f)
	f.Status = StatusArchived
	f.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateFlag(ctx, f); err != nil {
		return nil, err
	}

	s.record(ctx, f.ID, ChangeArchived, actor, before, flagState(f))
	s.notifyInvalidate(ctx, f.Key)
	return f, nil
}

// Get returns a flag by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Flag, error) {
	return s.store.GetFlag(ctx, id)
}

// List returns all flags ordered by key.
func (s *Service) List(ctx context.Context) ([]*Flag, error) {
	return s.store.ListFlags(ctx)
}

// History returns a flag's audit trail, newest first. It verifies the flag
// exists so a miss is distinguishable from an empty trail.
func (s *Service) History(ctx context.Context, id uuid.UUID, page Page) ([]*HistoryEntry, error) {
	if _, err := s.store.GetFlag(ctx, id); err != nil {
		return nil, err
	}
	return s.recorder.List(ctx, id, page)
}

// record appends a history entry, logging rather than failing the mutation
// when the append itself fails: the state change is already committed.
func (s *Service) record(ctx context.Context, flagID uuid.UUID, change ChangeType, actor string, before, after map[string]any) {
	if _, err := s.recorder.Record(ctx, flagID, change, actor, before, after); err != nil {
		s.log.ErrorContext(ctx, "failed to record flag history",
			slog.String("flag_id", flagID.String()),
			slog.String("change_type", string(change)),
			logger.Error(err))
	}
}

func (s *Service) notifyInvalidate(ctx context.Context, flagKey string) {
	for _, fn := range s.invalidate {
		fn(ctx, flagKey)
	}
}
