package flag

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/flaggate/pkg/bucket"
	"github.com/dmitrymomot/flaggate/pkg/logger"
)

// Reason explains an evaluation decision. It is returned alongside the
// boolean so callers and diagnostics can tell a kill switch from an
// exhausted rollout.
type Reason string

const (
	ReasonNotFound    Reason = "not_found"
	ReasonArchived    Reason = "archived"
	ReasonKilled      Reason = "killed"
	ReasonOverride    Reason = "override"
	ReasonDisabled    Reason = "disabled"
	ReasonFullRollout Reason = "full_rollout"
	ReasonNoRollout   Reason = "no_rollout"
	ReasonRollout     Reason = "rollout"
	ReasonStoreError  Reason = "store_error"
)

// Decision is the outcome of evaluating one flag for one tenant.
type Decision struct {
	Enabled bool   `json:"enabled"`
	Reason  Reason `json:"reason"`
}

// Engine resolves flag decisions from store state. It sits on the hot path
// of every tenant request, so it reads through a short-TTL snapshot cache
// and never returns an error: store failures degrade to a fail-closed
// decision with ReasonStoreError.
type Engine struct {
	store       Store
	cache       *Cache
	log         *slog.Logger
	readTimeout time.Duration
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the diagnostic logger.
func WithEngineLogger(log *slog.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithReadTimeout bounds each store read on the evaluation path. On timeout
// the evaluation resolves fail-closed instead of blocking the caller.
func WithReadTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.readTimeout = d
		}
	}
}

// NewEngine creates an evaluation engine backed by the given store and
// snapshot cache.
func NewEngine(store Store, cache *Cache, opts ...EngineOption) *Engine {
	if store == nil {
		panic("flag: store cannot be nil")
	}
	if cache == nil {
		panic("flag: cache cannot be nil")
	}

	e := &Engine{
		store:       store,
		cache:       cache,
		log:         slog.Default(),
		readTimeout: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate resolves the decision for one flag and tenant. Precedence,
// highest first: missing flag, archived, killed, explicit override, global
// switch off, full rollout, zero rollout, percentage bucket.
func (e *Engine) Evaluate(ctx context.Context, flagKey, tenantID string) Decision {
	snap, err := e.snapshotFor(ctx, flagKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Decision{Enabled: false, Reason: ReasonNotFound}
		}
		e.log.WarnContext(ctx, "flag evaluation failed closed",
			logger.FlagKey(flagKey),
			logger.TenantID(tenantID),
			logger.Error(err))
		return Decision{Enabled: false, Reason: ReasonStoreError}
	}
	return decide(snap, tenantID)
}

// EvaluateAll resolves decisions for every non-archived flag. Flags whose
// state cannot be read resolve to false, consistent with Evaluate.
func (e *Engine) EvaluateAll(ctx context.Context, tenantID string) map[string]bool {
	keys, err := e.flagKeys(ctx)
	if err != nil {
		e.log.WarnContext(ctx, "bulk flag evaluation failed closed",
			logger.TenantID(tenantID),
			logger.Error(err))
		return map[string]bool{}
	}

	result := make(map[string]bool, len(keys))
	for _, key := range keys {
		d := e.Evaluate(ctx, key, tenantID)
		if d.Reason == ReasonNotFound || d.Reason == ReasonArchived {
			// Archived between the list read and now; excluded from the
			// response rather than reported as false.
			continue
		}
		result[key] = d.Enabled
	}
	return result
}

// decide applies the precedence chain to a snapshot. The status switch is
// exhaustive over the closed Status set.
func decide(snap *snapshot, tenantID string) Decision {
	f := snap.flag

	switch f.Status {
	case StatusArchived:
		return Decision{Enabled: false, Reason: ReasonArchived}
	case StatusKilled:
		// Kill beats everything, overrides included. Incident response
		// must not have an escape hatch.
		return Decision{Enabled: false, Reason: ReasonKilled}
	case StatusActive, StatusRollout:
	}

	if enabled, ok := snap.overrides[tenantID]; ok {
		return Decision{Enabled: enabled, Reason: ReasonOverride}
	}
	if !f.Enabled {
		return Decision{Enabled: false, Reason: ReasonDisabled}
	}
	switch {
	case f.RolloutPercentage >= 100:
		return Decision{Enabled: true, Reason: ReasonFullRollout}
	case f.RolloutPercentage <= 0:
		return Decision{Enabled: false, Reason: ReasonNoRollout}
	}
	return Decision{
		Enabled: bucket.InRollout(f.Key, tenantID, f.RolloutPercentage),
		Reason:  ReasonRollout,
	}
}

// overridePageSize is the page size used when loading a flag's overrides
// into a snapshot.
const overridePageSize = 500

func (e *Engine) snapshotFor(ctx context.Context, flagKey string) (*snapshot, error) {
	if snap, ok := e.cache.get(flagKey); ok {
		return snap, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.readTimeout)
	defer cancel()

	f, err := e.store.GetFlagByKey(ctx, flagKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	overrides := make(map[string]bool)
	for offset := 0; ; offset += overridePageSize {
		page, err := e.store.ListOverrides(ctx, f.ID, OverrideFilter{}, Page{Limit: overridePageSize, Offset: offset})
		if err != nil {
			return nil, errors.Join(ErrStoreUnavailable, err)
		}
		for _, o := range page {
			overrides[o.TenantID] = o.Enabled
		}
		if len(page) < overridePageSize {
			break
		}
	}

	snap := &snapshot{flag: f, overrides: overrides}
	e.cache.set(flagKey, snap)
	return snap, nil
}

func (e *Engine) flagKeys(ctx context.Context) ([]string, error) {
	if list, ok := e.cache.getList(); ok {
		return list.keys, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.readTimeout)
	defer cancel()

	flags, err := e.store.ListFlags(ctx)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	keys := make([]string, 0, len(flags))
	for _, f := range flags {
		if f.Status == StatusArchived {
			continue
		}
		keys = append(keys, f.Key)
	}
	e.cache.setList(&listSnapshot{keys: keys})
	return keys, nil
}
