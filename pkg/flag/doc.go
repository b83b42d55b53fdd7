// Package flag implements per-tenant feature flag evaluation and rollout
// management for multi-tenant applications.
//
// A flag combines a global switch, a percentage rollout, explicit per-tenant
// overrides, and an emergency kill switch. Evaluation is deterministic and
// stable: rollout membership comes from a pure hash bucket (see pkg/bucket),
// so a tenant's result only changes when an administrator changes the flag.
//
// # Architecture
//
// The package is built around four components:
//
//  1. Engine - resolves decisions on the request hot path, reading through a
//     short-TTL snapshot Cache and failing closed on store errors
//  2. Service - the privileged mutation surface with optimistic concurrency
//     (version CAS) and a closed status lifecycle
//  3. OverrideManager - per-tenant override upserts and removals
//  4. Recorder - append-only history for every state change
//
// State lives behind the Store interface. MemoryStore serves tests and
// single-process deployments; pgstore provides the PostgreSQL implementation.
//
// # Evaluation precedence
//
// Highest first: missing flag (fail closed), archived, killed (beats
// overrides by design), explicit override, global switch off, full rollout,
// zero rollout, hash bucket versus the rollout percentage.
//
// Raising a rollout percentage only ever adds tenants. A tenant's bucket
// never changes, so the included set at P1 is a subset of the included set
// at any P2 > P1.
//
// # Usage
//
//	store := flag.NewMemoryStore()
//	cache := flag.NewCache(5 * time.Second)
//	defer cache.Close()
//
//	engine := flag.NewEngine(store, cache)
//	recorder := flag.NewRecorder(store)
//	svc := flag.NewService(store, recorder,
//		flag.WithInvalidate(func(ctx context.Context, key string) {
//			cache.Invalidate(key)
//		}),
//	)
//
//	f, err := svc.Create(ctx, flag.CreateParams{Key: "new-billing", Name: "New billing"}, "admin@example.com")
//	if err != nil {
//		// Handle error
//	}
//
//	d := engine.Evaluate(ctx, "new-billing", "tenant-42")
//	if d.Enabled {
//		// Expose the feature
//	}
//
// # Error Handling
//
// Admin-path failures surface as sentinel errors (ErrNotFound, ErrConflict,
// ErrValidation, ErrDuplicateKey) or the typed InvalidTransitionError, all
// matchable with errors.Is and errors.As. The evaluation path never returns
// an error: a store failure resolves to a disabled decision with
// ReasonStoreError and a logged diagnostic, because a flag-system outage
// must never become an application outage.
package flag
