package flag_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flaggate/pkg/flag"
)

// failingStore wraps a Store and fails reads on demand, simulating a store
// outage on the evaluation path.
type failingStore struct {
	flag.Store
	fail bool
}

var errStoreDown = errors.New("connection refused")

func (s *failingStore) GetFlagByKey(ctx context.Context, key string) (*flag.Flag, error) {
	if s.fail {
		return nil, errStoreDown
	}
	return s.Store.GetFlagByKey(ctx, key)
}

func (s *failingStore) ListFlags(ctx context.Context) ([]*flag.Flag, error) {
	if s.fail {
		return nil, errStoreDown
	}
	return s.Store.ListFlags(ctx)
}

func newEngineFixture(t *testing.T, ttl time.Duration) (*flag.MemoryStore, *flag.Cache, *flag.Engine) {
	t.Helper()

	store := flag.NewMemoryStore()
	cache := flag.NewCache(ttl)
	t.Cleanup(func() { _ = cache.Close() })

	engine := flag.NewEngine(store, cache,
		flag.WithEngineLogger(slog.New(slog.DiscardHandler)))
	return store, cache, engine
}

func seedFlag(t *testing.T, store flag.Store, key string, enabled bool, pct int, status flag.Status) *flag.Flag {
	t.Helper()

	now := time.Now().UTC()
	f := &flag.Flag{
		ID:                uuid.New(),
		Key:               key,
		Name:              key,
		Enabled:           enabled,
		RolloutPercentage: pct,
		Status:            status,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, store.CreateFlag(context.Background(), f))
	return f
}

func seedOverride(t *testing.T, store flag.Store, flagID uuid.UUID, tenantID string, enabled bool) {
	t.Helper()
	require.NoError(t, store.UpsertOverride(context.Background(), &flag.Override{
		FlagID:    flagID,
		TenantID:  tenantID,
		Enabled:   enabled,
		CreatedAt: time.Now().UTC(),
	}))
}

func TestEvaluatePrecedence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		t.Parallel()
		_, _, engine := newEngineFixture(t, time.Minute)
		d := engine.Evaluate(ctx, "missing", "tenant-1")
		assert.False(t, d.Enabled)
		assert.Equal(t, flag.ReasonNotFound, d.Reason)
	})

	t.Run("Archived", func(t *testing.T) {
		t.Parallel()
		store, _, engine := newEngineFixture(t, time.Minute)
		f := seedFlag(t, store, "archived-flag", true, 100, flag.StatusArchived)
		seedOverride(t, store, f.ID, "tenant-1", true)

		d := engine.Evaluate(ctx, "archived-flag", "tenant-1")
		assert.False(t, d.Enabled)
		assert.Equal(t, flag.ReasonArchived, d.Reason)
	})

	t.Run("KilledBeatsOverrideAndFullRollout", func(t *testing.T) {
		t.Parallel()
		store, _, engine := newEngineFixture(t, time.Minute)
		f := seedFlag(t, store, "killed-flag", true, 100, flag.StatusKilled)
		seedOverride(t, store, f.ID, "tenant-1", true)

		d := engine.Evaluate(ctx, "killed-flag", "tenant-1")
		assert.False(t, d.Enabled)
		assert.Equal(t, flag.ReasonKilled, d.Reason)
	})

	t.Run("OverrideBeatsDisabled", func(t *testing.T) {
		t.Parallel()
		store, _, engine := newEngineFixture(t, time.Minute)
		f := seedFlag(t, store, "override-flag", false, 0, flag.StatusActive)
		seedOverride(t, store, f.ID, "tenant-on", true)
		seedOverride(t, store, f.ID, "tenant-off", false)

		d := engine.Evaluate(ctx, "override-flag", "tenant-on")
		assert.True(t, d.Enabled)
		assert.Equal(t, flag.ReasonOverride, d.Reason)

		d = engine.Evaluate(ctx, "override-flag", "tenant-off")
		assert.False(t, d.Enabled)
		assert.Equal(t, flag.ReasonOverride, d.Reason)
	})

	t.Run("Disabled", func(t *testing.T) {
		t.Parallel()
		store, _, engine := newEngineFixture(t, time.Minute)
		seedFlag(t, store, "disabled-flag", false, 50, flag.StatusRollout)

		d := engine.Evaluate(ctx, "disabled-flag", "tenant-1")
		assert.False(t, d.Enabled)
		assert.Equal(t, flag.ReasonDisabled, d.Reason)
	})

	t.Run("FullRollout", func(t *testing.T) {
		t.Parallel()
		store, _, engine := newEngineFixture(t, time.Minute)
		seedFlag(t, store, "full-flag", true, 100, flag.StatusActive)

		d := engine.Evaluate(ctx, "full-flag", "tenant-1")
		assert.True(t, d.Enabled)
		assert.Equal(t, flag.ReasonFullRollout, d.Reason)
	})

	t.Run("NoRollout", func(t *testing.T) {
		t.Parallel()
		store, _, engine := newEngineFixture(t, time.Minute)
		seedFlag(t, store, "zero-flag", true, 0, flag.StatusActive)

		d := engine.Evaluate(ctx, "zero-flag", "tenant-1")
		assert.False(t, d.Enabled)
		assert.Equal(t, flag.ReasonNoRollout, d.Reason)
	})

	t.Run("PartialRollout", func(t *testing.T) {
		t.Parallel()
		store, _, engine := newEngineFixture(t, time.Minute)
		seedFlag(t, store, "partial-flag", true, 50, flag.StatusRollout)

		seenEnabled, seenDisabled := false, false
		for i := range 200 {
			d := engine.Evaluate(ctx, "partial-flag", fmt.Sprintf("tenant-%d", i))
			assert.Equal(t, flag.ReasonRollout, d.Reason)
			seenEnabled = seenEnabled || d.Enabled
			seenDisabled = seenDisabled || !d.Enabled
		}
		assert.True(t, seenEnabled, "no tenant included at 50%")
		assert.True(t, seenDisabled, "no tenant excluded at 50%")
	})
}

func TestEvaluateFailClosed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	memory := flag.NewMemoryStore()
	seedFlag(t, memory, "resilient-flag", true, 100, flag.StatusActive)

	failing := &failingStore{Store: memory}
	cache := flag.NewCache(50 * time.Millisecond)
	t.Cleanup(func() { _ = cache.Close() })
	engine := flag.NewEngine(failing, cache,
		flag.WithEngineLogger(slog.New(slog.DiscardHandler)),
		flag.WithReadTimeout(100*time.Millisecond))

	// Healthy store, snapshot cached.
	d := engine.Evaluate(ctx, "resilient-flag", "tenant-1")
	assert.True(t, d.Enabled)

	failing.fail = true

	// Cached snapshot still serves within TTL.
	d = engine.Evaluate(ctx, "resilient-flag", "tenant-1")
	assert.True(t, d.Enabled)

	// After expiry the failure degrades to a disabled decision, never an
	// error or panic.
	time.Sleep(80 * time.Millisecond)
	d = engine.Evaluate(ctx, "resilient-flag", "tenant-1")
	assert.False(t, d.Enabled)
	assert.Equal(t, flag.ReasonStoreError, d.Reason)

	all := engine.EvaluateAll(ctx, "tenant-1")
	assert.Empty(t, all)
}

func TestEvaluateCacheInvalidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, cache, engine := newEngineFixture(t, time.Hour)
	f := seedFlag(t, store, "cached-flag", true, 0, flag.StatusActive)

	d := engine.Evaluate(ctx, "cached-flag", "tenant-1")
	assert.Equal(t, flag.ReasonNoRollout, d.Reason)

	// Mutate behind the cache: without invalidation the stale snapshot
	// keeps serving (TTL is an hour here), with it the new state shows.
	f.RolloutPercentage = 100
	require.NoError(t, store.UpdateFlag(ctx, f))

	d = engine.Evaluate(ctx, "cached-flag", "tenant-1")
	assert.Equal(t, flag.ReasonNoRollout, d.Reason)

	cache.Invalidate("cached-flag")
	d = engine.Evaluate(ctx, "cached-flag", "tenant-1")
	assert.Equal(t, flag.ReasonFullRollout, d.Reason)
	assert.True(t, d.Enabled)
}

func TestEvaluateAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, _, engine := newEngineFixture(t, time.Minute)
	seedFlag(t, store, "on-flag", true, 100, flag.StatusActive)
	seedFlag(t, store, "off-flag", true, 0, flag.StatusActive)
	seedFlag(t, store, "killed-flag", true, 100, flag.StatusKilled)
	seedFlag(t, store, "archived-flag", true, 100, flag.StatusArchived)

	all := engine.EvaluateAll(ctx, "tenant-1")
	assert.Equal(t, map[string]bool{
		"on-flag":     true,
		"off-flag":    false,
		"killed-flag": false,
	}, all)
}

func TestMonotonicInclusion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, cache, engine := newEngineFixture(t, time.Minute)
	f := seedFlag(t, store, "monotonic-flag", true, 0, flag.StatusActive)

	rng := rand.New(rand.NewSource(1))
	tenants := make([]string, 300)
	for i := range tenants {
		tenants[i] = fmt.Sprintf("tenant-%d", rng.Intn(1_000_000))
	}

	percentages := []int{0, 5, 17, 30, 42, 61, 80, 99, 100}
	included := make(map[string]bool, len(tenants))

	for _, pct := range percentages {
		f.RolloutPercentage = pct
		f.Status = flag.StatusRollout
		require.NoError(t, store.UpdateFlag(ctx, f))
		cache.Invalidate("monotonic-flag")

		for _, tenant := range tenants {
			d := engine.Evaluate(ctx, "monotonic-flag", tenant)
			if included[tenant] {
				require.True(t, d.Enabled,
					"tenant %s dropped out when rollout grew to %d%%", tenant, pct)
			}
			included[tenant] = included[tenant] || d.Enabled
		}
	}

	// At 100% everyone is in.
	count := 0
	for _, in := range included {
		if in {
			count++
		}
	}
	assert.Equal(t, len(included), count)
}

// TestRolloutScenario walks the documented lifecycle: a fresh flag at 0%
// evaluates false everywhere, raising it to 30% deterministically includes
// some tenants, and each tenant's answer is stable across repeated calls.
func TestRolloutScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, cache, engine := newEngineFixture(t, time.Minute)
	f := seedFlag(t, store, "ai_scheduling", true, 0, flag.StatusActive)

	d := engine.Evaluate(ctx, "ai_scheduling", "tenant-a")
	assert.False(t, d.Enabled)
	assert.Equal(t, flag.ReasonNoRollout, d.Reason)

	f.RolloutPercentage = 30
	f.Status = flag.StatusRollout
	require.NoError(t, store.UpdateFlag(ctx, f))
	cache.Invalidate("ai_scheduling")

	var enabledTenants []string
	for i := range 100 {
		tenant := fmt.Sprintf("tenant-%d", i)
		if engine.Evaluate(ctx, "ai_scheduling", tenant).Enabled {
			enabledTenants = append(enabledTenants, tenant)
		}
	}
	assert.NotEmpty(t, enabledTenants, "30%% rollout included nobody out of 100 tenants")
	assert.Less(t, len(enabledTenants), 100)

	// Stability: repeated evaluation returns the identical cohort.
	for range 5 {
		var again []string
		for i := range 100 {
			tenant := fmt.Sprintf("tenant-%d", i)
			if engine.Evaluate(ctx, "ai_scheduling", tenant).Enabled {
				again = append(again, tenant)
			}
		}
		sort.Strings(again)
		sort.Strings(enabledTenants)
		assert.Equal(t, enabledTenants, again)
	}

	// Tenant A specifically stays stable.
	first := engine.Evaluate(ctx, "ai_scheduling", "tenant-a")
	for range 20 {
		assert.Equal(t, first, engine.Evaluate(ctx, "ai_scheduling", "tenant-a"))
	}
}
