package flag_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flaggate/pkg/flag"
)

// staticDirectory resolves tenant names from a fixed map, standing in for
// the external tenant directory.
type staticDirectory map[string]string

func (d staticDirectory) TenantName(_ context.Context, tenantID string) (string, error) {
	name, ok := d[tenantID]
	if !ok {
		return "", errors.New("unknown tenant")
	}
	return name, nil
}

func newOverrideFixture(t *testing.T, opts ...flag.OverrideManagerOption) (*flag.MemoryStore, *flag.OverrideManager, *flag.Flag) {
	t.Helper()

	store := flag.NewMemoryStore()
	recorder := flag.NewRecorder(store)
	opts = append([]flag.OverrideManagerOption{
		flag.WithOverrideLogger(slog.New(slog.DiscardHandler)),
	}, opts...)
	mgr := flag.NewOverrideManager(store, recorder, opts...)
	f := seedFlag(t, store, "override-target", true, 50, flag.StatusRollout)
	return store, mgr, f
}

func TestOverrideSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("CreatesAndRecords", func(t *testing.T) {
		t.Parallel()
		store, mgr, f := newOverrideFixture(t)

		o, err := mgr.Set(ctx, f.ID, "tenant-1", true, "admin@example.com")
		require.NoError(t, err)
		assert.True(t, o.Enabled)
		assert.Equal(t, "admin@example.com", o.CreatedBy)

		entry := latestHistory(t, store, f.ID)
		assert.Equal(t, flag.ChangeOverrideAdded, entry.ChangeType)
		assert.Nil(t, entry.Before)
		assert.Equal(t, "tenant-1", entry.After["tenant_id"])
	})

	t.Run("UpsertKeepsSingleRow", func(t *testing.T) {
		t.Parallel()
		store, mgr, f := newOverrideFixture(t)

		_, err := mgr.Set(ctx, f.ID, "tenant-1", true, "admin")
		require.NoError(t, err)
		_, err = mgr.Set(ctx, f.ID, "tenant-1", false, "admin")
		require.NoError(t, err)

		overrides, err := store.ListOverrides(ctx, f.ID, flag.OverrideFilter{}, flag.Page{})
		require.NoError(t, err)
		require.Len(t, overrides, 1)
		assert.False(t, overrides[0].Enabled)

		// The replacing upsert records the prior state as Before.
		entry := latestHistory(t, store, f.ID)
		assert.Equal(t, flag.ChangeOverrideAdded, entry.ChangeType)
		assert.Equal(t, true, entry.Before["enabled"])
		assert.Equal(t, false, entry.After["enabled"])
	})

	t.Run("ArchivedFlagRejects", func(t *testing.T) {
		t.Parallel()
		store, mgr, _ := newOverrideFixture(t)
		archived := seedFlag(t, store, "archived-target", false, 0, flag.StatusArchived)

		_, err := mgr.Set(ctx, archived.ID, "tenant-1", true, "admin")
		assert.ErrorIs(t, err, flag.ErrInvalidTransition)
	})

	t.Run("MissingFlag", func(t *testing.T) {
		t.Parallel()
		_, mgr, _ := newOverrideFixture(t)
		_, err := mgr.Set(ctx, uuid.New(), "tenant-1", true, "admin")
		assert.ErrorIs(t, err, flag.ErrNotFound)
	})

	t.Run("EmptyTenant", func(t *testing.T) {
		t.Parallel()
		_, mgr, f := newOverrideFixture(t)
		_, err := mgr.Set(ctx, f.ID, "", true, "admin")
		assert.ErrorIs(t, err, flag.ErrValidation)
	})
}

func TestOverrideRemove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("RemovesAndRecords", func(t *testing.T) {
		t.Parallel()
		store, mgr, f := newOverrideFixture(t)

		_, err := mgr.Set(ctx, f.ID, "tenant-1", true, "admin")
		require.NoError(t, err)
		require.NoError(t, mgr.Remove(ctx, f.ID, "tenant-1", "admin"))

		_, err = store.GetOverride(ctx, f.ID, "tenant-1")
		assert.ErrorIs(t, err, flag.ErrNotFound)

		entry := latestHistory(t, store, f.ID)
		assert.Equal(t, flag.ChangeOverrideRemoved, entry.ChangeType)
		assert.Equal(t, "tenant-1", entry.Before["tenant_id"])
		assert.Nil(t, entry.After)
	})

	t.Run("MissingOverrideIsNoOp", func(t *testing.T) {
		t.Parallel()
		store, mgr, f := newOverrideFixture(t)

		require.NoError(t, mgr.Remove(ctx, f.ID, "tenant-unknown", "admin"))

		entries, err := store.ListHistory(ctx, f.ID, flag.Page{})
		require.NoError(t, err)
		assert.Empty(t, entries, "no-op removal must not produce history")
	})
}

func TestOverrideList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("ResolvesTenantNames", func(t *testing.T) {
		t.Parallel()
		_, mgr, f := newOverrideFixture(t, flag.WithTenantDirectory(staticDirectory{
			"tenant-1": "Acme Corp",
		}))

		_, err := mgr.Set(ctx, f.ID, "tenant-1", true, "admin")
		require.NoError(t, err)
		_, err = mgr.Set(ctx, f.ID, "tenant-2", false, "admin")
		require.NoError(t, err)

		items, err := mgr.List(ctx, f.ID, flag.OverrideFilter{}, flag.Page{})
		require.NoError(t, err)
		require.Len(t, items, 2)

		byTenant := make(map[string]flag.OverrideItem, len(items))
		for _, item := range items {
			byTenant[item.TenantID] = item
		}
		assert.Equal(t, "Acme Corp", byTenant["tenant-1"].TenantName)
		// Unresolvable names degrade to empty, the listing still succeeds.
		assert.Empty(t, byTenant["tenant-2"].TenantName)
	})

	t.Run("FilterByValue", func(t *testing.T) {
		t.Parallel()
		_, mgr, f := newOverrideFixture(t)

		for i := range 6 {
			_, err := mgr.Set(ctx, f.ID, fmt.Sprintf("tenant-%d", i), i%2 == 0, "admin")
			require.NoError(t, err)
		}

		enabled := true
		items, err := mgr.List(ctx, f.ID, flag.OverrideFilter{Enabled: &enabled}, flag.Page{})
		require.NoError(t, err)
		assert.Len(t, items, 3)
	})

	t.Run("Pagination", func(t *testing.T) {
		t.Parallel()
		_, mgr, f := newOverrideFixture(t)

		for i := range 5 {
			_, err := mgr.Set(ctx, f.ID, fmt.Sprintf("tenant-%d", i), true, "admin")
			require.NoError(t, err)
		}

		first, err := mgr.List(ctx, f.ID, flag.OverrideFilter{}, flag.Page{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, first, 2)

		rest, err := mgr.List(ctx, f.ID, flag.OverrideFilter{}, flag.Page{Limit: 10, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, rest, 3)
	})

	t.Run("NegativeOffsetTreatedAsZero", func(t *testing.T) {
		t.Parallel()
		_, mgr, f := newOverrideFixture(t)

		for i := range 3 {
			_, err := mgr.Set(ctx, f.ID, fmt.Sprintf("tenant-%d", i), true, "admin")
			require.NoError(t, err)
		}

		items, err := mgr.List(ctx, f.ID, flag.OverrideFilter{}, flag.Page{Limit: 10, Offset: -5})
		require.NoError(t, err)
		assert.Len(t, items, 3)
	})
}
