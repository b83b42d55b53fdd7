package pgstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flaggate/pkg/flag"
	"github.com/dmitrymomot/flaggate/pkg/flag/pgstore"
)

// newTestStore connects to the database named by TEST_DATABASE_URL and
// applies migrations. Tests are skipped when the variable is unset so the
// suite stays runnable without infrastructure.
func newTestStore(t *testing.T) *pgstore.Store {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pgstore.Migrate(ctx, pool))
	return pgstore.New(pool)
}

func newTestFlag(key string) *flag.Flag {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &flag.Flag{
		ID:        uuid.New(),
		Key:       key,
		Name:      "Test flag",
		Status:    flag.StatusActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStoreFlagRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	f := newTestFlag("pgstore-roundtrip-" + uuid.NewString()[:8])
	require.NoError(t, store.CreateFlag(ctx, f))

	t.Run("DuplicateKey", func(t *testing.T) {
		dup := newTestFlag(f.Key)
		assert.ErrorIs(t, store.CreateFlag(ctx, dup), flag.ErrDuplicateKey)
	})

	t.Run("GetByKey", func(t *testing.T) {
		got, err := store.GetFlagByKey(ctx, f.Key)
		require.NoError(t, err)
		assert.Equal(t, f.ID, got.ID)
		assert.Equal(t, flag.StatusActive, got.Status)
	})

	t.Run("VersionConflict", func(t *testing.T) {
		fresh, err := store.GetFlag(ctx, f.ID)
		require.NoError(t, err)

		winner := *fresh
		winner.RolloutPercentage = 40
		require.NoError(t, store.UpdateFlag(ctx, &winner))
		assert.Equal(t, fresh.Version+1, winner.Version)

		loser := *fresh
		loser.RolloutPercentage = 60
		assert.ErrorIs(t, store.UpdateFlag(ctx, &loser), flag.ErrConflict)

		persisted, err := store.GetFlag(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, 40, persisted.RolloutPercentage)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		ghost := newTestFlag("pgstore-ghost-" + uuid.NewString()[:8])
		assert.ErrorIs(t, store.UpdateFlag(ctx, ghost), flag.ErrNotFound)
	})
}

func TestStoreOverrides(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	f := newTestFlag("pgstore-overrides-" + uuid.NewString()[:8])
	require.NoError(t, store.CreateFlag(ctx, f))

	o := &flag.Override{
		FlagID:    f.ID,
		TenantID:  "tenant-1",
		Enabled:   true,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		CreatedBy: "admin@example.com",
	}
	require.NoError(t, store.UpsertOverride(ctx, o))

	t.Run("UpsertReplaces", func(t *testing.T) {
		o2 := *o
		o2.Enabled = false
		require.NoError(t, store.UpsertOverride(ctx, &o2))

		got, err := store.GetOverride(ctx, f.ID, "tenant-1")
		require.NoError(t, err)
		assert.False(t, got.Enabled)

		items, err := store.ListOverrides(ctx, f.ID, flag.OverrideFilter{}, flag.Page{})
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("Delete", func(t *testing.T) {
		deleted, err := store.DeleteOverride(ctx, f.ID, "tenant-1")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = store.DeleteOverride(ctx, f.ID, "tenant-1")
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}

func TestStoreHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	f := newTestFlag("pgstore-history-" + uuid.NewString()[:8])
	require.NoError(t, store.CreateFlag(ctx, f))

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, change := range []flag.ChangeType{flag.ChangeCreated, flag.ChangeToggled, flag.ChangeKilled} {
		entry := &flag.HistoryEntry{
			ID:         uuid.New(),
			FlagID:     f.ID,
			ChangeType: change,
			Actor:      "admin@example.com",
			After:      map[string]any{"status": "whatever"},
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.AppendHistory(ctx, entry))
	}

	entries, err := store.ListHistory(ctx, f.ID, flag.Page{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Newest first.
	assert.Equal(t, flag.ChangeKilled, entries[0].ChangeType)
	assert.Equal(t, flag.ChangeCreated, entries[2].ChangeType)
	assert.Nil(t, entries[0].Before)
	assert.Equal(t, "whatever", entries[0].After["status"])
}
