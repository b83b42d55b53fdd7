package pgstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/flaggate/pkg/flag"
	"github.com/dmitrymomot/flaggate/pkg/pg"
)

// defaultPageLimit bounds list queries when the caller does not set one.
const defaultPageLimit = 50

// Store is the PostgreSQL implementation of flag.Store. Optimistic
// concurrency rides on the version column: updates match id and version and
// increment, so a stale writer affects zero rows and gets flag.ErrConflict.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store over the given connection pool.
func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("pgstore: pool cannot be nil")
	}
	return &Store{pool: pool}
}

func (s *Store) CreateFlag(ctx context.Context, f *flag.Flag) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO feature_flags (id, key, name, description, enabled, rollout_percentage, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		f.ID, f.Key, f.Name, f.Description, f.Enabled, f.RolloutPercentage, string(f.Status), f.Version, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return flag.ErrDuplicateKey
		}
		return errors.Join(flag.ErrStoreUnavailable, err)
	}
	return nil
}

const flagColumns = `id, key, name, description, enabled, rollout_percentage, status, version, created_at, updated_at`

func scanFlag(row pgx.Row) (*flag.Flag, error) {
	var f flag.Flag
	var status string
	err := row.Scan(&f.ID, &f.Key, &f.Name, &f.Description, &f.Enabled, &f.RolloutPercentage, &status, &f.Version, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, flag.ErrNotFound
		}
		return nil, errors.Join(flag.ErrStoreUnavailable, err)
	}
	f.Status = flag.Status(status)
	return &f, nil
}

func (s *Store) GetFlag(ctx context.Context, id uuid.UUID) (*flag.Flag, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+flagColumns+` FROM feature_flags WHERE id = $1`, id)
	return scanFlag(row)
}

func (s *Store) GetFlagByKey(ctx context.Context, key string) (*flag.Flag, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+flagColumns+` FROM feature_flags WHERE key = $1`, key)
	return scanFlag(row)
}

func (s *Store) ListFlags(ctx context.Context) ([]*flag.Flag, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+flagColumns+` FROM feature_flags ORDER BY key`)
	if err != nil {
		return nil, errors.Join(flag.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var flags []*flag.Flag
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, err
		}
		flags = append(flags, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(flag.ErrStoreUnavailable, err)
	}
	return flags, nil
}

func (s *Store) UpdateFlag(ctx context.Context, f *flag.Flag) error {
	row := s.pool.QueryRow(ctx, `
		UPDATE feature_flags
		SET name = $3, description = $4, enabled = $5, rollout_percentage = $6, status = $7,
		    version = version + 1, updated_at = $8
		WHERE id = $1 AND version = $2
		RETURNING version`,
		f.ID, f.Version, f.Name, f.Description, f.Enabled, f.RolloutPercentage, string(f.Status), f.UpdatedAt,
	)

	var newVersion int64
	if err := row.Scan(&newVersion); err != nil {
		if !pg.IsNotFoundError(err) {
			return errors.Join(flag.ErrStoreUnavailable, err)
		}
		// Zero rows matched: the row either moved past our version or is
		// gone. Distinguish so the caller can retry versus give up.
		var exists bool
		checkErr := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM feature_flags WHERE id = $1)`, f.ID).Scan(&exists)
		if checkErr != nil {
			return errors.Join(flag.ErrStoreUnavailable, checkErr)
		}
		if exists {
			return flag.ErrConflict
		}
		return flag.ErrNotFound
	}
	f.Version = newVersion
	return nil
}

func (s *Store) UpsertOverride(ctx context.Context, o *flag.Override) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO feature_flag_overrides (flag_id, tenant_id, enabled, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (flag_id, tenant_id)
		DO UPDATE SET enabled = EXCLUDED.enabled, created_at = EXCLUDED.created_at, created_by = EXCLUDED.created_by`,
		o.FlagID, o.TenantID, o.Enabled, o.CreatedAt, o.CreatedBy,
	)
	if err != nil {
		return errors.Join(flag.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) GetOverride(ctx context.Context, flagID uuid.UUID, tenantID string) (*flag.Override, error) {
	var o flag.Override
	err := s.pool.QueryRow(ctx, `
		SELECT flag_id, tenant_id, enabled, created_at, created_by
		FROM feature_flag_overrides
		WHERE flag_id = $1 AND tenant_id = $2`,
		flagID, tenantID,
	).Scan(&o.FlagID, &o.TenantID, &o.Enabled, &o.CreatedAt, &o.CreatedBy)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, flag.ErrNotFound
		}
		return nil, errors.Join(flag.ErrStoreUnavailable, err)
	}
	return &o, nil
}

func (s *Store) DeleteOverride(ctx context.Context, flagID uuid.UUID, tenantID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM feature_flag_overrides WHERE flag_id = $1 AND tenant_id = $2`,
		flagID, tenantID,
	)
	if err != nil {
		return false, errors.Join(flag.ErrStoreUnavailable, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListOverrides(ctx context.Context, flagID uuid.UUID, filter flag.OverrideFilter, page flag.Page) ([]*flag.Override, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}

	query := `
		SELECT flag_id, tenant_id, enabled, created_at, created_by
		FROM feature_flag_overrides
		WHERE flag_id = $1`
	args := []any{flagID}
	if filter.Enabled != nil {
		query += ` AND enabled = $2`
		args = append(args, *filter.Enabled)
	}
	query += ` ORDER BY created_at DESC, tenant_id`
	args = append(args, limit, max(page.Offset, 0))
	switch len(args) {
	case 3:
		query += ` LIMIT $2 OFFSET $3`
	case 4:
		query += ` LIMIT $3 OFFSET $4`
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Join(flag.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var overrides []*flag.Override
	for rows.Next() {
		var o flag.Override
		if err := rows.Scan(&o.FlagID, &o.TenantID, &o.Enabled, &o.CreatedAt, &o.CreatedBy); err != nil {
			return nil, errors.Join(flag.ErrStoreUnavailable, err)
		}
		overrides = append(overrides, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(flag.ErrStoreUnavailable, err)
	}
	return overrides, nil
}

func (s *Store) AppendHistory(ctx context.Context, e *flag.HistoryEntry) error {
	before, err := marshalState(e.Before)
	if err != nil {
		return err
	}
	after, err := marshalState(e.After)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO feature_flag_history (id, flag_id, change_type, actor, before_state, after_state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.FlagID, string(e.ChangeType), e.Actor, before, after, e.CreatedAt,
	)
	if err != nil {
		return errors.Join(flag.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) ListHistory(ctx context.Context, flagID uuid.UUID, page flag.Page) ([]*flag.HistoryEntry, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, flag_id, change_type, actor, before_state, after_state, created_at
		FROM feature_flag_history
		WHERE flag_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`,
		flagID, limit, max(page.Offset, 0),
	)
	if err != nil {
		return nil, errors.Join(flag.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var entries []*flag.HistoryEntry
	for rows.Next() {
		var e flag.HistoryEntry
		var changeType string
		var before, after []byte
		if err := rows.Scan(&e.ID, &e.FlagID, &changeType, &e.Actor, &before, &after, &e.CreatedAt); err != nil {
			return nil, errors.Join(flag.ErrStoreUnavailable, err)
		}
		e.ChangeType = flag.ChangeType(changeType)
		if e.Before, err = unmarshalState(before); err != nil {
			return nil, err
		}
		if e.After, err = unmarshalState(after); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(flag.ErrStoreUnavailable, err)
	}
	return entries, nil
}

func marshalState(state map[string]any) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	b, err := json.Marshal(state)
	if err != nil {
		return nil, errors.Join(flag.ErrStoreUnavailable, err)
	}
	return b, nil
}

func unmarshalState(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var state map[string]any
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, errors.Join(flag.ErrStoreUnavailable, err)
	}
	return state, nil
}
