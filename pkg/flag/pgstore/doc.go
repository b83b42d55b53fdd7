// Package pgstore implements flag.Store on PostgreSQL using pgx.
//
// Layout: feature_flags keyed by id with a unique key column,
// feature_flag_overrides keyed by (flag_id, tenant_id) with upsert
// semantics, and append-only feature_flag_history indexed by flag_id.
// Concurrent admin edits are serialized by compare-and-swap on the flags
// version column; a losing write maps to flag.ErrConflict. Schema
// migrations are embedded and applied with goose.
package pgstore
