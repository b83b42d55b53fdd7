// Package flags exposes the feature flag engine over HTTP.
//
// The public surface is tenant-scoped and unauthenticated: evaluation must
// stay cheap and can never fail a caller's request. The admin surface is
// guarded by a role header set by the upstream auth layer and maps domain
// errors to statuses: 404 for missing flags, 409 for duplicate keys and
// lost concurrent writes, 422 for validation and lifecycle violations.
package flags
