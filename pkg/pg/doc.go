// Package pg wires PostgreSQL connectivity for the service using the pgx/v5
// driver. It covers connection pooling with startup retries, a health check
// closure, and error classification helpers for constraint violations.
//
// Config is populated from environment variables via github.com/caarlos0/env,
// so pool limits and retry behaviour can be tuned per environment without
// code changes.
//
// # Usage
//
//	var cfg pg.Config
//	if err := env.Parse(&cfg); err != nil {
//	    panic(err)
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    panic(err)
//	}
//	defer pool.Close()
//
//	health := pg.Healthcheck(pool)
//
// # Error Handling
//
// IsNotFoundError, IsDuplicateKeyError and IsForeignKeyViolationError unwrap
// pgx and *pgconn.PgError values so business logic can classify failures
// without importing driver packages directly.
package pg
