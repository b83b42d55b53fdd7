package pgstore

import (
	"context"
	"embed"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrymomot/flaggate/pkg/pg"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded schema migrations. Migrations ship inside the
// binary so a deployment cannot run against a schema it does not know.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return errors.Join(pg.ErrFailedToApplyMigrations, err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return errors.Join(pg.ErrFailedToApplyMigrations, err)
	}
	return nil
}
