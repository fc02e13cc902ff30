// Package migrate applies the embedded Postgres schema with goose.
package migrate

import (
	"context"
	"database/sql"
	"embed"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/samber/oops"
)

//go:embed sql/*.sql
var migrations embed.FS

const dir = "sql"

// Seams for tests.
var (
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.UpContext(ctx, db, dir, opts...)
	}
	openDB = func(dsn string) (*sql.DB, error) { return sql.Open("pgx", dsn) }
)

func setup() error {
	goose.SetBaseFS(migrations)
	return goose.SetDialect("pgx")
}

// Run applies all pending migrations on db.
func Run(ctx context.Context, db *sql.DB) error {
	if err := setup(); err != nil {
		return oops.Code("MIGRATION_SETUP_FAILED").Wrap(err)
	}
	if err := gooseUpContext(ctx, db, dir); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	return nil
}

// Up opens dsn through the pgx stdlib driver, applies migrations and closes the handle.
func Up(ctx context.Context, dsn string) error {
	if dsn == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database url is empty")
	}
	db, err := openDB(dsn)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "ping database").Wrap(err)
	}
	return Run(ctx, db)
}
