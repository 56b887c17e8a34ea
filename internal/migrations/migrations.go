// Package migrations holds the versioned Postgres schema. Each migration is a
// Go file named <version>_<name>.go that registers itself on Migrations.
package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

// Open returns a bun DB for dsn.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Up applies every pending migration and returns the applied group, empty when nothing was pending.
func Up(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	m := migrate.NewMigrator(db, Migrations)

	if err := m.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}

	if err := m.Lock(ctx); err != nil {
		return nil, fmt.Errorf("lock migrations: %w", err)
	}
	defer m.Unlock(ctx) //nolint:errcheck

	g, err := m.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return g, nil
}

// Down rolls back the last applied group.
func Down(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	m := migrate.NewMigrator(db, Migrations)

	if err := m.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}

	if err := m.Lock(ctx); err != nil {
		return nil, fmt.Errorf("lock migrations: %w", err)
	}
	defer m.Unlock(ctx) //nolint:errcheck

	g, err := m.Rollback(ctx)
	if err != nil {
		return nil, fmt.Errorf("rollback: %w", err)
	}

	return g, nil
}

func exec(stmt string) migrate.MigrationFunc {
	return func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	}
}
