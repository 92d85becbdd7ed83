package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/OldStager01/heartrisk/internal/logger"
)

//go:embed migrations/postgres/*.sql migrations/sqlite3/*.sql
var migrationsFS embed.FS

type Migrator struct {
	db *DB
}

func NewMigrator(db *DB) *Migrator {
	return &Migrator{db: db}
}

// run opens a migrate instance, applies fn and releases it. Postgres gets
// its own pool because closing the migrate driver closes the pool it was
// given. SQLite must share the pool (an in-memory database lives on one
// connection), so its instance is left open.
func (m *Migrator) run(fn func(*migrate.Migrate) error) error {
	src, err := iofs.New(migrationsFS, "migrations/"+m.db.Driver)
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	switch m.db.Driver {
	case DriverPostgres:
		pool, err := sql.Open(DriverPostgres, m.db.dsn)
		if err != nil {
			return fmt.Errorf("failed to open migration connection: %w", err)
		}
		driver, err := postgres.WithInstance(pool, &postgres.Config{})
		if err != nil {
			pool.Close()
			return fmt.Errorf("failed to prepare migration driver: %w", err)
		}
		mg, err := migrate.NewWithInstance("iofs", src, DriverPostgres, driver)
		if err != nil {
			driver.Close()
			return err
		}
		defer mg.Close()
		return fn(mg)

	case DriverSQLite:
		driver, err := sqlite3.WithInstance(m.db.DB, &sqlite3.Config{})
		if err != nil {
			return fmt.Errorf("failed to prepare migration driver: %w", err)
		}
		mg, err := migrate.NewWithInstance("iofs", src, DriverSQLite, driver)
		if err != nil {
			return err
		}
		return fn(mg)

	default:
		return fmt.Errorf("unsupported database driver %q", m.db.Driver)
	}
}

// Up applies every pending migration.
func (m *Migrator) Up() error {
	return m.run(func(mg *migrate.Migrate) error {
		if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}

		version, dirty, err := mg.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		logger.WithFields(map[string]interface{}{
			"driver":  m.db.Driver,
			"version": version,
			"dirty":   dirty,
		}).Info("Database migrations applied")
		return nil
	})
}

// Down rolls back every migration.
func (m *Migrator) Down() error {
	return m.run(func(mg *migrate.Migrate) error {
		if err := mg.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to roll back migrations: %w", err)
		}
		return nil
	})
}
