package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/matheus3301/imsm/internal/store/migrations"
)

// Schema is the state of the database schema after Open.
type Schema struct {
	Version uint
	// Applied is set when Open had to run at least one migration.
	Applied bool
}

// migrateUp applies the embedded migrations that sqlDB lacks.
func migrateUp(sqlDB *sql.DB) (Schema, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return Schema{}, fmt.Errorf("migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	if err != nil {
		return Schema{}, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return Schema{}, fmt.Errorf("migration instance: %w", err)
	}

	applied := true
	if err := m.Up(); errors.Is(err, migrate.ErrNoChange) {
		applied = false
	} else if err != nil {
		return Schema{}, fmt.Errorf("migration up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return Schema{}, fmt.Errorf("migration version: %w", err)
	}
	if dirty {
		return Schema{}, fmt.Errorf("schema version %d is dirty", version)
	}
	return Schema{Version: version, Applied: applied}, nil
}
