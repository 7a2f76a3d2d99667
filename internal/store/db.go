// Package store is the app-owned SQLite database of the WhatsApp backend. It
// keeps the last roster snapshot pushed to the connection and the send
// outbox. Message history is not stored.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the backend's imsm.db.
type DB struct {
	*sql.DB
	schema Schema
}

// Open opens the database at path in WAL mode and migrates it to the
// current schema.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	schema, err := migrateUp(sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &DB{DB: sqlDB, schema: schema}, nil
}

// Schema reports the schema version Open left the database at.
func (db *DB) Schema() Schema {
	return db.schema
}
