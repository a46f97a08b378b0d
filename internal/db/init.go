// Package db opens the PostgreSQL backup database and prepares its schema.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// schema holds at most one backup row; the CHECK pins its key.
const schema = `
CREATE TABLE IF NOT EXISTS backup (
    id SMALLINT PRIMARY KEY CHECK (id = 1),
    data TEXT,
    fingerprint TEXT
);
`

// InitPostgres opens dsn with the lib/pq driver, verifies connectivity and
// creates the backup table when it is missing.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := prepare(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func prepare(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
