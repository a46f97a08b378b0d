package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/SealKeeper/internal/models"
)

// PostgresBackupRepository keeps the backup artifact as the single row of the
// backup table.
type PostgresBackupRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresBackupRepository creates a PostgresBackupRepository with the given database connection.
// db must be a valid *sql.DB connected to a PostgreSQL instance with the schema from db.InitPostgres.
func NewPostgresBackupRepository(db *sql.DB) *PostgresBackupRepository {
	return &PostgresBackupRepository{DB: db}
}

// Save upserts rec into the backup row. The statement is atomic, so a
// concurrent reader sees either the old or the new pair.
func (r *PostgresBackupRepository) Save(ctx context.Context, rec models.Record) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO backup (id, data, fingerprint) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, fingerprint = EXCLUDED.fingerprint
	`, rec.Data, rec.Fingerprint)
	if err != nil {
		return fmt.Errorf("upsert backup: %w", err)
	}
	return nil
}

// Load reads the backup row. A missing row is models.ErrBackupAbsent and a row
// with a NULL column is models.ErrBackupMalformed.
func (r *PostgresBackupRepository) Load(ctx context.Context) (models.Record, error) {
	var data, fingerprint sql.NullString
	err := r.DB.QueryRowContext(ctx,
		`SELECT data, fingerprint FROM backup WHERE id = 1`,
	).Scan(&data, &fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Record{}, models.ErrBackupAbsent
	}
	if err != nil {
		return models.Record{}, fmt.Errorf("select backup: %w", err)
	}
	if !data.Valid || !fingerprint.Valid {
		return models.Record{}, fmt.Errorf("%w: null column", models.ErrBackupMalformed)
	}
	return models.Record{Data: data.String, Fingerprint: fingerprint.String}, nil
}

// Delete removes the backup row. Deleting a missing row succeeds.
func (r *PostgresBackupRepository) Delete(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM backup WHERE id = 1`); err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	return nil
}

// Exists reports whether the backup row is present.
func (r *PostgresBackupRepository) Exists(ctx context.Context) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM backup WHERE id = 1)`,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check backup: %w", err)
	}
	return exists, nil
}
