// Package store owns the single protected record: its in-memory copy and its
// durable backup. All access is serialized by one mutex.
package store

import (
	"context"
	"errors"
	"sync"
	"unicode/utf8"

	"github.com/atinyakov/SealKeeper/internal/models"
)

// BackupRepository persists the backup artifact.
type BackupRepository interface {
	// Save atomically replaces the artifact with rec.
	Save(ctx context.Context, rec models.Record) error
	// Load returns the artifact, models.ErrBackupAbsent when there is none, or
	// models.ErrBackupMalformed when it cannot be decoded.
	Load(ctx context.Context) (models.Record, error)
	// Delete removes the artifact; removing a missing artifact succeeds.
	Delete(ctx context.Context) error
	// Exists reports whether an artifact is present without decoding it.
	Exists(ctx context.Context) (bool, error)
}

// Sealer computes the fingerprint of data under secret.
type Sealer interface {
	Sum(secret, data string) string
}

// Store holds the current record and mirrors it to a BackupRepository.
type Store struct {
	mu     sync.Mutex
	sealer Sealer
	backup BackupRepository
	memory *models.Record
}

// New creates an empty Store. Nothing is read from backup until a recovery
// asks for it.
func New(sealer Sealer, backup BackupRepository) *Store {
	return &Store{sealer: sealer, backup: backup}
}

// Write seals data with secret, persists the record to backup and only then
// publishes it in memory. When the backup cannot be written the error is a
// *PersistenceError and the in-memory record is left as it was. Data that is
// not valid UTF-8 fails with ErrInvalidData.
func (s *Store) Write(ctx context.Context, data, secret string) (models.Record, error) {
	var rec models.Record
	err := s.Do(func(tx *Tx) error {
		var err error
		rec, err = tx.Write(ctx, data, secret)
		return err
	})
	return rec, err
}

// ReadMemory returns the in-memory record. It performs no I/O.
func (s *Store) ReadMemory() (models.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&Tx{s: s}).Memory()
}

// LoadBackup reads the backup artifact. See Tx.LoadBackup.
func (s *Store) LoadBackup(ctx context.Context) (models.Record, error) {
	var rec models.Record
	err := s.Do(func(tx *Tx) error {
		var err error
		rec, err = tx.LoadBackup(ctx)
		return err
	})
	return rec, err
}

// DeleteBackup removes the backup artifact. See Tx.DeleteBackup.
func (s *Store) DeleteBackup(ctx context.Context) error {
	return s.Do(func(tx *Tx) error {
		return tx.DeleteBackup(ctx)
	})
}

// Forget drops the in-memory record and leaves the backup untouched, which is
// the state after a process restart.
func (s *Store) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory = nil
}

// Do runs fn with the store lock held. Every operation fn performs through tx
// is observed atomically by other callers.
func (s *Store) Do(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Tx{s: s})
}

// Tx exposes store operations to a function running under Store.Do. A Tx
// must not be retained after that function returns.
type Tx struct {
	s *Store
}

// Memory returns a copy of the in-memory record.
func (tx *Tx) Memory() (models.Record, bool) {
	if tx.s.memory == nil {
		return models.Record{}, false
	}
	return *tx.s.memory, true
}

// Write seals, persists and publishes a new record. Data that is not valid
// UTF-8 is rejected with ErrInvalidData before anything is written.
func (tx *Tx) Write(ctx context.Context, data, secret string) (models.Record, error) {
	if !utf8.ValidString(data) {
		return models.Record{}, ErrInvalidData
	}
	rec := models.Record{Data: data, Fingerprint: tx.s.sealer.Sum(secret, data)}
	if err := tx.s.backup.Save(ctx, rec); err != nil {
		return models.Record{}, &PersistenceError{Op: "save", Err: err}
	}
	tx.s.memory = &rec
	return rec, nil
}

// Restore publishes rec in memory without touching the backup. It is used when
// rec was just read from that backup and validated.
func (tx *Tx) Restore(rec models.Record) {
	tx.s.memory = &rec
}

// LoadBackup reads the backup artifact. models.ErrBackupAbsent and
// models.ErrBackupMalformed are returned as is; any other failure is wrapped in
// a *PersistenceError.
func (tx *Tx) LoadBackup(ctx context.Context) (models.Record, error) {
	rec, err := tx.s.backup.Load(ctx)
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, models.ErrBackupAbsent), errors.Is(err, models.ErrBackupMalformed):
		return models.Record{}, err
	default:
		return models.Record{}, &PersistenceError{Op: "load", Err: err}
	}
}

// DeleteBackup removes the backup artifact. It succeeds when there is nothing
// to remove.
func (tx *Tx) DeleteBackup(ctx context.Context) error {
	if err := tx.s.backup.Delete(ctx); err != nil {
		return &PersistenceError{Op: "delete", Err: err}
	}
	return nil
}

// BackupExists reports whether a backup artifact is present.
func (tx *Tx) BackupExists(ctx context.Context) (bool, error) {
	ok, err := tx.s.backup.Exists(ctx)
	if err != nil {
		return false, &PersistenceError{Op: "stat", Err: err}
	}
	return ok, nil
}
