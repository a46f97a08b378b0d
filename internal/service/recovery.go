// Package service decides whether the protected record is available, rebuilds
// it from backup when memory has been lost, and verifies presented secrets.
package service

import (
	"context"
	"errors"

	"github.com/atinyakov/SealKeeper/internal/models"
	"github.com/atinyakov/SealKeeper/internal/store"
)

// OutcomeKind is the result class of a recovery assessment.
type OutcomeKind int

const (
	// OutcomeFresh means memory already held a record; nothing was checked.
	OutcomeFresh OutcomeKind = iota + 1
	// OutcomeRecovered means the backup validated against the secret and was
	// loaded into memory.
	OutcomeRecovered
	// OutcomeBackupAbsent means there is no record anywhere.
	OutcomeBackupAbsent
	// OutcomeBackupCorrupt means the backup was unparsable or did not validate
	// against the secret, and has been deleted.
	OutcomeBackupCorrupt
)

// String returns a lowercase label suitable for logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFresh:
		return "fresh"
	case OutcomeRecovered:
		return "recovered"
	case OutcomeBackupAbsent:
		return "backup_absent"
	case OutcomeBackupCorrupt:
		return "backup_corrupt"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of Recovery.AssessAndRecover. Data is set only
// for OutcomeFresh and OutcomeRecovered.
type Outcome struct {
	Kind OutcomeKind
	Data string
}

// Available reports whether the outcome left a record in memory.
func (o Outcome) Available() bool {
	return o.Kind == OutcomeFresh || o.Kind == OutcomeRecovered
}

// Validator checks a fingerprint against a secret and data.
type Validator interface {
	Verify(secret, data, fingerprint string) bool
}

// Recovery is the availability state machine over a store. It keeps no state
// of its own; every call classifies memory and backup from scratch.
type Recovery struct {
	store     *store.Store
	validator Validator
}

// NewRecovery creates a Recovery for s. validator must be the digest used to
// seal records written to s.
func NewRecovery(s *store.Store, validator Validator) *Recovery {
	return &Recovery{store: s, validator: validator}
}

// AssessAndRecover classifies the current record and, when memory is empty,
// tries to rebuild it from a backup that validates against secret.
//
//	memory present                      -> Fresh, no side effect
//	backup absent                       -> BackupAbsent
//	backup parses, fingerprint matches  -> Recovered, memory := backup
//	backup parses, fingerprint differs  -> BackupCorrupt, backup deleted
//	backup unparsable                   -> BackupCorrupt, backup deleted
//
// The only error returned is a *store.PersistenceError for an I/O fault.
func (r *Recovery) AssessAndRecover(ctx context.Context, secret string) (Outcome, error) {
	var out Outcome
	err := r.store.Do(func(tx *store.Tx) error {
		var err error
		out, err = r.assess(ctx, tx, secret)
		return err
	})
	return out, err
}

// Classify reports the availability of the record without touching memory or
// backup. It cannot tell a valid backup from a corrupt one because that needs
// a secret, so it returns Fresh, MemoryEmptyBackupPresent or BackupAbsent.
func (r *Recovery) Classify(ctx context.Context) (models.Availability, string, error) {
	var (
		avail models.Availability
		data  string
	)
	err := r.store.Do(func(tx *store.Tx) error {
		if rec, ok := tx.Memory(); ok {
			avail, data = models.Fresh, rec.Data
			return nil
		}
		exists, err := tx.BackupExists(ctx)
		if err != nil {
			return err
		}
		if exists {
			avail = models.MemoryEmptyBackupPresent
		} else {
			avail = models.BackupAbsent
		}
		return nil
	})
	return avail, data, err
}

func (r *Recovery) assess(ctx context.Context, tx *store.Tx, secret string) (Outcome, error) {
	if rec, ok := tx.Memory(); ok {
		return Outcome{Kind: OutcomeFresh, Data: rec.Data}, nil
	}

	rec, err := tx.LoadBackup(ctx)
	switch {
	case errors.Is(err, models.ErrBackupAbsent):
		return Outcome{Kind: OutcomeBackupAbsent}, nil
	case errors.Is(err, models.ErrBackupMalformed):
		// Fall through to deletion.
	case err != nil:
		return Outcome{}, err
	case r.validator.Verify(secret, rec.Data, rec.Fingerprint):
		tx.Restore(rec)
		return Outcome{Kind: OutcomeRecovered, Data: rec.Data}, nil
	}

	// A wrong secret and a tampered backup are indistinguishable here.
	if err := tx.DeleteBackup(ctx); err != nil {
		return Outcome{}, err
	}
	return Outcome{Kind: OutcomeBackupCorrupt}, nil
}
