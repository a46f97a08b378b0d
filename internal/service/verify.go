package service

import (
	"context"

	"github.com/atinyakov/SealKeeper/internal/store"
)

// Verdict is the answer to "does this secret match the current record".
type Verdict int

const (
	// Matched means the secret reproduces the stored fingerprint.
	Matched Verdict = iota + 1
	// Mismatched means a record exists but the secret does not fit it.
	Mismatched
	// Unavailable means there is no record to verify against; the recovery
	// outcome tells why.
	Unavailable
)

// String returns a lowercase label suitable for logs and metrics.
func (v Verdict) String() string {
	switch v {
	case Matched:
		return "matched"
	case Mismatched:
		return "mismatched"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Verification is the result of Verifier.Verify. Outcome is the recovery
// assessment that preceded the comparison.
type Verification struct {
	Verdict Verdict
	Outcome Outcome
}

// Verifier checks secrets against the record, recovering it from backup first
// when memory is empty.
type Verifier struct {
	recovery  *Recovery
	validator Validator
}

// NewVerifier creates a Verifier on top of recovery.
func NewVerifier(recovery *Recovery) *Verifier {
	return &Verifier{recovery: recovery, validator: recovery.validator}
}

// Verify runs the recovery assessment and, when a record is available,
// recomputes its fingerprint under secret. BackupAbsent and BackupCorrupt
// outcomes yield the Unavailable verdict. Both steps run under one store lock,
// so a concurrent write cannot slip between them.
func (v *Verifier) Verify(ctx context.Context, secret string) (Verification, error) {
	var res Verification
	err := v.recovery.store.Do(func(tx *store.Tx) error {
		out, err := v.recovery.assess(ctx, tx, secret)
		if err != nil {
			return err
		}
		res.Outcome = out
		if !out.Available() {
			res.Verdict = Unavailable
			return nil
		}

		// Recovered records are compared again from memory.
		rec, ok := tx.Memory()
		if ok && v.validator.Verify(secret, rec.Data, rec.Fingerprint) {
			res.Verdict = Matched
		} else {
			res.Verdict = Mismatched
		}
		return nil
	})
	if err != nil {
		return Verification{}, err
	}
	return res, nil
}
