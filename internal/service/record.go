package service

import (
	"context"
	"errors"

	"github.com/atinyakov/SealKeeper/internal/metrics"
	"github.com/atinyakov/SealKeeper/internal/models"
	"github.com/atinyakov/SealKeeper/internal/store"
	"go.uber.org/zap"
)

// Digester seals fingerprints and validates them. *digest.Digest implements it.
type Digester interface {
	store.Sealer
	Validator
}

// RecordService is the entry point used by transports. It wires the store,
// the recovery state machine and the verifier to one digest, and records logs
// and metrics for every call. Secrets and data are never logged.
type RecordService struct {
	store    *store.Store
	recovery *Recovery
	verifier *Verifier
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewRecordService builds a RecordService over backup. log and m may be nil.
func NewRecordService(backup store.BackupRepository, d Digester, log *zap.Logger, m *metrics.Metrics) *RecordService {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	s := store.New(d, backup)
	recovery := NewRecovery(s, d)
	return &RecordService{
		store:    s,
		recovery: recovery,
		verifier: NewVerifier(recovery),
		log:      log,
		metrics:  m,
	}
}

// Store returns the underlying record store.
func (s *RecordService) Store() *store.Store {
	return s.store
}

// Write seals and stores data under secret. store.ErrInvalidData or a
// *store.PersistenceError means the record was not accepted.
func (s *RecordService) Write(ctx context.Context, data, secret string) (models.Record, error) {
	rec, err := s.store.Write(ctx, data, secret)
	if errors.Is(err, store.ErrInvalidData) {
		s.metrics.Writes.WithLabelValues("rejected").Inc()
		s.log.Warn("rejected record that is not valid UTF-8", zap.Int("size", len(data)))
		return models.Record{}, err
	}
	if err != nil {
		s.metrics.Writes.WithLabelValues("error").Inc()
		s.log.Error("failed to persist record", zap.Error(err))
		return models.Record{}, err
	}
	s.metrics.Writes.WithLabelValues("ok").Inc()
	s.log.Info("record written", zap.Int("size", len(data)))
	return rec, nil
}

// Read reports the current availability and, when Fresh, the data. It never
// recovers or deletes anything.
func (s *RecordService) Read(ctx context.Context) (models.Availability, string, error) {
	avail, data, err := s.recovery.Classify(ctx)
	if err != nil {
		s.log.Error("failed to classify record", zap.Error(err))
		return 0, "", err
	}
	return avail, data, nil
}

// Recover runs the recovery assessment for secret.
func (s *RecordService) Recover(ctx context.Context, secret string) (Outcome, error) {
	out, err := s.recovery.AssessAndRecover(ctx, secret)
	if err != nil {
		s.log.Error("recovery failed", zap.Error(err))
		return Outcome{}, err
	}
	s.observe(out)
	return out, nil
}

// Verify checks secret against the record, recovering it first if needed.
func (s *RecordService) Verify(ctx context.Context, secret string) (Verification, error) {
	res, err := s.verifier.Verify(ctx, secret)
	if err != nil {
		s.log.Error("verification failed", zap.Error(err))
		return Verification{}, err
	}
	s.observe(res.Outcome)
	s.metrics.Verifications.WithLabelValues(res.Verdict.String()).Inc()
	if res.Verdict == Mismatched {
		s.log.Warn("secret verification mismatch")
	}
	return res, nil
}

func (s *RecordService) observe(out Outcome) {
	s.metrics.Recoveries.WithLabelValues(out.Kind.String()).Inc()
	switch out.Kind {
	case OutcomeRecovered:
		s.log.Info("record recovered from backup")
	case OutcomeBackupCorrupt:
		s.metrics.BackupDeletions.Inc()
		s.log.Warn("backup failed validation and was removed")
	case OutcomeBackupAbsent:
		s.log.Info("no backup available for recovery")
	}
}
