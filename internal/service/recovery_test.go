package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/atinyakov/SealKeeper/internal/digest"
	"github.com/atinyakov/SealKeeper/internal/models"
	"github.com/atinyakov/SealKeeper/internal/repository"
	"github.com/atinyakov/SealKeeper/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBackup records calls and delegates to Func fields when set.
type mockBackup struct {
	rec     *models.Record
	deletes int

	SaveFunc   func(ctx context.Context, rec models.Record) error
	LoadFunc   func(ctx context.Context) (models.Record, error)
	DeleteFunc func(ctx context.Context) error
}

func (m *mockBackup) Save(ctx context.Context, rec models.Record) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, rec)
	}
	m.rec = &rec
	return nil
}

func (m *mockBackup) Load(ctx context.Context) (models.Record, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	if m.rec == nil {
		return models.Record{}, models.ErrBackupAbsent
	}
	return *m.rec, nil
}

func (m *mockBackup) Delete(ctx context.Context) error {
	m.deletes++
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx)
	}
	m.rec = nil
	return nil
}

func (m *mockBackup) Exists(ctx context.Context) (bool, error) {
	return m.rec != nil, nil
}

type fixture struct {
	digest   *digest.Digest
	store    *store.Store
	recovery *Recovery
	verifier *Verifier
}

func newFixture(t *testing.T, backup store.BackupRepository) *fixture {
	t.Helper()
	d, err := digest.New(digest.HMACSHA256)
	require.NoError(t, err)
	s := store.New(d, backup)
	r := NewRecovery(s, d)
	return &fixture{digest: d, store: s, recovery: r, verifier: NewVerifier(r)}
}

func newFileFixture(t *testing.T) (*fixture, *repository.FileBackupRepository) {
	t.Helper()
	repo := repository.NewFileBackupRepository(filepath.Join(t.TempDir(), "database.json"))
	return newFixture(t, repo), repo
}

func TestAssessAndRecover_TransitionTable(t *testing.T) {
	ctx := context.Background()

	t.Run("memory present is fresh without touching backup", func(t *testing.T) {
		backup := &mockBackup{}
		f := newFixture(t, backup)
		_, err := f.store.Write(ctx, "data", "secret")
		require.NoError(t, err)
		backup.LoadFunc = func(context.Context) (models.Record, error) {
			t.Fatal("backup must not be read when memory is fresh")
			return models.Record{}, nil
		}

		out, err := f.recovery.AssessAndRecover(ctx, "any secret at all")
		require.NoError(t, err)
		assert.Equal(t, Outcome{Kind: OutcomeFresh, Data: "data"}, out)
		assert.Zero(t, backup.deletes)
	})

	t.Run("memory empty and backup absent", func(t *testing.T) {
		backup := &mockBackup{}
		f := newFixture(t, backup)

		out, err := f.recovery.AssessAndRecover(ctx, "secret")
		require.NoError(t, err)
		assert.Equal(t, OutcomeBackupAbsent, out.Kind)
		assert.Empty(t, out.Data)
		assert.Zero(t, backup.deletes)
	})

	t.Run("backup parses and matches", func(t *testing.T) {
		backup := &mockBackup{}
		f := newFixture(t, backup)
		written, err := f.store.Write(ctx, "data", "secret")
		require.NoError(t, err)
		f.store.Forget()

		out, err := f.recovery.AssessAndRecover(ctx, "secret")
		require.NoError(t, err)
		assert.Equal(t, Outcome{Kind: OutcomeRecovered, Data: "data"}, out)

		mem, ok := f.store.ReadMemory()
		require.True(t, ok)
		assert.Equal(t, written, mem)
		assert.Zero(t, backup.deletes)
	})

	t.Run("backup parses but fingerprint differs", func(t *testing.T) {
		backup := &mockBackup{}
		f := newFixture(t, backup)
		_, err := f.store.Write(ctx, "data", "secret")
		require.NoError(t, err)
		f.store.Forget()

		out, err := f.recovery.AssessAndRecover(ctx, "wrong")
		require.NoError(t, err)
		assert.Equal(t, OutcomeBackupCorrupt, out.Kind)
		assert.Equal(t, 1, backup.deletes)
		assert.Nil(t, backup.rec)

		_, ok := f.store.ReadMemory()
		assert.False(t, ok)
	})

	t.Run("backup unparsable", func(t *testing.T) {
		backup := &mockBackup{
			LoadFunc: func(context.Context) (models.Record, error) {
				return models.Record{}, models.ErrBackupMalformed
			},
		}
		f := newFixture(t, backup)

		out, err := f.recovery.AssessAndRecover(ctx, "secret")
		require.NoError(t, err)
		assert.Equal(t, OutcomeBackupCorrupt, out.Kind)
		assert.Equal(t, 1, backup.deletes)
	})
}

func TestAssessAndRecover_FreshIsIdempotent(t *testing.T) {
	f, repo := newFileFixture(t)
	ctx := context.Background()
	_, err := f.store.Write(ctx, "data", "secret")
	require.NoError(t, err)

	before, err := os.Stat(repo.Path)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		out, err := f.recovery.AssessAndRecover(ctx, "secret")
		require.NoError(t, err)
		assert.Equal(t, OutcomeFresh, out.Kind)
	}

	after, err := os.Stat(repo.Path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
	assert.Equal(t, before.Size(), after.Size())
}

func TestAssessAndRecover_RoundTripThroughFile(t *testing.T) {
	f, _ := newFileFixture(t)
	ctx := context.Background()
	written, err := f.store.Write(ctx, "sensitive value", "key")
	require.NoError(t, err)

	f.store.Forget()

	out, err := f.recovery.AssessAndRecover(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, Outcome{Kind: OutcomeRecovered, Data: "sensitive value"}, out)

	mem, ok := f.store.ReadMemory()
	require.True(t, ok)
	assert.Equal(t, written, mem)
}

func TestAssessAndRecover_RoundTripKeepsNonASCIIBytes(t *testing.T) {
	for _, data := range []string{"ключ", "emoji \U0001F512", "nul\x00byte", "\u00e9\u0301"} {
		f, _ := newFileFixture(t)
		ctx := context.Background()
		_, err := f.store.Write(ctx, data, "key")
		require.NoError(t, err)
		f.store.Forget()

		out, err := f.recovery.AssessAndRecover(ctx, "key")
		require.NoError(t, err)
		assert.Equal(t, Outcome{Kind: OutcomeRecovered, Data: data}, out)
	}
}

func TestAssessAndRecover_InvalidUTF8NeverDestroysBackup(t *testing.T) {
	f, repo := newFileFixture(t)
	ctx := context.Background()
	_, err := f.store.Write(ctx, "good", "s")
	require.NoError(t, err)

	_, err = f.store.Write(ctx, "ab\xffcd", "s")
	require.ErrorIs(t, err, store.ErrInvalidData)
	f.store.Forget()

	out, err := f.recovery.AssessAndRecover(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, Outcome{Kind: OutcomeRecovered, Data: "good"}, out)

	_, err = os.Stat(repo.Path)
	assert.NoError(t, err, "backup survives the rejected write")
}

func TestAssessAndRecover_CorruptionSelfHeals(t *testing.T) {
	f, repo := newFileFixture(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(repo.Path,
		[]byte(`{"data":"value","fingerprint":"bm90IHRoZSByaWdodCBmaW5nZXJwcmludA=="}`), 0o600))

	out, err := f.recovery.AssessAndRecover(ctx, "anything")
	require.NoError(t, err)
	assert.Equal(t, OutcomeBackupCorrupt, out.Kind)

	_, err = os.Stat(repo.Path)
	assert.True(t, os.IsNotExist(err), "corrupt backup must be deleted")

	out, err = f.recovery.AssessAndRecover(ctx, "anything")
	require.NoError(t, err)
	assert.Equal(t, OutcomeBackupAbsent, out.Kind)
}

func TestAssessAndRecover_GarbageFileRemoved(t *testing.T) {
	f, repo := newFileFixture(t)
	require.NoError(t, os.WriteFile(repo.Path, []byte("\x00\x01garbage"), 0o600))

	out, err := f.recovery.AssessAndRecover(context.Background(), "secret")
	require.NoError(t, err)
	assert.Equal(t, OutcomeBackupCorrupt, out.Kind)

	_, err = os.Stat(repo.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestAssessAndRecover_NoBackupBoundary(t *testing.T) {
	f, repo := newFileFixture(t)

	out, err := f.recovery.AssessAndRecover(context.Background(), "secret")
	require.NoError(t, err)
	assert.Equal(t, OutcomeBackupAbsent, out.Kind)

	_, err = os.Stat(repo.Path)
	assert.True(t, os.IsNotExist(err), "recovery must not create a backup file")
}

func TestAssessAndRecover_IOFaults(t *testing.T) {
	ctx := context.Background()

	t.Run("load fault", func(t *testing.T) {
		ioErr := errors.New("input/output error")
		backup := &mockBackup{
			LoadFunc: func(context.Context) (models.Record, error) { return models.Record{}, ioErr },
		}
		f := newFixture(t, backup)

		_, err := f.recovery.AssessAndRecover(ctx, "secret")
		assert.ErrorIs(t, err, store.ErrPersistence)
		assert.ErrorIs(t, err, ioErr)
		assert.Zero(t, backup.deletes, "an unreadable backup is not proof of corruption")
	})

	t.Run("delete fault", func(t *testing.T) {
		backup := &mockBackup{
			LoadFunc: func(context.Context) (models.Record, error) {
				return models.Record{}, models.ErrBackupMalformed
			},
			DeleteFunc: func(context.Context) error { return errors.New("read-only file system") },
		}
		f := newFixture(t, backup)

		_, err := f.recovery.AssessAndRecover(ctx, "secret")
		var perr *store.PersistenceError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "delete", perr.Op)
	})
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	f, repo := newFileFixture(t)

	avail, _, err := f.recovery.Classify(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.BackupAbsent, avail)

	_, err = f.store.Write(ctx, "data", "secret")
	require.NoError(t, err)
	avail, data, err := f.recovery.Classify(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Fresh, avail)
	assert.Equal(t, "data", data)

	f.store.Forget()
	avail, data, err = f.recovery.Classify(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.MemoryEmptyBackupPresent, avail)
	assert.Empty(t, data)

	// Classification never mutates: the backup is still there and memory is still empty.
	_, err = os.Stat(repo.Path)
	require.NoError(t, err)
	_, ok := f.store.ReadMemory()
	assert.False(t, ok)
}

func TestClassify_RecomputedAfterExternalDeletion(t *testing.T) {
	ctx := context.Background()
	f, repo := newFileFixture(t)
	_, err := f.store.Write(ctx, "data", "secret")
	require.NoError(t, err)
	f.store.Forget()

	avail, _, err := f.recovery.Classify(ctx)
	require.NoError(t, err)
	require.Equal(t, models.MemoryEmptyBackupPresent, avail)

	require.NoError(t, os.Remove(repo.Path))

	avail, _, err = f.recovery.Classify(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.BackupAbsent, avail)
}

func TestOutcomeKind_String(t *testing.T) {
	assert.Equal(t, "fresh", OutcomeFresh.String())
	assert.Equal(t, "recovered", OutcomeRecovered.String())
	assert.Equal(t, "backup_absent", OutcomeBackupAbsent.String())
	assert.Equal(t, "backup_corrupt", OutcomeBackupCorrupt.String())
	assert.Equal(t, "unknown", OutcomeKind(0).String())
}
