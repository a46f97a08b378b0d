// Package repository provides the durable backup backends used by the record
// store: a JSON file on local disk and a single-row PostgreSQL table.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/atinyakov/SealKeeper/internal/models"
	"github.com/google/uuid"
)

// tempSuffix marks in-flight backup writes that have not been renamed yet.
const tempSuffix = ".tmp"

// FileBackupRepository keeps the backup artifact as a JSON document on disk.
type FileBackupRepository struct {
	// Path is the location of the backup file.
	Path string
}

// NewFileBackupRepository creates a FileBackupRepository for path.
func NewFileBackupRepository(path string) *FileBackupRepository {
	return &FileBackupRepository{Path: path}
}

// Save replaces the backup with rec. The new content is written to a temporary
// file in the same directory, flushed, and renamed over Path, so readers see
// either the previous artifact or the new one, never a partial write.
func (r *FileBackupRepository) Save(ctx context.Context, rec models.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}

	dir := filepath.Dir(r.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	tmpPath := r.tempPath()
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create temp backup: %w", err)
	}

	cleanupTmp := true
	defer func() {
		if cleanupTmp {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		return fmt.Errorf("write temp backup: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync temp backup: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp backup: %w", err)
	}

	if err := os.Rename(tmpPath, r.Path); err != nil {
		return fmt.Errorf("rename backup: %w", err)
	}
	cleanupTmp = false

	// The rename is already visible; a failed directory sync only weakens
	// durability across power loss.
	_ = syncDir(dir)
	return nil
}

// Load reads and parses the backup file. It returns models.ErrBackupAbsent when
// the file does not exist and models.ErrBackupMalformed when it cannot be
// decoded into a record.
func (r *FileBackupRepository) Load(ctx context.Context) (models.Record, error) {
	raw, err := os.ReadFile(r.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.Record{}, models.ErrBackupAbsent
	}
	if err != nil {
		return models.Record{}, fmt.Errorf("read backup: %w", err)
	}
	return decodeRecord(raw)
}

// Delete removes the backup file. Removing a file that does not exist succeeds.
func (r *FileBackupRepository) Delete(ctx context.Context) error {
	if err := os.Remove(r.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove backup: %w", err)
	}
	return nil
}

// Exists reports whether a backup file is present, without parsing it.
func (r *FileBackupRepository) Exists(ctx context.Context) (bool, error) {
	_, err := os.Stat(r.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat backup: %w", err)
	}
	return true, nil
}

// TempFiles lists temporary files left by Save next to the backup. Names are
// matched literally, so glob metacharacters in Path are harmless.
func (r *FileBackupRepository) TempFiles() ([]string, error) {
	return tempFiles(r.Path)
}

func (r *FileBackupRepository) tempPath() string {
	return r.Path + "." + uuid.NewString() + tempSuffix
}

// decodeRecord parses a backup document. Both fields must be present and be
// JSON strings; anything else is malformed.
func decodeRecord(raw []byte) (models.Record, error) {
	var entry struct {
		Data        *string `json:"data"`
		Fingerprint *string `json:"fingerprint"`
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return models.Record{}, fmt.Errorf("%w: %v", models.ErrBackupMalformed, err)
	}
	if entry.Data == nil || entry.Fingerprint == nil {
		return models.Record{}, fmt.Errorf("%w: missing field", models.ErrBackupMalformed)
	}
	return models.Record{Data: *entry.Data, Fingerprint: *entry.Fingerprint}, nil
}

func tempFiles(backupPath string) ([]string, error) {
	dir := filepath.Dir(backupPath)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backup dir: %w", err)
	}

	prefix := filepath.Base(backupPath) + "."
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || len(name) <= len(prefix)+len(tempSuffix) {
			continue
		}
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, tempSuffix) {
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out, nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
