// Package models defines the record held by the keeper and the values used to
// describe its availability.
package models

import "errors"

// Record is the protected value together with its fingerprint. It is also the
// serialized form of the backup artifact.
type Record struct {
	// Data is the protected value.
	Data string `json:"data"`
	// Fingerprint is the base64 keyed digest of Data under the writer's secret.
	Fingerprint string `json:"fingerprint"`
}

// Availability classifies where a valid record can currently be found. It is
// derived on every access and never stored.
type Availability int

const (
	// Fresh means the in-memory copy holds a record.
	Fresh Availability = iota + 1
	// MemoryEmptyBackupPresent means memory is empty but a backup exists.
	MemoryEmptyBackupPresent
	// BackupAbsent means there is no record in memory or on backup.
	BackupAbsent
	// BackupCorrupt means memory is empty and the backup cannot be trusted.
	BackupCorrupt
)

// String returns a lowercase label suitable for logs and metrics.
func (a Availability) String() string {
	switch a {
	case Fresh:
		return "fresh"
	case MemoryEmptyBackupPresent:
		return "memory_empty_backup_present"
	case BackupAbsent:
		return "backup_absent"
	case BackupCorrupt:
		return "backup_corrupt"
	default:
		return "unknown"
	}
}

var (
	// ErrBackupAbsent is returned by backup repositories when no artifact exists.
	ErrBackupAbsent = errors.New("backup absent")
	// ErrBackupMalformed is returned when an artifact exists but does not hold
	// exactly the two required string fields.
	ErrBackupMalformed = errors.New("backup malformed")
)
