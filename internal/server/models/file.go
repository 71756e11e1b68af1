// Package models defines server-side data models persisted in the database.
package models

import "time"

// FileStatus is the lifecycle status of a file.
type FileStatus string

const (
	// FileStatusActive marks a file that passed its scan and is usable.
	FileStatusActive FileStatus = "ACTIVE"
	// FileStatusQuarantined marks a file that failed its scan. The blob is
	// purged; the row is retained as an audit trace.
	FileStatusQuarantined FileStatus = "QUARANTINED"
	// FileStatusDeleted is terminal. The blob is removed; the row survives.
	FileStatusDeleted FileStatus = "DELETED"
)

// ScanStatus is the scan verdict recorded for a file or version.
type ScanStatus string

const (
	ScanStatusPending  ScanStatus = "PENDING"
	ScanStatusClean    ScanStatus = "CLEAN"
	ScanStatusInfected ScanStatus = "INFECTED"
)

// File describes a logical document owned by exactly one user. The content
// itself lives in object storage under Key; versions reference their own keys.
type File struct {
	ID   string
	Key  string
	Name string
	Size int64
	// MimeType is the declared content type, validated against the allow-list
	// at upload time.
	MimeType string
	// UserID is the owning identity. Ownership never transfers.
	UserID       string
	UploadedAt   time.Time
	UpdatedAt    time.Time
	LastAccessed *time.Time
	// Tags is a free-form string mapping. Updates replace the whole mapping;
	// the initial value comes from scanner diagnostics.
	Tags       map[string]string
	Status     FileStatus
	ScanStatus ScanStatus
	ScanResult *ScanRecord
	Category   *string

	// Versions and SharedWith are attached on detail reads; they are not
	// columns of the files table.
	Versions   []*FileVersion
	SharedWith []*FileShare
}

// FileVersion is one physical revision of a file's content. Version numbers
// are strictly increasing per file and never reused.
type FileVersion struct {
	ID                string
	FileID            string
	Key               string
	Size              int64
	UserID            string
	UploadedAt        time.Time
	VersionNumber     int64
	ChangeDescription *string
	ScanStatus        ScanStatus
	ScanResult        *ScanRecord
}
