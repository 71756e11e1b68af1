// Package common defines shared constants and sentinel errors used across
// the file storage backend. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Validation errors, rejected before any side effect.
	ErrValidation = errors.New("validation error")

	// Authorization errors (caller does not own the target resource).
	ErrPermissionDenied = errors.New("permission denied")

	// Read-path errors for files that exist but are no longer usable.
	ErrFileDeleted  = errors.New("file has been deleted")
	ErrFileInfected = errors.New("file is infected and cannot be accessed")

	// Scan verdicts that deny an upload. Wrapped by services.ScanRejectedError,
	// which carries the threat or engine failure detail.
	ErrScanRejected = errors.New("scan rejected")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
