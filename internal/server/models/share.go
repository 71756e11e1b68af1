package models

import "time"

// SharePermission is the access level of a share grant. The level is stored
// and reported; enforcement beyond ownership happens in consuming frontends.
type SharePermission string

const (
	SharePermissionView SharePermission = "VIEW"
	SharePermissionEdit SharePermission = "EDIT"
)

// Valid reports whether p is a known permission level.
func (p SharePermission) Valid() bool {
	return p == SharePermissionView || p == SharePermissionEdit
}

// FileShare is a revocable grant of access from a file's owner to another
// identity. Expiry is evaluated lazily at read time; nothing actively revokes
// an expired grant.
type FileShare struct {
	ID     string
	FileID string
	// UserID is the grantee.
	UserID string
	// SharedByID is the granting identity, the file's owner at grant time.
	SharedByID string
	Permission SharePermission
	SharedAt   time.Time
	ExpiresAt  *time.Time
}

// Expired reports whether the grant is past its expiry at the given instant.
func (s *FileShare) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}
