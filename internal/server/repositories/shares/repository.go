package shares

import (
	"context"
	"time"

	"github.com/oculis/filevault/internal/server/models"
)

// Update carries a partial share mutation; nil fields are left unchanged.
type Update struct {
	Permission *models.SharePermission
	ExpiresAt  *time.Time
}

type Repository interface {
	// Upsert creates the grant or, when the grantee already holds one for the
	// file, refreshes its permission and expiry. The stored ID and grant time
	// are written back into s.
	Upsert(ctx context.Context, s *models.FileShare) error

	// GetWithOwner returns the share and the owning identity of the file it
	// belongs to, or common.ErrNotFound.
	GetWithOwner(ctx context.Context, shareID string) (*models.FileShare, string, error)

	// Apply performs a partial update of the share row.
	Apply(ctx context.Context, shareID string, upd Update) error

	// Delete removes the grant permanently.
	Delete(ctx context.Context, shareID string) error

	// DeleteByFile removes all grants of a file.
	DeleteByFile(ctx context.Context, fileID string) error

	// ListByFile returns all grants of a file.
	ListByFile(ctx context.Context, fileID string) ([]*models.FileShare, error)

	// ListGrantedFileIDs returns the ids of files shared with granteeID whose
	// grants have not expired at the given instant. Expiry is a read-time
	// predicate; expired rows stay in place.
	ListGrantedFileIDs(ctx context.Context, granteeID string, now time.Time) ([]string, error)
}
