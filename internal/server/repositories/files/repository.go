package files

import (
	"context"

	"github.com/oculis/filevault/internal/server/models"
)

// SearchFilter narrows the candidate set of a search. Exactly one of OwnerID
// or IDs defines the candidates: OwnerID selects the requester's own files,
// IDs selects an explicit set (shared-with mode).
type SearchFilter struct {
	OwnerID string
	IDs     []string

	// Name matches as a case-insensitive substring.
	Name string
	// MimeType matches exactly.
	MimeType string
	// Tags must be contained in the file's tag mapping (key/value subset).
	Tags map[string]string
	// Status matches exactly when set.
	Status models.FileStatus
}

type Repository interface {
	Create(ctx context.Context, f *models.File) error
	GetByID(ctx context.Context, id string) (*models.File, error)
	GetByKey(ctx context.Context, key string) (*models.File, error)

	// UpdateTagsOwned replaces the tag mapping of the file iff it is owned by
	// ownerID. Returns common.ErrNotFound when no row matches.
	UpdateTagsOwned(ctx context.Context, id, ownerID string, tags map[string]string) error

	// UpdateCategoryOwned sets the category iff the file is owned by ownerID.
	UpdateCategoryOwned(ctx context.Context, id, ownerID, category string) error

	// MarkDeleted sets status=DELETED by storage key. Marking an already
	// deleted file affects the row again and is not an error.
	MarkDeleted(ctx context.Context, key string) error

	// TouchLastAccessed records a read of the blob behind key.
	TouchLastAccessed(ctx context.Context, key string) error

	// Search returns files matching the filter, most recently updated first.
	Search(ctx context.Context, filter SearchFilter) ([]*models.File, error)
}
