package versions

import (
	"context"

	"github.com/oculis/filevault/internal/server/models"
)

type Repository interface {
	// CreateNext inserts v with the next version number for its file and
	// fills v.VersionNumber. Allocation is serialized per file, so numbers
	// form a strictly increasing, gap-free sequence even under concurrent
	// version creation. Must run inside a transaction.
	CreateNext(ctx context.Context, v *models.FileVersion) error

	// ListByFile returns all versions of a file in ascending version order.
	ListByFile(ctx context.Context, fileID string) ([]*models.FileVersion, error)
}
