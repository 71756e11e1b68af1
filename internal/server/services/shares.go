package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oculis/filevault/internal/common"
	"github.com/oculis/filevault/internal/logging"
	"github.com/oculis/filevault/internal/server/models"
	"github.com/oculis/filevault/internal/server/repositories/repomanager"
	"github.com/oculis/filevault/internal/server/repositories/shares"
)

// ShareUpdate carries a partial mutation of a grant; nil fields are left
// unchanged.
type ShareUpdate struct {
	Permission *models.SharePermission
	ExpiresAt  *time.Time
}

// ShareService creates, updates and revokes share grants. Every mutation is
// authorized against the owner of the file the grant belongs to, not the
// grant row itself.
type ShareService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
}

// NewShareService constructs the sharing manager.
func NewShareService(db *sql.DB, repos repomanager.RepositoryManager, logger logging.Logger) *ShareService {
	return &ShareService{
		db:     db,
		repos:  repos,
		logger: logger.With("module", "share_service"),
	}
}

// Share grants granteeID access to the file at the given permission level.
// Only the file's current owner may grant. Sharing again with the same
// grantee refreshes the existing grant instead of stacking duplicates.
func (s *ShareService) Share(ctx context.Context, fileID, ownerID, granteeID string, permission models.SharePermission, expiresAt *time.Time) (*models.FileShare, error) {
	if granteeID == "" {
		return nil, fmt.Errorf("%w: grantee is required", common.ErrValidation)
	}
	if permission == "" {
		permission = models.SharePermissionView
	}
	if !permission.Valid() {
		return nil, fmt.Errorf("%w: unknown permission %q", common.ErrValidation, permission)
	}

	f, err := s.repos.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.UserID != ownerID {
		return nil, common.ErrPermissionDenied
	}

	grant := &models.FileShare{
		ID:         uuid.New().String(),
		FileID:     fileID,
		UserID:     granteeID,
		SharedByID: ownerID,
		Permission: permission,
		SharedAt:   nowFunc().UTC(),
		ExpiresAt:  expiresAt,
	}
	if err := s.repos.Shares(s.db).Upsert(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to store share: %w", err)
	}

	s.logger.Info(ctx, "file shared", "file_id", fileID, "grantee", granteeID, "permission", permission)
	return grant, nil
}

// UpdateShare applies a partial update to a grant. The caller must own the
// file the grant belongs to.
func (s *ShareService) UpdateShare(ctx context.Context, shareID, ownerID string, upd ShareUpdate) (*models.FileShare, error) {
	if upd.Permission != nil && !upd.Permission.Valid() {
		return nil, fmt.Errorf("%w: unknown permission %q", common.ErrValidation, *upd.Permission)
	}

	shareRepo := s.repos.Shares(s.db)
	_, fileOwner, err := shareRepo.GetWithOwner(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if fileOwner != ownerID {
		return nil, common.ErrPermissionDenied
	}

	err = shareRepo.Apply(ctx, shareID, shares.Update{
		Permission: upd.Permission,
		ExpiresAt:  upd.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update share: %w", err)
	}

	updated, _, err := shareRepo.GetWithOwner(ctx, shareID)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RemoveShare revokes a grant permanently. The caller must own the file.
func (s *ShareService) RemoveShare(ctx context.Context, shareID, ownerID string) error {
	shareRepo := s.repos.Shares(s.db)
	grant, fileOwner, err := shareRepo.GetWithOwner(ctx, shareID)
	if err != nil {
		return err
	}
	if fileOwner != ownerID {
		return common.ErrPermissionDenied
	}

	if err := shareRepo.Delete(ctx, shareID); err != nil {
		return fmt.Errorf("failed to remove share: %w", err)
	}

	s.logger.Info(ctx, "share removed", "share_id", shareID, "file_id", grant.FileID)
	return nil
}
