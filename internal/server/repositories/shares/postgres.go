package shares

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oculis/filevault/internal/common"
	"github.com/oculis/filevault/internal/dbx"
	"github.com/oculis/filevault/internal/server/models"
)

// PostgresRepository implements share storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts the grant or refreshes an existing one for the same
// (file, grantee) pair. RETURNING reads back the surviving row's identity so
// repeated shares keep a stable share id.
func (r *PostgresRepository) Upsert(ctx context.Context, s *models.FileShare) error {
	query := `
		INSERT INTO file_shares (id, file_id, user_id, shared_by_id, permission, shared_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (file_id, user_id)
		DO UPDATE SET
			permission = EXCLUDED.permission,
			expires_at = EXCLUDED.expires_at
		RETURNING id, shared_at
	`
	err := r.db.QueryRowContext(ctx, query,
		s.ID, s.FileID, s.UserID, s.SharedByID, string(s.Permission), s.SharedAt, s.ExpiresAt).
		Scan(&s.ID, &s.SharedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetWithOwner joins the share with its file to expose the file's current
// owner, which authorizes share mutations.
func (r *PostgresRepository) GetWithOwner(ctx context.Context, shareID string) (*models.FileShare, string, error) {
	query := `
		SELECT s.id, s.file_id, s.user_id, s.shared_by_id, s.permission, s.shared_at, s.expires_at, f.user_id
		FROM file_shares s JOIN files f ON f.id = s.file_id
		WHERE s.id = $1
	`
	var s models.FileShare
	var permission, ownerID string
	err := r.db.QueryRowContext(ctx, query, shareID).
		Scan(&s.ID, &s.FileID, &s.UserID, &s.SharedByID, &permission, &s.SharedAt, &s.ExpiresAt, &ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", common.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to select share: %w", err)
	}
	s.Permission = models.SharePermission(permission)
	return &s, ownerID, nil
}

// Apply updates only the supplied fields.
func (r *PostgresRepository) Apply(ctx context.Context, shareID string, upd Update) error {
	var sets []string
	args := []any{shareID}

	if upd.Permission != nil {
		args = append(args, string(*upd.Permission))
		sets = append(sets, fmt.Sprintf("permission = $%d", len(args)))
	}
	if upd.ExpiresAt != nil {
		args = append(args, *upd.ExpiresAt)
		sets = append(sets, fmt.Sprintf("expires_at = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}

	query := `UPDATE file_shares SET ` + strings.Join(sets, ", ") + ` WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// Delete removes the grant.
func (r *PostgresRepository) Delete(ctx context.Context, shareID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM file_shares WHERE id = $1`, shareID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// DeleteByFile removes all grants of a file. Deleting a file cascades here
// so no orphaned grants point at a DELETED file.
func (r *PostgresRepository) DeleteByFile(ctx context.Context, fileID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM file_shares WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListByFile returns all grants of a file, including expired ones; expiry
// filtering is the reader's concern.
func (r *PostgresRepository) ListByFile(ctx context.Context, fileID string) ([]*models.FileShare, error) {
	query := `
		SELECT id, file_id, user_id, shared_by_id, permission, shared_at, expires_at
		FROM file_shares WHERE file_id = $1 ORDER BY shared_at
	`
	rows, err := r.db.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to select shares: %w", err)
	}
	defer rows.Close()

	var result []*models.FileShare
	for rows.Next() {
		var s models.FileShare
		var permission string
		if err := rows.Scan(&s.ID, &s.FileID, &s.UserID, &s.SharedByID, &permission, &s.SharedAt, &s.ExpiresAt); err != nil {
			return nil, err
		}
		s.Permission = models.SharePermission(permission)
		result = append(result, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListGrantedFileIDs returns ids of files shared with the grantee whose
// grants are unexpired at now.
func (r *PostgresRepository) ListGrantedFileIDs(ctx context.Context, granteeID string, now time.Time) ([]string, error) {
	query := `
		SELECT file_id FROM file_shares
		WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > $2)
	`
	rows, err := r.db.QueryContext(ctx, query, granteeID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to select granted files: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
