package versions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oculis/filevault/internal/dbx"
	"github.com/oculis/filevault/internal/server/models"
)

// PostgresRepository implements version storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateNext takes a per-file advisory lock for the duration of the enclosing
// transaction, then inserts with version_number = max(existing)+1. The lock
// serializes allocation so two concurrent uploads of the same file cannot
// observe the same max.
func (r *PostgresRepository) CreateNext(ctx context.Context, v *models.FileVersion) error {
	if _, err := r.db.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, v.FileID); err != nil {
		return fmt.Errorf("failed to lock file for versioning: %w", err)
	}

	var scanResult any
	if v.ScanResult != nil {
		payload, err := json.Marshal(v.ScanResult)
		if err != nil {
			return fmt.Errorf("marshal scan result: %w", err)
		}
		scanResult = payload
	}

	query := `
		INSERT INTO file_versions (id, file_id, key, size, user_id, uploaded_at, version_number, change_description, scan_status, scan_result)
		SELECT $1, $2, $3, $4, $5, $6, COALESCE(MAX(version_number), 0) + 1, $7, $8, $9
		FROM file_versions WHERE file_id = $2
		RETURNING version_number
	`
	err := r.db.QueryRowContext(ctx, query,
		v.ID, v.FileID, v.Key, v.Size, v.UserID, v.UploadedAt,
		v.ChangeDescription, string(v.ScanStatus), scanResult).Scan(&v.VersionNumber)
	if err != nil {
		return fmt.Errorf("failed to insert version: %w", err)
	}
	return nil
}

// ListByFile returns all version rows for fileID, oldest first.
func (r *PostgresRepository) ListByFile(ctx context.Context, fileID string) ([]*models.FileVersion, error) {
	query := `
		SELECT id, file_id, key, size, user_id, uploaded_at, version_number, change_description, scan_status, scan_result
		FROM file_versions WHERE file_id = $1 ORDER BY version_number
	`
	rows, err := r.db.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to select versions: %w", err)
	}
	defer rows.Close()

	var result []*models.FileVersion
	for rows.Next() {
		var v models.FileVersion
		var scanStatus string
		var scanResult []byte
		if err := rows.Scan(&v.ID, &v.FileID, &v.Key, &v.Size, &v.UserID,
			&v.UploadedAt, &v.VersionNumber, &v.ChangeDescription, &scanStatus, &scanResult); err != nil {
			return nil, err
		}
		v.ScanStatus = models.ScanStatus(scanStatus)
		if len(scanResult) > 0 {
			var rec models.ScanRecord
			if err := json.Unmarshal(scanResult, &rec); err != nil {
				return nil, fmt.Errorf("unmarshal scan result: %w", err)
			}
			v.ScanResult = &rec
		}
		result = append(result, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
