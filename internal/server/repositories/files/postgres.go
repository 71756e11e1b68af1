package files

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/oculis/filevault/internal/common"
	"github.com/oculis/filevault/internal/dbx"
	"github.com/oculis/filevault/internal/server/models"
)

const fileColumns = `id, key, name, size, mime_type, user_id, uploaded_at, updated_at, last_accessed, tags, status, scan_status, scan_result, category`

// PostgresRepository implements file metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new file row. The storage key is unique; a duplicate key
// surfaces as a constraint error from the driver.
func (r *PostgresRepository) Create(ctx context.Context, f *models.File) error {
	tags, err := json.Marshal(f.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	scanResult, err := marshalScanRecord(f.ScanResult)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO files (id, key, name, size, mime_type, user_id, uploaded_at, updated_at, tags, status, scan_status, scan_result, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.db.ExecContext(ctx, query,
		f.ID, f.Key, f.Name, f.Size, f.MimeType, f.UserID, f.UploadedAt, f.UpdatedAt,
		tags, string(f.Status), string(f.ScanStatus), scanResult, f.Category)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns the file row for id, or common.ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByKey returns the file row for the storage key, or common.ErrNotFound.
func (r *PostgresRepository) GetByKey(ctx context.Context, key string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE key = $1`
	return r.getOne(ctx, query, key)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.File, error) {
	row := r.db.QueryRowContext(ctx, query, arg)
	f, err := scanFileRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

// UpdateTagsOwned replaces the whole tag mapping. The owner condition makes
// the check-then-act race-free: a concurrent ownership change results in
// zero rows affected.
func (r *PostgresRepository) UpdateTagsOwned(ctx context.Context, id, ownerID string, tags map[string]string) error {
	payload, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	query := `UPDATE files SET tags = $3, updated_at = now() WHERE id = $1 AND user_id = $2`
	return r.execExpectingRow(ctx, query, id, ownerID, payload)
}

// UpdateCategoryOwned sets the category under the same owner condition.
func (r *PostgresRepository) UpdateCategoryOwned(ctx context.Context, id, ownerID, category string) error {
	query := `UPDATE files SET category = $3, updated_at = now() WHERE id = $1 AND user_id = $2`
	return r.execExpectingRow(ctx, query, id, ownerID, category)
}

// MarkDeleted soft-deletes by storage key. DELETED is terminal; repeating the
// update is harmless, which keeps delete idempotent for callers.
func (r *PostgresRepository) MarkDeleted(ctx context.Context, key string) error {
	query := `UPDATE files SET status = $2, updated_at = now() WHERE key = $1`
	return r.execExpectingRow(ctx, query, key, string(models.FileStatusDeleted))
}

// TouchLastAccessed records blob access time. It deliberately does not bump
// updated_at, which orders search results by content/metadata changes only.
func (r *PostgresRepository) TouchLastAccessed(ctx context.Context, key string) error {
	query := `UPDATE files SET last_accessed = now() WHERE key = $1`
	return r.execExpectingRow(ctx, query, key)
}

func (r *PostgresRepository) execExpectingRow(ctx context.Context, query string, args ...any) error {
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

// Search builds a WHERE clause from the filter and returns matching files
// ordered by updated_at descending.
func (r *PostgresRepository) Search(ctx context.Context, filter SearchFilter) ([]*models.File, error) {
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch {
	case filter.OwnerID != "":
		conds = append(conds, "user_id = "+arg(filter.OwnerID))
	case len(filter.IDs) > 0:
		placeholders := make([]string, 0, len(filter.IDs))
		for _, id := range filter.IDs {
			placeholders = append(placeholders, arg(id))
		}
		conds = append(conds, "id IN ("+strings.Join(placeholders, ", ")+")")
	default:
		return nil, nil
	}

	if filter.Name != "" {
		conds = append(conds, "name ILIKE "+arg("%"+filter.Name+"%"))
	}
	if filter.MimeType != "" {
		conds = append(conds, "mime_type = "+arg(filter.MimeType))
	}
	if len(filter.Tags) > 0 {
		payload, err := json.Marshal(filter.Tags)
		if err != nil {
			return nil, fmt.Errorf("marshal tag filter: %w", err)
		}
		conds = append(conds, "tags @> "+arg(payload)+"::jsonb")
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(string(filter.Status)))
	}

	query := `SELECT ` + fileColumns + ` FROM files WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f, err := scanFileRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// scanFileRow decodes one files row from a Scan function shared between
// QueryRow and Rows iteration.
func scanFileRow(scan func(dest ...any) error) (*models.File, error) {
	var f models.File
	var lastAccessed sql.NullTime
	var tags []byte
	var status, scanStatus string
	var scanResult []byte
	var category sql.NullString

	err := scan(&f.ID, &f.Key, &f.Name, &f.Size, &f.MimeType, &f.UserID,
		&f.UploadedAt, &f.UpdatedAt, &lastAccessed, &tags, &status, &scanStatus,
		&scanResult, &category)
	if err != nil {
		return nil, err
	}

	if lastAccessed.Valid {
		t := lastAccessed.Time
		f.LastAccessed = &t
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &f.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	f.Status = models.FileStatus(status)
	f.ScanStatus = models.ScanStatus(scanStatus)
	if len(scanResult) > 0 {
		var rec models.ScanRecord
		if err := json.Unmarshal(scanResult, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal scan result: %w", err)
		}
		f.ScanResult = &rec
	}
	if category.Valid {
		c := category.String
		f.Category = &c
	}
	return &f, nil
}

func marshalScanRecord(rec *models.ScanRecord) ([]byte, error) {
	if rec == nil {
		return nil, nil
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal scan result: %w", err)
	}
	return payload, nil
}
