// Package services implements the file lifecycle and sharing managers: the
// orchestration layer between the HTTP surface, the metadata repositories,
// the blob store and the content scanner.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/oculis/filevault/internal/common"
	"github.com/oculis/filevault/internal/dbx"
	"github.com/oculis/filevault/internal/logging"
	"github.com/oculis/filevault/internal/server/blobstore"
	"github.com/oculis/filevault/internal/server/config"
	"github.com/oculis/filevault/internal/server/models"
	"github.com/oculis/filevault/internal/server/repositories/files"
	"github.com/oculis/filevault/internal/server/repositories/repomanager"
	"github.com/oculis/filevault/internal/server/scanner"
)

// PayloadScanner is the content scanning contract consumed by the lifecycle
// manager. The production implementation is scanner.Scanner.
type PayloadScanner interface {
	Scan(ctx context.Context, data []byte, originalName string) scanner.Result
}

// SearchQuery is the caller-facing search filter.
type SearchQuery struct {
	Name     string
	MimeType string
	Tags     map[string]string
	Status   models.FileStatus
	// SharedWithMe switches the candidate set from the requester's own files
	// to files granted to the requester by unexpired shares.
	SharedWithMe bool
}

// BatchDeleteResult reports per-item outcomes of a batch delete. Partial
// success is a first-class outcome; one item's failure never rolls back
// another's success.
type BatchDeleteResult struct {
	Deleted []string `json:"deleted"`
	Failed  []string `json:"failed"`
}

// BatchTagResult reports per-item outcomes of a batch tag update.
type BatchTagResult struct {
	Updated []string `json:"updated"`
	Failed  []string `json:"failed"`
}

// FileService coordinates blob store, scanner and metadata repositories to
// implement upload, versioning, deletion, retrieval and search.
type FileService struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	blobs   blobstore.Store
	scanner PayloadScanner
	cfg     *config.Config
	logger  logging.Logger
}

// NewFileService constructs the lifecycle manager with explicit dependencies.
func NewFileService(db *sql.DB, repos repomanager.RepositoryManager, blobs blobstore.Store,
	sc PayloadScanner, cfg *config.Config, logger logging.Logger) *FileService {
	return &FileService{
		db:      db,
		repos:   repos,
		blobs:   blobs,
		scanner: sc,
		cfg:     cfg,
		logger:  logger.With("module", "file_service"),
	}
}

func (s *FileService) validateUpload(mimeType string, size int64) error {
	allowed := false
	for _, t := range s.cfg.AllowedMimeTypes {
		if t == mimeType {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: file type %s is not allowed", common.ErrValidation, mimeType)
	}
	if size > s.cfg.MaxFileSize {
		return fmt.Errorf("%w: file size exceeds maximum allowed size of %d bytes", common.ErrValidation, s.cfg.MaxFileSize)
	}
	return nil
}

// Upload validates, persists and scans a new file. On a clean verdict the
// file row is committed ACTIVE/CLEAN with scanner-diagnostic tags. On any
// other verdict a QUARANTINED/INFECTED row is persisted as an audit trace,
// the just-written blob is compensated away, and the caller sees a
// ScanRejectedError.
func (s *FileService) Upload(ctx context.Context, data []byte, name, mimeType string, size int64, ownerID string) (*models.File, error) {
	if err := s.validateUpload(mimeType, size); err != nil {
		return nil, err
	}

	now := nowFunc().UTC()
	key := deriveStorageKey(name, ownerID, now)

	err := s.blobs.Put(ctx, key, data, blobstore.PutOptions{
		ContentType: mimeType,
		Metadata: map[string]string{
			"uploaded-by":   ownerID,
			"original-name": name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("blob upload failed: %w", err)
	}

	res := s.scanner.Scan(ctx, data, name)

	f := &models.File{
		ID:         uuid.New().String(),
		Key:        key,
		Name:       name,
		Size:       size,
		MimeType:   mimeType,
		UserID:     ownerID,
		UploadedAt: now,
		UpdatedAt:  now,
		Tags:       diagnosticTags(res, mimeType),
		ScanResult: scanRecord(res),
	}
	if res.Clean() {
		f.Status = models.FileStatusActive
		f.ScanStatus = models.ScanStatusClean
	} else {
		f.Status = models.FileStatusQuarantined
		f.ScanStatus = models.ScanStatusInfected
	}

	createErr := s.repos.Files(s.db).Create(ctx, f)

	if !res.Clean() {
		// Compensating delete runs even when the quarantine row failed to
		// persist; an unclean blob must never outlive the upload because of
		// a metadata error. The quarantine row survives on purpose as
		// forensic evidence; a failed delete leaves an orphaned blob that
		// is reconciled manually.
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Error(ctx, "failed to delete quarantined blob", "key", key, "error", err)
		}
		if createErr != nil {
			s.logger.Error(ctx, "failed to store quarantine record", "key", key, "error", createErr)
		}
		return nil, scanRejected(res)
	}

	if createErr != nil {
		return nil, fmt.Errorf("failed to store file metadata: %w", createErr)
	}

	s.logger.Info(ctx, "file uploaded", "key", key, "owner", ownerID, "size", size)
	return f, nil
}

// CreateVersion uploads and scans a new revision of an existing file. The
// parent row keeps referring to the original upload; history lives in the
// version rows. Numbering is serialized per file inside the transaction.
func (s *FileService) CreateVersion(ctx context.Context, fileID string, data []byte, uploaderID string, changeDescription *string) (*models.File, error) {
	parent, err := s.repos.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}

	now := nowFunc().UTC()
	key := deriveVersionKey(parent.Key, now)

	err = s.blobs.Put(ctx, key, data, blobstore.PutOptions{
		ContentType: parent.MimeType,
		Metadata: map[string]string{
			"uploaded-by":   uploaderID,
			"original-name": parent.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("blob upload failed: %w", err)
	}

	res := s.scanner.Scan(ctx, data, parent.Name)

	v := &models.FileVersion{
		ID:                uuid.New().String(),
		FileID:            fileID,
		Key:               key,
		Size:              int64(len(data)),
		UserID:            uploaderID,
		UploadedAt:        now,
		ChangeDescription: changeDescription,
		ScanResult:        scanRecord(res),
	}
	if res.Clean() {
		v.ScanStatus = models.ScanStatusClean
	} else {
		v.ScanStatus = models.ScanStatusInfected
	}

	createErr := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Versions(tx).CreateNext(ctx, v)
	})

	if !res.Clean() {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Error(ctx, "failed to delete quarantined blob", "key", key, "error", err)
		}
		if createErr != nil {
			s.logger.Error(ctx, "failed to store quarantine record", "key", key, "error", createErr)
		}
		return nil, scanRejected(res)
	}

	if createErr != nil {
		return nil, fmt.Errorf("failed to store version metadata: %w", createErr)
	}

	s.logger.Info(ctx, "file version created", "file_id", fileID, "version", v.VersionNumber)
	return s.GetByID(ctx, fileID)
}

// Delete soft-deletes by storage key: the row is marked DELETED first so it
// is immediately invisible to read paths even if the blob delete fails, then
// share grants are cascaded away and the blob removed. Deleting an already
// deleted file succeeds.
func (s *FileService) Delete(ctx context.Context, key string) error {
	f, err := s.repos.Files(s.db).GetByKey(ctx, key)
	if err != nil {
		return err
	}

	if err := s.repos.Files(s.db).MarkDeleted(ctx, key); err != nil {
		return fmt.Errorf("failed to mark file deleted: %w", err)
	}
	if err := s.repos.Shares(s.db).DeleteByFile(ctx, f.ID); err != nil {
		return fmt.Errorf("failed to remove share grants: %w", err)
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}

	s.logger.Info(ctx, "file deleted", "key", key)
	return nil
}

// BatchDelete processes ids sequentially and independently, authorizing each
// against ownerID. Non-owned or missing ids land in Failed.
func (s *FileService) BatchDelete(ctx context.Context, ids []string, ownerID string) (*BatchDeleteResult, error) {
	result := &BatchDeleteResult{Deleted: []string{}, Failed: []string{}}

	fileRepo := s.repos.Files(s.db)
	for _, id := range ids {
		f, err := fileRepo.GetByID(ctx, id)
		if err != nil || f.UserID != ownerID {
			result.Failed = append(result.Failed, id)
			continue
		}
		if err := s.Delete(ctx, f.Key); err != nil {
			s.logger.Warn(ctx, "batch delete item failed", "id", id, "error", err)
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Deleted = append(result.Deleted, id)
	}
	return result, nil
}

// Search returns files visible to the requester under the query. In
// shared-with-me mode the candidates come from unexpired grants and the
// requester's own ownership is irrelevant.
func (s *FileService) Search(ctx context.Context, requesterID string, q SearchQuery) ([]*models.File, error) {
	filter := files.SearchFilter{
		Name:     q.Name,
		MimeType: q.MimeType,
		Tags:     q.Tags,
		Status:   q.Status,
	}

	if q.SharedWithMe {
		ids, err := s.repos.Shares(s.db).ListGrantedFileIDs(ctx, requesterID, nowFunc().UTC())
		if err != nil {
			return nil, fmt.Errorf("failed to resolve shared files: %w", err)
		}
		if len(ids) == 0 {
			return []*models.File{}, nil
		}
		filter.IDs = ids
	} else {
		filter.OwnerID = requesterID
	}

	found, err := s.repos.Files(s.db).Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	if found == nil {
		found = []*models.File{}
	}
	return found, nil
}

// List returns all files owned by ownerID, most recently updated first.
func (s *FileService) List(ctx context.Context, ownerID string) ([]*models.File, error) {
	return s.Search(ctx, ownerID, SearchQuery{})
}

// GetURL issues a time-bounded signed URL for the blob behind key. Deleted
// and infected files are refused; a successful issue records the access.
func (s *FileService) GetURL(ctx context.Context, key string) (string, error) {
	f, err := s.repos.Files(s.db).GetByKey(ctx, key)
	if err != nil {
		return "", err
	}
	if f.Status == models.FileStatusDeleted {
		return "", common.ErrFileDeleted
	}
	if f.ScanStatus == models.ScanStatusInfected {
		return "", common.ErrFileInfected
	}

	if err := s.repos.Files(s.db).TouchLastAccessed(ctx, key); err != nil {
		return "", fmt.Errorf("failed to record access: %w", err)
	}

	url, err := s.blobs.SignedURL(ctx, key, s.cfg.URLExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to sign url: %w", err)
	}
	return url, nil
}

// GetByID returns full metadata for a file, with versions and share grants
// attached.
func (s *FileService) GetByID(ctx context.Context, id string) (*models.File, error) {
	f, err := s.repos.Files(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	f.Versions, err = s.repos.Versions(s.db).ListByFile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load versions: %w", err)
	}
	f.SharedWith, err = s.repos.Shares(s.db).ListByFile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load shares: %w", err)
	}
	return f, nil
}

// GetBuffer fetches the raw blob behind key. Presentation layers (previews)
// build on this primitive.
func (s *FileService) GetBuffer(ctx context.Context, key string) ([]byte, error) {
	return s.blobs.Get(ctx, key)
}

// UpdateTags replaces the whole tag mapping of an owned file. The conditional
// update re-checks ownership at write time.
func (s *FileService) UpdateTags(ctx context.Context, id, ownerID string, tags map[string]string) (*models.File, error) {
	if tags == nil {
		return nil, fmt.Errorf("%w: tags must not be nil", common.ErrValidation)
	}
	if err := s.authorizeOwner(ctx, id, ownerID); err != nil {
		return nil, err
	}
	if err := s.repos.Files(s.db).UpdateTagsOwned(ctx, id, ownerID, tags); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// UpdateCategory sets the category of an owned file.
func (s *FileService) UpdateCategory(ctx context.Context, id, ownerID, category string) (*models.File, error) {
	if category == "" {
		return nil, fmt.Errorf("%w: category must not be empty", common.ErrValidation)
	}
	if err := s.authorizeOwner(ctx, id, ownerID); err != nil {
		return nil, err
	}
	if err := s.repos.Files(s.db).UpdateCategoryOwned(ctx, id, ownerID, category); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// BatchUpdateTags mirrors BatchDelete's partial-success contract for tag
// replacement.
func (s *FileService) BatchUpdateTags(ctx context.Context, ids []string, ownerID string, tags map[string]string) (*BatchTagResult, error) {
	if tags == nil {
		return nil, fmt.Errorf("%w: tags must not be nil", common.ErrValidation)
	}

	result := &BatchTagResult{Updated: []string{}, Failed: []string{}}
	fileRepo := s.repos.Files(s.db)
	for _, id := range ids {
		f, err := fileRepo.GetByID(ctx, id)
		if err != nil || f.UserID != ownerID {
			result.Failed = append(result.Failed, id)
			continue
		}
		if err := fileRepo.UpdateTagsOwned(ctx, id, ownerID, tags); err != nil {
			s.logger.Warn(ctx, "batch tag item failed", "id", id, "error", err)
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Updated = append(result.Updated, id)
	}
	return result, nil
}

func (s *FileService) authorizeOwner(ctx context.Context, fileID, ownerID string) error {
	f, err := s.repos.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if f.UserID != ownerID {
		return common.ErrPermissionDenied
	}
	return nil
}

// diagnosticTags is the initial tag mapping of an upload, populated from
// scanner diagnostics.
func diagnosticTags(res scanner.Result, declaredMime string) map[string]string {
	fileType := res.FileType
	if fileType == "" {
		fileType = declaredMime
	}
	signature := res.Signature
	if signature == "" {
		signature = "Unknown"
	}
	return map[string]string{
		"fileType":      fileType,
		"scanSignature": signature,
		"scanDuration":  strconv.FormatInt(res.Duration.Milliseconds(), 10),
	}
}

func scanRecord(res scanner.Result) *models.ScanRecord {
	return &models.ScanRecord{
		SchemaVersion:  models.ScanRecordSchemaVersion,
		IsClean:        res.Clean(),
		Threat:         res.Threat,
		Error:          res.Err,
		FileType:       res.FileType,
		Signature:      res.Signature,
		ScanDurationMS: res.Duration.Milliseconds(),
	}
}

func scanRejected(res scanner.Result) error {
	if res.Verdict == scanner.VerdictError {
		return &ScanRejectedError{Reason: res.Err}
	}
	return &ScanRejectedError{Threat: res.Threat}
}
