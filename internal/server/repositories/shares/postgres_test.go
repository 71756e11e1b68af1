package shares

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/oculis/filevault/internal/common"
	"github.com/oculis/filevault/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestUpsert_NewGrant(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := &models.FileShare{
		ID:         "s1",
		FileID:     "f1",
		UserID:     "u2",
		SharedByID: "u1",
		Permission: models.SharePermissionView,
		SharedAt:   now,
	}

	mock.ExpectQuery(`INSERT INTO file_shares .+ ON CONFLICT \(file_id, user_id\)\s+DO UPDATE SET\s+permission = EXCLUDED\.permission,\s+expires_at = EXCLUDED\.expires_at\s+RETURNING id, shared_at`).
		WithArgs("s1", "f1", "u2", "u1", "VIEW", now, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "shared_at"}).AddRow("s1", now))

	if err := repo.Upsert(context.Background(), s); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if s.ID != "s1" || !s.SharedAt.Equal(now) {
		t.Fatalf("identity not written back: %+v", s)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsert_ExistingGrantKeepsID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	originalAt := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	s := &models.FileShare{
		ID:         "s-new",
		FileID:     "f1",
		UserID:     "u2",
		SharedByID: "u1",
		Permission: models.SharePermissionEdit,
		SharedAt:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	// The conflict branch keeps the surviving row's id and grant time.
	mock.ExpectQuery(`INSERT INTO file_shares .+ RETURNING id, shared_at`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "shared_at"}).AddRow("s-old", originalAt))

	if err := repo.Upsert(context.Background(), s); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if s.ID != "s-old" || !s.SharedAt.Equal(originalAt) {
		t.Fatalf("surviving identity not preserved: %+v", s)
	}
}

func TestGetWithOwner_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(24 * time.Hour)
	rows := sqlmock.NewRows([]string{"id", "file_id", "user_id", "shared_by_id", "permission", "shared_at", "expires_at", "owner_id"}).
		AddRow("s1", "f1", "u2", "u1", "EDIT", now, expires, "u1")

	mock.ExpectQuery(`SELECT s\.id, s\.file_id, s\.user_id, s\.shared_by_id, s\.permission, s\.shared_at, s\.expires_at, f\.user_id\s+FROM file_shares s JOIN files f ON f\.id = s\.file_id\s+WHERE s\.id = \$1`).
		WithArgs("s1").
		WillReturnRows(rows)

	s, owner, err := repo.GetWithOwner(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetWithOwner error: %v", err)
	}
	if owner != "u1" {
		t.Fatalf("unexpected owner: %q", owner)
	}
	if s.Permission != models.SharePermissionEdit || s.UserID != "u2" {
		t.Fatalf("unexpected share: %+v", s)
	}
	if s.ExpiresAt == nil || !s.ExpiresAt.Equal(expires) {
		t.Fatalf("expiry not decoded: %+v", s.ExpiresAt)
	}
}

func TestGetWithOwner_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT s\.id`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, _, err := repo.GetWithOwner(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestApply_PermissionOnly(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE file_shares SET permission = \$2 WHERE id = \$1`).
		WithArgs("s1", "EDIT").
		WillReturnResult(sqlmock.NewResult(0, 1))

	edit := models.SharePermissionEdit
	if err := repo.Apply(context.Background(), "s1", Update{Permission: &edit}); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApply_PermissionAndExpiry(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expires := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE file_shares SET permission = \$2, expires_at = \$3 WHERE id = \$1`).
		WithArgs("s1", "VIEW", expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	view := models.SharePermissionView
	err := repo.Apply(context.Background(), "s1", Update{Permission: &view, ExpiresAt: &expires})
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
}

func TestApply_NoFieldsIsNoop(t *testing.T) {
	repo, _, db := newRepoWithMock(t)
	defer db.Close()

	if err := repo.Apply(context.Background(), "s1", Update{}); err != nil {
		t.Fatalf("empty update must be a no-op, got %v", err)
	}
}

func TestApply_UnknownShare(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE file_shares SET permission = \$2 WHERE id = \$1`).
		WithArgs("missing", "EDIT").
		WillReturnResult(sqlmock.NewResult(0, 0))

	edit := models.SharePermissionEdit
	err := repo.Apply(context.Background(), "missing", Update{Permission: &edit})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDelete_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM file_shares WHERE id = \$1`).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "s1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
}

func TestDelete_UnknownShare(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM file_shares WHERE id = \$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDeleteByFile_NoGrantsIsFine(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM file_shares WHERE file_id = \$1`).
		WithArgs("f1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.DeleteByFile(context.Background(), "f1"); err != nil {
		t.Fatalf("DeleteByFile error: %v", err)
	}
}

func TestListByFile_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "file_id", "user_id", "shared_by_id", "permission", "shared_at", "expires_at"}).
		AddRow("s1", "f1", "u2", "u1", "VIEW", now, nil).
		AddRow("s2", "f1", "u3", "u1", "EDIT", now.Add(time.Hour), now.Add(48*time.Hour))

	mock.ExpectQuery(`SELECT id, file_id, user_id, shared_by_id, permission, shared_at, expires_at\s+FROM file_shares WHERE file_id = \$1 ORDER BY shared_at`).
		WithArgs("f1").
		WillReturnRows(rows)

	got, err := repo.ListByFile(context.Background(), "f1")
	if err != nil {
		t.Fatalf("ListByFile error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 rows, got %d", len(got))
	}
	if got[0].ExpiresAt != nil {
		t.Fatalf("expected open-ended first grant: %+v", got[0])
	}
	if got[1].Permission != models.SharePermissionEdit || got[1].ExpiresAt == nil {
		t.Fatalf("unexpected second grant: %+v", got[1])
	}
}

func TestListGrantedFileIDs_FiltersExpiry(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"file_id"}).AddRow("f1").AddRow("f2")

	mock.ExpectQuery(`SELECT file_id FROM file_shares\s+WHERE user_id = \$1 AND \(expires_at IS NULL OR expires_at > \$2\)`).
		WithArgs("u2", now).
		WillReturnRows(rows)

	ids, err := repo.ListGrantedFileIDs(context.Background(), "u2", now)
	if err != nil {
		t.Fatalf("ListGrantedFileIDs error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "f1" || ids[1] != "f2" {
		t.Fatalf("unexpected ids: %+v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
