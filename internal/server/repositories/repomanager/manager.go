package repomanager

import (
	"context"
	"database/sql"

	"github.com/oculis/filevault/internal/dbx"
	"github.com/oculis/filevault/internal/server/repositories/files"
	"github.com/oculis/filevault/internal/server/repositories/shares"
	"github.com/oculis/filevault/internal/server/repositories/versions"
)

// RepositoryManager vends repositories bound to a DBTX, which lets services
// use the same repository code inside and outside transactions.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Files(db dbx.DBTX) files.Repository
	Versions(db dbx.DBTX) versions.Repository
	Shares(db dbx.DBTX) shares.Repository
}
