// Package server initializes and runs the file storage backend: it loads
// configuration, connects the metadata store and blob store, runs migrations,
// and starts the HTTP API with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/oculis/filevault/internal/logging"
	"github.com/oculis/filevault/internal/server/blobstore"
	"github.com/oculis/filevault/internal/server/config"
	"github.com/oculis/filevault/internal/server/httpapi"
	"github.com/oculis/filevault/internal/server/repositories/repomanager"
	"github.com/oculis/filevault/internal/server/scanner"
	"github.com/oculis/filevault/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	blobs, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
		Region:       cfg.S3Region,
		Bucket:       cfg.S3Bucket,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		BaseEndpoint: cfg.S3BaseEndpoint,
		SSEKMSKeyID:  cfg.SSEKMSKeyID,
	})
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	sc := scanner.New(scanner.Config{
		EngineCommand:      cfg.ScannerCommand,
		HighRiskExtensions: cfg.HighRiskExtensions,
		FailClosed:         cfg.ScanFailClosed,
		TempDir:            cfg.ScanTempDir,
	}, logger)

	fileService := services.NewFileService(db, repos, blobs, sc, cfg, logger)
	shareService := services.NewShareService(db, repos, logger)

	srv := httpapi.NewServer(cfg.EndpointAddr, logger, fileService, shareService, cfg.SecretKey, cfg.MaxFileSize)

	return &App{config: cfg, logger: logger, db: db, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "failed to close db", "error", err)
	}
}
