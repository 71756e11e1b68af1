// Package httpapi exposes the file lifecycle and sharing operations over
// HTTP/JSON. Routing is chi; every route runs behind the bearer-token
// authenticator, which injects the verified caller identity into the request
// context.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oculis/filevault/internal/logging"
	"github.com/oculis/filevault/internal/server/services"
)

// Server serves the file API.
type Server struct {
	address   string
	logger    logging.Logger
	files     *services.FileService
	shares    *services.ShareService
	jwtSecret []byte
	maxUpload int64
}

// NewServer wires the HTTP surface to the lifecycle and sharing services.
// maxUpload caps upload request bodies at the transport, before any payload
// is spooled.
func NewServer(address string, logger logging.Logger, files *services.FileService, shares *services.ShareService, secretKey string, maxUpload int64) *Server {
	return &Server{
		address:   address,
		logger:    logger.With("module", "http_server"),
		files:     files,
		shares:    shares,
		jwtSecret: []byte(secretKey),
		maxUpload: maxUpload,
	}
}

// Routes assembles the chi router. Split out from Run for handler tests.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api/files", func(r chi.Router) {
		r.Use(s.authenticator)

		r.Post("/upload", s.handleUpload)
		r.Get("/", s.handleList)
		r.Get("/search", s.handleSearch)
		r.Post("/batch-delete", s.handleBatchDelete)
		r.Post("/batch-tag", s.handleBatchTag)

		r.Post("/{id}/versions", s.handleCreateVersion)
		r.Post("/{id}/share", s.handleShare)
		r.Patch("/{id}/tags", s.handleUpdateTags)
		r.Patch("/{id}/category", s.handleUpdateCategory)
		r.Get("/{id}/preview", s.handlePreview)

		r.Patch("/shares/{shareID}", s.handleUpdateShare)
		r.Delete("/shares/{shareID}", s.handleRemoveShare)

		// Storage keys contain slashes ({owner}/{digest}-{name}), so the
		// key-addressed routes take the key as a trailing wildcard.
		r.Get("/url/*", s.handleGetURL)
		r.Delete("/*", s.handleDelete)
	})

	return r
}

// Run starts the HTTP server and shuts it down gracefully when ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
