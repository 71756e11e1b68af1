package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oculis/filevault/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps the service error taxonomy onto HTTP statuses. Unexpected
// errors become a generic 500 with no internal detail leaked.
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrValidation):
		writeErrorStatus(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrPermissionDenied):
		writeErrorStatus(w, http.StatusForbidden, err.Error())
	case errors.Is(err, common.ErrNotFound):
		writeErrorStatus(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrFileDeleted):
		writeErrorStatus(w, http.StatusGone, err.Error())
	case errors.Is(err, common.ErrFileInfected):
		writeErrorStatus(w, http.StatusForbidden, err.Error())
	case errors.Is(err, common.ErrScanRejected):
		writeErrorStatus(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		writeErrorStatus(w, http.StatusInternalServerError, "internal server error")
	}
}
