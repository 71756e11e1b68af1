package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oculis/filevault/internal/server/models"
	"github.com/oculis/filevault/internal/server/services"
)

// uploadMemoryLimit bounds the multipart parser's in-memory buffer; larger
// parts spill to disk.
const uploadMemoryLimit = 32 << 20

// uploadFormOverhead is the allowance for multipart framing and extra form
// fields on top of the configured file size limit.
const uploadFormOverhead = 1 << 20

// parseUploadForm caps the request body at the configured file size limit
// before the multipart parser touches it, so an oversized upload is rejected
// at the transport instead of being spooled to disk first.
func (s *Server) parseUploadForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+uploadFormOverhead)
	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorStatus(w, http.StatusRequestEntityTooLarge, "file exceeds the maximum allowed size")
		} else {
			writeErrorStatus(w, http.StatusBadRequest, "invalid multipart body")
		}
		return false
	}
	return true
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeErrorStatus(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !s.parseUploadForm(w, r) {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	if header.Size > s.maxUpload {
		writeErrorStatus(w, http.StatusRequestEntityTooLarge, "file exceeds the maximum allowed size")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "failed to read file")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	result, err := s.files.Upload(r.Context(), data, header.Filename, mimeType, header.Size, userID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFileResponse(result))
}

func (s *Server) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeErrorStatus(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !s.parseUploadForm(w, r) {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	if header.Size > s.maxUpload {
		writeErrorStatus(w, http.StatusRequestEntityTooLarge, "file exceeds the maximum allowed size")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "failed to read file")
		return
	}

	var changeDescription *string
	if d := r.FormValue("changeDescription"); d != "" {
		changeDescription = &d
	}

	result, err := s.files.CreateVersion(r.Context(), chi.URLParam(r, "id"), data, userID, changeDescription)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFileResponse(result))
}

type shareRequest struct {
	UserID     string     `json:"userId"`
	Permission string     `json:"permission"`
	ExpiresAt  *time.Time `json:"expiresAt"`
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeErrorStatus(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeErrorStatus(w, http.StatusBadRequest, "userId is required")
		return
	}

	grant, err := s.shares.Share(r.Context(), chi.URLParam(r, "id"), userID, req.UserID,
		models.SharePermission(req.Permission), req.ExpiresAt)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toShareResponse(grant))
}

type updateShareRequest struct {
	Permission *string    `json:"permission"`
	ExpiresAt  *time.Time `json:"expiresAt"`
}

func (s *Server) handleUpdateShare(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeErrorStatus(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var req updateShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := services.ShareUpdate{ExpiresAt: req.ExpiresAt}
	if req.Permission != nil {
		p := models.SharePermission(*req.Permission)
		upd.Permission = &p
	}

	grant, err := s.shares.UpdateShare(r.Context(), chi.URLParam(r, "shareID"), userID, upd)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, toShareResponse(grant))
}

func (s *Server) handleRemoveShare(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeErrorStatus(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := s.shares.RemoveShare(r.Context(), chi.URLParam(r, "shareID"), userID); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type tagsRequest struct {
	Tags map[string]string `json:"tags"`
}

func (s *Server) handleUpdateTags(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeErrorStatus(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var req tagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tags == nil {
		writeErrorStatus(w, http.StatusBadRequest, "tags must be an object")
		return
	}

	result, err := s.files.UpdateTags(r.Context(), chi.URLParam(r, "id"), userID, req.Tags)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFileResponse(result))
}

type categoryRequest struct {
	Category string `json:"category"`
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeErrorStatus(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Category == "" {
		writeErrorStatus(w, http.StatusBadRequest, "category must be a non-empty string")
		return
	}

	result, err := s.files.UpdateCategory(r.Context(), chi.URLParam(r, "id"), userID, req.Category)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFileResponse(result))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeErrorStatus(w, http.StatusInternalServerError, "internal server error")
		return
	}

	q := services.SearchQuery{
		Name:     r.URL.Query().Get("name"),
		MimeType: r.URL.Query().Get("mimeType"),
		Status:   models.FileStatus(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("tags"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &q.Tags); err != nil {
			writeErrorStatus(w, http.StatusBadRequest, "tags must be a JSON object")
			return
		}
	}
	if raw := r.URL.Query().Get("sharedWithMe"); raw != "" {
		shared, err := strconv.ParseBool(raw)
		if err != nil {
			writeErrorStatus(w, http.StatusBadRequest, "sharedWithMe must be a boolean")
			return
		}
		q.SharedWithMe = shared
	}

	found, err := s.files.Search(r.Context(), userID, q)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFileResponses(found))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeErrorStatus(w, http.StatusInternalServerError, "internal server error")
		return
	}

	found, err := s.files.List(r.Context(), userID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFileResponses(found))
}

func (s *Server) handleGetURL(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		writeErrorStatus(w, http.StatusBadRequest, "key is required")
		return
	}

	url, err := s.files.GetURL(r.Context(), key)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		writeErrorStatus(w, http.StatusBadRequest, "key is required")
		return
	}

	if err := s.files.Delete(r.Context(), key); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	f, err := s.files.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	if !strings.HasPrefix(f.MimeType, "image/") {
		writeErrorStatus(w, http.StatusUnsupportedMediaType, "preview not supported for this file type")
		return
	}

	data, err := s.files.GetBuffer(r.Context(), f.Key)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", f.MimeType)
	_, _ = w.Write(data)
}

type batchDeleteRequest struct {
	FileIDs []string `json:"fileIds"`
}

func (s *Server) handleBatchDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeErrorStatus(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var req batchDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.FileIDs) == 0 {
		writeErrorStatus(w, http.StatusBadRequest, "fileIds must be a non-empty array")
		return
	}

	result, err := s.files.BatchDelete(r.Context(), req.FileIDs, userID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type batchTagRequest struct {
	FileIDs []string          `json:"fileIds"`
	Tags    map[string]string `json:"tags"`
}

func (s *Server) handleBatchTag(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeErrorStatus(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var req batchTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.FileIDs) == 0 {
		writeErrorStatus(w, http.StatusBadRequest, "fileIds must be a non-empty array")
		return
	}
	if req.Tags == nil {
		writeErrorStatus(w, http.StatusBadRequest, "tags must be an object")
		return
	}

	result, err := s.files.BatchUpdateTags(r.Context(), req.FileIDs, userID, req.Tags)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
