package httpapi

import (
	"time"

	"github.com/oculis/filevault/internal/server/models"
)

// fileResponse is the JSON shape of file metadata returned to clients.
type fileResponse struct {
	ID           string             `json:"id"`
	Key          string             `json:"key"`
	Name         string             `json:"name"`
	Size         int64              `json:"size"`
	MimeType     string             `json:"mimeType"`
	UploadedBy   string             `json:"uploadedBy"`
	UploadedAt   time.Time          `json:"uploadedAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	LastAccessed *time.Time         `json:"lastAccessed,omitempty"`
	Tags         map[string]string  `json:"tags,omitempty"`
	Status       string             `json:"status"`
	ScanStatus   string             `json:"scanStatus"`
	ScanResult   *models.ScanRecord `json:"scanResult,omitempty"`
	Category     *string            `json:"category,omitempty"`
	Versions     []versionResponse  `json:"versions,omitempty"`
	SharedWith   []shareResponse    `json:"sharedWith,omitempty"`
}

type versionResponse struct {
	ID                string             `json:"id"`
	Key               string             `json:"key"`
	Size              int64              `json:"size"`
	UploadedBy        string             `json:"uploadedBy"`
	UploadedAt        time.Time          `json:"uploadedAt"`
	VersionNumber     int64              `json:"versionNumber"`
	ChangeDescription *string            `json:"changeDescription,omitempty"`
	ScanStatus        string             `json:"scanStatus"`
	ScanResult        *models.ScanRecord `json:"scanResult,omitempty"`
}

type shareResponse struct {
	ID         string     `json:"id"`
	FileID     string     `json:"fileId"`
	UserID     string     `json:"userId"`
	SharedByID string     `json:"sharedById"`
	Permission string     `json:"permission"`
	SharedAt   time.Time  `json:"sharedAt"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

func toFileResponse(f *models.File) fileResponse {
	resp := fileResponse{
		ID:           f.ID,
		Key:          f.Key,
		Name:         f.Name,
		Size:         f.Size,
		MimeType:     f.MimeType,
		UploadedBy:   f.UserID,
		UploadedAt:   f.UploadedAt,
		UpdatedAt:    f.UpdatedAt,
		LastAccessed: f.LastAccessed,
		Tags:         f.Tags,
		Status:       string(f.Status),
		ScanStatus:   string(f.ScanStatus),
		ScanResult:   f.ScanResult,
		Category:     f.Category,
	}
	for _, v := range f.Versions {
		resp.Versions = append(resp.Versions, versionResponse{
			ID:                v.ID,
			Key:               v.Key,
			Size:              v.Size,
			UploadedBy:        v.UserID,
			UploadedAt:        v.UploadedAt,
			VersionNumber:     v.VersionNumber,
			ChangeDescription: v.ChangeDescription,
			ScanStatus:        string(v.ScanStatus),
			ScanResult:        v.ScanResult,
		})
	}
	for _, sh := range f.SharedWith {
		resp.SharedWith = append(resp.SharedWith, toShareResponse(sh))
	}
	return resp
}

func toFileResponses(fs []*models.File) []fileResponse {
	out := make([]fileResponse, 0, len(fs))
	for _, f := range fs {
		out = append(out, toFileResponse(f))
	}
	return out
}

func toShareResponse(s *models.FileShare) shareResponse {
	return shareResponse{
		ID:         s.ID,
		FileID:     s.FileID,
		UserID:     s.UserID,
		SharedByID: s.SharedByID,
		Permission: string(s.Permission),
		SharedAt:   s.SharedAt,
		ExpiresAt:  s.ExpiresAt,
	}
}
