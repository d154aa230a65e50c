// Package storage exposes attachment upload over HTTP.
package storage

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chatlink-backend/internal/service/storage"
	"chatlink-backend/pkg/constants"
	"chatlink-backend/pkg/response"
)

// Handler handles HTTP requests for attachments
type Handler struct {
	storageService *storage.Service
}

// NewHandler creates a new storage handler
func NewHandler(storageService *storage.Service) *Handler {
	return &Handler{storageService: storageService}
}

// Upload stores a multipart attachment and returns its download URL
// POST /api/messages/upload
func (h *Handler) Upload(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.ValidationError(c, "file field is required")
		return
	}

	if fileHeader.Size > constants.MaxUploadSize {
		response.ValidationError(c, "file too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.InternalError(c, "Failed to read upload")
		return
	}
	defer file.Close()

	output, err := h.storageService.Upload(
		c.Request.Context(),
		userID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
	)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"object_key": output.ObjectKey,
		"url":        output.DownloadURL,
		"size":       output.Size,
	})
}
