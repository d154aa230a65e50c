// Package user exposes profile and contact endpoints.
package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chatlink-backend/internal/service/auth"
	"chatlink-backend/pkg/response"
)

// Handler handles HTTP requests for user profiles
type Handler struct {
	authService *auth.Service
}

// NewHandler creates a new user handler
func NewHandler(authService *auth.Service) *Handler {
	return &Handler{authService: authService}
}

// SetAvatarRequest represents the avatar selection body
type SetAvatarRequest struct {
	Image string `json:"image" binding:"required"`
}

// SetAvatar stores the chosen avatar for the authenticated user
// POST /api/auth/setavatar
func (h *Handler) SetAvatar(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req SetAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	user, err := h.authService.SetAvatar(c.Request.Context(), userID, req.Image)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// ListContacts returns every registered user except the caller
// GET /api/auth/allusers
func (h *Handler) ListContacts(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	contacts, err := h.authService.ListContacts(c.Request.Context(), userID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"users": contacts})
}

// Online reports mirrored presence for one user
// GET /api/auth/online/:id
func (h *Handler) Online(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid user id")
		return
	}

	isOnline, err := h.authService.IsOnline(c.Request.Context(), userID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user_id":   userID,
		"is_online": isOnline,
	})
}

// Avatar proxies a generated avatar for the given seed
// GET /api/auth/avatar/:seed
func (h *Handler) Avatar(c *gin.Context) {
	seed := c.Param("seed")
	if seed == "" {
		response.ValidationError(c, "seed is required")
		return
	}

	image, err := h.authService.FetchAvatar(c.Request.Context(), seed)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"image": image})
}
