// Package message exposes chat history and persistence over HTTP.
package message

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chatlink-backend/internal/service/chat"
	"chatlink-backend/pkg/response"
)

// Handler handles HTTP requests for messages
type Handler struct {
	chatService *chat.Service
}

// NewHandler creates a new message handler
func NewHandler(chatService *chat.Service) *Handler {
	return &Handler{chatService: chatService}
}

// AddMessageRequest represents the message creation body
type AddMessageRequest struct {
	To      uuid.UUID `json:"to" binding:"required"`
	Message string    `json:"message" binding:"required"`
	Type    string    `json:"type"`
}

// AddMessage stores a message without relaying it. Used by clients that
// want history written while the realtime channel is down.
// POST /api/messages/addmsg
func (h *Handler) AddMessage(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req AddMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	message, err := h.chatService.StoreMessage(c.Request.Context(), userID, req.To, req.Message, req.Type)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"message": message.ToResponse(userID),
	})
}

// GetMessagesRequest represents the history query body
type GetMessagesRequest struct {
	To        uuid.UUID `json:"to" binding:"required"`
	Limit     int       `json:"limit"`
	PageState string    `json:"page_state"`
}

// GetMessages returns one page of conversation history, oldest first
// POST /api/messages/getmsg
func (h *Handler) GetMessages(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req GetMessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	var pageState []byte
	if req.PageState != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.PageState)
		if err != nil {
			response.ValidationError(c, "invalid page_state")
			return
		}
		pageState = decoded
	}

	output, err := h.chatService.History(c.Request.Context(), &chat.HistoryInput{
		ViewerID:  userID,
		OtherID:   req.To,
		Limit:     req.Limit,
		PageState: pageState,
	})
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"messages":   output.Messages,
		"page_state": base64.StdEncoding.EncodeToString(output.NextPageState),
		"has_more":   output.HasMore,
	})
}

// AddReactionRequest represents the reaction body
type AddReactionRequest struct {
	MessageID uuid.UUID `json:"messageId" binding:"required"`
	Emoji     string    `json:"emoji" binding:"required"`
}

// AddReaction stores the caller's reaction on a message
// POST /api/messages/addreaction
func (h *Handler) AddReaction(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req AddReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	if err := h.chatService.UpsertReaction(c.Request.Context(), req.MessageID, userID, req.Emoji); err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"added": true})
}
