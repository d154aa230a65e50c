// Package chat implements message persistence and history logic. The
// Service doubles as the store the realtime relay persists through.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"chatlink-backend/internal/domain"
	"chatlink-backend/internal/repository/cassandra"
	"chatlink-backend/pkg/constants"
	apperrors "chatlink-backend/pkg/errors"
)

// MessageRepository interface
type MessageRepository interface {
	Save(ctx context.Context, message *domain.Message) error
	GetByConversation(ctx context.Context, conversationKey string, bucket int, limit int, pageState []byte) ([]*domain.Message, []byte, error)
	UpsertReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error
}

// Service handles chat business logic
type Service struct {
	messageRepo MessageRepository
}

// NewService creates a new chat service
func NewService(messageRepo MessageRepository) *Service {
	return &Service{messageRepo: messageRepo}
}

// StoreMessage validates and persists a direct message
func (s *Service) StoreMessage(ctx context.Context, senderID, recipientID uuid.UUID, content, messageType string) (*domain.Message, error) {
	if messageType == "" {
		messageType = "text"
	}

	now := time.Now()
	message := &domain.Message{
		MessageID:       uuid.New(),
		ConversationKey: domain.ConversationKey(senderID, recipientID),
		Bucket:          domain.CalculateBucket(now),
		SenderID:        senderID,
		RecipientID:     recipientID,
		Content:         content,
		MessageType:     messageType,
		CreatedAt:       now,
	}

	if err := message.Validate(); err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}

	if err := s.messageRepo.Save(ctx, message); err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	return message, nil
}

// Append persists a relayed message and returns its server id
func (s *Service) Append(ctx context.Context, senderID, recipientID uuid.UUID, content, messageType string) (uuid.UUID, error) {
	message, err := s.StoreMessage(ctx, senderID, recipientID, content, messageType)
	if err != nil {
		return uuid.Nil, err
	}
	return message.MessageID, nil
}

// UpsertReaction stores a reaction after verifying the reacting user is
// one of the two conversation parties
func (s *Service) UpsertReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	if emoji == "" {
		return apperrors.MissingFieldError("emoji")
	}

	err := s.messageRepo.UpsertReaction(ctx, messageID, userID, emoji)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cassandra.ErrMessageNotFound):
		return apperrors.MessageNotFoundError()
	case errors.Is(err, cassandra.ErrNotParticipant):
		return apperrors.ForbiddenError("Not a participant of this conversation")
	default:
		return apperrors.DatabaseError(err)
	}
}

// HistoryInput contains history query parameters
type HistoryInput struct {
	ViewerID  uuid.UUID
	OtherID   uuid.UUID
	Limit     int
	PageState []byte
}

// HistoryOutput contains one page of conversation history
type HistoryOutput struct {
	Messages      []*domain.MessageResponse
	NextPageState []byte
	HasMore       bool
}

// History retrieves conversation messages, oldest first within the page
func (s *Service) History(ctx context.Context, input *HistoryInput) (*HistoryOutput, error) {
	if input.Limit <= 0 {
		input.Limit = constants.DefaultHistoryLimit
	}

	conversationKey := domain.ConversationKey(input.ViewerID, input.OtherID)
	bucket := domain.CalculateBucket(time.Now())

	messages, nextPageState, err := s.messageRepo.GetByConversation(
		ctx, conversationKey, bucket, input.Limit, input.PageState,
	)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	// A fresh query against a sparse current bucket falls back to the
	// previous one so a conversation never looks empty right after a
	// bucket rollover.
	if len(messages) < input.Limit && len(input.PageState) == 0 {
		older, _, err := s.messageRepo.GetByConversation(
			ctx, conversationKey, bucket-1, input.Limit-len(messages), nil,
		)
		if err != nil {
			return nil, apperrors.DatabaseError(err)
		}
		messages = append(messages, older...)
	}

	// Rows come back newest first, clients render oldest first
	responses := make([]*domain.MessageResponse, len(messages))
	for i, msg := range messages {
		responses[len(messages)-1-i] = msg.ToResponse(input.ViewerID)
	}

	return &HistoryOutput{
		Messages:      responses,
		NextPageState: nextPageState,
		HasMore:       len(nextPageState) > 0,
	}, nil
}
