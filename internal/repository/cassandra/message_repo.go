// Package cassandra implements the durable message store.
package cassandra

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"chatlink-backend/internal/domain"
)

// ErrMessageNotFound is returned when a message id resolves to nothing
var ErrMessageNotFound = errors.New("message not found")

// ErrNotParticipant is returned when a user reacts to a message of a
// conversation they are not part of
var ErrNotParticipant = errors.New("user is not a participant of the message")

// MessageRepository handles message storage in Cassandra.
//
// Schema:
//
//	messages        ((conversation_key, bucket), created_at, message_id)
//	message_lookup  (message_id) -> participants, for reaction checks
//	reactions       (message_id, user_id) -> emoji
type MessageRepository struct {
	session *gocql.Session
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(session *gocql.Session) *MessageRepository {
	return &MessageRepository{session: session}
}

// Save inserts a new message and its lookup row
func (r *MessageRepository) Save(ctx context.Context, message *domain.Message) error {
	if message.Bucket == 0 {
		message.Bucket = domain.CalculateBucket(message.CreatedAt)
	}
	if message.MessageID == uuid.Nil {
		message.MessageID = uuid.New()
	}

	query := `
		INSERT INTO messages (
			conversation_key, bucket, message_id, sender_id, recipient_id,
			content, message_type, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if err := r.session.Query(query,
		message.ConversationKey,
		message.Bucket,
		message.MessageID,
		message.SenderID,
		message.RecipientID,
		message.Content,
		message.MessageType,
		message.CreatedAt,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	lookup := `
		INSERT INTO message_lookup (message_id, conversation_key, bucket, sender_id, recipient_id)
		VALUES (?, ?, ?, ?, ?)
	`
	if err := r.session.Query(lookup,
		message.MessageID,
		message.ConversationKey,
		message.Bucket,
		message.SenderID,
		message.RecipientID,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to save message lookup: %w", err)
	}

	return nil
}

// GetByConversation retrieves one bucket's worth of messages, newest
// first, with Cassandra paging.
func (r *MessageRepository) GetByConversation(
	ctx context.Context,
	conversationKey string,
	bucket int,
	limit int,
	pageState []byte,
) ([]*domain.Message, []byte, error) {
	query := `
		SELECT conversation_key, bucket, message_id, sender_id, recipient_id,
		       content, message_type, created_at
		FROM messages
		WHERE conversation_key = ? AND bucket = ?
		ORDER BY created_at DESC
	`

	iter := r.session.Query(query, conversationKey, bucket).
		WithContext(ctx).
		PageSize(limit).
		PageState(pageState).
		Iter()

	var messages []*domain.Message
	for {
		message := &domain.Message{}
		if !iter.Scan(
			&message.ConversationKey,
			&message.Bucket,
			&message.MessageID,
			&message.SenderID,
			&message.RecipientID,
			&message.Content,
			&message.MessageType,
			&message.CreatedAt,
		) {
			break
		}
		messages = append(messages, message)
	}

	nextPageState := iter.PageState()
	if err := iter.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	if err := r.attachReactions(ctx, messages); err != nil {
		return nil, nil, err
	}

	return messages, nextPageState, nil
}

// UpsertReaction stores or replaces a user's reaction on a message. A
// user may hold at most one reaction per message; reacting again
// replaces the previous emoji. Reactions from non-participants are
// rejected with ErrNotParticipant.
func (r *MessageRepository) UpsertReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	var senderID, recipientID uuid.UUID
	lookup := `SELECT sender_id, recipient_id FROM message_lookup WHERE message_id = ?`
	if err := r.session.Query(lookup, messageID).WithContext(ctx).Scan(&senderID, &recipientID); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("failed to look up message: %w", err)
	}

	if userID != senderID && userID != recipientID {
		return ErrNotParticipant
	}

	query := `INSERT INTO reactions (message_id, user_id, emoji) VALUES (?, ?, ?)`
	if err := r.session.Query(query, messageID, userID, emoji).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to save reaction: %w", err)
	}

	return nil
}

// attachReactions fills the Reactions map for a page of messages with a
// single IN query over their ids.
func (r *MessageRepository) attachReactions(ctx context.Context, messages []*domain.Message) error {
	if len(messages) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.Message, len(messages))
	ids := make([]uuid.UUID, 0, len(messages))
	for _, m := range messages {
		byID[m.MessageID] = m
		ids = append(ids, m.MessageID)
	}

	query := `SELECT message_id, user_id, emoji FROM reactions WHERE message_id IN ?`
	iter := r.session.Query(query, ids).WithContext(ctx).Iter()

	var messageID, userID uuid.UUID
	var emoji string
	for iter.Scan(&messageID, &userID, &emoji) {
		if m, ok := byID[messageID]; ok {
			if m.Reactions == nil {
				m.Reactions = make(map[string]string)
			}
			m.Reactions[userID.String()] = emoji
		}
	}

	if err := iter.Close(); err != nil {
		return fmt.Errorf("failed to fetch reactions: %w", err)
	}
	return nil
}
