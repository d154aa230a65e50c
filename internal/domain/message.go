package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message represents a direct message between two users.
// Maps to the Cassandra messages table.
type Message struct {
	MessageID       uuid.UUID         `json:"message_id" cql:"message_id"`
	ConversationKey string            `json:"conversation_key" cql:"conversation_key"`
	Bucket          int               `json:"-" cql:"bucket"`
	SenderID        uuid.UUID         `json:"sender_id" cql:"sender_id"`
	RecipientID     uuid.UUID         `json:"recipient_id" cql:"recipient_id"`
	Content         string            `json:"content" cql:"content"`
	MessageType     string            `json:"message_type" cql:"message_type"` // text, image, file
	Reactions       map[string]string `json:"reactions,omitempty" cql:"reactions"` // reacting user id -> emoji
	CreatedAt       time.Time         `json:"created_at" cql:"created_at"`
}

// MessageResponse is the history projection returned to a client
type MessageResponse struct {
	MessageID uuid.UUID          `json:"id"`
	FromSelf  bool               `json:"from_self"`
	Message   string             `json:"message"`
	Type      string             `json:"type"`
	Reactions []ReactionResponse `json:"reactions,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// ReactionResponse is a single reaction on a message
type ReactionResponse struct {
	From  uuid.UUID `json:"from"`
	Emoji string    `json:"emoji"`
}

// ConversationKey returns the canonical partition key for a user pair.
// The two ids are ordered so both directions map to the same partition.
func ConversationKey(a, b uuid.UUID) string {
	as, bs := a.String(), b.String()
	if strings.Compare(as, bs) > 0 {
		as, bs = bs, as
	}
	return as + ":" + bs
}

// BucketDuration is the width of one time bucket in the messages table
const BucketDuration = 30 * 24 * time.Hour

// CalculateBucket maps a timestamp to its partition bucket
func CalculateBucket(t time.Time) int {
	return int(t.Unix() / int64(BucketDuration.Seconds()))
}

// Participant reports whether userID is one of the two parties of the message
func (m *Message) Participant(userID uuid.UUID) bool {
	return m.SenderID == userID || m.RecipientID == userID
}

// ToResponse projects the message relative to the requesting user
func (m *Message) ToResponse(viewer uuid.UUID) *MessageResponse {
	resp := &MessageResponse{
		MessageID: m.MessageID,
		FromSelf:  m.SenderID == viewer,
		Message:   m.Content,
		Type:      m.MessageType,
		CreatedAt: m.CreatedAt,
	}
	for from, emoji := range m.Reactions {
		id, err := uuid.Parse(from)
		if err != nil {
			continue
		}
		resp.Reactions = append(resp.Reactions, ReactionResponse{From: id, Emoji: emoji})
	}
	return resp
}

// Validate checks message fields before persistence
func (m *Message) Validate() error {
	if m.Content == "" {
		return fmt.Errorf("message content is empty")
	}
	switch m.MessageType {
	case "text", "image", "file":
		return nil
	default:
		return fmt.Errorf("unknown message type %q", m.MessageType)
	}
}
