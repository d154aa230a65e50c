package realtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatlink-backend/pkg/constants"
	"chatlink-backend/pkg/metrics"
)

// MessageStore is the durable message collaborator. Append persists a
// chat message and returns the server-assigned identifier the relay
// attaches before forwarding.
type MessageStore interface {
	Append(ctx context.Context, senderID, recipientID uuid.UUID, content, messageType string) (uuid.UUID, error)
}

// ReactionStore is the durable reaction collaborator
type ReactionStore interface {
	UpsertReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error
}

// Relay forwards point-to-point events between the two parties of a
// conversation. It is stateless: a lookup, at most one forward, and no
// queueing, retries, or dedup. A miss on the target is a silent drop.
type Relay struct {
	registry  *Registry
	messages  MessageStore
	reactions ReactionStore
	metrics   *metrics.Metrics
	log       *zap.Logger
}

// NewRelay creates an event relay. metrics may be nil.
func NewRelay(registry *Registry, messages MessageStore, reactions ReactionStore, m *metrics.Metrics, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		registry:  registry,
		messages:  messages,
		reactions: reactions,
		metrics:   m,
		log:       log,
	}
}

// RelayMessage persists a chat message and forwards it to the recipient
// tagged with the sender and the persisted id. Persistence happens
// before the forward so an unpersisted message is never delivered; a
// store failure is returned to the caller and nothing is forwarded.
func (r *Relay) RelayMessage(ctx context.Context, from uuid.UUID, p *SendMsgPayload) error {
	if p.Msg.Text == "" {
		return fmt.Errorf("empty message")
	}
	if len(p.Msg.Text) > constants.MaxMessageLength {
		return fmt.Errorf("message exceeds %d bytes", constants.MaxMessageLength)
	}
	msgType := p.Msg.Type
	if msgType == "" {
		msgType = "text"
	}

	id, err := r.messages.Append(ctx, from, p.To, p.Msg.Text, msgType)
	if err != nil {
		return fmt.Errorf("failed to persist message: %w", err)
	}

	r.forward(p.To, EventMsgReceive, &MsgReceivePayload{
		ID:      id,
		From:    from,
		Message: p.Msg.Text,
		Type:    msgType,
	})
	return nil
}

// RelayTyping forwards a typing start or stop indicator
func (r *Relay) RelayTyping(from, to uuid.UUID, start bool) {
	event := EventTypingReceive
	if !start {
		event = EventStopTypingReceive
	}
	r.forward(to, event, &PeerPayload{From: from})
}

// RelayReaction persists a reaction update and forwards it to the other
// participant. As with messages, a store failure means nothing is
// forwarded.
func (r *Relay) RelayReaction(ctx context.Context, from uuid.UUID, p *AddReactionPayload) error {
	if p.Emoji == "" {
		return fmt.Errorf("empty reaction")
	}

	if err := r.reactions.UpsertReaction(ctx, p.MessageID, from, p.Emoji); err != nil {
		return fmt.Errorf("failed to persist reaction: %w", err)
	}

	r.forward(p.To, EventReactionReceive, &ReactionReceivePayload{
		MessageID: p.MessageID,
		Emoji:     p.Emoji,
		From:      from,
	})
	return nil
}

// forward performs the single best-effort delivery attempt. An offline
// target or a saturated connection drops the event without error.
func (r *Relay) forward(to uuid.UUID, event string, payload interface{}) {
	conn, ok := r.registry.Lookup(to)
	if !ok {
		r.log.Debug("relay drop: target offline",
			zap.String("event", event),
			zap.String("to", to.String()))
		if r.metrics != nil {
			r.metrics.EventDropped(event)
		}
		return
	}

	frame, err := EncodeFrame(event, payload)
	if err != nil {
		r.log.Error("relay encode failed", zap.String("event", event), zap.Error(err))
		return
	}

	if conn.Send(frame) {
		if r.metrics != nil {
			r.metrics.EventRelayed(event)
		}
	} else if r.metrics != nil {
		r.metrics.EventDropped(event)
	}
}
