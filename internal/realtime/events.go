// Package realtime implements the presence and relay core: the
// connection registry, presence broadcast, point-to-point event relay,
// and the call signaling state machine. All state here is volatile;
// the package promises best-effort delivery only while both parties
// hold an open channel.
package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Event names carried on the realtime channel
const (
	// client -> server
	EventAddUser     = "add-user"
	EventSendMsg     = "send-msg"
	EventTyping      = "typing"
	EventStopTyping  = "stop-typing"
	EventAddReaction = "add-reaction"
	EventCallUser    = "call-user"
	EventAnswerCall  = "answer-call"
	EventEndCall     = "end-call"

	// server -> client
	EventOnlineList        = "online-list"
	EventUserOnline        = "user-online"
	EventUserOffline       = "user-offline"
	EventMsgReceive        = "msg-receive"
	EventTypingReceive     = "typing-receive"
	EventStopTypingReceive = "stop-typing-receive"
	EventReactionReceive   = "reaction-receive"
	EventCallAccepted      = "call-accepted"
	EventError             = "error"
)

// Frame is the tagged JSON envelope for every event on the channel
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeFrame marshals an event with its payload into wire bytes
func EncodeFrame(event string, data interface{}) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", event, err)
		}
		raw = b
	}
	return json.Marshal(&Frame{Event: event, Data: raw})
}

// MustEncodeFrame is EncodeFrame for payloads that cannot fail to marshal
func MustEncodeFrame(event string, data interface{}) []byte {
	b, err := EncodeFrame(event, data)
	if err != nil {
		panic(err)
	}
	return b
}

// MsgBody is the client-authored message content
type MsgBody struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// SendMsgPayload is the client request to relay a chat message
type SendMsgPayload struct {
	To  uuid.UUID `json:"to"`
	Msg MsgBody   `json:"msg"`
}

// MsgReceivePayload is the relayed message delivered to the recipient.
// ID is the server-assigned identifier from the message store.
type MsgReceivePayload struct {
	ID      uuid.UUID `json:"id"`
	From    uuid.UUID `json:"from"`
	Message string    `json:"message"`
	Type    string    `json:"type"`
}

// TypingPayload carries typing start/stop requests
type TypingPayload struct {
	To uuid.UUID `json:"to"`
}

// PeerPayload identifies the counterparty of a relayed notification
type PeerPayload struct {
	From uuid.UUID `json:"from"`
}

// AddReactionPayload is the client request to react to a message
type AddReactionPayload struct {
	To        uuid.UUID `json:"to"`
	MessageID uuid.UUID `json:"messageId"`
	Emoji     string    `json:"emoji"`
}

// ReactionReceivePayload is the relayed reaction update
type ReactionReceivePayload struct {
	MessageID uuid.UUID `json:"messageId"`
	Emoji     string    `json:"emoji"`
	From      uuid.UUID `json:"from"`
}

// CallUserPayload is the caller's offer. SignalData is opaque to the
// core; it is carried to the callee byte for byte.
type CallUserPayload struct {
	UserToCall uuid.UUID       `json:"userToCall"`
	SignalData json.RawMessage `json:"signalData"`
	Name       string          `json:"name"`
}

// CallOfferPayload is the offer as delivered to the callee
type CallOfferPayload struct {
	Signal json.RawMessage `json:"signal"`
	From   uuid.UUID       `json:"from"`
	Name   string          `json:"name"`
}

// AnswerCallPayload is the callee's answer toward the caller
type AnswerCallPayload struct {
	To     uuid.UUID       `json:"to"`
	Signal json.RawMessage `json:"signal"`
}

// CallAcceptedPayload is the answer as delivered to the caller
type CallAcceptedPayload struct {
	Signal json.RawMessage `json:"signal"`
}

// EndCallPayload is the client request to end a call
type EndCallPayload struct {
	To uuid.UUID `json:"to"`
}

// ErrorPayload is a local failure response to the sender. It is never
// used for routing misses, which are silent by contract.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
