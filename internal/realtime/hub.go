package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatlink-backend/pkg/constants"
)

type registration struct {
	userID uuid.UUID
	conn   Conn
}

// Hub owns the connection lifecycle. Registry and call-session
// mutations funnel through its run loop, so connect and teardown are
// processed one at a time: removing the entry, cleaning up call state,
// and broadcasting offline presence happen atomically with respect to
// every other lifecycle event. Relay forwards do not pass through the
// loop; they only use the registry's atomic lookup.
type Hub struct {
	registry *Registry
	presence *Broadcaster
	relay    *Relay
	calls    *CallCoordinator
	log      *zap.Logger

	register   chan registration
	unregister chan registration
	done       chan struct{}
}

// NewHub wires the core components together
func NewHub(registry *Registry, presence *Broadcaster, relay *Relay, calls *CallCoordinator, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		registry:   registry,
		presence:   presence,
		relay:      relay,
		calls:      calls,
		log:        log,
		register:   make(chan registration),
		unregister: make(chan registration),
		done:       make(chan struct{}),
	}
}

// Run processes lifecycle events until Stop is called. It is started
// once, from main. The refresh tick keeps the presence mirror's
// per-user lifetime ahead of its TTL for as long as a registration
// lives.
func (h *Hub) Run() {
	refresh := time.NewTicker(constants.PresenceRefreshInterval)
	defer refresh.Stop()

	for {
		select {
		case reg := <-h.register:
			h.handleRegister(reg)
		case reg := <-h.unregister:
			h.handleUnregister(reg)
		case <-refresh.C:
			h.presence.RefreshMirror()
		case <-h.done:
			return
		}
	}
}

// Stop terminates the run loop
func (h *Hub) Stop() {
	close(h.done)
}

// Register binds an authenticated user to its connection. A repeat
// registration for the same user atomically replaces the previous
// entry; the superseded handle is closed here, never by the registry.
func (h *Hub) Register(userID uuid.UUID, conn Conn) {
	select {
	case h.register <- registration{userID: userID, conn: conn}:
	case <-h.done:
	}
}

// Unregister tears down the connection's registration. A stale close
// from a superseded handle is a no-op.
func (h *Hub) Unregister(userID uuid.UUID, conn Conn) {
	select {
	case h.unregister <- registration{userID: userID, conn: conn}:
	case <-h.done:
	}
}

func (h *Hub) handleRegister(reg registration) {
	prev, fresh := h.registry.Register(reg.userID, reg.conn)

	if prev != nil {
		// Reconnect: drop the superseded channel. Its close event will
		// arrive later and fail the registry's identity guard.
		_ = prev.Close()
		h.log.Debug("connection replaced",
			zap.String("user_id", reg.userID.String()))
	}

	if fresh {
		h.presence.UserOnline(reg.userID, reg.conn)
	} else {
		// No user-online broadcast for a reconnect, but the new channel
		// still wants the snapshot.
		h.presence.SendOnlineList(reg.userID, reg.conn)
	}

	h.log.Info("user registered",
		zap.String("user_id", reg.userID.String()),
		zap.Int("online", h.registry.Count()))
}

func (h *Hub) handleUnregister(reg registration) {
	if !h.registry.Unregister(reg.userID, reg.conn) {
		return
	}

	h.calls.HandleDisconnect(reg.userID)
	h.presence.UserOffline(reg.userID)

	h.log.Info("user unregistered",
		zap.String("user_id", reg.userID.String()),
		zap.Int("online", h.registry.Count()))
}

// Dispatch routes one inbound event from an authenticated connection.
// It runs on the connection's own reader goroutine, so per-connection
// FIFO order is preserved while different connections proceed
// concurrently. Malformed payloads are dropped with a debug log; the
// channel protocol never surfaces protocol misuse to peers.
func (h *Hub) Dispatch(ctx context.Context, userID uuid.UUID, conn Conn, frame *Frame) {
	switch frame.Event {
	case EventSendMsg:
		var p SendMsgPayload
		if !h.decode(frame, &p) {
			return
		}
		ctx, cancel := context.WithTimeout(ctx, constants.DefaultTimeout)
		defer cancel()
		if err := h.relay.RelayMessage(ctx, userID, &p); err != nil {
			h.log.Warn("message relay failed",
				zap.String("from", userID.String()),
				zap.Error(err))
			h.sendError(conn, "MESSAGE_FAILED", "message could not be sent")
		}

	case EventTyping:
		var p TypingPayload
		if h.decode(frame, &p) {
			h.relay.RelayTyping(userID, p.To, true)
		}

	case EventStopTyping:
		var p TypingPayload
		if h.decode(frame, &p) {
			h.relay.RelayTyping(userID, p.To, false)
		}

	case EventAddReaction:
		var p AddReactionPayload
		if !h.decode(frame, &p) {
			return
		}
		ctx, cancel := context.WithTimeout(ctx, constants.DefaultTimeout)
		defer cancel()
		if err := h.relay.RelayReaction(ctx, userID, &p); err != nil {
			h.log.Warn("reaction relay failed",
				zap.String("from", userID.String()),
				zap.Error(err))
			h.sendError(conn, "REACTION_FAILED", "reaction could not be saved")
		}

	case EventCallUser:
		var p CallUserPayload
		if h.decode(frame, &p) {
			h.calls.Initiate(userID, &p)
		}

	case EventAnswerCall:
		var p AnswerCallPayload
		if h.decode(frame, &p) {
			h.calls.Accept(userID, &p)
		}

	case EventEndCall:
		var p EndCallPayload
		if h.decode(frame, &p) {
			h.calls.End(userID, p.To)
		}

	default:
		h.log.Debug("unknown event",
			zap.String("event", frame.Event),
			zap.String("from", userID.String()))
	}
}

func (h *Hub) decode(frame *Frame, v interface{}) bool {
	if err := json.Unmarshal(frame.Data, v); err != nil {
		h.log.Debug("malformed payload",
			zap.String("event", frame.Event),
			zap.Error(err))
		return false
	}
	return true
}

// sendError delivers a local failure response to the sender only
func (h *Hub) sendError(conn Conn, code, message string) {
	conn.Send(MustEncodeFrame(EventError, &ErrorPayload{Code: code, Message: message}))
}
