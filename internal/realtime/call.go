package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatlink-backend/internal/domain"
	"chatlink-backend/pkg/metrics"
)

// Call outcomes reported to metrics
const (
	callOutcomeAnswered   = "answered"
	callOutcomeUnanswered = "unanswered"
	callOutcomeAborted    = "aborted"
)

type sessionKey struct {
	caller uuid.UUID
	callee uuid.UUID
}

// CallCoordinator drives the per-call signaling state machine on top of
// the registry: Ringing -> Accepted -> Ended, never backward. One
// active session per ordered (caller, callee) pair; the sessions map
// holds non-ended sessions only. Everything is fire and forget: no
// acknowledgement, retry, or timeout lives here.
type CallCoordinator struct {
	mu       sync.Mutex
	sessions map[sessionKey]*domain.CallSession

	registry *Registry
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewCallCoordinator creates a coordinator. metrics may be nil.
func NewCallCoordinator(registry *Registry, m *metrics.Metrics, log *zap.Logger) *CallCoordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &CallCoordinator{
		sessions: make(map[sessionKey]*domain.CallSession),
		registry: registry,
		metrics:  m,
		log:      log,
	}
}

// Initiate creates a Ringing session and relays the offer to the
// callee. The attempt is silently ignored when the callee is offline or
// already the target of a non-ended session; the caller applies its own
// timeout, mirroring best-effort semantics.
func (c *CallCoordinator) Initiate(callerID uuid.UUID, p *CallUserPayload) {
	calleeConn, online := c.registry.Lookup(p.UserToCall)
	if !online {
		c.log.Debug("call drop: callee offline",
			zap.String("caller", callerID.String()),
			zap.String("callee", p.UserToCall.String()))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := sessionKey{caller: callerID, callee: p.UserToCall}
	if _, exists := c.sessions[key]; exists {
		return
	}
	for k := range c.sessions {
		if k.callee == p.UserToCall {
			// Callee already being rung or in a call as target; a callee
			// mid-call as *caller* stays reachable (documented limitation,
			// no global per-user exclusivity).
			c.log.Debug("call drop: callee busy",
				zap.String("callee", p.UserToCall.String()))
			return
		}
	}

	c.sessions[key] = &domain.CallSession{
		CallerID:   callerID,
		CalleeID:   p.UserToCall,
		CallerName: p.Name,
		State:      domain.CallRinging,
		StartedAt:  time.Now(),
	}
	if c.metrics != nil {
		c.metrics.CallStarted()
	}

	frame, err := EncodeFrame(EventCallUser, &CallOfferPayload{
		Signal: p.SignalData,
		From:   callerID,
		Name:   p.Name,
	})
	if err != nil {
		c.log.Error("call offer encode failed", zap.Error(err))
		return
	}
	calleeConn.Send(frame)
}

// Accept transitions a Ringing session to Accepted and relays the
// answer payload back to the caller. An accept with no matching Ringing
// session is ignored.
func (c *CallCoordinator) Accept(calleeID uuid.UUID, p *AnswerCallPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := sessionKey{caller: p.To, callee: calleeID}
	session, ok := c.sessions[key]
	if !ok || session.State != domain.CallRinging {
		c.log.Debug("accept ignored: no ringing session",
			zap.String("caller", p.To.String()),
			zap.String("callee", calleeID.String()))
		return
	}

	session.State = domain.CallAccepted

	callerConn, online := c.registry.Lookup(p.To)
	if !online {
		return
	}
	frame, err := EncodeFrame(EventCallAccepted, &CallAcceptedPayload{Signal: p.Signal})
	if err != nil {
		c.log.Error("call answer encode failed", zap.Error(err))
		return
	}
	callerConn.Send(frame)
}

// End terminates the session between the initiator and the other party,
// from any non-terminal state. With no active session it degrades to a
// plain end notification toward the other party, matching the original
// hang-up semantics.
func (c *CallCoordinator) End(initiatorID, otherID uuid.UUID) {
	c.mu.Lock()
	c.remove(initiatorID, otherID, callOutcomeUnanswered)
	c.mu.Unlock()

	c.notifyEnd(otherID, initiatorID)
}

// HandleDisconnect synthesizes an end transition for every non-ended
// session the user is a party to, notifying the remaining party. This
// keeps call state from outliving a mid-call network drop.
func (c *CallCoordinator) HandleDisconnect(userID uuid.UUID) {
	c.mu.Lock()
	var peers []uuid.UUID
	for key, session := range c.sessions {
		if !session.Party(userID) {
			continue
		}
		peers = append(peers, session.OtherParty(userID))
		c.finish(key, session, callOutcomeAborted)
	}
	c.mu.Unlock()

	for _, peer := range peers {
		c.notifyEnd(peer, userID)
	}
}

// ActiveSessions returns the number of non-ended sessions
func (c *CallCoordinator) ActiveSessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// remove drops the session between the two parties in either direction.
// Callers hold c.mu.
func (c *CallCoordinator) remove(a, b uuid.UUID, ringOutcome string) {
	for _, key := range []sessionKey{{caller: a, callee: b}, {caller: b, callee: a}} {
		if session, ok := c.sessions[key]; ok {
			c.finish(key, session, ringOutcome)
		}
	}
}

// finish marks a session Ended, records its outcome, and discards it.
// Callers hold c.mu.
func (c *CallCoordinator) finish(key sessionKey, session *domain.CallSession, ringOutcome string) {
	outcome := ringOutcome
	if session.State == domain.CallAccepted {
		outcome = callOutcomeAnswered
	}
	session.State = domain.CallEnded
	delete(c.sessions, key)

	if c.metrics != nil {
		c.metrics.CallEnded(outcome, time.Since(session.StartedAt))
	}
	c.log.Debug("call ended",
		zap.String("caller", session.CallerID.String()),
		zap.String("callee", session.CalleeID.String()),
		zap.String("outcome", outcome))
}

// notifyEnd relays the end notification to a party if still registered
func (c *CallCoordinator) notifyEnd(to, from uuid.UUID) {
	conn, online := c.registry.Lookup(to)
	if !online {
		return
	}
	conn.Send(MustEncodeFrame(EventEndCall, &PeerPayload{From: from}))
}
