package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallState is the lifecycle state of a signaling session
type CallState int

const (
	// CallRinging means the offer has been relayed and no answer has arrived
	CallRinging CallState = iota
	// CallAccepted means the answer has been relayed back to the caller
	CallAccepted
	// CallEnded is terminal; the session is discarded on reaching it
	CallEnded
)

// String returns the state name
func (s CallState) String() string {
	switch s {
	case CallRinging:
		return "ringing"
	case CallAccepted:
		return "accepted"
	case CallEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// CallSession is the ephemeral per-call state owned by the signaling
// coordinator. Nothing about it is persisted; a process restart drops
// all sessions by design.
type CallSession struct {
	CallerID   uuid.UUID
	CalleeID   uuid.UUID
	CallerName string
	State      CallState
	StartedAt  time.Time
}

// Party reports whether userID is the caller or callee of this session
func (s *CallSession) Party(userID uuid.UUID) bool {
	return s.CallerID == userID || s.CalleeID == userID
}

// OtherParty returns the peer of userID in this session
func (s *CallSession) OtherParty(userID uuid.UUID) uuid.UUID {
	if s.CallerID == userID {
		return s.CalleeID
	}
	return s.CallerID
}
