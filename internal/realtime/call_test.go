package realtime

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestCoordinator() (*CallCoordinator, *Registry) {
	registry := NewRegistry()
	return NewCallCoordinator(registry, nil, zap.NewNop()), registry
}

func offer(callee uuid.UUID) *CallUserPayload {
	return &CallUserPayload{
		UserToCall: callee,
		SignalData: json.RawMessage(`{"sdp":"offer"}`),
		Name:       "Alice",
	}
}

func TestCall_FullLifecycle(t *testing.T) {
	coordinator, registry := newTestCoordinator()
	alice, bob := uuid.New(), uuid.New()
	aliceConn, bobConn := &fakeConn{}, &fakeConn{}
	registry.Register(alice, aliceConn)
	registry.Register(bob, bobConn)

	// initiate: exactly one offer reaches the callee
	coordinator.Initiate(alice, offer(bob))
	assert.Equal(t, 1, coordinator.ActiveSessions())
	assert.Equal(t, 1, bobConn.countEvent(t, EventCallUser))

	var got CallOfferPayload
	bobConn.lastPayload(t, EventCallUser, &got)
	assert.Equal(t, alice, got.From)
	assert.Equal(t, "Alice", got.Name)
	assert.JSONEq(t, `{"sdp":"offer"}`, string(got.Signal))

	// accept: exactly one answer reaches the caller
	coordinator.Accept(bob, &AnswerCallPayload{To: alice, Signal: json.RawMessage(`{"sdp":"answer"}`)})
	assert.Equal(t, 1, aliceConn.countEvent(t, EventCallAccepted))

	var accepted CallAcceptedPayload
	aliceConn.lastPayload(t, EventCallAccepted, &accepted)
	assert.JSONEq(t, `{"sdp":"answer"}`, string(accepted.Signal))

	// end: exactly one end notification reaches the other party
	coordinator.End(alice, bob)
	assert.Equal(t, 0, coordinator.ActiveSessions())
	assert.Equal(t, 1, bobConn.countEvent(t, EventEndCall))

	// a second accept after the session ended is a no-op
	coordinator.Accept(bob, &AnswerCallPayload{To: alice, Signal: json.RawMessage(`{}`)})
	assert.Equal(t, 1, aliceConn.countEvent(t, EventCallAccepted))
}

func TestCall_InitiateOfflineCalleeIsSilent(t *testing.T) {
	coordinator, registry := newTestCoordinator()
	alice := uuid.New()
	aliceConn := &fakeConn{}
	registry.Register(alice, aliceConn)

	coordinator.Initiate(alice, offer(uuid.New()))

	// No session, no ring, and nothing surfaced to the caller.
	assert.Equal(t, 0, coordinator.ActiveSessions())
	assert.Empty(t, aliceConn.events(t))
}

func TestCall_CalleeAlreadyRingingIsSilent(t *testing.T) {
	coordinator, registry := newTestCoordinator()
	alice, carol, bob := uuid.New(), uuid.New(), uuid.New()
	bobConn := &fakeConn{}
	registry.Register(alice, &fakeConn{})
	registry.Register(carol, &fakeConn{})
	registry.Register(bob, bobConn)

	coordinator.Initiate(alice, offer(bob))
	coordinator.Initiate(carol, offer(bob))

	assert.Equal(t, 1, coordinator.ActiveSessions())
	assert.Equal(t, 1, bobConn.countEvent(t, EventCallUser))
}

func TestCall_AcceptWithoutRingingIsIgnored(t *testing.T) {
	coordinator, registry := newTestCoordinator()
	alice, bob := uuid.New(), uuid.New()
	aliceConn := &fakeConn{}
	registry.Register(alice, aliceConn)
	registry.Register(bob, &fakeConn{})

	coordinator.Accept(bob, &AnswerCallPayload{To: alice, Signal: json.RawMessage(`{}`)})

	assert.Empty(t, aliceConn.events(t))
}

func TestCall_EndWithoutSessionStillNotifies(t *testing.T) {
	coordinator, registry := newTestCoordinator()
	alice, bob := uuid.New(), uuid.New()
	bobConn := &fakeConn{}
	registry.Register(alice, &fakeConn{})
	registry.Register(bob, bobConn)

	// Hang-up with no active session degrades to a plain notification.
	coordinator.End(alice, bob)

	assert.Equal(t, 1, bobConn.countEvent(t, EventEndCall))
}

func TestCall_DisconnectCleanup(t *testing.T) {
	coordinator, registry := newTestCoordinator()
	alice, bob := uuid.New(), uuid.New()
	aliceConn, bobConn := &fakeConn{}, &fakeConn{}
	registry.Register(alice, aliceConn)
	registry.Register(bob, bobConn)

	coordinator.Initiate(alice, offer(bob))
	coordinator.Accept(bob, &AnswerCallPayload{To: alice, Signal: json.RawMessage(`{}`)})
	assert.Equal(t, 1, coordinator.ActiveSessions())

	// Mid-call drop: alice's registry entry disappears.
	registry.Unregister(alice, aliceConn)
	coordinator.HandleDisconnect(alice)

	assert.Equal(t, 0, coordinator.ActiveSessions())
	assert.Equal(t, 1, bobConn.countEvent(t, EventEndCall))

	var peer PeerPayload
	bobConn.lastPayload(t, EventEndCall, &peer)
	assert.Equal(t, alice, peer.From)
}

func TestCall_DisconnectWithNoSessionIsNoOp(t *testing.T) {
	coordinator, registry := newTestCoordinator()
	bob := uuid.New()
	bobConn := &fakeConn{}
	registry.Register(bob, bobConn)

	coordinator.HandleDisconnect(uuid.New())

	assert.Empty(t, bobConn.events(t))
}

func TestCall_NoBackwardTransition(t *testing.T) {
	coordinator, registry := newTestCoordinator()
	alice, bob := uuid.New(), uuid.New()
	bobConn := &fakeConn{}
	registry.Register(alice, &fakeConn{})
	registry.Register(bob, bobConn)

	coordinator.Initiate(alice, offer(bob))
	coordinator.Accept(bob, &AnswerCallPayload{To: alice, Signal: json.RawMessage(`{}`)})

	// A repeat initiate for the same pair must not re-ring an accepted call.
	coordinator.Initiate(alice, offer(bob))

	assert.Equal(t, 1, coordinator.ActiveSessions())
	assert.Equal(t, 1, bobConn.countEvent(t, EventCallUser))
}
