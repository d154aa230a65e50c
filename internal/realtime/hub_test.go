package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type hubFixture struct {
	hub       *Hub
	registry  *Registry
	messages  *MockMessageStore
	reactions *MockReactionStore
}

func newHubFixture() *hubFixture {
	registry := NewRegistry()
	messages := new(MockMessageStore)
	reactions := new(MockReactionStore)
	log := zap.NewNop()

	presence := NewBroadcaster(registry, nil, log)
	relay := NewRelay(registry, messages, reactions, nil, log)
	calls := NewCallCoordinator(registry, nil, log)

	return &hubFixture{
		hub:       NewHub(registry, presence, relay, calls, log),
		registry:  registry,
		messages:  messages,
		reactions: reactions,
	}
}

// join registers a connection through the hub's internal handler, which
// is what the run loop invokes; tests stay deterministic this way.
func (f *hubFixture) join(userID uuid.UUID, conn Conn) {
	f.hub.handleRegister(registration{userID: userID, conn: conn})
}

func (f *hubFixture) leave(userID uuid.UUID, conn Conn) {
	f.hub.handleUnregister(registration{userID: userID, conn: conn})
}

func frameFor(t *testing.T, event string, payload interface{}) *Frame {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return &Frame{Event: event, Data: data}
}

func TestHub_PresenceFanOut(t *testing.T) {
	f := newHubFixture()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	bobConn, carolConn := &fakeConn{}, &fakeConn{}

	f.join(bob, bobConn)
	f.join(carol, carolConn)

	aliceConn := &fakeConn{}
	f.join(alice, aliceConn)

	// B and C each see exactly one user-online(A). B also saw C join,
	// so count announcements of A specifically.
	assert.Equal(t, 1, bobConn.countOnlineAnnouncements(t, alice))
	assert.Equal(t, 1, carolConn.countOnlineAnnouncements(t, alice))

	var announced uuid.UUID
	bobConn.lastPayload(t, EventUserOnline, &announced)
	assert.Equal(t, alice, announced)

	// A receives an online-list of exactly {B, C}.
	assert.Equal(t, 1, aliceConn.countEvent(t, EventOnlineList))
	var online []uuid.UUID
	aliceConn.lastPayload(t, EventOnlineList, &online)
	assert.ElementsMatch(t, []uuid.UUID{bob, carol}, online)
}

func TestHub_ReconnectReplacesWithoutDuplicatePresence(t *testing.T) {
	f := newHubFixture()
	alice, bob := uuid.New(), uuid.New()
	bobConn := &fakeConn{}
	f.join(bob, bobConn)

	h1 := &fakeConn{}
	f.join(alice, h1)
	assert.Equal(t, 1, bobConn.countEvent(t, EventUserOnline))

	// Reconnect on a new channel: old handle is closed, no re-announce.
	h2 := &fakeConn{}
	f.join(alice, h2)

	assert.True(t, h1.isClosed())
	assert.Equal(t, 1, bobConn.countEvent(t, EventUserOnline))
	assert.Equal(t, 1, h2.countEvent(t, EventOnlineList))

	// The old channel's close arrives late: must not go offline.
	f.leave(alice, h1)
	assert.Equal(t, 0, bobConn.countEvent(t, EventUserOffline))

	got, ok := f.registry.Lookup(alice)
	assert.True(t, ok)
	assert.Same(t, h2, got.(*fakeConn))
}

func TestHub_TeardownIsComplete(t *testing.T) {
	f := newHubFixture()
	alice, bob := uuid.New(), uuid.New()
	aliceConn, bobConn := &fakeConn{}, &fakeConn{}
	f.join(alice, aliceConn)
	f.join(bob, bobConn)

	// Establish an accepted call between the two.
	f.hub.Dispatch(context.Background(), alice, aliceConn, frameFor(t, EventCallUser, &CallUserPayload{
		UserToCall: bob,
		SignalData: json.RawMessage(`{"sdp":"o"}`),
		Name:       "Alice",
	}))
	f.hub.Dispatch(context.Background(), bob, bobConn, frameFor(t, EventAnswerCall, &AnswerCallPayload{
		To:     alice,
		Signal: json.RawMessage(`{"sdp":"a"}`),
	}))
	assert.Equal(t, 1, f.hub.calls.ActiveSessions())

	// One teardown: registry entry gone, call cleaned up, offline sent.
	f.leave(alice, aliceConn)

	_, ok := f.registry.Lookup(alice)
	assert.False(t, ok)
	assert.Equal(t, 0, f.hub.calls.ActiveSessions())
	assert.Equal(t, 1, bobConn.countEvent(t, EventEndCall))
	assert.Equal(t, 1, bobConn.countEvent(t, EventUserOffline))
}

func TestHub_SendMessageScenario(t *testing.T) {
	f := newHubFixture()
	alice, bob := uuid.New(), uuid.New()
	aliceConn, bobConn := &fakeConn{}, &fakeConn{}
	f.join(alice, aliceConn)
	f.join(bob, bobConn)

	msgID := uuid.New()
	f.messages.On("Append", mock.Anything, alice, bob, "hi", "text").Return(msgID, nil)

	f.hub.Dispatch(context.Background(), alice, aliceConn, frameFor(t, EventSendMsg, &SendMsgPayload{
		To:  bob,
		Msg: MsgBody{Text: "hi", Type: "text"},
	}))

	var got MsgReceivePayload
	bobConn.lastPayload(t, EventMsgReceive, &got)
	assert.Equal(t, alice, got.From)
	assert.Equal(t, "hi", got.Message)
	assert.Equal(t, "text", got.Type)
	assert.Equal(t, msgID, got.ID)

	// After bob disconnects, the same send delivers nothing and raises
	// no error frame toward alice.
	f.leave(bob, bobConn)
	f.messages.On("Append", mock.Anything, alice, bob, "hi again", "text").Return(uuid.New(), nil)

	f.hub.Dispatch(context.Background(), alice, aliceConn, frameFor(t, EventSendMsg, &SendMsgPayload{
		To:  bob,
		Msg: MsgBody{Text: "hi again", Type: "text"},
	}))

	assert.Equal(t, 0, aliceConn.countEvent(t, EventError))
	assert.Equal(t, 1, bobConn.countEvent(t, EventMsgReceive))
}

func TestHub_StoreFailureSurfacesLocalError(t *testing.T) {
	f := newHubFixture()
	alice, bob := uuid.New(), uuid.New()
	aliceConn, bobConn := &fakeConn{}, &fakeConn{}
	f.join(alice, aliceConn)
	f.join(bob, bobConn)

	f.messages.On("Append", mock.Anything, alice, bob, "hi", "text").
		Return(uuid.Nil, assert.AnError)

	f.hub.Dispatch(context.Background(), alice, aliceConn, frameFor(t, EventSendMsg, &SendMsgPayload{
		To:  bob,
		Msg: MsgBody{Text: "hi", Type: "text"},
	}))

	assert.Equal(t, 1, aliceConn.countEvent(t, EventError))
	assert.Equal(t, 0, bobConn.countEvent(t, EventMsgReceive))
}

func TestHub_MalformedPayloadIsDropped(t *testing.T) {
	f := newHubFixture()
	alice := uuid.New()
	aliceConn := &fakeConn{}
	f.join(alice, aliceConn)
	framesBefore := len(aliceConn.events(t))

	f.hub.Dispatch(context.Background(), alice, aliceConn, &Frame{
		Event: EventSendMsg,
		Data:  json.RawMessage(`"not an object"`),
	})

	// The join's online-list is expected; the bad frame adds nothing.
	assert.Len(t, aliceConn.events(t), framesBefore)
	assert.Equal(t, 0, aliceConn.countEvent(t, EventError))
	f.messages.AssertNotCalled(t, "Append")
}

func TestHub_RunLoopLifecycle(t *testing.T) {
	f := newHubFixture()
	go f.hub.Run()
	defer f.hub.Stop()

	alice := uuid.New()
	bob := uuid.New()
	aliceConn, bobConn := &fakeConn{}, &fakeConn{}

	f.hub.Register(alice, aliceConn)
	f.hub.Register(bob, bobConn)

	assert.Eventually(t, func() bool {
		return f.registry.Count() == 2
	}, time.Second, 5*time.Millisecond)

	f.hub.Unregister(alice, aliceConn)

	assert.Eventually(t, func() bool {
		return bobConn.countEvent(t, EventUserOffline) == 1
	}, time.Second, 5*time.Millisecond)
}
