package realtime

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	registry := NewRegistry()
	userID := uuid.New()
	conn := &fakeConn{}

	prev, fresh := registry.Register(userID, conn)

	assert.Nil(t, prev)
	assert.True(t, fresh)

	got, ok := registry.Lookup(userID)
	assert.True(t, ok)
	assert.Same(t, conn, got.(*fakeConn))
}

func TestRegistry_LookupMiss(t *testing.T) {
	registry := NewRegistry()

	_, ok := registry.Lookup(uuid.New())

	assert.False(t, ok)
}

func TestRegistry_ReplaceKeepsSingleEntry(t *testing.T) {
	registry := NewRegistry()
	userID := uuid.New()
	h1 := &fakeConn{}
	h2 := &fakeConn{}

	registry.Register(userID, h1)
	prev, fresh := registry.Register(userID, h2)

	assert.Same(t, h1, prev.(*fakeConn))
	assert.False(t, fresh)
	assert.Equal(t, 1, registry.Count())

	got, ok := registry.Lookup(userID)
	assert.True(t, ok)
	assert.Same(t, h2, got.(*fakeConn))
}

func TestRegistry_StaleCloseGuard(t *testing.T) {
	registry := NewRegistry()
	userID := uuid.New()
	h1 := &fakeConn{}
	h2 := &fakeConn{}

	registry.Register(userID, h1)
	registry.Register(userID, h2)

	// The old channel's close event arrives after the reconnect; it must
	// not remove the newer registration.
	removed := registry.Unregister(userID, h1)
	assert.False(t, removed)

	got, ok := registry.Lookup(userID)
	assert.True(t, ok)
	assert.Same(t, h2, got.(*fakeConn))

	removed = registry.Unregister(userID, h2)
	assert.True(t, removed)

	_, ok = registry.Lookup(userID)
	assert.False(t, ok)
}

func TestRegistry_Snapshot(t *testing.T) {
	registry := NewRegistry()
	a, b := uuid.New(), uuid.New()

	registry.Register(a, &fakeConn{})
	registry.Register(b, &fakeConn{})

	snapshot := registry.Snapshot()
	assert.Len(t, snapshot, 2)
	assert.ElementsMatch(t, []uuid.UUID{a, b}, snapshot)
}

func TestRegistry_BroadcastExcludesSender(t *testing.T) {
	registry := NewRegistry()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	connA, connB, connC := &fakeConn{}, &fakeConn{}, &fakeConn{}

	registry.Register(a, connA)
	registry.Register(b, connB)
	registry.Register(c, connC)

	frame := MustEncodeFrame(EventUserOnline, a)
	registry.Broadcast(frame, a)

	assert.Empty(t, connA.events(t))
	assert.Equal(t, []string{EventUserOnline}, connB.events(t))
	assert.Equal(t, []string{EventUserOnline}, connC.events(t))
}

func TestRegistry_AtMostOneEntryUnderConcurrency(t *testing.T) {
	registry := NewRegistry()
	userID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		conn := &fakeConn{}
		go func() {
			defer wg.Done()
			registry.Register(userID, conn)
		}()
		go func() {
			defer wg.Done()
			registry.Unregister(userID, conn)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, registry.Count(), 1)
}
