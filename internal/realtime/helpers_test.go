package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakeConn records everything sent to it and can simulate a saturated
// or closed connection.
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	full   bool
}

func (c *fakeConn) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.full {
		return false
	}
	c.frames = append(c.frames, frame)
	return true
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// events returns the event names of all recorded frames, in order
func (c *fakeConn) events(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	var names []string
	for _, raw := range c.frames {
		var f Frame
		require.NoError(t, json.Unmarshal(raw, &f))
		names = append(names, f.Event)
	}
	return names
}

// countEvent returns how many recorded frames carry the given event
func (c *fakeConn) countEvent(t *testing.T, event string) int {
	t.Helper()
	n := 0
	for _, name := range c.events(t) {
		if name == event {
			n++
		}
	}
	return n
}

// countOnlineAnnouncements returns how many user-online frames announce
// the given user. Peers that joined earlier announce too, so tests for
// a specific join must filter by payload rather than by event name.
func (c *fakeConn) countOnlineAnnouncements(t *testing.T, userID uuid.UUID) int {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, raw := range c.frames {
		var f Frame
		require.NoError(t, json.Unmarshal(raw, &f))
		if f.Event != EventUserOnline {
			continue
		}
		var announced uuid.UUID
		require.NoError(t, json.Unmarshal(f.Data, &announced))
		if announced == userID {
			n++
		}
	}
	return n
}

// lastPayload decodes the payload of the most recent frame with the
// given event name; it fails the test when none exists.
func (c *fakeConn) lastPayload(t *testing.T, event string, v interface{}) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.frames) - 1; i >= 0; i-- {
		var f Frame
		require.NoError(t, json.Unmarshal(c.frames[i], &f))
		if f.Event == event {
			require.NoError(t, json.Unmarshal(f.Data, v))
			return
		}
	}
	t.Fatalf("no %s frame recorded", event)
}
