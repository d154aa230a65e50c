package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Conn is the server side of one realtime channel. Implementations must
// make Send and Close safe for concurrent use; Send must never block.
type Conn interface {
	// Send enqueues an encoded frame for delivery. It reports false when
	// the connection is closed or its outbound queue is full; the frame
	// is dropped either way.
	Send(frame []byte) bool

	// Close tears down the underlying channel. Closing an already-closed
	// connection is a no-op.
	Close() error
}

// Registry is the bidirectional map of user id to live connection and
// the single source of truth for who is online. A user has at most one
// entry at any time; all operations are mutually atomic under one lock.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]Conn
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{conns: make(map[uuid.UUID]Conn)}
}

// Register inserts or replaces the entry for userID. It returns the
// superseded connection (nil if none) and whether the user was
// previously absent. The registry only drops its reference to a
// superseded handle; closing it is the caller's responsibility.
func (r *Registry) Register(userID uuid.UUID, conn Conn) (prev Conn, fresh bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev = r.conns[userID]
	r.conns[userID] = conn
	return prev, prev == nil
}

// Unregister removes the entry for userID only while it still refers to
// exactly this connection. The identity check guards against a stale
// close arriving after a reconnect has already replaced the handle.
// It reports whether an entry was actually removed.
func (r *Registry) Unregister(userID uuid.UUID, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[userID] != conn {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Lookup returns the live connection for userID, if any
func (r *Registry) Lookup(userID uuid.UUID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[userID]
	return conn, ok
}

// Snapshot returns the ids of all currently online users
func (r *Registry) Snapshot() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of online users
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Broadcast enqueues the frame on every connection except the one
// registered for the excluded user id.
func (r *Registry) Broadcast(frame []byte, except uuid.UUID) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, conn := range r.conns {
		if id == except {
			continue
		}
		conn.Send(frame)
	}
}
