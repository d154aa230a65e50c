package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PresenceStore mirrors online/offline transitions into an external
// store so REST consumers can answer presence queries without the
// in-process registry. The mirror is best-effort: failures are logged
// and never affect the realtime path.
type PresenceStore interface {
	SetUserOnline(ctx context.Context, userID uuid.UUID) error
	SetUserOffline(ctx context.Context, userID uuid.UUID) error
	RefreshPresence(ctx context.Context, userID uuid.UUID) error
}

// Broadcaster translates registry transitions into presence
// notifications for connected peers.
type Broadcaster struct {
	registry *Registry
	store    PresenceStore // optional
	log      *zap.Logger
}

// NewBroadcaster creates a presence broadcaster. store may be nil.
func NewBroadcaster(registry *Registry, store PresenceStore, log *zap.Logger) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{registry: registry, store: store, log: log}
}

// UserOnline announces a fresh registration: every other connection
// receives user-online, and the newcomer receives a one-time
// online-list snapshot reflecting the post-registration state.
func (b *Broadcaster) UserOnline(userID uuid.UUID, conn Conn) {
	b.registry.Broadcast(MustEncodeFrame(EventUserOnline, userID), userID)
	b.SendOnlineList(userID, conn)
	b.mirror(userID, true)
}

// SendOnlineList delivers the current snapshot, minus the user itself,
// to the given connection.
func (b *Broadcaster) SendOnlineList(userID uuid.UUID, conn Conn) {
	snapshot := b.registry.Snapshot()
	online := make([]uuid.UUID, 0, len(snapshot))
	for _, id := range snapshot {
		if id != userID {
			online = append(online, id)
		}
	}
	conn.Send(MustEncodeFrame(EventOnlineList, online))
}

// UserOffline announces an effective unregistration to every remaining
// connection.
func (b *Broadcaster) UserOffline(userID uuid.UUID) {
	b.registry.Broadcast(MustEncodeFrame(EventUserOffline, userID), userID)
	b.mirror(userID, false)
}

// RefreshMirror extends the mirror lifetime of every registered user.
// The hub calls it on a timer so a connection that outlives the mirror
// key TTL does not read as offline while still live.
func (b *Broadcaster) RefreshMirror() {
	if b.store == nil {
		return
	}
	snapshot := b.registry.Snapshot()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		b.refresh(ctx, snapshot)
	}()
}

func (b *Broadcaster) refresh(ctx context.Context, userIDs []uuid.UUID) {
	for _, userID := range userIDs {
		if err := b.store.RefreshPresence(ctx, userID); err != nil {
			b.log.Warn("presence refresh failed",
				zap.String("user_id", userID.String()),
				zap.Error(err))
		}
	}
}

// mirror updates the external presence store off the hub's critical
// path; the realtime state is authoritative regardless of the outcome.
func (b *Broadcaster) mirror(userID uuid.UUID, online bool) {
	if b.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		var err error
		if online {
			err = b.store.SetUserOnline(ctx, userID)
		} else {
			err = b.store.SetUserOffline(ctx, userID)
		}
		if err != nil {
			b.log.Warn("presence mirror update failed",
				zap.String("user_id", userID.String()),
				zap.Bool("online", online),
				zap.Error(err))
		}
	}()
}
