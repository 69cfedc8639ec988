package gateway

import "log/slog"

// PresenceBroadcaster announces online/offline flips to every connection. Each
// flip produces a full users:online snapshot followed by a user:joined or
// user:left notice, always in that order.
type PresenceBroadcaster struct {
	registry *Registry
	logger   *slog.Logger
}

// NewPresenceBroadcaster creates a broadcaster and subscribes it to registry.
func NewPresenceBroadcaster(registry *Registry, logger *slog.Logger) *PresenceBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	b := &PresenceBroadcaster{registry: registry, logger: logger}
	registry.Observe(b)
	return b
}

// OnPresenceChange implements PresenceObserver.
func (b *PresenceBroadcaster) OnPresenceChange(change PresenceChange) {
	b.OnRegistryChange(change)
}

// OnRegistryChange broadcasts the current snapshot to all connections, then
// the incremental notice to everyone except the changed identity itself.
func (b *PresenceBroadcaster) OnRegistryChange(change PresenceChange) PresenceSnapshot {
	snapshot := b.registry.Online()

	frame, err := Encode(EventUsersOnline, snapshot)
	if err != nil {
		b.logger.Error("failed to encode presence snapshot", "error", err)
		return snapshot
	}
	all := b.registry.ConnectionIDs()
	deliver(b.logger, b.registry.Conns(all), frame)

	var delta []byte
	if change.Online {
		delta, err = Encode(EventUserJoined, UserJoinedPayload{
			UserID:    change.Identity.UserID,
			Username:  change.Identity.Username,
			AvatarRef: change.Identity.AvatarRef,
		})
	} else {
		delta, err = Encode(EventUserLeft, UserLeftPayload{
			UserID:   change.Identity.UserID,
			Username: change.Identity.Username,
			LastSeen: change.At,
		})
	}
	if err != nil {
		b.logger.Error("failed to encode presence notice", "userId", change.Identity.UserID, "error", err)
		return snapshot
	}
	others := without(all, b.registry.LookupConnections(change.Identity.UserID))
	deliver(b.logger, b.registry.Conns(others), delta)

	b.logger.Info("presence changed",
		"userId", change.Identity.UserID,
		"online", change.Online,
		"onlineUsers", len(snapshot))
	return snapshot
}

// SendSnapshot pushes the current snapshot to a single connection.
func (b *PresenceBroadcaster) SendSnapshot(conn Conn) {
	frame, err := Encode(EventUsersOnline, b.registry.Online())
	if err != nil {
		b.logger.Error("failed to encode presence snapshot", "error", err)
		return
	}
	deliver(b.logger, []Conn{conn}, frame)
}
