package gateway

import "log/slog"

// TypingPropagator relays typing-state announcements. It keeps no state;
// start and stop cadence is entirely up to the caller.
type TypingPropagator struct {
	registry *Registry
	logger   *slog.Logger
}

// NewTypingPropagator creates a propagator delivering through registry.
func NewTypingPropagator(registry *Registry, logger *slog.Logger) *TypingPropagator {
	if logger == nil {
		logger = slog.Default()
	}
	return &TypingPropagator{registry: registry, logger: logger}
}

// Announce tells the recipient, or the room when no recipient is given, that
// identity started or stopped typing. The announcing identity's own
// connections never receive it. It returns the number of connections notified.
func (p *TypingPropagator) Announce(identity Identity, room, recipientID string, starting bool) int {
	event := TypingEvent{
		UserID:      identity.UserID,
		Username:    identity.Username,
		RecipientID: recipientID,
	}

	var targets []string
	if recipientID != "" {
		targets = p.registry.LookupConnections(recipientID)
	} else {
		if room == "" {
			room = DefaultRoom
		}
		event.Room = room
		targets = p.registry.Members(room)
	}
	targets = without(targets, p.registry.LookupConnections(identity.UserID))
	if len(targets) == 0 {
		return 0
	}

	name := EventUserStopTyping
	if starting {
		name = EventUserTyping
	}
	frame, err := Encode(name, event)
	if err != nil {
		p.logger.Error("failed to encode typing event", "userId", identity.UserID, "error", err)
		return 0
	}
	return deliver(p.logger, p.registry.Conns(targets), frame)
}
