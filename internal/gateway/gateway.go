package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// Gateway is the entry point used by the transport: connect, disconnect and
// one inbound frame at a time per connection.
type Gateway struct {
	registry *Registry
	router   *Router
	typing   *TypingPropagator
	presence *PresenceBroadcaster
	logger   *slog.Logger
}

// New wires a Gateway around registry, persisting chat messages to store.
func New(registry *Registry, store MessageStore, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		registry: registry,
		router:   NewRouter(registry, store, logger),
		typing:   NewTypingPropagator(registry, logger),
		presence: NewPresenceBroadcaster(registry, logger),
		logger:   logger,
	}
}

// Registry returns the underlying registry.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// Router returns the message router.
func (g *Gateway) Router() *Router {
	return g.router
}

// Typing returns the typing propagator.
func (g *Gateway) Typing() *TypingPropagator {
	return g.typing
}

// Connect registers an authenticated connection. A connection whose identity
// was already online gets the current snapshot directly, since no
// registry-wide broadcast happens for it.
func (g *Gateway) Connect(identity Identity, conn Conn) error {
	online, err := g.registry.Register(identity, conn)
	if err != nil {
		return err
	}
	if !online {
		g.presence.SendSnapshot(conn)
	}
	g.logger.Info("user connected", "userId", identity.UserID, "username", identity.Username, "connectionId", conn.ID())
	return nil
}

// Disconnect deregisters a connection. Unknown ids are logged and ignored.
func (g *Gateway) Disconnect(connectionID string) {
	identity, _ := g.registry.Identity(connectionID)
	if _, err := g.registry.Deregister(connectionID); err != nil {
		g.logger.Warn("disconnect of unknown connection", "connectionId", connectionID, "error", err)
		return
	}
	g.logger.Info("user disconnected", "userId", identity.UserID, "username", identity.Username, "connectionId", connectionID)
}

type typingPayload struct {
	Room        string `json:"room"`
	RecipientID string `json:"recipientId"`
}

// Handle processes one inbound frame from connectionID. Client-caused failures
// are answered with an error event on that connection and returned; they never
// affect other connections.
func (g *Gateway) Handle(ctx context.Context, connectionID string, frame []byte) error {
	identity, ok := g.registry.Identity(connectionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, connectionID)
	}

	err := g.dispatch(ctx, connectionID, identity, frame)
	if err != nil && !errors.Is(err, ErrNotFound) {
		g.logger.Debug("event rejected", "connectionId", connectionID, "userId", identity.UserID, "error", err)
		g.replyError(connectionID, err)
	}
	return err
}

func (g *Gateway) dispatch(ctx context.Context, connectionID string, identity Identity, frame []byte) error {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	switch env.Event {
	case EventMessageSend:
		var req SendRequest
		if err := decodeObject(env.Data, &req); err != nil {
			return err
		}
		_, err := g.router.Route(ctx, identity, req)
		return err

	case EventTypingStart, EventTypingStop:
		var p typingPayload
		if err := decodeObject(env.Data, &p); err != nil {
			return err
		}
		g.typing.Announce(identity, p.Room, p.RecipientID, env.Event == EventTypingStart)
		return nil

	case EventRoomJoin:
		room, err := decodeName(env.Data, "room")
		if err != nil {
			return err
		}
		if err := g.registry.Join(connectionID, room); err != nil {
			return err
		}
		g.logger.Info("joined room", "username", identity.Username, "room", room)
		return nil

	case EventRoomLeave:
		room, err := decodeName(env.Data, "room")
		if err != nil {
			return err
		}
		if err := g.registry.Leave(connectionID, room); err != nil {
			return err
		}
		g.logger.Info("left room", "username", identity.Username, "room", room)
		return nil

	case EventPrivateJoin:
		recipientID, err := decodeName(env.Data, "recipientId")
		if err != nil {
			return err
		}
		if recipientID == "" {
			return fmt.Errorf("%w: recipient is required", ErrInvalidRecipient)
		}
		return g.registry.Join(connectionID, PrivateRoomName(identity.UserID, recipientID))

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func (g *Gateway) replyError(connectionID string, cause error) {
	frame, err := Encode(EventError, ErrorPayload{Message: ClientMessage(cause)})
	if err != nil {
		g.logger.Error("failed to encode error event", "error", err)
		return
	}
	deliver(g.logger, g.registry.Conns([]string{connectionID}), frame)
}

// decodeObject unmarshals an object payload. A missing payload leaves v at its
// zero value.
func decodeObject(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// decodeName accepts either a bare JSON string or an object carrying the name
// under key.
func decodeName(data json.RawMessage, key string) (string, error) {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		return name, nil
	}

	var obj map[string]json.RawMessage
	if err := decodeObject(data, &obj); err != nil {
		return "", err
	}
	raw, ok := obj[key]
	if !ok {
		return "", nil
	}
	if err := json.Unmarshal(raw, &name); err != nil {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidPayload, key)
	}
	return name, nil
}
