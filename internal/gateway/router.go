package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// SendRequest is the client-supplied part of a chat message.
type SendRequest struct {
	Content     string      `json:"content"`
	Room        string      `json:"room,omitempty"`
	RecipientID string      `json:"recipientId,omitempty"`
	IsPrivate   bool        `json:"isPrivate,omitempty"`
	Kind        MessageKind `json:"type,omitempty"`
}

// Router validates, persists and fans out chat messages.
type Router struct {
	registry *Registry
	store    MessageStore
	now      func() time.Time
	logger   *slog.Logger
}

// NewRouter creates a Router delivering through registry and persisting to store.
func NewRouter(registry *Registry, store MessageStore, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry: registry,
		store:    store,
		now:      time.Now,
		logger:   logger,
	}
}

// ValidateContent trims content and checks it is non-empty and at most
// MaxContentLength characters.
func ValidateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrContentEmpty
	}
	if utf8.RuneCountInString(trimmed) > MaxContentLength {
		return "", ErrContentTooLong
	}
	return trimmed, nil
}

// Route builds a ChatMessage from req, persists it and delivers it.
//
// Private messages go to every connection of the recipient and of the sender,
// so the sender's other devices see the echo. An offline recipient simply gets
// nothing. Public messages go to the members of the target room. Nothing is
// delivered unless the store accepted the message.
func (r *Router) Route(ctx context.Context, sender Identity, req SendRequest) (*ChatMessage, error) {
	content, err := ValidateContent(req.Content)
	if err != nil {
		return nil, err
	}

	kind := req.Kind
	if kind == "" {
		kind = KindText
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidContent, kind)
	}

	room := req.Room
	if room == "" {
		room = DefaultRoom
	}
	if err := ValidateRoomName(room); err != nil {
		return nil, err
	}

	msg := &ChatMessage{
		Sender:    sender,
		Content:   content,
		Kind:      kind,
		Room:      room,
		IsPrivate: req.IsPrivate,
		CreatedAt: r.now(),
	}
	if req.IsPrivate {
		if req.RecipientID == "" {
			return nil, fmt.Errorf("%w: private message without recipient", ErrInvalidRecipient)
		}
		msg.RecipientID = req.RecipientID
	}

	id, err := r.store.Save(ctx, msg)
	if err != nil {
		r.logger.Error("failed to persist message", "userId", sender.UserID, "room", room, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	msg.ID = id

	frame, err := Encode(EventMessageReceived, msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	targets := r.targets(msg)
	delivered := deliver(r.logger, r.registry.Conns(targets), frame)
	r.logger.Debug("message routed",
		"messageId", msg.ID,
		"userId", sender.UserID,
		"private", msg.IsPrivate,
		"targets", len(targets),
		"delivered", delivered)

	return msg, nil
}

func (r *Router) targets(msg *ChatMessage) []string {
	if msg.IsPrivate {
		return dedupe(
			r.registry.LookupConnections(msg.RecipientID),
			r.registry.LookupConnections(msg.Sender.UserID),
		)
	}
	return dedupe(r.registry.Members(msg.Room))
}
