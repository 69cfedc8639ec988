package gateway

import (
	"context"
	"time"
)

// DefaultRoom is the public room every connection joins on connect.
const DefaultRoom = "general"

// MaxContentLength is the maximum number of characters in a chat message.
const MaxContentLength = 2000

// MaxRoomNameLength bounds explicitly joined room names.
const MaxRoomNameLength = 100

// Identity is the authenticated user attached to a connection.
type Identity struct {
	UserID    string `json:"id"`
	Username  string `json:"username"`
	AvatarRef string `json:"avatar,omitempty"`
}

// Conn is a live transport session the gateway can push frames to.
// Send must not block; implementations buffer or drop.
type Conn interface {
	ID() string
	Send(data []byte) error
}

// MessageKind classifies chat message content.
type MessageKind string

// Supported message kinds.
const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindFile  MessageKind = "file"
)

// Valid reports whether k is a known kind.
func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindFile:
		return true
	}
	return false
}

// ChatMessage is a routed chat message. It is created by the Router and never
// mutated after it has been persisted.
type ChatMessage struct {
	ID          string      `json:"id"`
	Sender      Identity    `json:"sender"`
	Content     string      `json:"content"`
	Kind        MessageKind `json:"type"`
	Room        string      `json:"room"`
	RecipientID string      `json:"recipientId,omitempty"`
	IsPrivate   bool        `json:"isPrivate"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// MessageStore persists chat messages and returns the stored id.
type MessageStore interface {
	Save(ctx context.Context, msg *ChatMessage) (string, error)
}

// TypingEvent is an ephemeral typing-state notice. It is never persisted.
type TypingEvent struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	Room        string `json:"room,omitempty"`
	RecipientID string `json:"recipientId,omitempty"`
}

// PresenceSnapshot is the full set of currently online identities.
type PresenceSnapshot []Identity

// PresenceChange describes a single online/offline flip of an identity.
type PresenceChange struct {
	Identity Identity
	Online   bool
	At       time.Time
}

// PresenceObserver is notified after every registry mutation that flips an
// identity between online and offline.
type PresenceObserver interface {
	OnPresenceChange(change PresenceChange)
}

// PresenceObserverFunc adapts a function to PresenceObserver.
type PresenceObserverFunc func(change PresenceChange)

// OnPresenceChange calls f(change).
func (f PresenceObserverFunc) OnPresenceChange(change PresenceChange) {
	f(change)
}
