package gateway

import (
	"encoding/json"
	"log/slog"
	"time"
)

// Inbound event names.
const (
	EventMessageSend = "message:send"
	EventTypingStart = "typing:start"
	EventTypingStop  = "typing:stop"
	EventRoomJoin    = "room:join"
	EventRoomLeave   = "room:leave"
	EventPrivateJoin = "private:join"
)

// Outbound event names.
const (
	EventUsersOnline     = "users:online"
	EventUserJoined      = "user:joined"
	EventUserLeft        = "user:left"
	EventMessageReceived = "message:received"
	EventUserTyping      = "user:typing"
	EventUserStopTyping  = "user:stopped-typing"
	EventError           = "error"
)

// Envelope is the frame format exchanged with clients in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ErrorPayload is the body of an outbound error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// UserJoinedPayload announces an identity that came online.
type UserJoinedPayload struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	AvatarRef string `json:"avatar,omitempty"`
}

// UserLeftPayload announces an identity that went offline.
type UserLeftPayload struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	LastSeen time.Time `json:"lastSeen"`
}

// Encode wraps payload in an Envelope and marshals it.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// deliver pushes a frame to each connection. A failed send is logged and
// never stops delivery to the remaining connections.
func deliver(logger *slog.Logger, conns []Conn, frame []byte) int {
	delivered := 0
	for _, c := range conns {
		if err := c.Send(frame); err != nil {
			logger.Debug("dropped frame", "connectionId", c.ID(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// dedupe returns the ids in order of first appearance without repeats.
func dedupe(groups ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, ids := range groups {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// without returns ids minus every id in exclude.
func without(ids, exclude []string) []string {
	if len(exclude) == 0 {
		return ids
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
