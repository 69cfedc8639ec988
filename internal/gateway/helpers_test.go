package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

type fakeConn struct {
	id      string
	mu      sync.Mutex
	frames  []Envelope
	sendErr error
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	f.frames = append(f.frames, env)
	return nil
}

func (f *fakeConn) all() []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Envelope(nil), f.frames...)
}

func (f *fakeConn) events(name string) []Envelope {
	var out []Envelope
	for _, env := range f.all() {
		if env.Event == name {
			out = append(out, env)
		}
	}
	return out
}

func (f *fakeConn) names() []string {
	var out []string
	for _, env := range f.all() {
		out = append(out, env.Event)
	}
	return out
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

type fakeStore struct {
	mu    sync.Mutex
	saved []ChatMessage
	err   error
}

func (s *fakeStore) Save(_ context.Context, msg *ChatMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, *msg)
	return fmt.Sprintf("msg-%d", len(s.saved)), nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

var errStoreDown = errors.New("store unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	alice = Identity{UserID: "u-alice", Username: "alice", AvatarRef: "alice.png"}
	bob   = Identity{UserID: "u-bob", Username: "bob"}
	carol = Identity{UserID: "u-carol", Username: "carol"}
)

func decodeData[T any](env Envelope) T {
	var v T
	_ = json.Unmarshal(env.Data, &v)
	return v
}

func frame(event string, data any) []byte {
	raw, err := Encode(event, data)
	if err != nil {
		panic(err)
	}
	return raw
}
