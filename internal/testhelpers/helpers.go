// Package testhelpers provides common utilities for testing the GoChat server.
//
// It wraps the repetitive parts of HTTP and WebSocket tests: making requests,
// dialing authenticated sockets, and exchanging event envelopes.
package testhelpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gochat/internal/gateway"
)

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request with a 5-second timeout.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// WebSocketURL turns an httptest server URL into the ws:// URL of path.
func WebSocketURL(t *testing.T, serverURL, path string) string {
	t.Helper()
	u, err := url.Parse(serverURL)
	if err != nil {
		t.Fatalf("Failed to parse server URL: %v", err)
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = path
	return u.String()
}

// ConnectWebSocket dials wsURL with the given Origin and bearer token. The
// handshake response is returned for status assertions when dialing fails.
func ConnectWebSocket(wsURL, origin, token string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	if token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := dialer.Dial(wsURL, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// EventConn is a test WebSocket connection with a single reader goroutine.
// Frames are decoded into envelopes and delivered on a channel, so waits use
// timers instead of read deadlines and a timeout never poisons the socket.
type EventConn struct {
	*websocket.Conn

	events chan gateway.Envelope
	done   chan struct{}
	err    error
}

// NewEventConn starts reading conn in the background.
func NewEventConn(conn *websocket.Conn) *EventConn {
	ec := &EventConn{
		Conn:   conn,
		events: make(chan gateway.Envelope, 256),
		done:   make(chan struct{}),
	}
	go ec.readLoop()
	return ec
}

func (ec *EventConn) readLoop() {
	defer close(ec.done)
	for {
		_, data, err := ec.Conn.ReadMessage()
		if err != nil {
			ec.err = err
			return
		}
		var env gateway.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			ec.err = fmt.Errorf("invalid envelope %q: %w", data, err)
			return
		}
		select {
		case ec.events <- env:
		case <-time.After(5 * time.Second):
			ec.err = errors.New("event buffer full")
			return
		}
	}
}

// next returns the next envelope, or ok=false when the reader stopped or
// timer fired first.
func (ec *EventConn) next(timer <-chan time.Time) (gateway.Envelope, bool, error) {
	select {
	case env := <-ec.events:
		return env, true, nil
	case <-ec.done:
		// Drain what the reader queued before it stopped.
		select {
		case env := <-ec.events:
			return env, true, nil
		default:
			return gateway.Envelope{}, false, fmt.Errorf("connection closed: %w", ec.err)
		}
	case <-timer:
		return gateway.Envelope{}, false, nil
	}
}

// WaitClosed waits for the server to end the connection and returns the read
// error that stopped the reader. It fails the test on timeout.
func (ec *EventConn) WaitClosed(t *testing.T, timeout time.Duration) error {
	t.Helper()
	select {
	case <-ec.done:
		return ec.err
	case <-time.After(timeout):
		t.Fatalf("connection still open after %v", timeout)
		return nil
	}
}

// SendEvent writes one event envelope.
func SendEvent(ec *EventConn, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return ec.WriteJSON(gateway.Envelope{Event: event, Data: payload})
}

// WaitForEvent returns the first envelope named event, skipping everything
// else. It fails the test on timeout or when the connection closes.
func WaitForEvent(t *testing.T, ec *EventConn, event string, timeout time.Duration) gateway.Envelope {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		env, ok, err := ec.next(timer.C)
		if err != nil {
			t.Fatalf("failed waiting for %q: %v", event, err)
		}
		if !ok {
			t.Fatalf("timed out waiting for %q", event)
		}
		if env.Event == event {
			return env
		}
	}
}

// ExpectNoEvent asserts that nothing named event arrives within timeout.
// Other events are skipped. The connection stays usable afterwards.
func ExpectNoEvent(t *testing.T, ec *EventConn, event string, timeout time.Duration) {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		env, ok, err := ec.next(timer.C)
		if err != nil {
			t.Fatalf("failed waiting for absence of %q: %v", event, err)
		}
		if !ok {
			return
		}
		if env.Event == event {
			t.Fatalf("unexpected %q event: %s", event, env.Data)
		}
	}
}

// DecodeData unmarshals the envelope payload into v.
func DecodeData(t *testing.T, env gateway.Envelope, v any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("failed to decode %q payload: %v", env.Event, err)
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *EventConn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// Eventually polls cond until it holds or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, format string, args ...any) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, fmt.Sprintf(format, args...))
}
