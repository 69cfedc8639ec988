package server

import (
	"errors"
	"strings"
)

var (
	// ErrConnectionClosed is returned by Client.Send after the client has been closed.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned by Client.Send when the outbound queue is full.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrHubClosed is returned when a client is handed to a hub that has shut down.
	ErrHubClosed = errors.New("hub closed")
)

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
