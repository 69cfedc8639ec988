package gateway

import (
	"errors"
	"fmt"
)

// Client-caused failures. They are reported to the originating connection only.
var (
	ErrInvalidContent   = errors.New("invalid message content")
	ErrInvalidRoom      = errors.New("invalid room name")
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrInvalidPayload   = errors.New("invalid event payload")
	ErrUnknownEvent     = errors.New("unknown event")
)

// Content validation failures, both matching ErrInvalidContent.
var (
	ErrContentEmpty   = fmt.Errorf("%w: content is empty", ErrInvalidContent)
	ErrContentTooLong = fmt.Errorf("%w: content exceeds %d characters", ErrInvalidContent, MaxContentLength)
)

// ErrPersistence wraps any Message Store failure. Nothing is delivered when it
// is returned.
var ErrPersistence = errors.New("message persistence failed")

// Bookkeeping anomalies. They are logged and never fatal.
var (
	ErrDuplicateConnection = errors.New("connection already registered")
	ErrNotFound            = errors.New("connection not found")
)

// ClientMessage maps an error to the text sent back in an error event.
func ClientMessage(err error) string {
	switch {
	case errors.Is(err, ErrContentEmpty):
		return "Message content is required"
	case errors.Is(err, ErrContentTooLong):
		return fmt.Sprintf("Message cannot exceed %d characters", MaxContentLength)
	case errors.Is(err, ErrInvalidContent):
		return "Unsupported message type"
	case errors.Is(err, ErrInvalidRecipient):
		return "Recipient is required"
	case errors.Is(err, ErrInvalidRoom):
		return "Invalid room name"
	case errors.Is(err, ErrInvalidPayload):
		return "Invalid event payload"
	case errors.Is(err, ErrUnknownEvent):
		return "Unknown event"
	case errors.Is(err, ErrPersistence):
		return "Failed to send message"
	default:
		return "Request failed"
	}
}
