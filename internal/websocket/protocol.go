package websocket

import (
	"encoding/json"
)

// Error codes sent in ERROR events
const (
	ErrCodeInvalidMessage = "invalid_message"
	ErrCodeUnknownEvent   = "unknown_event"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeInternal       = "internal_error"
)

// Message is an inbound frame. Outbound frames are realtime.Event values.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EmitPayload is what other services publish on the emit topic: deliver Event with
// Data to whichever of Users are connected.
type EmitPayload struct {
	Event string          `json:"event"`
	Users []string        `json:"users"`
	Data  json.RawMessage `json:"data,omitempty"`
}
