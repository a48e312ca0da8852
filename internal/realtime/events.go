// Package realtime holds the gateway's process-wide connection state: the registry of
// live connections keyed by user, the presence set derived from it, and the router that
// fans an event out to a list of users.
package realtime

import (
	"encoding/json"
	"time"
)

// Event names shared with the web client. These strings are part of the wire contract
// and must not change.
const (
	EventOnlineUsers     = "ONLINE_USERS"
	EventNewMessage      = "NEW_MESSAGE"
	EventNewMessageAlert = "NEW_MESSAGE_ALERT"
	EventStartTyping     = "START_TYPING"
	EventStopTyping      = "STOP_TYPING"
	EventStartVideoCall  = "START_VIDEO_CALL"
	EventStopVideoCall   = "STOP_VIDEO_CALL"
	EventInitVideoCall   = "INIT_VIDEO_CALL"
	EventSendOffer       = "SEND_OFFER"
	EventOffer           = "OFFER"
	EventAnswer          = "ANSWER"
	EventICECandidate    = "ICE_CANDIDATE"
	EventRefetchChats    = "REFETCH_CHATS"
	EventError           = "ERROR"
)

// Event is the envelope for every frame exchanged over a realtime connection.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// NewEvent creates an event with the current timestamp. A nil payload produces an
// event without a payload field (used by SEND_OFFER and STOP_VIDEO_CALL).
func NewEvent(eventType string, payload interface{}) (*Event, error) {
	ev := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
	}
	if payload == nil {
		return ev, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		ev.Payload = raw
		return ev, nil
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	ev.Payload = payloadBytes
	return ev, nil
}

// Encode marshals an event for the wire.
func Encode(eventType string, payload interface{}) ([]byte, error) {
	ev, err := NewEvent(eventType, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ev)
}

// OnlineUsersPayload is the ONLINE_USERS body: a bare array of user ids.
type OnlineUsersPayload []string

// ErrorPayload is sent back to a connection whose inbound event was rejected.
type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
