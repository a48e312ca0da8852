package messaging

import (
	"github.com/tripunite/gateway/internal/realtime"
)

// ============================================================================
// Client -> Server Payloads
// ============================================================================

// NewMessagePayload is the inbound NEW_MESSAGE body.
type NewMessagePayload struct {
	ChatID  string              `json:"chatId"`
	Members realtime.MemberList `json:"members"`
	Message string              `json:"message"`
}

// TypingPayload is the inbound START_TYPING / STOP_TYPING body.
type TypingPayload struct {
	ChatID  string              `json:"chatId"`
	Members realtime.MemberList `json:"members"`
}

// ============================================================================
// Server -> Client Payloads
// ============================================================================

// Sender identifies who wrote a realtime message.
type Sender struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// RealtimeMessage is the ephemeral wire form of a chat message. It is never stored;
// the durable record is domain.Message.
type RealtimeMessage struct {
	ID        string `json:"_id"`
	Content   string `json:"content"`
	Sender    Sender `json:"sender"`
	Chat      string `json:"chat"`
	CreatedAt string `json:"createdAt"`
}

// NewMessageEvent is the outbound NEW_MESSAGE body.
type NewMessageEvent struct {
	ChatID  string          `json:"chatId"`
	Message RealtimeMessage `json:"message"`
}

// ChatEvent carries only a chat id. Used by NEW_MESSAGE_ALERT, START_TYPING and
// STOP_TYPING.
type ChatEvent struct {
	ChatID string `json:"chatId"`
}

// EventError is returned when an inbound event is rejected. The connection stays open.
type EventError struct {
	Code    string
	Message string
}

func (e *EventError) Error() string {
	return e.Message
}
