// Package messaging relays chat messages and typing indicators between the connected
// members of a chat.
//
// Members are taken from the inbound event as sent by the client; they are not checked
// against the chat record. Verifying them would put a store lookup on every relayed
// event, so the gap is left open deliberately and any client can address any user id.
package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tripunite/gateway/internal/domain"
	"github.com/tripunite/gateway/internal/realtime"
)

// Router is the fan-out the relay delivers through.
type Router interface {
	Route(eventType string, userIDs []string, payload interface{}, except realtime.Conn) int
}

// Relay turns inbound chat events into fan-out deliveries and background writes.
type Relay struct {
	router    Router
	persister *Persister
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
}

// NewRelay creates a messaging relay. persister may be nil, in which case messages are
// delivered but not stored.
func NewRelay(router Router, persister *Persister, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		router:    router,
		persister: persister,
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    logger.With("component", "messaging"),
	}
}

// HandleNewMessage processes an inbound NEW_MESSAGE event.
func (r *Relay) HandleNewMessage(ctx context.Context, sender realtime.Conn, payload json.RawMessage) error {
	var p NewMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return &EventError{Code: "invalid_payload", Message: "Invalid message payload"}
	}

	_, err := r.NewMessage(ctx, sender, p.ChatID, p.Members, p.Message)
	return err
}

// NewMessage builds the realtime message, delivers NEW_MESSAGE and NEW_MESSAGE_ALERT to
// every live member (sender included) and then hands the durable record to the
// persister without waiting for it.
func (r *Relay) NewMessage(ctx context.Context, sender realtime.Conn, chatID string, members []string, content string) (*RealtimeMessage, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, &EventError{Code: "invalid_chat", Message: domain.ErrChatRequired.Error()}
	}
	if strings.TrimSpace(content) == "" {
		return nil, &EventError{Code: "empty_message", Message: domain.ErrEmptyMessage.Error()}
	}
	if utf8.RuneCountInString(content) > domain.MaxMessageLength {
		return nil, &EventError{Code: "message_too_long", Message: domain.ErrMessageTooLong.Error()}
	}

	identity := sender.Identity()
	now := r.now().UTC()

	msg := RealtimeMessage{
		ID:      r.newID(),
		Content: content,
		Sender: Sender{
			ID:   identity.UserID,
			Name: identity.DisplayName,
		},
		Chat:      chatID,
		CreatedAt: now.Format("2006-01-02T15:04:05.000Z07:00"),
	}

	delivered := r.router.Route(realtime.EventNewMessage, members, NewMessageEvent{
		ChatID:  chatID,
		Message: msg,
	}, nil)
	r.router.Route(realtime.EventNewMessageAlert, members, ChatEvent{ChatID: chatID}, nil)

	r.logger.Debug("message relayed",
		"chat_id", chatID,
		"sender_id", identity.UserID,
		"members", len(members),
		"delivered", delivered)

	if r.persister != nil {
		r.persister.Submit(&domain.Message{
			Content:   content,
			SenderID:  identity.UserID,
			ChatID:    chatID,
			CreatedAt: now,
		})
	}

	return &msg, nil
}

// HandleStartTyping processes an inbound START_TYPING event.
func (r *Relay) HandleStartTyping(ctx context.Context, sender realtime.Conn, payload json.RawMessage) error {
	return r.handleTyping(sender, payload, realtime.EventStartTyping)
}

// HandleStopTyping processes an inbound STOP_TYPING event.
func (r *Relay) HandleStopTyping(ctx context.Context, sender realtime.Conn, payload json.RawMessage) error {
	return r.handleTyping(sender, payload, realtime.EventStopTyping)
}

func (r *Relay) handleTyping(sender realtime.Conn, payload json.RawMessage, eventType string) error {
	var p TypingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return &EventError{Code: "invalid_payload", Message: "Invalid typing payload"}
	}
	return r.Typing(sender, eventType, p.ChatID, p.Members)
}

// Typing tells every live member except the sender that the sender started or stopped
// typing. Nothing is remembered; a stop without a start is relayed as is.
func (r *Relay) Typing(sender realtime.Conn, eventType, chatID string, members []string) error {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return &EventError{Code: "invalid_chat", Message: domain.ErrChatRequired.Error()}
	}
	r.router.Route(eventType, members, ChatEvent{ChatID: chatID}, sender)
	return nil
}
