// Package webrtc relays call signaling between the members of a chat.
//
// The gateway keeps no call state. Offers, answers and candidates are forwarded to the
// live members named in each event; peers own the call lifecycle and the media path.
package webrtc

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/pion/webrtc/v3"

	"github.com/tripunite/gateway/internal/realtime"
)

// Router is the fan-out the call handler delivers through.
type Router interface {
	Route(eventType string, userIDs []string, payload interface{}, except realtime.Conn) int
}

// CallHandler processes WebRTC signaling messages from WebSocket
type CallHandler struct {
	router    Router
	config    *Config
	strictSDP bool
	logger    *slog.Logger
}

// CallHandlerOption configures a CallHandler.
type CallHandlerOption func(*CallHandler)

// WithSDPValidation enables the syntax check on relayed session descriptions. It is off
// by default: descriptions are opaque and peers may accept SDP the parser refuses.
func WithSDPValidation(enabled bool) CallHandlerOption {
	return func(h *CallHandler) {
		h.strictSDP = enabled
	}
}

// NewCallHandler creates a new call handler
func NewCallHandler(router Router, cfg *Config, logger *slog.Logger, opts ...CallHandlerOption) *CallHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = &Config{}
	}
	h := &CallHandler{
		router:    router,
		config:    cfg,
		logger:    logger.With("component", "signaling"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Config returns the ICE server configuration handed to peers.
func (h *CallHandler) Config() *Config {
	return h.config
}

// HandleStartVideoCall invites the other members to a call in chatId.
func (h *CallHandler) HandleStartVideoCall(ctx context.Context, caller realtime.Conn, payload json.RawMessage) error {
	var p StartVideoCallPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return &CallError{Code: "invalid_payload", Message: "Invalid call payload"}
	}

	chatID := strings.TrimSpace(p.ChatID)
	if chatID == "" {
		return &CallError{Code: "invalid_chat", Message: "Chat ID is required"}
	}

	identity := caller.Identity()
	n := h.router.Route(realtime.EventStartVideoCall, p.Members, IncomingCallPayload{
		Name:       identity.DisplayName,
		CallChatID: chatID,
	}, caller)

	h.logger.Info("call started", "chat_id", chatID, "caller_id", identity.UserID, "notified", n)
	return nil
}

// HandleInitCall asks every member, the caller included, to produce an offer.
func (h *CallHandler) HandleInitCall(ctx context.Context, caller realtime.Conn, payload json.RawMessage) error {
	var p MembersPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return &CallError{Code: "invalid_payload", Message: "Invalid call payload"}
	}

	n := h.router.Route(realtime.EventSendOffer, p.Members, nil, nil)
	h.logger.Debug("offer requested", "caller_id", caller.Identity().UserID, "notified", n)
	return nil
}

// HandleOffer relays an SDP offer verbatim to the members
func (h *CallHandler) HandleOffer(ctx context.Context, caller realtime.Conn, payload json.RawMessage) error {
	var p OfferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return &CallError{Code: "invalid_payload", Message: "Invalid offer payload"}
	}
	if isAbsent(p.Offer) {
		return &CallError{Code: "invalid_offer", Message: "Offer is required"}
	}
	if h.strictSDP {
		if err := checkSessionDescription(p.Offer, webrtc.SDPTypeOffer); err != nil {
			return &CallError{Code: "invalid_offer", Message: err.Error()}
		}
	}

	n := h.router.Route(realtime.EventOffer, p.Members, OfferRelay{Offer: p.Offer}, nil)
	h.logger.Debug("relaying offer", "from", caller.Identity().UserID, "delivered", n)
	return nil
}

// HandleAnswer relays an SDP answer verbatim to the members
func (h *CallHandler) HandleAnswer(ctx context.Context, caller realtime.Conn, payload json.RawMessage) error {
	var p AnswerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return &CallError{Code: "invalid_payload", Message: "Invalid answer payload"}
	}
	if isAbsent(p.Answer) {
		return &CallError{Code: "invalid_answer", Message: "Answer is required"}
	}
	if h.strictSDP {
		if err := checkSessionDescription(p.Answer, webrtc.SDPTypeAnswer, webrtc.SDPTypePranswer); err != nil {
			return &CallError{Code: "invalid_answer", Message: err.Error()}
		}
	}

	n := h.router.Route(realtime.EventAnswer, p.Members, AnswerRelay{Answer: p.Answer}, nil)
	h.logger.Debug("relaying answer", "from", caller.Identity().UserID, "delivered", n)
	return nil
}

// HandleICECandidate relays an ICE candidate and its type tag verbatim to the members
func (h *CallHandler) HandleICECandidate(ctx context.Context, caller realtime.Conn, payload json.RawMessage) error {
	var p ICECandidatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return &CallError{Code: "invalid_payload", Message: "Invalid ICE candidate payload"}
	}
	if isAbsent(p.Candidate) {
		return &CallError{Code: "invalid_candidate", Message: "Candidate is required"}
	}

	// A null candidate marks the end of gathering and is forwarded like the rest.
	h.router.Route(realtime.EventICECandidate, p.Members, ICECandidateRelay{Candidate: p.Candidate, Type: p.Type}, nil)
	return nil
}

// HandleStopCall tells the other members the call is over.
func (h *CallHandler) HandleStopCall(ctx context.Context, caller realtime.Conn, payload json.RawMessage) error {
	var p MembersPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return &CallError{Code: "invalid_payload", Message: "Invalid call payload"}
	}

	n := h.router.Route(realtime.EventStopVideoCall, p.Members, nil, caller)
	h.logger.Info("call stopped", "caller_id", caller.Identity().UserID, "notified", n)
	return nil
}

// CallError represents an error during call handling
type CallError struct {
	Code    string
	Message string
}

func (e *CallError) Error() string {
	return e.Message
}
