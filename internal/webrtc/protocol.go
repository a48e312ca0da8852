package webrtc

import (
	"encoding/json"

	"github.com/tripunite/gateway/internal/realtime"
)

// ============================================================================
// Client -> Server Payloads
// ============================================================================

// MembersPayload is the inbound INIT_VIDEO_CALL / STOP_VIDEO_CALL body.
type MembersPayload struct {
	Members realtime.MemberList `json:"members"`
}

// StartVideoCallPayload invites the members of a chat to a call.
type StartVideoCallPayload struct {
	Members realtime.MemberList `json:"members"`
	ChatID  string              `json:"chatId"`
}

// OfferPayload carries the caller's session description.
type OfferPayload struct {
	Offer   json.RawMessage     `json:"offer"`
	Members realtime.MemberList `json:"members"`
}

// AnswerPayload carries the callee's session description.
type AnswerPayload struct {
	Answer  json.RawMessage     `json:"answer"`
	Members realtime.MemberList `json:"members"`
}

// ICECandidatePayload carries one trickled candidate and the side it belongs to.
type ICECandidatePayload struct {
	Candidate json.RawMessage     `json:"candidate"`
	Members   realtime.MemberList `json:"members"`
	Type      json.RawMessage     `json:"type"`
}

// ============================================================================
// Server -> Client Payloads
// ============================================================================

// IncomingCallPayload is the outbound START_VIDEO_CALL body.
type IncomingCallPayload struct {
	Name       string `json:"name"`
	CallChatID string `json:"callChatId"`
}

// OfferRelay is the outbound OFFER body.
type OfferRelay struct {
	Offer json.RawMessage `json:"offer"`
}

// AnswerRelay is the outbound ANSWER body.
type AnswerRelay struct {
	Answer json.RawMessage `json:"answer"`
}

// ICECandidateRelay is the outbound ICE_CANDIDATE body. Type is omitted only when the
// sender left it out; an explicit null is relayed.
type ICECandidateRelay struct {
	Candidate json.RawMessage `json:"candidate"`
	Type      json.RawMessage `json:"type,omitempty"`
}
