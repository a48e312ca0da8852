package webrtc

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v3"
)

// sessionDescription is the browser's RTCSessionDescriptionInit. Both fields are
// optional here; blobs of any other shape are relayed untouched.
type sessionDescription struct {
	Type *string `json:"type"`
	SDP  *string `json:"sdp"`
}

// checkSessionDescription syntax-checks a session description blob when it looks like
// one. Only the parse result is used; the caller relays the original bytes.
func checkSessionDescription(raw json.RawMessage, allowed ...webrtc.SDPType) error {
	var desc sessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		// Not an object. Peers may use their own encoding.
		return nil
	}

	if desc.Type != nil && *desc.Type != "" {
		sdpType := webrtc.NewSDPType(*desc.Type)
		if !containsSDPType(allowed, sdpType) {
			return fmt.Errorf("unexpected session description type %q", *desc.Type)
		}
	}

	if desc.SDP == nil {
		return nil
	}

	sd := webrtc.SessionDescription{SDP: *desc.SDP}
	if _, err := sd.Unmarshal(); err != nil {
		return fmt.Errorf("parse sdp: %w", err)
	}
	return nil
}

func containsSDPType(types []webrtc.SDPType, t webrtc.SDPType) bool {
	for _, allowed := range types {
		if allowed == t {
			return true
		}
	}
	return false
}

// isAbsent reports whether a raw field was missing from the payload. JSON null is a value
// and is relayed like any other.
func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0
}
