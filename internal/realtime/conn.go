package realtime

import (
	"bytes"
	"encoding/json"

	"github.com/tripunite/gateway/internal/domain"
)

// Conn is one authenticated, live bidirectional stream. Implementations must make Send
// non-blocking: a full or closed outbound buffer reports false instead of waiting.
type Conn interface {
	// ID uniquely identifies the connection for its lifetime.
	ID() string

	// Identity is the user verified at handshake. It never changes.
	Identity() domain.Identity

	// Send queues an encoded event for delivery.
	Send(data []byte) bool
}

// MemberList is a list of user ids supplied by a client. Decoding is per element:
// entries that are not non-empty strings are skipped instead of failing the whole list.
// Ids are kept byte for byte, so " B" names a different user than "B".
type MemberList []string

// UnmarshalJSON implements json.Unmarshaler.
func (m *MemberList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(MemberList, 0, len(raw))
	for _, item := range raw {
		var id string
		if err := json.Unmarshal(item, &id); err != nil {
			continue
		}
		if id == "" {
			continue
		}
		out = append(out, id)
	}
	*m = out
	return nil
}
