package webrtc

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripunite/gateway/internal/realtime"
	"github.com/tripunite/gateway/internal/realtime/realtimetest"
)

const testSDP = "v=0\r\n" +
	"o=- 4215775240449105457 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=rtpmap:111 opus/48000/2\r\n"

// newTestCallHandler wires a CallHandler to a real router with three connected users.
func newTestCallHandler(t *testing.T, opts ...CallHandlerOption) (*CallHandler, *realtimetest.Conn, *realtimetest.Conn, *realtimetest.Conn) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	router := realtime.NewRouter(realtime.NewRegistry(), logger)
	presence := realtime.NewPresence(router, logger)

	a := realtimetest.NewConn("A", "Alice")
	b := realtimetest.NewConn("B", "Bob")
	c := realtimetest.NewConn("C", "Carol")
	for _, conn := range []*realtimetest.Conn{a, b, c} {
		presence.Connect(conn)
	}
	for _, conn := range []*realtimetest.Conn{a, b, c} {
		conn.Reset()
	}

	cfg := &Config{STUNURLs: []string{"stun:stun.l.google.com:19302"}}
	return NewCallHandler(router, cfg, logger, opts...), a, b, c
}

func requireCallError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	callErr, ok := err.(*CallError)
	require.True(t, ok, "expected *CallError, got %T", err)
	assert.Equal(t, code, callErr.Code)
}

// =============================================================================
// START_VIDEO_CALL / STOP_VIDEO_CALL Tests
// =============================================================================

func TestCallHandler_HandleStartVideoCall_NotifiesOthers(t *testing.T) {
	handler, a, b, c := newTestCallHandler(t)

	payload := json.RawMessage(`{"members":["A","B","C"],"chatId":"c1"}`)
	require.NoError(t, handler.HandleStartVideoCall(context.Background(), a, payload))

	assert.Empty(t, a.Events(), "caller is not invited to its own call")
	for _, conn := range []*realtimetest.Conn{b, c} {
		events := conn.EventsOfType(realtime.EventStartVideoCall)
		require.Len(t, events, 1)
		assert.JSONEq(t, `{"name":"Alice","callChatId":"c1"}`, string(events[0].Payload))
	}
}

func TestCallHandler_HandleStartVideoCall_InvalidPayload(t *testing.T) {
	handler, a, _, _ := newTestCallHandler(t)

	err := handler.HandleStartVideoCall(context.Background(), a, json.RawMessage(`{invalid`))
	requireCallError(t, err, "invalid_payload")

	err = handler.HandleStartVideoCall(context.Background(), a, json.RawMessage(`{"members":["B"]}`))
	requireCallError(t, err, "invalid_chat")
}

func TestCallHandler_HandleStopCall_NoPayloadToOthers(t *testing.T) {
	handler, a, b, _ := newTestCallHandler(t)

	require.NoError(t, handler.HandleStopCall(context.Background(), a, json.RawMessage(`{"members":["A","B"]}`)))

	assert.Empty(t, a.Events())
	events := b.EventsOfType(realtime.EventStopVideoCall)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].Payload)
}

// =============================================================================
// INIT_VIDEO_CALL Tests
// =============================================================================

func TestCallHandler_HandleInitCall_SendOfferToAllMembers(t *testing.T) {
	handler, a, b, c := newTestCallHandler(t)

	require.NoError(t, handler.HandleInitCall(context.Background(), a, json.RawMessage(`{"members":["A","B"]}`)))

	for _, conn := range []*realtimetest.Conn{a, b} {
		events := conn.EventsOfType(realtime.EventSendOffer)
		require.Len(t, events, 1)
		assert.Nil(t, events[0].Payload)
	}
	assert.Empty(t, c.Events())
}

func TestCallHandler_HandleInitCall_NullPayload(t *testing.T) {
	handler, a, b, _ := newTestCallHandler(t)

	require.NoError(t, handler.HandleInitCall(context.Background(), a, json.RawMessage(`null`)))
	assert.Empty(t, a.Events())
	assert.Empty(t, b.Events())
}

// =============================================================================
// OFFER / ANSWER Tests
// =============================================================================

func TestCallHandler_HandleOffer_RelaysVerbatim(t *testing.T) {
	handler, a, b, _ := newTestCallHandler(t)

	offer, err := json.Marshal(map[string]string{"type": "offer", "sdp": testSDP})
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]interface{}{
		"offer":   json.RawMessage(offer),
		"members": []string{"A", "B"},
	})
	require.NoError(t, err)

	require.NoError(t, handler.HandleOffer(context.Background(), a, payload))

	for _, conn := range []*realtimetest.Conn{a, b} {
		events := conn.EventsOfType(realtime.EventOffer)
		require.Len(t, events, 1)

		var relayed OfferRelay
		require.NoError(t, json.Unmarshal(events[0].Payload, &relayed))
		assert.JSONEq(t, string(offer), string(relayed.Offer))
	}
}

func TestCallHandler_HandleOffer_PionGeneratedOffer(t *testing.T) {
	handler, a, b, _ := newTestCallHandler(t)

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: handler.Config().PionICEServers()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	_, err = pc.CreateDataChannel("chat", nil)
	require.NoError(t, err)
	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)

	raw, err := json.Marshal(offer)
	require.NoError(t, err)
	payload, err := json.Marshal(OfferPayload{Offer: raw, Members: realtime.MemberList{"B"}})
	require.NoError(t, err)

	require.NoError(t, handler.HandleOffer(context.Background(), a, payload))

	events := b.EventsOfType(realtime.EventOffer)
	require.Len(t, events, 1)
	var relayed OfferRelay
	require.NoError(t, json.Unmarshal(events[0].Payload, &relayed))
	assert.JSONEq(t, string(raw), string(relayed.Offer))
}

func TestCallHandler_HandleOffer_OpaqueBlob(t *testing.T) {
	handler, a, b, _ := newTestCallHandler(t)

	payload := json.RawMessage(`{"offer":"opaque-blob","members":["B"]}`)
	require.NoError(t, handler.HandleOffer(context.Background(), a, payload))

	events := b.EventsOfType(realtime.EventOffer)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"offer":"opaque-blob"}`, string(events[0].Payload))
}

func TestCallHandler_HandleOffer_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		strict  bool
		code    string
	}{
		{"garbage", `{invalid`, false, "invalid_payload"},
		{"missing offer", `{"members":["B"]}`, false, "invalid_offer"},
		{"wrong type", `{"offer":{"type":"answer"},"members":["B"]}`, true, "invalid_offer"},
		{"bad sdp", `{"offer":{"type":"offer","sdp":"not sdp"},"members":["B"]}`, true, "invalid_offer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, a, b, _ := newTestCallHandler(t, WithSDPValidation(tt.strict))

			err := handler.HandleOffer(context.Background(), a, json.RawMessage(tt.payload))
			requireCallError(t, err, tt.code)
			assert.Empty(t, b.Events())
		})
	}
}

func TestCallHandler_HandleOffer_UnparseableSDPRelayedByDefault(t *testing.T) {
	handler, a, b, _ := newTestCallHandler(t)

	// No trailing CRLF: browsers accept it, pion's parser does not.
	sdp := strings.TrimSuffix(testSDP, "\r\n")
	offer, err := json.Marshal(map[string]string{"type": "offer", "sdp": sdp})
	require.NoError(t, err)
	payload, err := json.Marshal(OfferPayload{Offer: offer, Members: realtime.MemberList{"B"}})
	require.NoError(t, err)

	require.NoError(t, handler.HandleOffer(context.Background(), a, payload))

	events := b.EventsOfType(realtime.EventOffer)
	require.Len(t, events, 1)
	var relayed OfferRelay
	require.NoError(t, json.Unmarshal(events[0].Payload, &relayed))
	assert.JSONEq(t, string(offer), string(relayed.Offer))

	strict, a2, b2, _ := newTestCallHandler(t, WithSDPValidation(true))
	requireCallError(t, strict.HandleOffer(context.Background(), a2, payload), "invalid_offer")
	assert.Empty(t, b2.Events())
}

func TestCallHandler_HandleOffer_NullOfferRelayed(t *testing.T) {
	handler, a, b, _ := newTestCallHandler(t)

	require.NoError(t, handler.HandleOffer(context.Background(), a, json.RawMessage(`{"offer":null,"members":["B"]}`)))

	events := b.EventsOfType(realtime.EventOffer)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"offer":null}`, string(events[0].Payload))
}

func TestCallHandler_HandleAnswer_RelaysVerbatim(t *testing.T) {
	handler, a, b, _ := newTestCallHandler(t)

	answer, err := json.Marshal(map[string]string{"type": "answer", "sdp": testSDP})
	require.NoError(t, err)
	payload, err := json.Marshal(AnswerPayload{Answer: answer, Members: realtime.MemberList{"A"}})
	require.NoError(t, err)

	require.NoError(t, handler.HandleAnswer(context.Background(), b, payload))

	events := a.EventsOfType(realtime.EventAnswer)
	require.Len(t, events, 1)
	var relayed AnswerRelay
	require.NoError(t, json.Unmarshal(events[0].Payload, &relayed))
	assert.JSONEq(t, string(answer), string(relayed.Answer))
}

func TestCallHandler_HandleAnswer_OfferTypeRejected(t *testing.T) {
	handler, _, b, _ := newTestCallHandler(t, WithSDPValidation(true))

	err := handler.HandleAnswer(context.Background(), b, json.RawMessage(`{"answer":{"type":"offer"},"members":["A"]}`))
	requireCallError(t, err, "invalid_answer")
}

// =============================================================================
// ICE_CANDIDATE Tests
// =============================================================================

func TestCallHandler_HandleICECandidate_RelaysUnchanged(t *testing.T) {
	handler, a, b, c := newTestCallHandler(t)

	payload := json.RawMessage(`{"candidate":"cand1","members":["B"],"type":"local"}`)
	require.NoError(t, handler.HandleICECandidate(context.Background(), a, payload))

	events := b.EventsOfType(realtime.EventICECandidate)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"candidate":"cand1","type":"local"}`, string(events[0].Payload))
	assert.Empty(t, a.Events())
	assert.Empty(t, c.Events())
}

func TestCallHandler_HandleICECandidate_ObjectCandidate(t *testing.T) {
	handler, a, b, _ := newTestCallHandler(t)

	candidate := `{"candidate":"candidate:1 1 udp 2122260223 10.0.0.1 54321 typ host","sdpMid":"0","sdpMLineIndex":0}`
	payload := json.RawMessage(`{"candidate":` + candidate + `,"members":["B"],"type":"remote"}`)
	require.NoError(t, handler.HandleICECandidate(context.Background(), a, payload))

	events := b.EventsOfType(realtime.EventICECandidate)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"candidate":`+candidate+`,"type":"remote"}`, string(events[0].Payload))
}

func TestCallHandler_HandleICECandidate_MissingCandidate(t *testing.T) {
	handler, a, b, _ := newTestCallHandler(t)

	err := handler.HandleICECandidate(context.Background(), a, json.RawMessage(`{"members":["B"],"type":"local"}`))
	requireCallError(t, err, "invalid_candidate")
	assert.Empty(t, b.Events())
}

func TestCallHandler_HandleICECandidate_NullCandidateRelayed(t *testing.T) {
	handler, a, b, _ := newTestCallHandler(t)

	payload := json.RawMessage(`{"candidate":null,"members":["B"],"type":"local"}`)
	require.NoError(t, handler.HandleICECandidate(context.Background(), a, payload))

	events := b.EventsOfType(realtime.EventICECandidate)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"candidate":null,"type":"local"}`, string(events[0].Payload))
}

func TestCallHandler_HandleICECandidate_TypeField(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"absent type omitted", `{"candidate":"cand1","members":["B"]}`, `{"candidate":"cand1"}`},
		{"null type relayed", `{"candidate":"cand1","members":["B"],"type":null}`, `{"candidate":"cand1","type":null}`},
		{"object type relayed", `{"candidate":"cand1","members":["B"],"type":{"side":"remote"}}`, `{"candidate":"cand1","type":{"side":"remote"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, a, b, _ := newTestCallHandler(t)

			require.NoError(t, handler.HandleICECandidate(context.Background(), a, json.RawMessage(tt.payload)))

			events := b.EventsOfType(realtime.EventICECandidate)
			require.Len(t, events, 1)
			assert.JSONEq(t, tt.want, string(events[0].Payload))
		})
	}
}

func TestCallHandler_HandleICECandidate_OfflineMembersSkipped(t *testing.T) {
	handler, a, b, _ := newTestCallHandler(t)

	payload := json.RawMessage(`{"candidate":"cand1","members":["ghost","B",""],"type":"local"}`)
	require.NoError(t, handler.HandleICECandidate(context.Background(), a, payload))
	assert.Len(t, b.EventsOfType(realtime.EventICECandidate), 1)
}

// =============================================================================
// CallError Tests
// =============================================================================

func TestCallError_Error(t *testing.T) {
	err := &CallError{Code: "test_code", Message: "test message"}
	assert.Equal(t, "test message", err.Error())
}
