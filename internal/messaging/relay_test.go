package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripunite/gateway/internal/domain"
	"github.com/tripunite/gateway/internal/realtime"
	"github.com/tripunite/gateway/internal/realtime/realtimetest"
)

// fakeStore records every message it is asked to store.
type fakeStore struct {
	mu       sync.Mutex
	messages []*domain.Message
	err      error
	block    chan struct{}
	stored   chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{stored: make(chan struct{}, 16)}
}

func (s *fakeStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.stored <- struct{}{}
	return s.err
}

func (s *fakeStore) Messages() []*domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Message(nil), s.messages...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type relayFixture struct {
	relay    *Relay
	store    *fakeStore
	presence *realtime.Presence
	persist  *Persister
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()
	logger := testLogger()
	router := realtime.NewRouter(realtime.NewRegistry(), logger)
	store := newFakeStore()
	persister := NewPersister(store, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = persister.Close(ctx)
	})

	relay := NewRelay(router, persister, logger)
	relay.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	relay.newID = func() string { return "msg-1" }

	return &relayFixture{
		relay:    relay,
		store:    store,
		presence: realtime.NewPresence(router, logger),
		persist:  persister,
	}
}

func (f *relayFixture) connect(userID, name string) *realtimetest.Conn {
	c := realtimetest.NewConn(userID, name)
	f.presence.Connect(c)
	c.Reset()
	return c
}

func waitStored(t *testing.T, s *fakeStore) {
	t.Helper()
	select {
	case <-s.stored:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message to be stored")
	}
}

// =============================================================================
// NEW_MESSAGE Tests
// =============================================================================

func TestRelay_NewMessage_DeliversToAllMembersAndPersistsOnce(t *testing.T) {
	f := newRelayFixture(t)
	a := f.connect("A", "Alice")
	b := f.connect("B", "Bob")

	payload := json.RawMessage(`{"chatId":"c1","members":["A","B"],"message":"hi"}`)
	require.NoError(t, f.relay.HandleNewMessage(context.Background(), a, payload))

	for _, conn := range []*realtimetest.Conn{a, b} {
		assert.Equal(t, []string{realtime.EventNewMessage, realtime.EventNewMessageAlert}, conn.Types())

		var got NewMessageEvent
		require.NoError(t, json.Unmarshal(conn.EventsOfType(realtime.EventNewMessage)[0].Payload, &got))
		assert.Equal(t, "c1", got.ChatID)
		assert.Equal(t, "A", got.Message.Sender.ID)
		assert.Equal(t, "Alice", got.Message.Sender.Name)
		assert.Equal(t, "hi", got.Message.Content)
		assert.Equal(t, "c1", got.Message.Chat)

		assert.JSONEq(t, `{"chatId":"c1"}`, string(conn.EventsOfType(realtime.EventNewMessageAlert)[0].Payload))
	}

	waitStored(t, f.store)
	stored := f.store.Messages()
	require.Len(t, stored, 1)
	assert.Equal(t, "hi", stored[0].Content)
	assert.Equal(t, "A", stored[0].SenderID)
	assert.Equal(t, "c1", stored[0].ChatID)
}

func TestRelay_NewMessage_WireShape(t *testing.T) {
	f := newRelayFixture(t)
	a := f.connect("A", "Alice")

	_, err := f.relay.NewMessage(context.Background(), a, "c1", []string{"A"}, "hi")
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"chatId": "c1",
		"message": {
			"_id": "msg-1",
			"content": "hi",
			"sender": {"_id": "A", "name": "Alice"},
			"chat": "c1",
			"createdAt": "2024-05-01T12:00:00.000Z"
		}
	}`, string(a.EventsOfType(realtime.EventNewMessage)[0].Payload))
}

func TestRelay_NewMessage_OfflineMemberIsSkipped(t *testing.T) {
	f := newRelayFixture(t)
	a := f.connect("A", "Alice")
	b := f.connect("B", "Bob")

	_, err := f.relay.NewMessage(context.Background(), a, "c1", []string{"A", "B", "C"}, "hi")
	require.NoError(t, err)

	assert.Len(t, a.EventsOfType(realtime.EventNewMessage), 1)
	assert.Len(t, b.EventsOfType(realtime.EventNewMessage), 1)
	waitStored(t, f.store)
}

func TestRelay_NewMessage_PersistenceFailureIsInvisible(t *testing.T) {
	f := newRelayFixture(t)
	f.store.err = errors.New("db down")
	a := f.connect("A", "Alice")

	_, err := f.relay.NewMessage(context.Background(), a, "c1", []string{"A"}, "hi")
	require.NoError(t, err)
	assert.Len(t, a.EventsOfType(realtime.EventNewMessage), 1)

	waitStored(t, f.store)
	assert.Eventually(t, func() bool { return f.persist.Failures() == 1 }, time.Second, 10*time.Millisecond)
}

func TestRelay_NewMessage_DeliveryDoesNotWaitForStore(t *testing.T) {
	f := newRelayFixture(t)
	f.store.block = make(chan struct{})
	a := f.connect("A", "Alice")

	done := make(chan struct{})
	go func() {
		_, _ = f.relay.NewMessage(context.Background(), a, "c1", []string{"A"}, "hi")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay blocked on the message store")
	}
	assert.Len(t, a.EventsOfType(realtime.EventNewMessage), 1)
	close(f.store.block)
	waitStored(t, f.store)
}

func TestRelay_NewMessage_Validation(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		code    string
	}{
		{"garbage", `{invalid`, "invalid_payload"},
		{"missing chat", `{"members":["A"],"message":"hi"}`, "invalid_chat"},
		{"blank chat", `{"chatId":"  ","members":["A"],"message":"hi"}`, "invalid_chat"},
		{"empty message", `{"chatId":"c1","members":["A"],"message":""}`, "empty_message"},
		{"whitespace message", `{"chatId":"c1","members":["A"],"message":"   "}`, "empty_message"},
		{"members not a list", `{"chatId":"c1","members":"A","message":"hi"}`, "invalid_payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRelayFixture(t)
			a := f.connect("A", "Alice")

			err := f.relay.HandleNewMessage(context.Background(), a, json.RawMessage(tt.payload))
			require.Error(t, err)

			var evErr *EventError
			require.ErrorAs(t, err, &evErr)
			assert.Equal(t, tt.code, evErr.Code)
			assert.Empty(t, a.Events())
			assert.Empty(t, f.store.Messages())
		})
	}
}

func TestRelay_NewMessage_TooLong(t *testing.T) {
	f := newRelayFixture(t)
	a := f.connect("A", "Alice")

	long := make([]byte, domain.MaxMessageLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err := f.relay.NewMessage(context.Background(), a, "c1", []string{"A"}, string(long))

	var evErr *EventError
	require.ErrorAs(t, err, &evErr)
	assert.Equal(t, "message_too_long", evErr.Code)
}

func TestRelay_NewMessage_MalformedMemberEntriesSkipped(t *testing.T) {
	f := newRelayFixture(t)
	a := f.connect("A", "Alice")
	b := f.connect("B", "Bob")

	payload := json.RawMessage(`{"chatId":"c1","members":[null,"A",7,"B"],"message":"hi"}`)
	require.NoError(t, f.relay.HandleNewMessage(context.Background(), a, payload))

	assert.Len(t, a.EventsOfType(realtime.EventNewMessage), 1)
	assert.Len(t, b.EventsOfType(realtime.EventNewMessage), 1)
	waitStored(t, f.store)
}

// =============================================================================
// Typing Tests
// =============================================================================

func TestRelay_StartTyping_ExcludesSender(t *testing.T) {
	f := newRelayFixture(t)
	a := f.connect("A", "Alice")
	b := f.connect("B", "Bob")

	payload := json.RawMessage(`{"chatId":"c1","members":["A","B"]}`)
	require.NoError(t, f.relay.HandleStartTyping(context.Background(), a, payload))

	assert.Empty(t, a.Events())
	events := b.EventsOfType(realtime.EventStartTyping)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"chatId":"c1"}`, string(events[0].Payload))
}

func TestRelay_StopTyping_WithoutStart(t *testing.T) {
	f := newRelayFixture(t)
	a := f.connect("A", "Alice")
	b := f.connect("B", "Bob")

	payload := json.RawMessage(`{"chatId":"c1","members":["A","B"]}`)
	require.NoError(t, f.relay.HandleStopTyping(context.Background(), a, payload))

	assert.Len(t, b.EventsOfType(realtime.EventStopTyping), 1)
	assert.Empty(t, a.Events())
}

func TestRelay_Typing_InvalidPayload(t *testing.T) {
	f := newRelayFixture(t)
	a := f.connect("A", "Alice")

	err := f.relay.HandleStartTyping(context.Background(), a, json.RawMessage(`[]`))
	var evErr *EventError
	require.ErrorAs(t, err, &evErr)
	assert.Equal(t, "invalid_payload", evErr.Code)

	err = f.relay.HandleStartTyping(context.Background(), a, json.RawMessage(`{"members":["A"]}`))
	require.ErrorAs(t, err, &evErr)
	assert.Equal(t, "invalid_chat", evErr.Code)
}
