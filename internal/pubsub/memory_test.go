package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryPubSub_PublishSubscribe(t *testing.T) {
	ps := NewMemoryPubSub(nil)
	defer ps.Close()

	topic := Topics.Emit()
	received := make(chan *Message, 1)

	// Subscribe
	sub, err := ps.Subscribe(context.Background(), topic, func(ctx context.Context, msg *Message) {
		received <- msg
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	// Publish
	payload, _ := json.Marshal(map[string]interface{}{"users": []string{"u1"}, "data": nil})
	msg := &Message{
		Topic:   topic,
		Type:    "REFETCH_CHATS",
		Payload: payload,
	}

	err = ps.Publish(context.Background(), topic, msg)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// Wait for message
	select {
	case got := <-received:
		if got.Type != msg.Type {
			t.Errorf("got type %q, want %q", got.Type, msg.Type)
		}
		if string(got.Payload) != string(payload) {
			t.Errorf("got payload %s, want %s", got.Payload, payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestMemoryPubSub_MultipleSubscribers(t *testing.T) {
	ps := NewMemoryPubSub(nil)
	defer ps.Close()

	topic := "multi-sub"
	var count atomic.Int32
	var wg sync.WaitGroup

	// Create 3 subscribers
	for i := 0; i < 3; i++ {
		wg.Add(1)
		sub, err := ps.Subscribe(context.Background(), topic, func(ctx context.Context, msg *Message) {
			count.Add(1)
			wg.Done()
		})
		if err != nil {
			t.Fatalf("Subscribe %d failed: %v", i, err)
		}
		defer sub.Unsubscribe()
	}

	// Publish one message
	msg := &Message{Topic: topic, Type: "test"}
	ps.Publish(context.Background(), topic, msg)

	// Wait with timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if count.Load() != 3 {
			t.Errorf("got %d deliveries, want 3", count.Load())
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout: only got %d deliveries", count.Load())
	}
}

func TestMemoryPubSub_Unsubscribe(t *testing.T) {
	ps := NewMemoryPubSub(nil)
	defer ps.Close()

	topic := "unsub-test"
	received := make(chan struct{}, 10)

	sub, _ := ps.Subscribe(context.Background(), topic, func(ctx context.Context, msg *Message) {
		received <- struct{}{}
	})

	// First publish should deliver
	ps.Publish(context.Background(), topic, &Message{Topic: topic, Type: "test"})
	select {
	case <-received:
		// ok
	case <-time.After(time.Second):
		t.Fatal("first message not received")
	}

	// Unsubscribe twice; the second call is a no-op
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("second Unsubscribe failed: %v", err)
	}
	if ps.TopicCount() != 0 {
		t.Errorf("expected 0 topics, got %d", ps.TopicCount())
	}

	// Second publish should not deliver
	ps.Publish(context.Background(), topic, &Message{Topic: topic, Type: "test"})

	select {
	case <-received:
		t.Error("received message after unsubscribe")
	case <-time.After(100 * time.Millisecond):
		// ok - no message received
	}
}

func TestMemoryPubSub_Close(t *testing.T) {
	ps := NewMemoryPubSub(nil)

	topic := "close-test"
	ps.Subscribe(context.Background(), topic, func(ctx context.Context, msg *Message) {})

	if ps.TopicCount() != 1 {
		t.Errorf("expected 1 topic, got %d", ps.TopicCount())
	}

	ps.Close()

	if ps.TopicCount() != 0 {
		t.Errorf("expected 0 topics after close, got %d", ps.TopicCount())
	}

	// Operations should fail after close
	err := ps.Publish(context.Background(), topic, &Message{})
	if err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	_, err = ps.Subscribe(context.Background(), topic, func(ctx context.Context, msg *Message) {})
	if err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestMemoryPubSub_NoSubscribers(t *testing.T) {
	ps := NewMemoryPubSub(nil)
	defer ps.Close()

	// Publishing to topic with no subscribers should not error
	err := ps.Publish(context.Background(), "empty-topic", &Message{Type: "test"})
	if err != nil {
		t.Errorf("publish to empty topic failed: %v", err)
	}
}

func TestMemoryPubSub_TopicsAreIsolated(t *testing.T) {
	ps := NewMemoryPubSub(nil)
	defer ps.Close()

	received := make(chan struct{}, 1)
	sub, err := ps.Subscribe(context.Background(), "other", func(ctx context.Context, msg *Message) {
		received <- struct{}{}
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	ps.Publish(context.Background(), Topics.Emit(), &Message{Type: "REFETCH_CHATS"})

	select {
	case <-received:
		t.Error("message delivered to unrelated topic")
	case <-time.After(50 * time.Millisecond):
	}
	if ps.SubscriberCount("other") != 1 {
		t.Errorf("expected 1 subscriber, got %d", ps.SubscriberCount("other"))
	}
}

func TestMemoryPubSub_DeliversInOrder(t *testing.T) {
	ps := NewMemoryPubSub(nil)
	defer ps.Close()

	var got []string
	sub, err := ps.Subscribe(context.Background(), Topics.Emit(), func(ctx context.Context, msg *Message) {
		got = append(got, msg.Type)
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	want := []string{"REFETCH_CHATS", "NEW_MESSAGE_ALERT", "REFETCH_CHATS"}
	for _, typ := range want {
		if err := ps.Publish(context.Background(), Topics.Emit(), &Message{Type: typ}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMemoryPubSub_HandlerMayPublish(t *testing.T) {
	ps := NewMemoryPubSub(nil)
	defer ps.Close()

	forwarded := make(chan struct{}, 1)
	ps.Subscribe(context.Background(), "in", func(ctx context.Context, msg *Message) {
		ps.Publish(ctx, "out", msg)
	})
	ps.Subscribe(context.Background(), "out", func(ctx context.Context, msg *Message) {
		forwarded <- struct{}{}
	})

	ps.Publish(context.Background(), "in", &Message{Type: "test"})

	select {
	case <-forwarded:
	case <-time.After(time.Second):
		t.Fatal("forwarded message not received")
	}
}

func TestTopicBuilder(t *testing.T) {
	if got := Topics.Emit(); got != "gateway:emit" {
		t.Errorf("got %q, want %q", got, "gateway:emit")
	}
}

func TestMemoryPubSub_Ping(t *testing.T) {
	ps := NewMemoryPubSub(nil)

	if err := ps.Ping(context.Background()); err != nil {
		t.Errorf("ping on open pubsub failed: %v", err)
	}
	ps.Close()
	if err := ps.Ping(context.Background()); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

var (
	_ PubSub = (*MemoryPubSub)(nil)
	_ PubSub = (*RedisPubSub)(nil)
	_ PubSub = (*NATSPubSub)(nil)
	_ Pinger = (*MemoryPubSub)(nil)
	_ Pinger = (*RedisPubSub)(nil)
	_ Pinger = (*NATSPubSub)(nil)
)

func TestMemoryPubSub_InvalidTopic(t *testing.T) {
	ps := NewMemoryPubSub(nil)
	defer ps.Close()

	for _, topic := range []string{"", "gateway emit", "gateway:emit\n"} {
		if err := ps.Publish(context.Background(), topic, &Message{Type: "x"}); !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("Publish(%q): expected ErrInvalidTopic, got %v", topic, err)
		}
		if _, err := ps.Subscribe(context.Background(), topic, func(context.Context, *Message) {}); !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("Subscribe(%q): expected ErrInvalidTopic, got %v", topic, err)
		}
	}
	if ps.TopicCount() != 0 {
		t.Errorf("expected no topics, got %d", ps.TopicCount())
	}
}
