package pubsub

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryPubSub delivers messages within one process. Handlers run on the publisher's
// goroutine before Publish returns.
type MemoryPubSub struct {
	topics *topicSet
	mu     sync.RWMutex
	closed bool
	logger *slog.Logger
}

// NewMemoryPubSub creates a new in-memory pub/sub instance
func NewMemoryPubSub(logger *slog.Logger) *MemoryPubSub {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryPubSub{
		topics: newTopicSet(),
		logger: logger.With("component", "pubsub", "backend", "memory"),
	}
}

// Publish hands msg to every local subscriber of the topic.
func (ps *MemoryPubSub) Publish(ctx context.Context, topic string, msg *Message) error {
	if err := checkTopic(topic); err != nil {
		return err
	}
	ps.mu.RLock()
	closed := ps.closed
	ps.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	n := ps.topics.dispatch(ctx, topic, msg)
	ps.logger.Debug("published to topic", "topic", topic, "msg_type", msg.Type, "subscribers", n)
	return nil
}

// Subscribe registers a handler for the given topic
func (ps *MemoryPubSub) Subscribe(ctx context.Context, topic string, handler Handler) (Subscription, error) {
	if err := checkTopic(topic); err != nil {
		return nil, err
	}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	if ps.closed {
		return nil, ErrClosed
	}

	id, _ := ps.topics.add(topic, handler)
	return &subscription{fn: func() error {
		ps.topics.remove(topic, id)
		return nil
	}}, nil
}

// Close shuts down the pub/sub and prevents new operations
func (ps *MemoryPubSub) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.closed = true
	ps.topics.reset()
	return nil
}

// Ping reports whether the pub/sub is open.
func (ps *MemoryPubSub) Ping(ctx context.Context) error {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	if ps.closed {
		return ErrClosed
	}
	return nil
}

// SubscriberCount returns the number of subscribers for a topic.
func (ps *MemoryPubSub) SubscriberCount(topic string) int {
	return ps.topics.count(topic)
}

// TopicCount returns the number of topics with subscribers.
func (ps *MemoryPubSub) TopicCount() int {
	return ps.topics.len()
}
