package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisPubSub implements PubSub on Redis channels so several gateway instances share one
// emit stream. All topics share one subscriber connection; it is opened with the first
// subscription and reads in a single goroutine, which keeps per-topic order.
type RedisPubSub struct {
	client *redis.Client
	topics *topicSet

	mu     sync.Mutex
	sub    *redis.PubSub
	done   chan struct{}
	closed bool

	logger *slog.Logger
}

// NewRedisPubSub creates a new Redis-backed pub/sub instance.
// url should be in the format: redis://host:port or redis://:password@host:port
func NewRedisPubSub(ctx context.Context, url string, logger *slog.Logger) (*RedisPubSub, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pubsub", "backend", "redis")
	logger.Info("connected to Redis", "addr", opts.Addr)

	return &RedisPubSub{
		client: client,
		topics: newTopicSet(),
		logger: logger,
	}, nil
}

// Publish sends a message to all subscribers of the topic across all instances.
func (ps *RedisPubSub) Publish(ctx context.Context, topic string, msg *Message) error {
	if err := checkTopic(topic); err != nil {
		return err
	}
	ps.mu.Lock()
	closed := ps.closed
	ps.mu.Unlock()
	if closed {
		return ErrClosed
	}

	data, err := encodeMessage(msg)
	if err != nil {
		return err
	}

	receivers, err := ps.client.Publish(ctx, topic, data).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	ps.logger.Debug("published to topic", "topic", topic, "msg_type", msg.Type, "receivers", receivers)
	return nil
}

// Subscribe registers a handler for the topic. The Redis channel is joined when the
// topic gets its first local handler.
func (ps *RedisPubSub) Subscribe(ctx context.Context, topic string, handler Handler) (Subscription, error) {
	if err := checkTopic(topic); err != nil {
		return nil, err
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.closed {
		return nil, ErrClosed
	}

	id, first := ps.topics.add(topic, handler)
	if first {
		if err := ps.joinLocked(ctx, topic); err != nil {
			ps.topics.remove(topic, id)
			return nil, err
		}
		ps.logger.Debug("subscribed to topic", "topic", topic)
	}

	return &subscription{fn: func() error { return ps.unsubscribe(topic, id) }}, nil
}

func (ps *RedisPubSub) joinLocked(ctx context.Context, topic string) error {
	if ps.sub != nil {
		if err := ps.sub.Subscribe(ctx, topic); err != nil {
			return fmt.Errorf("failed to subscribe to redis channel: %w", err)
		}
		return nil
	}

	sub := ps.client.Subscribe(ctx, topic)
	// Wait for the subscription confirmation
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("failed to subscribe to redis channel: %w", err)
	}

	ps.sub = sub
	ps.done = make(chan struct{})
	go ps.receive(sub.Channel(), ps.done)
	return nil
}

func (ps *RedisPubSub) unsubscribe(topic string, id uint64) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.topics.remove(topic, id) || ps.closed || ps.sub == nil {
		return nil
	}
	if err := ps.sub.Unsubscribe(context.Background(), topic); err != nil {
		return fmt.Errorf("failed to unsubscribe from redis channel: %w", err)
	}
	return nil
}

// receive dispatches channel messages until the subscriber connection closes.
func (ps *RedisPubSub) receive(ch <-chan *redis.Message, done chan struct{}) {
	defer close(done)

	ctx := context.Background()
	for m := range ch {
		msg, err := decodeMessage(m.Channel, []byte(m.Payload))
		if err != nil {
			ps.logger.Error("dropping message", "error", err, "topic", m.Channel)
			continue
		}
		ps.topics.dispatch(ctx, m.Channel, msg)
	}
}

// Close shuts down the subscriber connection and the client.
func (ps *RedisPubSub) Close() error {
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return nil
	}
	ps.closed = true
	sub, done := ps.sub, ps.done
	ps.mu.Unlock()

	if sub != nil {
		_ = sub.Close()
		<-done
	}
	ps.topics.reset()

	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	ps.logger.Info("Redis pubsub closed")
	return nil
}

// Ping checks the Redis connection.
func (ps *RedisPubSub) Ping(ctx context.Context) error {
	return ps.client.Ping(ctx).Err()
}

// SubscriberCount returns the number of local subscribers for a topic.
// Subscribers on other instances are not counted.
func (ps *RedisPubSub) SubscriberCount(topic string) int {
	return ps.topics.count(topic)
}
