package pubsub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPubSub implements PubSub on NATS core subjects, one subject subscription per topic
// with local handlers. Delivery is at-most-once, the same guarantee Redis pub/sub gives.
type NATSPubSub struct {
	conn   *nats.Conn
	topics *topicSet

	mu     sync.Mutex
	subs   map[string]*nats.Subscription
	closed bool

	logger *slog.Logger
}

// NewNATSPubSub connects to the given NATS servers (comma separated URLs).
func NewNATSPubSub(url, name string, logger *slog.Logger) (*NATSPubSub, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pubsub", "backend", "nats")

	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(5 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected from NATS", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to NATS", "url", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	logger.Info("connected to NATS", "url", nc.ConnectedUrl())

	return &NATSPubSub{
		conn:   nc,
		topics: newTopicSet(),
		subs:   make(map[string]*nats.Subscription),
		logger: logger,
	}, nil
}

// Publish sends a message on the topic subject.
func (ps *NATSPubSub) Publish(ctx context.Context, topic string, msg *Message) error {
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

	if err := ps.conn.Publish(topic, data); err != nil {
		return fmt.Errorf("failed to publish to nats: %w", err)
	}
	ps.logger.Debug("published to topic", "topic", topic, "msg_type", msg.Type)
	return nil
}

// Subscribe registers a handler for the topic subject.
func (ps *NATSPubSub) Subscribe(ctx context.Context, topic string, handler Handler) (Subscription, error) {
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
		// NATS calls back on one goroutine per subscription, so messages stay ordered.
		sub, err := ps.conn.Subscribe(topic, func(m *nats.Msg) {
			msg, err := decodeMessage(m.Subject, m.Data)
			if err != nil {
				ps.logger.Error("dropping message", "error", err, "topic", m.Subject)
				return
			}
			ps.topics.dispatch(context.Background(), m.Subject, msg)
		})
		if err != nil {
			ps.topics.remove(topic, id)
			return nil, fmt.Errorf("failed to subscribe to nats subject: %w", err)
		}
		ps.subs[topic] = sub
		ps.logger.Debug("subscribed to topic", "topic", topic)
	}

	return &subscription{fn: func() error { return ps.unsubscribe(topic, id) }}, nil
}

func (ps *NATSPubSub) unsubscribe(topic string, id uint64) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.topics.remove(topic, id) {
		return nil
	}
	sub, ok := ps.subs[topic]
	if !ok {
		return nil
	}
	delete(ps.subs, topic)

	if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("failed to unsubscribe from nats: %w", err)
	}
	return nil
}

// Ping round-trips to the server.
func (ps *NATSPubSub) Ping(ctx context.Context) error {
	if !ps.conn.IsConnected() {
		return fmt.Errorf("nats: %s", ps.conn.Status())
	}
	timeout := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	return ps.conn.FlushTimeout(timeout)
}

// Close drains subscriptions and closes the connection.
func (ps *NATSPubSub) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.closed {
		return nil
	}
	ps.closed = true
	ps.subs = make(map[string]*nats.Subscription)

	err := ps.conn.Drain()
	ps.topics.reset()
	if err != nil {
		ps.conn.Close()
		return fmt.Errorf("failed to drain nats connection: %w", err)
	}
	ps.logger.Info("NATS pubsub closed")
	return nil
}

// SubscriberCount returns the number of local subscribers for a topic.
func (ps *NATSPubSub) SubscriberCount(topic string) int {
	return ps.topics.count(topic)
}
