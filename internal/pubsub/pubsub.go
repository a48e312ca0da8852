// Package pubsub carries gateway events between processes. A single instance runs on the
// in-memory backend; Redis or NATS lets several gateway instances share one emit stream.
package pubsub

import (
	"context"
	"encoding/json"
)

// Message is the envelope published on a topic. Payload is opaque to the backends.
type Message struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Handler receives messages for a topic. Handlers of one topic see messages in publish
// order and run on the backend's delivery goroutine, so they must not block for long.
type Handler func(ctx context.Context, msg *Message)

// Subscription is returned by Subscribe. Unsubscribe may be called more than once.
type Subscription interface {
	Unsubscribe() error
}

// PubSub is a topic based fan-out. Implementations are safe for concurrent use and
// return ErrClosed once closed.
type PubSub interface {
	// Publish delivers msg to the subscribers of topic on every connected instance.
	Publish(ctx context.Context, topic string, msg *Message) error

	// Subscribe adds handler to topic on this instance.
	Subscribe(ctx context.Context, topic string, handler Handler) (Subscription, error)

	Close() error
}

// Pinger is implemented by backends that hold a network connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TopicBuilder names the topics the gateway uses.
type TopicBuilder struct{}

// Emit returns the topic other services publish targeted client events on.
func (TopicBuilder) Emit() string {
	return "gateway:emit"
}

// Topics is the shared TopicBuilder.
var Topics = TopicBuilder{}
