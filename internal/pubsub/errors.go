package pubsub

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClosed is returned by every operation once the backend is closed.
	ErrClosed = errors.New("pubsub: closed")

	// ErrInvalidTopic is returned for empty topics or topics containing whitespace.
	// NATS subjects cannot carry whitespace and Redis channels should match them.
	ErrInvalidTopic = errors.New("pubsub: invalid topic")
)

func checkTopic(topic string) error {
	if topic == "" || strings.ContainsAny(topic, " \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	return nil
}
