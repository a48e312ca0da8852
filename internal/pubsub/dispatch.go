package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// topicSet holds the local handlers of each topic. Backends feed it every message they
// receive; it calls the handlers in subscription order on the caller's goroutine, so one
// topic's messages are handled in the order they arrived.
type topicSet struct {
	mu     sync.RWMutex
	topics map[string][]topicHandler
	nextID uint64
}

type topicHandler struct {
	id      uint64
	handler Handler
}

func newTopicSet() *topicSet {
	return &topicSet{topics: make(map[string][]topicHandler)}
}

// add registers h and reports whether it is the topic's first handler.
func (s *topicSet) add(topic string, h Handler) (id uint64, first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	first = len(s.topics[topic]) == 0
	s.topics[topic] = append(s.topics[topic], topicHandler{id: s.nextID, handler: h})
	return s.nextID, first
}

// remove drops a handler and reports whether the topic has none left. Removing an
// unknown id reports false.
func (s *topicSet) remove(topic string, id uint64) (last bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	handlers := s.topics[topic]
	for i, th := range handlers {
		if th.id != id {
			continue
		}
		handlers = append(handlers[:i:i], handlers[i+1:]...)
		if len(handlers) == 0 {
			delete(s.topics, topic)
			return true
		}
		s.topics[topic] = handlers
		return false
	}
	return false
}

// dispatch calls every handler of msg's topic and returns how many ran.
func (s *topicSet) dispatch(ctx context.Context, topic string, msg *Message) int {
	s.mu.RLock()
	handlers := s.topics[topic]
	s.mu.RUnlock()

	for _, th := range handlers {
		th.handler(ctx, msg)
	}
	return len(handlers)
}

func (s *topicSet) count(topic string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.topics[topic])
}

func (s *topicSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.topics)
}

func (s *topicSet) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = make(map[string][]topicHandler)
}

// subscription unsubscribes at most once.
type subscription struct {
	once sync.Once
	fn   func() error
	err  error
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() { s.err = s.fn() })
	return s.err
}

func encodeMessage(msg *Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return data, nil
}

func decodeMessage(topic string, data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	// The transport's channel name is authoritative.
	msg.Topic = topic
	return &msg, nil
}
