// Package realtimetest provides an in-memory realtime.Conn that records what it is sent.
package realtimetest

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/tripunite/gateway/internal/domain"
	"github.com/tripunite/gateway/internal/realtime"
)

// Conn records every event delivered to it.
type Conn struct {
	id       string
	identity domain.Identity

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

// NewConn creates a recording connection for the given user.
func NewConn(userID, name string) *Conn {
	return &Conn{
		id:       uuid.NewString(),
		identity: domain.Identity{UserID: userID, DisplayName: name},
	}
}

func (c *Conn) ID() string                { return c.id }
func (c *Conn) Identity() domain.Identity { return c.identity }

// Send implements realtime.Conn. A closed recorder refuses deliveries.
func (c *Conn) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.frames = append(c.frames, append([]byte(nil), data...))
	return true
}

// Close makes subsequent sends fail, like a connection whose buffer is gone.
func (c *Conn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Events decodes every recorded frame.
func (c *Conn) Events() []realtime.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]realtime.Event, 0, len(c.frames))
	for _, f := range c.frames {
		var ev realtime.Event
		if err := json.Unmarshal(f, &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// EventsOfType returns the recorded events with the given type, in arrival order.
func (c *Conn) EventsOfType(eventType string) []realtime.Event {
	var out []realtime.Event
	for _, ev := range c.Events() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// Types returns the recorded event types in arrival order.
func (c *Conn) Types() []string {
	events := c.Events()
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

// Reset discards everything recorded so far.
func (c *Conn) Reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

var _ realtime.Conn = (*Conn)(nil)
