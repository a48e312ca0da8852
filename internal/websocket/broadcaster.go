package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tripunite/gateway/internal/pubsub"
	"github.com/tripunite/gateway/internal/realtime"
)

// Emitter lets services outside the gateway push events to connected users. Emit
// publishes on the shared emit topic; every gateway instance that has started its
// emitter routes the event to the users connected to it.
type Emitter struct {
	ps     pubsub.PubSub
	router *realtime.Router
	mu     sync.Mutex
	sub    pubsub.Subscription
	logger *slog.Logger
}

// NewEmitter creates an emitter over ps that delivers through router.
func NewEmitter(ps pubsub.PubSub, router *realtime.Router, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		ps:     ps,
		router: router,
		logger: logger.With("component", "emitter"),
	}
}

// Start subscribes to the emit topic.
func (e *Emitter) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sub != nil {
		return nil
	}
	sub, err := e.ps.Subscribe(ctx, pubsub.Topics.Emit(), e.handle)
	if err != nil {
		return fmt.Errorf("subscribe to emit topic: %w", err)
	}
	e.sub = sub
	return nil
}

// Stop unsubscribes from the emit topic.
func (e *Emitter) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sub == nil {
		return nil
	}
	err := e.sub.Unsubscribe()
	e.sub = nil
	return err
}

// Emit publishes event with data for users. data may be nil for events without a
// payload.
func (e *Emitter) Emit(ctx context.Context, event string, users []string, data interface{}) error {
	p := EmitPayload{Event: event, Users: users}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal emit data: %w", err)
		}
		p.Data = raw
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal emit payload: %w", err)
	}

	msg := &pubsub.Message{
		Topic:   pubsub.Topics.Emit(),
		Type:    event,
		Payload: payload,
	}
	return e.ps.Publish(ctx, msg.Topic, msg)
}

func (e *Emitter) handle(ctx context.Context, msg *pubsub.Message) {
	var p EmitPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		e.logger.Error("failed to decode emit payload", "error", err)
		return
	}
	if p.Event == "" {
		e.logger.Warn("emit without event name dropped")
		return
	}

	var data interface{}
	if len(p.Data) > 0 && string(p.Data) != "null" {
		data = p.Data
	}

	n := e.router.Route(p.Event, p.Users, data, nil)
	e.logger.Debug("emitted event", "event", p.Event, "users", len(p.Users), "delivered", n)
}
