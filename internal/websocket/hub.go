// Package websocket is the gateway's transport: it authenticates the upgrade request,
// runs one read and one write pump per connection and dispatches inbound events to the
// presence tracker, the messaging relay and the signaling relay.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/tripunite/gateway/internal/messaging"
	"github.com/tripunite/gateway/internal/middleware"
	"github.com/tripunite/gateway/internal/realtime"
	"github.com/tripunite/gateway/internal/webrtc"
)

// hubCommand asks the hub loop to register or unregister a client. done is closed once
// the command has been applied.
type hubCommand struct {
	client *Client
	done   chan struct{}
}

// Hub owns the lifecycle of every client. Registration and unregistration are applied
// by a single goroutine; event dispatch runs on each client's read pump.
type Hub struct {
	registry *realtime.Registry
	presence *realtime.Presence
	relay    *messaging.Relay
	calls    *webrtc.CallHandler
	limiter  *middleware.RateLimiter

	// Channel for registering clients
	register chan hubCommand

	// Channel for unregistering clients
	unregister chan hubCommand

	// Clients owned by the Run goroutine
	clients map[*Client]struct{}

	// Closed when Run returns
	done chan struct{}

	logger *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithEventRateLimit limits inbound events per user.
func WithEventRateLimit(rl *middleware.RateLimiter) HubOption {
	return func(h *Hub) {
		h.limiter = rl
	}
}

// NewHub creates a new Hub
func NewHub(router *realtime.Router, presence *realtime.Presence, relay *messaging.Relay, calls *webrtc.CallHandler, logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		registry:   router.Registry(),
		presence:   presence,
		relay:      relay,
		calls:      calls,
		register:   make(chan hubCommand),
		unregister: make(chan hubCommand),
		clients:    make(map[*Client]struct{}),
		done:       make(chan struct{}),
		logger:     logger.With("component", "hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-h.register:
			h.handleRegister(cmd.client)
			close(cmd.done)
		case cmd := <-h.unregister:
			h.handleUnregister(cmd.client)
			close(cmd.done)
		}
	}
}

// Register adds a client to the hub and returns once it is online. It returns false if
// the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	cmd := hubCommand{client: client, done: make(chan struct{})}
	select {
	case h.register <- cmd:
	case <-h.done:
		return false
	}
	<-cmd.done
	return true
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	cmd := hubCommand{client: client, done: make(chan struct{})}
	select {
	case h.unregister <- cmd:
		<-cmd.done
	case <-h.done:
		client.close()
	}
}

// Done is closed once the hub has stopped.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) handleRegister(client *Client) {
	h.clients[client] = struct{}{}
	if prev := h.presence.Connect(client); prev != nil {
		client.logger.Info("previous connection for user superseded", "replaced_conn_id", prev.ID())
	}
	client.logger.Debug("client connected")
}

func (h *Hub) handleUnregister(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)

	h.presence.Disconnect(client)
	client.close()
	client.logger.Debug("client disconnected")
}

// shutdown closes every client without presence broadcasts; the process is going away.
func (h *Hub) shutdown() {
	close(h.done)
	for client := range h.clients {
		h.registry.UnregisterConn(client)
		client.close()
	}
	h.logger.Info("hub stopped", "clients", len(h.clients))
	h.clients = make(map[*Client]struct{})
}

// HandleMessage processes incoming WebSocket messages
func (h *Hub) HandleMessage(ctx context.Context, client *Client, msg *Message) {
	if h.limiter != nil && !h.limiter.Allow(client.identity.UserID) {
		client.sendError(msg.Type, ErrCodeRateLimited, "Too many events, slow down")
		return
	}

	payload := msg.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	var err error
	switch msg.Type {
	case realtime.EventOnlineUsers:
		h.presence.Query(client)
	case realtime.EventNewMessage:
		err = h.relay.HandleNewMessage(ctx, client, payload)
	case realtime.EventStartTyping:
		err = h.relay.HandleStartTyping(ctx, client, payload)
	case realtime.EventStopTyping:
		err = h.relay.HandleStopTyping(ctx, client, payload)
	case realtime.EventStartVideoCall:
		err = h.calls.HandleStartVideoCall(ctx, client, payload)
	case realtime.EventInitVideoCall:
		err = h.calls.HandleInitCall(ctx, client, payload)
	case realtime.EventOffer:
		err = h.calls.HandleOffer(ctx, client, payload)
	case realtime.EventAnswer:
		err = h.calls.HandleAnswer(ctx, client, payload)
	case realtime.EventICECandidate:
		err = h.calls.HandleICECandidate(ctx, client, payload)
	case realtime.EventStopVideoCall:
		err = h.calls.HandleStopCall(ctx, client, payload)
	default:
		client.sendError(msg.Type, ErrCodeUnknownEvent, "Unknown event type: "+msg.Type)
		return
	}

	if err != nil {
		h.replyError(client, msg.Type, err)
	}
}

func (h *Hub) replyError(client *Client, event string, err error) {
	var evErr *messaging.EventError
	if errors.As(err, &evErr) {
		client.sendError(event, evErr.Code, evErr.Message)
		return
	}

	var callErr *webrtc.CallError
	if errors.As(err, &callErr) {
		client.sendError(event, callErr.Code, callErr.Message)
		return
	}

	client.logger.Error("event handler failed", "event", event, "error", err)
	client.sendError(event, ErrCodeInternal, "Internal error")
}
