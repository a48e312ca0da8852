package realtime

import (
	"log/slog"
)

// Router resolves user ids through the registry and delivers an event to each live
// connection. Deliveries are independent: a connection with a full buffer loses only
// its own copy.
type Router struct {
	registry *Registry
	logger   *slog.Logger
}

// NewRouter creates a router over the given registry.
func NewRouter(registry *Registry, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry: registry,
		logger:   logger.With("component", "router"),
	}
}

// Registry returns the registry the router resolves against.
func (r *Router) Registry() *Registry {
	return r.registry
}

// Route delivers eventType+payload to every live connection among userIDs, skipping
// the except connection when it is non-nil. It returns the number of connections the
// event was queued for.
func (r *Router) Route(eventType string, userIDs []string, payload interface{}, except Conn) int {
	conns := r.registry.Resolve(userIDs)
	if except != nil {
		conns = withoutConn(conns, except)
	}
	return r.deliver(eventType, conns, payload)
}

// Unicast delivers an event to a single connection.
func (r *Router) Unicast(conn Conn, eventType string, payload interface{}) bool {
	return r.deliver(eventType, []Conn{conn}, payload) == 1
}

// Broadcast delivers an event to every registered connection except one.
func (r *Router) Broadcast(eventType string, payload interface{}, except Conn) int {
	return r.deliver(eventType, r.registry.All(except), payload)
}

// Deliver sends an event to an explicit set of connections.
func (r *Router) Deliver(eventType string, conns []Conn, payload interface{}) int {
	return r.deliver(eventType, conns, payload)
}

func (r *Router) deliver(eventType string, conns []Conn, payload interface{}) int {
	if len(conns) == 0 {
		return 0
	}

	// Encode once for every recipient
	data, err := Encode(eventType, payload)
	if err != nil {
		r.logger.Error("failed to encode event", "event", eventType, "error", err)
		return 0
	}

	delivered := 0
	for _, conn := range conns {
		if conn.Send(data) {
			delivered++
			continue
		}
		r.logger.Warn("dropped event for connection",
			"event", eventType,
			"user_id", conn.Identity().UserID,
			"conn_id", conn.ID())
	}
	return delivered
}

func withoutConn(conns []Conn, except Conn) []Conn {
	out := conns[:0]
	for _, c := range conns {
		if c.ID() != except.ID() {
			out = append(out, c)
		}
	}
	return out
}
