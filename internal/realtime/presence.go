package realtime

import (
	"log/slog"
)

// Presence tracks which users are online. The online set is the registry's key set;
// every change is broadcast as ONLINE_USERS computed after the mutation.
type Presence struct {
	registry *Registry
	router   *Router
	logger   *slog.Logger
}

// NewPresence creates a presence tracker on top of the router's registry.
func NewPresence(router *Router, logger *slog.Logger) *Presence {
	if logger == nil {
		logger = slog.Default()
	}
	return &Presence{
		registry: router.Registry(),
		router:   router,
		logger:   logger.With("component", "presence"),
	}
}

// Connect registers conn and tells every other connection about the new online set.
// The connecting user is not notified through this broadcast; it asks with Query.
// It returns the connection that was replaced for the same user, if any.
func (p *Presence) Connect(conn Conn) Conn {
	prev, online, others := p.registry.join(conn)

	userID := conn.Identity().UserID
	if prev != nil {
		p.logger.Info("connection replaced", "user_id", userID, "conn_id", conn.ID(), "replaced_conn_id", prev.ID())
	} else {
		p.logger.Info("user online", "user_id", userID, "conn_id", conn.ID(), "online", len(online))
	}

	p.router.Deliver(EventOnlineUsers, others, OnlineUsersPayload(online))
	return prev
}

// Disconnect unregisters conn and broadcasts the new online set to the remaining
// connections. A connection that was already replaced leaves presence untouched.
func (p *Presence) Disconnect(conn Conn) bool {
	removed, online, remaining := p.registry.leave(conn)
	if !removed {
		p.logger.Debug("stale connection closed", "user_id", conn.Identity().UserID, "conn_id", conn.ID())
		return false
	}

	p.logger.Info("user offline", "user_id", conn.Identity().UserID, "conn_id", conn.ID(), "online", len(online))
	p.router.Deliver(EventOnlineUsers, remaining, OnlineUsersPayload(online))
	return true
}

// Query sends the current online set to the requesting connection only.
func (p *Presence) Query(conn Conn) {
	p.router.Unicast(conn, EventOnlineUsers, OnlineUsersPayload(p.registry.OnlineUsers()))
}

// Online returns a snapshot of the online set.
func (p *Presence) Online() []string {
	return p.registry.OnlineUsers()
}

// IsOnline reports whether userID is online.
func (p *Presence) IsOnline(userID string) bool {
	return p.registry.IsOnline(userID)
}
