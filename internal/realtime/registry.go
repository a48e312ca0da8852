package realtime

import (
	"sort"
	"sync"
)

// Registry maps each user to its current live connection. At most one connection is
// registered per user; a newer connection replaces the older one (last connect wins).
// The presence set is the key set of this map, so the two can never disagree.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Conn),
	}
}

// Register inserts or overwrites the mapping for conn's user. It returns the connection
// it replaced, if any. The replaced connection is not closed.
func (r *Registry) Register(conn Conn) Conn {
	prev, _, _ := r.join(conn)
	return prev
}

// Unregister removes the mapping for userID. Unknown ids are a no-op.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, userID)
}

// UnregisterConn removes conn's user only while conn is still the registered
// connection for that user. It reports whether a mapping was removed.
func (r *Registry) UnregisterConn(conn Conn) bool {
	removed, _, _ := r.leave(conn)
	return removed
}

// Lookup returns the live connection for userID.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// Resolve maps user ids to live connections. Ids without a live connection are
// skipped, so the result may be shorter than the input. Order follows the input and a
// user listed twice is delivered to once.
func (r *Registry) Resolve(userIDs []string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0, len(userIDs))
	seen := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		conn, ok := r.resolveOne(id)
		if !ok {
			continue
		}
		if _, dup := seen[conn.ID()]; dup {
			continue
		}
		seen[conn.ID()] = struct{}{}
		out = append(out, conn)
	}
	return out
}

// resolveOne looks up a single id. Caller must hold the lock.
func (r *Registry) resolveOne(userID string) (Conn, bool) {
	if userID == "" {
		return nil, false
	}
	conn, ok := r.conns[userID]
	if !ok || conn == nil {
		return nil, false
	}
	return conn, true
}

// OnlineUsers returns a sorted snapshot of the presence set.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onlineLocked()
}

// IsOnline reports whether userID has a live connection.
func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// All returns every registered connection except the given one.
func (r *Registry) All(except Conn) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.othersLocked(except)
}

// join registers conn and, under the same lock, captures the resulting presence set and
// every other registered connection.
func (r *Registry) join(conn Conn) (prev Conn, online []string, others []Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID := conn.Identity().UserID
	prev = r.conns[userID]
	r.conns[userID] = conn
	return prev, r.onlineLocked(), r.othersLocked(conn)
}

// leave is the compare-and-delete counterpart of join.
func (r *Registry) leave(conn Conn) (removed bool, online []string, remaining []Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID := conn.Identity().UserID
	current, ok := r.conns[userID]
	if !ok || current.ID() != conn.ID() {
		return false, nil, nil
	}
	delete(r.conns, userID)
	return true, r.onlineLocked(), r.othersLocked(nil)
}

func (r *Registry) onlineLocked() []string {
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) othersLocked(except Conn) []Conn {
	out := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		if except != nil && c.ID() == except.ID() {
			continue
		}
		out = append(out, c)
	}
	return out
}
