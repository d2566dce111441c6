// ABOUTME: Connection registry mapping participant identity to an open
// ABOUTME: connection handle, with broadcast fanout and lazy pruning.

package hub

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/socksthoughtshop/parlor/internal/protocol"
)

// Conn is the capability a registry holds for one participant. Exactly one
// registry entry owns a handle; it is removed on first failed send or
// explicit disconnect.
type Conn interface {
	Send(f protocol.Frame) error
	Close() error
}

// Registry tracks who is online on the open channel. All operations are safe
// for concurrent use; broadcast iterates a snapshot so mutation during fanout
// never skips or duplicates a recipient beyond the one failing.
type Registry struct {
	mu     sync.Mutex
	conns  map[string]Conn
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]Conn),
		logger: slog.Default().With("component", "registry"),
	}
}

// Connect registers the handle, replacing any prior handle for the identity
// (supports reconnect-with-same-identity), then broadcasts the roster. A
// replaced handle is closed so its transport doesn't linger until the peer
// notices.
func (r *Registry) Connect(identity string, conn Conn) {
	r.mu.Lock()
	old := r.conns[identity]
	r.conns[identity] = conn
	r.mu.Unlock()

	if old != nil && old != conn {
		_ = old.Close()
	}
	r.logger.Info("participant connected", "identity", identity)
	r.BroadcastRoster()
}

// Disconnect removes the identity's entry and broadcasts the roster. When a
// different handle has since replaced conn, the entry belongs to the
// replacement and is left alone, so a stale departure cannot take a live
// reconnect off the roster. Reports whether the identity is now offline.
func (r *Registry) Disconnect(identity string, conn Conn) bool {
	r.mu.Lock()
	current, present := r.conns[identity]
	if present && current != conn {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, identity)
	r.mu.Unlock()

	if present {
		r.logger.Info("participant disconnected", "identity", identity)
		r.BroadcastRoster()
	}
	return true
}

// Unicast sends to one participant. A send failure removes the entry and is
// not raised to the caller.
func (r *Registry) Unicast(identity string, f protocol.Frame) {
	r.mu.Lock()
	conn, ok := r.conns[identity]
	r.mu.Unlock()
	if !ok {
		return
	}

	if err := conn.Send(f); err != nil {
		r.logger.Warn("send failed, pruning connection", "identity", identity, "error", err)
		r.prune(identity, conn)
		r.BroadcastRoster()
	}
}

// Broadcast sends to a snapshot of all current entries. Failing recipients
// are pruned; everyone else still receives the frame.
func (r *Registry) Broadcast(f protocol.Frame) {
	r.mu.Lock()
	snapshot := make(map[string]Conn, len(r.conns))
	for id, conn := range r.conns {
		snapshot[id] = conn
	}
	r.mu.Unlock()

	var failed []string
	for id, conn := range snapshot {
		if err := conn.Send(f); err != nil {
			r.logger.Warn("broadcast send failed, pruning", "identity", id, "error", err)
			failed = append(failed, id)
		}
	}

	if len(failed) > 0 {
		for _, id := range failed {
			r.prune(id, snapshot[id])
		}
		r.BroadcastRoster()
	}
}

// Roster returns the sorted list of connected identities.
func (r *Registry) Roster() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BroadcastRoster fans the current roster out to everyone.
func (r *Registry) BroadcastRoster() {
	r.Broadcast(protocol.New(protocol.TypeRosterUpdate, protocol.RosterUpdate{Users: r.Roster()}))
}

// prune drops a dead entry and closes its handle, without a roster broadcast;
// callers decide when the roster goes out. The entry stays if a replacement
// handle has already taken it over.
func (r *Registry) prune(identity string, conn Conn) {
	r.mu.Lock()
	if current, ok := r.conns[identity]; ok && current == conn {
		delete(r.conns, identity)
	}
	r.mu.Unlock()
	_ = conn.Close()
}
