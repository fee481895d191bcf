// Package realtime provides the live-connection registry, the notification
// router, and the websocket push transport.
//
// The registry is strictly process-local and rebuilt from scratch on
// restart; a multi-process deployment needs an external fan-out layer.
package realtime

import (
	"sync"
	"time"
)

// Entry describes one authenticated live connection. A user may hold any
// number of concurrent entries (multi-device).
type Entry struct {
	ConnID          string
	UserID          string
	Role            string
	AuthenticatedAt time.Time
}

// Registry is the single source of truth for "who is reachable right now".
// The primary table and the per-user index are updated together under one
// lock so they can never disagree.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Entry              // by connID
	byUser map[string]map[string]struct{} // userID -> connID set
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]*Entry),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Register inserts or overwrites the entry for connID. An entry exists
// only after a successful handshake; the transport is the sole caller.
func (r *Registry) Register(connID, userID, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.conns[connID]; ok {
		r.removeIndex(old.UserID, connID)
	}

	r.conns[connID] = &Entry{
		ConnID:          connID,
		UserID:          userID,
		Role:            role,
		AuthenticatedAt: time.Now(),
	}
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[string]struct{})
		r.byUser[userID] = set
	}
	set[connID] = struct{}{}
}

// Unregister removes the entry for connID. Idempotent: unknown ids and
// repeated calls are no-ops.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(r.conns, connID)
	r.removeIndex(entry.UserID, connID)
}

// removeIndex removes connID from the user's index set. Caller holds the lock.
func (r *Registry) removeIndex(userID, connID string) {
	set, ok := r.byUser[userID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.byUser, userID)
	}
}

// ConnectionsFor returns the current connection ids for userID at call
// time. The result is a snapshot: entries may disconnect before the
// caller uses them, and senders must tolerate that.
func (r *Registry) ConnectionsFor(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// Lookup returns the entry for connID, if registered.
func (r *Registry) Lookup(connID string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	copy := *entry
	return &copy, true
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
