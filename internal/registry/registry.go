// Package registry holds the authoritative bidirectional mapping between
// live connections and rooms, plus the per-connection display name.
//
// All operations are atomic under one mutex: an observer never sees a
// half-applied join or leave. Callers must not hold the lock across
// transport writes; the accessors therefore return snapshots.
package registry

import (
	"errors"
	"fmt"
	"sync"
)

var ErrConnExists = errors.New("connection already registered")

type connection struct {
	name  string
	rooms map[string]struct{}
}

// Registry maps room IDs to member sets and connection IDs to their name
// and room set. Rooms are created lazily on first join and deleted when
// their last member leaves.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]map[string]struct{}
	conns map[string]*connection
}

func New() *Registry {
	return &Registry{
		rooms: make(map[string]map[string]struct{}),
		conns: make(map[string]*connection),
	}
}

// Attach registers a new connection with no rooms and no name. Attaching an
// already-registered ID is a programmer error and returns ErrConnExists.
func (r *Registry) Attach(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; ok {
		return fmt.Errorf("%w: %s", ErrConnExists, connID)
	}
	r.conns[connID] = &connection{rooms: make(map[string]struct{})}
	return nil
}

// SetName records or overwrites the connection's display name. Names are
// not unique across connections; last write wins. Unknown connections are
// ignored.
func (r *Registry) SetName(connID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.conns[connID]; ok {
		c.name = name
	}
}

// Join adds the connection to the room, creating the room if absent, and
// returns the other members at the moment of the call plus whether the room
// was created. A repeat join is a no-op.
func (r *Registry) Join(connID, roomID string) (others []string, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return nil, false
	}

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomID] = members
		created = true
	}

	for id := range members {
		if id != connID {
			others = append(others, id)
		}
	}

	members[connID] = struct{}{}
	c.rooms[roomID] = struct{}{}
	return others, created
}

// Leave removes the bidirectional link and deletes the room if it became
// empty. It reports whether the connection was in fact a member.
func (r *Registry) Leave(connID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(connID, roomID)
}

func (r *Registry) leaveLocked(connID, roomID string) bool {
	c, ok := r.conns[connID]
	if !ok {
		return false
	}
	if _, member := c.rooms[roomID]; !member {
		return false
	}

	delete(c.rooms, roomID)
	members := r.rooms[roomID]
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
	return true
}

// Members returns a snapshot of the room's membership. A missing room
// yields nil.
func (r *Registry) Members(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[roomID]
	if len(members) == 0 {
		return nil
	}
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// RoomsOf returns a snapshot of the rooms the connection belongs to.
func (r *Registry) RoomsOf(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok || len(c.rooms) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	return out
}

// NameOf returns the stored display name, if any.
func (r *Registry) NameOf(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok || c.name == "" {
		return "", false
	}
	return c.name, true
}

// Detach removes the connection from every room it was in (deleting rooms
// that become empty) and forgets it. The result maps each departed room to
// the members remaining in it, so the caller can notify peers of the
// involuntary departure.
func (r *Registry) Detach(connID string) map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return nil
	}

	remaining := make(map[string][]string, len(c.rooms))
	for roomID := range c.rooms {
		r.leaveLocked(connID, roomID)
		var peers []string
		for id := range r.rooms[roomID] {
			peers = append(peers, id)
		}
		remaining[roomID] = peers
	}

	delete(r.conns, connID)
	return remaining
}
