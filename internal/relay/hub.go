package relay

import (
	"log/slog"
	"sync"

	"github.com/hallwerk/groupchat-relay/internal/metrics"
	"github.com/hallwerk/groupchat-relay/internal/protocol"
	"github.com/hallwerk/groupchat-relay/internal/registry"
)

// Sender is one live connection's outbound half. Send may block on
// transport back-pressure; the hub never calls it while holding a lock.
type Sender interface {
	Send(f protocol.Frame) error
}

// Hub routes outbound frames to one connection, to a room, or to every
// other live connection. It owns the connection-ID to Sender table and
// wraps the membership registry; membership snapshots are taken under the
// registry lock and sender resolution under the hub lock, with all
// transport writes performed after both are released.
type Hub struct {
	log      *slog.Logger
	registry *registry.Registry
	metrics  *metrics.Metrics

	mu      sync.Mutex
	senders map[string]Sender
}

func NewHub(log *slog.Logger, reg *registry.Registry, m *metrics.Metrics) *Hub {
	return &Hub{
		log:      log,
		registry: reg,
		metrics:  m,
		senders:  make(map[string]Sender),
	}
}

// Registry exposes the membership registry to dispatchers.
func (h *Hub) Registry() *registry.Registry {
	return h.registry
}

func (h *Hub) Metrics() *metrics.Metrics {
	return h.metrics
}

// Bind registers a freshly accepted connection: registry attach plus sender
// table entry.
func (h *Hub) Bind(connID string, s Sender) error {
	if err := h.registry.Attach(connID); err != nil {
		return err
	}

	h.mu.Lock()
	h.senders[connID] = s
	h.mu.Unlock()

	h.metrics.Inc(metrics.ConnectionsOpened)
	return nil
}

// Release tears down a closed connection: the sender is forgotten first so
// no new fan-out resolves it, then the registry detach runs to completion.
// The result maps each departed room to the members remaining in it.
func (h *Hub) Release(connID string) map[string][]string {
	h.mu.Lock()
	_, wasBound := h.senders[connID]
	delete(h.senders, connID)
	h.mu.Unlock()

	remaining := h.registry.Detach(connID)
	if wasBound {
		h.metrics.Inc(metrics.ConnectionsClosed)
	}

	for roomID, peers := range remaining {
		if len(peers) == 0 {
			h.metrics.Inc(metrics.RoomsDestroyed)
		}
		h.log.Debug("connection departed room", "conn_id", connID, "room_id", roomID, "remaining", len(peers))
	}
	return remaining
}

// Send delivers a frame to a single connection. Frames to connections that
// are no longer live are dropped.
func (h *Hub) Send(connID string, f protocol.Frame) {
	h.mu.Lock()
	s := h.senders[connID]
	h.mu.Unlock()

	if s == nil {
		return
	}
	h.deliver(connID, s, f)
}

// BroadcastRoom delivers a frame to every current member of the room. The
// sender's own copy is governed by includeSender. The membership snapshot
// is taken at call time; members that disconnect concurrently are skipped
// or fail their individual write without affecting the rest.
func (h *Hub) BroadcastRoom(roomID, senderID string, includeSender bool, f protocol.Frame) {
	members := h.registry.Members(roomID)
	if len(members) == 0 {
		return
	}

	targets := make([]target, 0, len(members))
	h.mu.Lock()
	for _, id := range members {
		if !includeSender && id == senderID {
			continue
		}
		if s := h.senders[id]; s != nil {
			targets = append(targets, target{id: id, sender: s})
		}
	}
	h.mu.Unlock()

	for _, t := range targets {
		h.deliver(t.id, t.sender, f)
	}
}

// BroadcastAll delivers a frame to every live connection except the sender,
// regardless of room membership.
func (h *Hub) BroadcastAll(senderID string, f protocol.Frame) {
	h.mu.Lock()
	targets := make([]target, 0, len(h.senders))
	for id, s := range h.senders {
		if id == senderID {
			continue
		}
		targets = append(targets, target{id: id, sender: s})
	}
	h.mu.Unlock()

	for _, t := range targets {
		h.deliver(t.id, t.sender, f)
	}
}

type target struct {
	id     string
	sender Sender
}

// deliver logs and drops failed writes; the failing connection is torn down
// by its own lifecycle once the transport reports closure.
func (h *Hub) deliver(connID string, s Sender, f protocol.Frame) {
	if err := s.Send(f); err != nil {
		h.metrics.Inc(metrics.SendFailures)
		h.log.Warn("dropping undeliverable frame", "conn_id", connID, "event", f.Event, "err", err)
	}
}
