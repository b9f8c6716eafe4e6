package metrics

import "sync"

// Counter names used across the relay. Names are intentionally simple; a
// follow-up metrics task can standardize and export these via OTel.
const (
	ConnectionsOpened = "connections_opened"
	ConnectionsClosed = "connections_closed"
	RoomsCreated      = "rooms_created"
	RoomsDestroyed    = "rooms_destroyed"
	SendFailures      = "send_failures"

	FramesUnknownEvent = "frames_unknown_event"
	FramesBadPayload   = "frames_bad_payload"
	SignalsIgnored     = "signals_ignored"
)

// EventCounter returns the counter name for an inbound event kind, e.g.
// "event_join-group".
func EventCounter(event string) string {
	return "event_" + event
}

// Metrics is a minimal, concurrency-safe counter registry.
//
// The relay is expected to plug into a real metrics backend eventually; this
// type keeps the fan-out and dispatch logic testable while still providing
// counters for scraping.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name]++
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
