package relay

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/hallwerk/groupchat-relay/internal/metrics"
	"github.com/hallwerk/groupchat-relay/internal/protocol"
	"github.com/hallwerk/groupchat-relay/internal/registry"
)

type fakeSender struct {
	mu     sync.Mutex
	frames []protocol.Frame
	err    error
}

func (s *fakeSender) Send(f protocol.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *fakeSender) sent() []protocol.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Frame(nil), s.frames...)
}

func testHub(t *testing.T) *Hub {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHub(log, registry.New(), metrics.New())
}

func bind(t *testing.T, h *Hub, connID string) *fakeSender {
	t.Helper()
	s := &fakeSender{}
	if err := h.Bind(connID, s); err != nil {
		t.Fatalf("bind %s: %v", connID, err)
	}
	return s
}

func TestSendToUnknownConnectionIsDropped(t *testing.T) {
	h := testHub(t)
	// Must not panic or block.
	h.Send("ghost", protocol.NotificationFrame("hello"))
}

func TestBroadcastRoomExcludesSender(t *testing.T) {
	h := testHub(t)
	s1 := bind(t, h, "c1")
	s2 := bind(t, h, "c2")
	s3 := bind(t, h, "c3")

	h.Registry().Join("c1", "room")
	h.Registry().Join("c2", "room")
	// c3 is live but not in the room.

	h.BroadcastRoom("room", "c1", false, protocol.NotificationFrame("hi"))

	if len(s1.sent()) != 0 {
		t.Fatalf("sender must be excluded, got %v", s1.sent())
	}
	if got := s2.sent(); len(got) != 1 || got[0].Event != protocol.EventNotification {
		t.Fatalf("expected one notification for c2, got %v", got)
	}
	if len(s3.sent()) != 0 {
		t.Fatalf("non-member must not receive room broadcast, got %v", s3.sent())
	}
}

func TestBroadcastRoomIncludesSenderWhenAsked(t *testing.T) {
	h := testHub(t)
	s1 := bind(t, h, "c1")
	h.Registry().Join("c1", "room")

	h.BroadcastRoom("room", "c1", true, protocol.NotificationFrame("echo"))
	if len(s1.sent()) != 1 {
		t.Fatalf("expected sender's own copy, got %v", s1.sent())
	}
}

func TestBroadcastAllSkipsRoomMembership(t *testing.T) {
	h := testHub(t)
	s1 := bind(t, h, "c1")
	s2 := bind(t, h, "c2")
	s3 := bind(t, h, "c3")

	h.BroadcastAll("c1", protocol.Frame{Event: protocol.EventOffer})

	if len(s1.sent()) != 0 {
		t.Fatalf("sender must be excluded")
	}
	if len(s2.sent()) != 1 || len(s3.sent()) != 1 {
		t.Fatalf("all other connections must receive the frame, got %d/%d", len(s2.sent()), len(s3.sent()))
	}
}

func TestSendFailureIsIsolated(t *testing.T) {
	h := testHub(t)
	broken := &fakeSender{err: errors.New("peer gone")}
	if err := h.Bind("c1", broken); err != nil {
		t.Fatalf("bind: %v", err)
	}
	s2 := bind(t, h, "c2")

	h.Registry().Join("c1", "room")
	h.Registry().Join("c2", "room")

	h.BroadcastRoom("room", "c3", false, protocol.NotificationFrame("hi"))

	if len(s2.sent()) != 1 {
		t.Fatalf("healthy connection must still receive the frame")
	}
	if got := h.Metrics().Get(metrics.SendFailures); got != 1 {
		t.Fatalf("expected one send failure, got %d", got)
	}
}

func TestReleaseStopsDelivery(t *testing.T) {
	h := testHub(t)
	s1 := bind(t, h, "c1")
	bind(t, h, "c2")

	h.Registry().Join("c1", "room")
	h.Registry().Join("c2", "room")

	remaining := h.Release("c2")
	if peers := remaining["room"]; len(peers) != 1 || peers[0] != "c1" {
		t.Fatalf("expected c1 to remain in room, got %v", remaining)
	}

	h.Send("c2", protocol.NotificationFrame("late"))
	h.BroadcastRoom("room", "none", false, protocol.NotificationFrame("hi"))

	if got := s1.sent(); len(got) != 1 {
		t.Fatalf("expected c1 to get exactly the room broadcast, got %v", got)
	}
	if got := h.Metrics().Get(metrics.ConnectionsClosed); got != 1 {
		t.Fatalf("expected one closed connection, got %d", got)
	}
}

func TestReleaseCountsDestroyedRooms(t *testing.T) {
	h := testHub(t)
	bind(t, h, "c1")
	h.Registry().Join("c1", "room")

	h.Release("c1")
	if got := h.Metrics().Get(metrics.RoomsDestroyed); got != 1 {
		t.Fatalf("expected room destruction to be counted, got %d", got)
	}
}
