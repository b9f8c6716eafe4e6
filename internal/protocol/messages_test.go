package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseFrame(t *testing.T) {
	f, err := ParseFrame([]byte(`{"event":"join-group","data":{"username":"alice","id":"r1"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Event != EventJoinGroup {
		t.Fatalf("expected join-group, got %q", f.Event)
	}

	if _, err := ParseFrame([]byte(`{"data":{}}`)); err == nil {
		t.Fatalf("expected error for missing event name")
	}
	if _, err := ParseFrame([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
}

func TestParseCreateGroup(t *testing.T) {
	p, err := ParseCreateGroup([]byte(`{"username":"alice"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Username != "alice" {
		t.Fatalf("got %q", p.Username)
	}

	for _, raw := range []string{"", `{}`, `{"username":""}`} {
		if _, err := ParseCreateGroup([]byte(raw)); err == nil {
			t.Fatalf("expected error for payload %q", raw)
		}
	}
}

func TestParseJoinGroup(t *testing.T) {
	p, err := ParseJoinGroup([]byte(`{"username":"bob","id":"room-1"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Username != "bob" || p.ID != "room-1" {
		t.Fatalf("got %+v", p)
	}

	for _, raw := range []string{"", `{"username":"bob"}`, `{"id":"room-1"}`} {
		if _, err := ParseJoinGroup([]byte(raw)); err == nil {
			t.Fatalf("expected error for payload %q", raw)
		}
	}
}

func TestParseGroupMessagePreservesOpaqueMessage(t *testing.T) {
	p, err := ParseGroupMessage([]byte(`{"group":"r1","message":{"kind":"rich","body":[1,2]}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Group != "r1" {
		t.Fatalf("got group %q", p.Group)
	}
	// The message is relayed untouched, whatever its JSON shape.
	if string(p.Message) != `{"kind":"rich","body":[1,2]}` {
		t.Fatalf("message not preserved: %s", p.Message)
	}

	if _, err := ParseGroupMessage([]byte(`{"message":"hi"}`)); err == nil {
		t.Fatalf("expected error for missing group")
	}
}

func TestParseLeaveGroupBareString(t *testing.T) {
	roomID, err := ParseLeaveGroup([]byte(`"room-7"`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if roomID != "room-7" {
		t.Fatalf("got %q", roomID)
	}

	// The payload is a bare string, not an object.
	if _, err := ParseLeaveGroup([]byte(`{"group":"room-7"}`)); err == nil {
		t.Fatalf("expected error for object payload")
	}
	if _, err := ParseLeaveGroup([]byte(`""`)); err == nil {
		t.Fatalf("expected error for empty room ID")
	}
}

func TestParseRoomSignal(t *testing.T) {
	p, err := ParseRoomSignal([]byte(`{"id":"r1","data":{"type":"offer","sdp":"v=0"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.ID != "r1" {
		t.Fatalf("got id %q", p.ID)
	}
	if !strings.Contains(string(p.Data), `"sdp"`) {
		t.Fatalf("data not preserved: %s", p.Data)
	}

	if _, err := ParseRoomSignal([]byte(`{"data":{}}`)); err == nil {
		t.Fatalf("expected error for missing id")
	}
}

func TestAckFrameWireShape(t *testing.T) {
	f := AckFrame(EventCreateGroup, Ack{Status: 201, Message: "room-id"})
	raw, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"event":"create-group","data":{"status":201,"message":"room-id"}}`
	if string(raw) != want {
		t.Fatalf("got %s, want %s", raw, want)
	}
}

func TestNotificationAndMemberJoinFrames(t *testing.T) {
	n := NotificationFrame("User alice has joined")
	if n.Event != EventNotification || string(n.Data) != `"User alice has joined"` {
		t.Fatalf("got %+v", n)
	}

	mj := MemberJoinFrame()
	raw, err := json.Marshal(mj)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"event":"member-join"}` {
		t.Fatalf("member-join must carry no payload, got %s", raw)
	}
}

func TestMessageFrameEmptyUsername(t *testing.T) {
	f := MessageFrame("", json.RawMessage(`"hi"`))
	var payload ChatMessage
	if err := json.Unmarshal(f.Data, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Username != "" {
		t.Fatalf("got %q", payload.Username)
	}
	// username must be present even when empty.
	if !strings.Contains(string(f.Data), `"username":""`) {
		t.Fatalf("username field missing: %s", f.Data)
	}
}
