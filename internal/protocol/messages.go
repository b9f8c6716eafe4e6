package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound event names.
const (
	EventCreateGroup  = "create-group"
	EventJoinGroup    = "join-group"
	EventGroupMessage = "group-message"
	EventLeaveGroup   = "leave-group"

	EventOfferGroup     = "offer-group"
	EventAnswerGroup    = "answer-group"
	EventCandidateGroup = "candidate-group"

	EventOffer     = "offer"
	EventAnswer    = "answer"
	EventCandidate = "candidate"
)

// Outbound-only event names.
const (
	EventNotification = "notification"
	EventMemberJoin   = "member-join"
	EventMessage      = "message"
)

// Reply messages. The invalid-payload strings are part of the protocol
// contract and must not be reworded (clients match on them).
const (
	MsgCreateGroupInvalid  = "Invalid group data. username is required."
	MsgJoinGroupInvalid    = "Invalid group data. Name and group are required."
	MsgGroupMessageInvalid = "Invalid group data.Group is required."
	MsgLeaveGroupInvalid   = "Invalid group data. Group is required."

	MsgJoinSuccess    = "Join success."
	MsgMessageSuccess = "Send message success."
	MsgLeaveSuccess   = "Leave group success."
	MsgUserNotFound   = "User not found."
)

// Frame is one WebSocket text message: a named event with an opaque payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, err
	}
	if f.Event == "" {
		return Frame{}, fmt.Errorf("frame missing event name")
	}
	return f, nil
}

// Ack is the reply payload sent back on the triggering event's name. Status
// follows HTTP semantics but travels inside the payload, not at the
// transport layer.
type Ack struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// AckFrame builds a reply frame on the given event name.
func AckFrame(event string, ack Ack) Frame {
	return Frame{Event: event, Data: mustMarshal(ack)}
}

// NotificationFrame carries a human-readable text payload.
func NotificationFrame(text string) Frame {
	return Frame{Event: EventNotification, Data: mustMarshal(text)}
}

// MemberJoinFrame has no payload.
func MemberJoinFrame() Frame {
	return Frame{Event: EventMemberJoin}
}

// ChatMessage is the payload of the "message" event fanned out to a room.
type ChatMessage struct {
	Username string          `json:"username"`
	Message  json.RawMessage `json:"message"`
}

func MessageFrame(username string, message json.RawMessage) Frame {
	return Frame{Event: EventMessage, Data: mustMarshal(ChatMessage{
		Username: username,
		Message:  message,
	})}
}

// CreateGroup is the payload of "create-group".
type CreateGroup struct {
	Username string `json:"username"`
}

func ParseCreateGroup(data []byte) (CreateGroup, error) {
	var p CreateGroup
	if len(data) == 0 {
		return CreateGroup{}, fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return CreateGroup{}, err
	}
	if p.Username == "" {
		return CreateGroup{}, fmt.Errorf("username is required")
	}
	return p, nil
}

// JoinGroup is the payload of "join-group".
type JoinGroup struct {
	Username string `json:"username"`
	ID       string `json:"id"`
}

func ParseJoinGroup(data []byte) (JoinGroup, error) {
	var p JoinGroup
	if len(data) == 0 {
		return JoinGroup{}, fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return JoinGroup{}, err
	}
	if p.Username == "" || p.ID == "" {
		return JoinGroup{}, fmt.Errorf("username and id are required")
	}
	return p, nil
}

// JoinAck is the data field of a successful join-group reply.
type JoinAck struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GroupMessage is the payload of "group-message". Message is forwarded
// opaquely.
type GroupMessage struct {
	Group   string          `json:"group"`
	Message json.RawMessage `json:"message"`
}

func ParseGroupMessage(data []byte) (GroupMessage, error) {
	var p GroupMessage
	if len(data) == 0 {
		return GroupMessage{}, fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return GroupMessage{}, err
	}
	if p.Group == "" {
		return GroupMessage{}, fmt.Errorf("group is required")
	}
	return p, nil
}

// ParseLeaveGroup parses the payload of "leave-group": a bare room ID
// string, not an object.
func ParseLeaveGroup(data []byte) (string, error) {
	var roomID string
	if len(data) == 0 {
		return "", fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(data, &roomID); err != nil {
		return "", err
	}
	if roomID == "" {
		return "", fmt.Errorf("group is required")
	}
	return roomID, nil
}

// RoomSignal is the payload of the room-scoped WebRTC forwarding events
// (offer-group, answer-group, candidate-group). Data is forwarded opaquely
// as the outbound payload.
type RoomSignal struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

func ParseRoomSignal(data []byte) (RoomSignal, error) {
	var p RoomSignal
	if len(data) == 0 {
		return RoomSignal{}, fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return RoomSignal{}, err
	}
	if p.ID == "" {
		return RoomSignal{}, fmt.Errorf("id is required")
	}
	return p, nil
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// All callers pass marshalable values; a failure here is a bug.
		panic(fmt.Sprintf("protocol: marshal %T: %v", v, err))
	}
	return data
}
