package relay

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hallwerk/groupchat-relay/internal/metrics"
	"github.com/hallwerk/groupchat-relay/internal/protocol"
)

// Dispatcher handles the inbound events of a single connection. Events
// arrive serially in the order the transport read them; a new Dispatcher is
// created per connection and carries no state beyond its identity.
//
// Validation failures never terminate the connection: they produce a reply
// on the triggering event's name with a 4xx status in the payload.
type Dispatcher struct {
	log    *slog.Logger
	hub    *Hub
	connID string
}

func NewDispatcher(log *slog.Logger, hub *Hub, connID string) *Dispatcher {
	return &Dispatcher{
		log:    log.With("conn_id", connID),
		hub:    hub,
		connID: connID,
	}
}

func (d *Dispatcher) Dispatch(f protocol.Frame) {
	d.hub.Metrics().Inc(metrics.EventCounter(f.Event))

	switch f.Event {
	case protocol.EventCreateGroup:
		d.handleCreateGroup(f)
	case protocol.EventJoinGroup:
		d.handleJoinGroup(f)
	case protocol.EventGroupMessage:
		d.handleGroupMessage(f)
	case protocol.EventLeaveGroup:
		d.handleLeaveGroup(f)
	case protocol.EventOfferGroup, protocol.EventAnswerGroup, protocol.EventCandidateGroup:
		d.handleRoomSignal(f)
	case protocol.EventOffer, protocol.EventAnswer, protocol.EventCandidate:
		// Global signaling: forwarded verbatim to every other connection.
		d.hub.BroadcastAll(d.connID, protocol.Frame{Event: f.Event, Data: f.Data})
	default:
		d.hub.Metrics().Inc(metrics.FramesUnknownEvent)
		d.log.Debug("ignoring unknown event", "event", f.Event)
	}
}

func (d *Dispatcher) handleCreateGroup(f protocol.Frame) {
	req, err := protocol.ParseCreateGroup(f.Data)
	if err != nil {
		d.reject(f.Event, protocol.MsgCreateGroupInvalid)
		return
	}

	roomID := NewRoomID()
	reg := d.hub.Registry()
	reg.SetName(d.connID, req.Username)
	if _, created := reg.Join(d.connID, roomID); created {
		d.hub.Metrics().Inc(metrics.RoomsCreated)
	}

	d.log.Info("group created", "room_id", roomID, "username", req.Username)
	d.reply(f.Event, protocol.Ack{Status: http.StatusCreated, Message: roomID})
}

func (d *Dispatcher) handleJoinGroup(f protocol.Frame) {
	req, err := protocol.ParseJoinGroup(f.Data)
	if err != nil {
		d.reject(f.Event, protocol.MsgJoinGroupInvalid)
		return
	}

	reg := d.hub.Registry()
	reg.SetName(d.connID, req.Username)
	if _, created := reg.Join(d.connID, req.ID); created {
		d.hub.Metrics().Inc(metrics.RoomsCreated)
	}

	d.log.Info("user joined group", "room_id", req.ID, "username", req.Username)

	// The textual notification is ordered before the member-join marker for
	// every recipient; both exclude the joiner.
	d.hub.BroadcastRoom(req.ID, d.connID, false,
		protocol.NotificationFrame(fmt.Sprintf("User %s has joined", req.Username)))
	d.hub.BroadcastRoom(req.ID, d.connID, false, protocol.MemberJoinFrame())

	d.reply(f.Event, protocol.Ack{
		Status:  http.StatusOK,
		Message: protocol.MsgJoinSuccess,
		Data:    protocol.JoinAck{ID: d.connID, Name: req.Username},
	})
}

func (d *Dispatcher) handleGroupMessage(f protocol.Frame) {
	req, err := protocol.ParseGroupMessage(f.Data)
	if err != nil {
		d.reject(f.Event, protocol.MsgGroupMessageInvalid)
		return
	}

	// A connection that never created or joined a group has no name; the
	// message is still fanned out, with an empty username.
	username, _ := d.hub.Registry().NameOf(d.connID)

	d.hub.BroadcastRoom(req.Group, d.connID, true,
		protocol.MessageFrame(username, req.Message))
	d.reply(f.Event, protocol.Ack{Status: http.StatusOK, Message: protocol.MsgMessageSuccess})
}

func (d *Dispatcher) handleLeaveGroup(f protocol.Frame) {
	roomID, err := protocol.ParseLeaveGroup(f.Data)
	if err != nil {
		d.reject(f.Event, protocol.MsgLeaveGroupInvalid)
		return
	}

	reg := d.hub.Registry()
	username, ok := reg.NameOf(d.connID)
	if !ok {
		d.reply(f.Event, protocol.Ack{Status: http.StatusNotFound, Message: protocol.MsgUserNotFound})
		return
	}

	if reg.Leave(d.connID, roomID) && reg.Members(roomID) == nil {
		d.hub.Metrics().Inc(metrics.RoomsDestroyed)
	}
	d.log.Info("user left group", "room_id", roomID, "username", username)

	d.hub.BroadcastRoom(roomID, d.connID, false,
		protocol.NotificationFrame(fmt.Sprintf("User %s has left the group.", username)))
	d.reply(f.Event, protocol.Ack{Status: http.StatusOK, Message: protocol.MsgLeaveSuccess})
}

// handleRoomSignal forwards offer-group/answer-group/candidate-group
// payloads to the room, excluding the sender. Malformed payloads are
// counted and dropped without a reply.
func (d *Dispatcher) handleRoomSignal(f protocol.Frame) {
	sig, err := protocol.ParseRoomSignal(f.Data)
	if err != nil {
		d.hub.Metrics().Inc(metrics.SignalsIgnored)
		d.log.Debug("ignoring malformed signal", "event", f.Event, "err", err)
		return
	}

	d.hub.BroadcastRoom(sig.ID, d.connID, false, protocol.Frame{Event: f.Event, Data: sig.Data})
}

func (d *Dispatcher) reply(event string, ack protocol.Ack) {
	d.hub.Send(d.connID, protocol.AckFrame(event, ack))
}

func (d *Dispatcher) reject(event, message string) {
	d.hub.Metrics().Inc(metrics.FramesBadPayload)
	d.reply(event, protocol.Ack{Status: http.StatusBadRequest, Message: message})
}
