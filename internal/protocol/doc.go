// Package protocol defines the named-event wire format spoken over the
// relay's WebSocket: one JSON frame per message, an event name plus an
// opaque payload, and the typed payloads of the chat and signaling events.
//
// Parsing is deliberately lenient about unknown fields; the protocol is
// consumed by browser clients and only the documented fields are validated.
package protocol
