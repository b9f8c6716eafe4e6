// Package relay contains the fan-out engine: the hub that maps live
// connections to their transport senders and the per-connection dispatcher
// that turns inbound events into registry mutations and outbound frames.
package relay
