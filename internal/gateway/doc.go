// Package gateway implements the presence registry and message routing engine
// behind the GoChat WebSocket transport.
//
// A Registry tracks which identities hold live connections and which rooms each
// connection belongs to. The Router persists chat messages through a
// MessageStore and fans them out, the TypingPropagator relays ephemeral typing
// state with the same addressing rules, and the PresenceBroadcaster announces
// every online/offline flip. Gateway ties these together behind the inbound
// event table used by the transport layer.
package gateway
