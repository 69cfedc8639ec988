// Package server is the transport layer of GoChat: HTTP routes, WebSocket
// upgrades, and the per-connection read and write pumps.
//
// Authenticated sockets become Clients, which the Hub registers with the
// gateway. Inbound frames are handed to gateway.Gateway.Handle and outbound
// events arrive through Client.Send. Configuration, origin checks and
// per-connection rate limiting also live here.
package server
