// Package transport implements the websocket relay transport.
//
// The transport maintains one websocket connection to the relay and
// reports liveness through sequence-numbered pings. It exposes the
// callback surface the connection engine consumes; connection policy
// (when to dial, when to give up) lives in pkg/connection.
package transport
